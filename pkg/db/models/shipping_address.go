package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShippingAddress is a delivery-address snapshot bound to one order and user.
// Never mutated after creation.
type ShippingAddress struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	StreetAddress string    `gorm:"column:street_address;not null"`
	City          string    `gorm:"column:city;not null"`
	State         string    `gorm:"column:state;not null"`
	PostalCode    string    `gorm:"column:postal_code;not null"`
	Country       string    `gorm:"column:country;not null"`
	Label         string    `gorm:"column:label;default:'Shipping'"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (s *ShippingAddress) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
