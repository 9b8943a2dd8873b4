package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/enums"
)

// Order is the immutable record produced from a cart at summary time. It is
// created pending before payment authorization and confirmed by the payment
// confirmation handler.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	CartID          uuid.UUID         `gorm:"column:cart_id;type:uuid;not null;index"`
	OrderNumber     string            `gorm:"column:order_number;uniqueIndex;not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalPriceCents int               `gorm:"column:total_price_cents;not null"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
