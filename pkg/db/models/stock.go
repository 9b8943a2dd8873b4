package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stock is the 1:1 mutable ledger entry for a product. Quantity never goes
// negative; it is decremented only on confirmed payment.
type Stock struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID      `gorm:"column:product_id;type:uuid;uniqueIndex;not null"`
	Quantity         int            `gorm:"column:quantity;not null;default:0"`
	CostPriceCents   int            `gorm:"column:cost_price_cents;not null"`
	RetailPriceCents int            `gorm:"column:retail_price_cents;not null"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt        gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (s *Stock) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
