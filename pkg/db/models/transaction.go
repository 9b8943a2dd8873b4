package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/enums"
)

// Transaction records one payment attempt for an order. Amounts are integer
// minor units; decimal conversion happens at the API boundary.
type Transaction struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID           uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	TransactionNumber string                  `gorm:"column:transaction_number;uniqueIndex;not null"`
	AmountCents       int                     `gorm:"column:amount_cents;not null"`
	TotalCents        int                     `gorm:"column:total_cents;not null"`
	ChargeCents       int                     `gorm:"column:charge_cents;not null"`
	Status            enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TransactionDate   time.Time               `gorm:"column:transaction_date;autoCreateTime"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt          `gorm:"column:deleted_at;index"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
