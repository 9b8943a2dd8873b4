package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is immutable catalog data; mutable quantity/pricing lives on Stock.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID  int            `gorm:"column:category_id;not null"`
	Name        string         `gorm:"column:name;not null"`
	SKU         string         `gorm:"column:sku;uniqueIndex;not null"`
	Description string         `gorm:"column:description"`
	Stock       *Stock         `gorm:"foreignKey:ProductID"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
