package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one product line inside a cart. The (cart_id, product_id) pair
// is unique while the item is not ordered; the cart service enforces this so
// soft-deleted lines do not block re-adding a removed product. Clearing the
// cart at confirmed checkout marks items ordered and soft-deletes them.
type CartItem struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID      `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID uuid.UUID      `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity  int            `gorm:"column:quantity;not null"`
	IsOrdered bool           `gorm:"column:is_ordered;not null;default:false"`
	Product   *Product       `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
