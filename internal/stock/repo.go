package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db/models"
)

// Repository defines persistence operations for stock rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, stock *models.Stock) (*models.Stock, error)
	FindByProduct(ctx context.Context, productID uuid.UUID) (*models.Stock, error)
	// DecrementQuantity subtracts qty from the product's stock only when
	// enough remains. It reports whether a row was updated.
	DecrementQuantity(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, stock *models.Stock) (*models.Stock, error) {
	if err := r.db.WithContext(ctx).Create(stock).Error; err != nil {
		return nil, err
	}
	return stock, nil
}

func (r *repository) FindByProduct(ctx context.Context, productID uuid.UUID) (*models.Stock, error) {
	var stock models.Stock
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *repository) DecrementQuantity(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	// Conditional update keeps the floor check and the write atomic, the same
	// guard the quantity CHECK constraint enforces at the schema level.
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stocks
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND deleted_at IS NULL AND quantity >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
