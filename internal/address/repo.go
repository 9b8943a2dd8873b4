package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db/models"
)

// Repository reads and writes a user's saved billing addresses. Checkout only
// needs the most recent one; address management UIs own the rest.
type Repository interface {
	Create(ctx context.Context, addr *models.Address) (*models.Address, error)
	// FindLatestByUser returns the user's most recently updated address, or
	// gorm.ErrRecordNotFound when none is saved.
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.Address, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, addr *models.Address) (*models.Address, error) {
	if err := r.db.WithContext(ctx).Create(addr).Error; err != nil {
		return nil, err
	}
	return addr, nil
}

func (r *repository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}
