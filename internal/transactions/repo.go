package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/enums"
)

// Repository defines persistence operations for payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) (*models.Transaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// TransitionStatus moves the transaction from one status to another. It
	// reports false, leaving the row untouched, when the transaction is not in
	// the expected status anymore.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error)
	// LatestTransactionNumber returns the newest transaction's number,
	// soft-deleted rows included. Empty string when none exist.
	LatestTransactionNumber(ctx context.Context) (string, error)
	TransactionNumberExists(ctx context.Context, number string) (bool, error)
	// FindPendingBefore lists pending transactions last touched before the
	// cutoff, oldest first.
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) (*models.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return nil, err
	}
	return transaction, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) LatestTransactionNumber(ctx context.Context) (string, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).
		Unscoped().
		Order("created_at DESC").
		First(&transaction).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return transaction.TransactionNumber, nil
}

func (r *repository) TransactionNumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Transaction{}).
		Where("transaction_number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	query := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.TransactionStatusPending, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}
