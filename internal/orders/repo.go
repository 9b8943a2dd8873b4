package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their satellites.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindPendingByUserAndCart returns the pending order a summarize call
	// already produced for this cart, if any.
	FindPendingByUserAndCart(ctx context.Context, userID, cartID uuid.UUID) (*models.Order, error)
	// TransitionStatus moves the order from one status to another. It reports
	// false, leaving the row untouched, when the order is not in the expected
	// status anymore.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	UpdateTotal(ctx context.Context, id uuid.UUID, totalPriceCents int) error
	// ReplaceItems swaps the order's line items for a fresh snapshot.
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error
	// LatestOrderNumber returns the newest order's number, soft-deleted rows
	// included. Empty string when no orders exist.
	LatestOrderNumber(ctx context.Context) (string, error)
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	CreateShippingAddress(ctx context.Context, addr *models.ShippingAddress) (*models.ShippingAddress, error)
	// FindMatchingShippingAddress returns an identical snapshot already bound
	// to the order, if one exists.
	FindMatchingShippingAddress(ctx context.Context, addr *models.ShippingAddress) (*models.ShippingAddress, error)
	// FindPendingBefore lists pending orders last touched before the cutoff,
	// oldest first.
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindPendingByUserAndCart(ctx context.Context, userID, cartID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND cart_id = ? AND status = ?", userID, cartID, enums.OrderStatusPending).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateTotal(ctx context.Context, id uuid.UUID, totalPriceCents int) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("total_price_cents", totalPriceCents).Error
}

func (r *repository) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.OrderItem{}).Error
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) LatestOrderNumber(ctx context.Context) (string, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Unscoped().
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return order.OrderNumber, nil
}

func (r *repository) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Order{}).
		Where("order_number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateShippingAddress(ctx context.Context, addr *models.ShippingAddress) (*models.ShippingAddress, error) {
	if err := r.db.WithContext(ctx).Create(addr).Error; err != nil {
		return nil, err
	}
	return addr, nil
}

func (r *repository) FindMatchingShippingAddress(ctx context.Context, addr *models.ShippingAddress) (*models.ShippingAddress, error) {
	var existing models.ShippingAddress
	err := r.db.WithContext(ctx).
		Where(
			"order_id = ? AND user_id = ? AND street_address = ? AND city = ? AND state = ? AND postal_code = ? AND country = ?",
			addr.OrderID, addr.UserID, addr.StreetAddress, addr.City, addr.State, addr.PostalCode, addr.Country,
		).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.OrderStatusPending, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
