package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db"
	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
)

// Ledger exposes the stock operations the cart and checkout flows need.
// Quantity only ever decreases on a confirmed payment; cart mutations are
// guarded by EnsureAvailable but never reserve units.
type Ledger interface {
	Create(ctx context.Context, input CreateInput) (*models.Stock, error)
	EnsureAvailable(ctx context.Context, productID uuid.UUID, qty int) error
	Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, orderedQty int) error
}

// CreateInput carries the fields for a new stock row.
type CreateInput struct {
	ProductID        uuid.UUID
	Quantity         int
	CostPriceCents   int
	RetailPriceCents int
}

type ledger struct {
	repo Repository
}

// NewLedger builds the default stock ledger.
func NewLedger(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &ledger{repo: repo}, nil
}

func (l *ledger) Create(ctx context.Context, input CreateInput) (*models.Stock, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	stock := &models.Stock{
		ProductID:        input.ProductID,
		Quantity:         input.Quantity,
		CostPriceCents:   input.CostPriceCents,
		RetailPriceCents: input.RetailPriceCents,
	}
	created, err := l.repo.Create(ctx, stock)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "stock already exists for product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock")
	}
	return created, nil
}

func (l *ledger) EnsureAvailable(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	stock, err := l.repo.FindByProduct(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock not found for product")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	if qty > stock.Quantity {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock: only %d left", stock.Quantity))
	}
	return nil
}

// Adjust decrements stock for a confirmed order line. It must run inside the
// confirmation transaction so a failure rolls the whole confirmation back.
func (l *ledger) Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, orderedQty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock adjust")
	}
	if orderedQty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "ordered quantity must be positive")
	}

	repo := l.repo.WithTx(tx)
	updated, err := repo.DecrementQuantity(ctx, productID, orderedQty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}
	if updated {
		return nil
	}

	// Nothing matched: either the row is gone or the floor would be crossed.
	if _, err := repo.FindByProduct(ctx, productID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock not found for product")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "stock would go negative")
}
