package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
)

// stockGuard checks availability before a cart mutation; satisfied by the
// stock ledger. Cart mutations never reserve units.
type stockGuard interface {
	EnsureAvailable(ctx context.Context, productID uuid.UUID, qty int) error
}

// Service owns cart mutations and the priced snapshot. Every mutation
// invalidates the cached snapshot so checkout never prices stale lines.
type Service interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	ItemCount(ctx context.Context, userID uuid.UUID) (int, error)
	// EmptyCart removes every item from the user's cart without ordering them.
	EmptyCart(ctx context.Context, userID, cartID uuid.UUID) error
	Snapshot(ctx context.Context, cartID, userID uuid.UUID) (*Snapshot, error)
	// Clear marks the cart's items ordered and retires the cart. It must run
	// inside the payment-confirmation transaction.
	Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type service struct {
	repo  Repository
	stock stockGuard
	cache SnapshotCache
	logg  *logger.Logger
}

// NewService builds the cart service.
func NewService(repo Repository, stock stockGuard, cache SnapshotCache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock guard required")
	}
	if cache == nil {
		return nil, fmt.Errorf("snapshot cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, stock: stock, cache: cache, logg: logg}, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := s.stock.EnsureAvailable(ctx, productID, quantity); err != nil {
		return nil, err
	}

	cart, err := s.currentOrNewCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindItem(ctx, cart.ID, productID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already in cart")
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	item := &models.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
	}
	if _, err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
	}
	if err := s.cache.Delete(ctx, cart.ID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.mustCurrentCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	if err := s.stock.EnsureAvailable(ctx, productID, quantity); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	item.Quantity = quantity
	if err := s.cache.Delete(ctx, cart.ID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	cart, err := s.mustCurrentCart(ctx, userID)
	if err != nil {
		return err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	return s.cache.Delete(ctx, cart.ID)
}

func (s *service) ItemCount(ctx context.Context, userID uuid.UUID) (int, error) {
	cart, err := s.repo.FindCurrentByUser(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	count, err := s.repo.CountItems(ctx, cart.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cart items")
	}
	return int(count), nil
}

func (s *service) EmptyCart(ctx context.Context, userID, cartID uuid.UUID) error {
	if _, err := s.repo.FindByIDForUser(ctx, cartID, userID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := s.repo.DeleteItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "empty cart")
	}
	return s.cache.Delete(ctx, cartID)
}

// Snapshot prices the cart and caches the encrypted result under the cart key.
func (s *service) Snapshot(ctx context.Context, cartID, userID uuid.UUID) (*Snapshot, error) {
	cart, err := s.repo.FindByIDForUser(ctx, cartID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	snapshot := buildSnapshot(cart)
	if err := s.cache.Put(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to clear cart")
	}
	repo := s.repo.WithTx(tx)
	if err := repo.MarkItemsOrdered(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart items ordered")
	}
	if err := repo.RetireCart(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire cart")
	}
	return s.cache.Delete(ctx, cartID)
}

func (s *service) currentOrNewCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindCurrentByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	created, err := s.repo.CreateCart(ctx, &models.Cart{UserID: userID, IsCurrent: true})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	s.logg.Info(s.logg.WithCartID(ctx, created.ID.String()), "created cart for user")
	return created, nil
}

func (s *service) mustCurrentCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindCurrentByUser(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func buildSnapshot(cart *models.Cart) *Snapshot {
	snapshot := &Snapshot{
		CartID: cart.ID,
		UserID: cart.UserID,
		Items:  make([]SnapshotItem, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		unit := 0
		name := ""
		sku := ""
		if item.Product != nil {
			name = item.Product.Name
			sku = item.Product.SKU
			if item.Product.Stock != nil {
				unit = item.Product.Stock.CostPriceCents
			}
		}
		price := unit * item.Quantity
		snapshot.Items = append(snapshot.Items, SnapshotItem{
			ProductID:      item.ProductID,
			Name:           name,
			SKU:            sku,
			Quantity:       item.Quantity,
			UnitPriceCents: unit,
			PriceCents:     price,
		})
		snapshot.SubTotalCents += price
	}
	snapshot.TotalProducts = len(snapshot.Items)
	return snapshot
}
