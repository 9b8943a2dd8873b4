package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/internal/address"
	"github.com/shoplinehq/shopline-backend/internal/cart"
	"github.com/shoplinehq/shopline-backend/internal/orders"
	"github.com/shoplinehq/shopline-backend/internal/transactions"
	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/enums"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
	"github.com/shoplinehq/shopline-backend/pkg/payments"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// numberIssuer mints unique human-readable identifiers; satisfied by
// *sequence.Issuer.
type numberIssuer interface {
	Next(ctx context.Context, discriminator string) (string, error)
}

// stockAdjuster decrements stock inside the confirmation transaction.
type stockAdjuster interface {
	Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, orderedQty int) error
}

// cartClearer retires a cart after its order is confirmed.
type cartClearer interface {
	Snapshot(ctx context.Context, cartID, userID uuid.UUID) (*cart.Snapshot, error)
	Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// CheckoutInput captures a checkout request.
type CheckoutInput struct {
	CartID            uuid.UUID
	UserID            uuid.UUID
	BillingIsShipping bool
	Shipping          orders.ShippingDetails
}

// CheckoutResult returns what the client needs to complete payment.
type CheckoutResult struct {
	TransactionID     uuid.UUID
	TransactionNumber string
	OrderID           uuid.UUID
	OrderNumber       string
	TotalCents        int
	ClientSecret      string
}

// ConfirmResult reports the outcome of a payment confirmation.
type ConfirmResult struct {
	Succeeded   bool
	Message     string
	OrderID     uuid.UUID
	OrderNumber string
}

// Service orchestrates the checkout pipeline: summary, checkout, confirmation.
type Service interface {
	OrderSummary(ctx context.Context, cartID, userID uuid.UUID) (*Summary, error)
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	ConfirmPayment(ctx context.Context, paymentRef string) (*ConfirmResult, error)
}

// Params wires a checkout service.
type Params struct {
	Carts        cartClearer
	CartCache    cart.SnapshotCache
	SummaryCache SummaryCache
	Orders       orders.Repository
	Transactions transactions.Repository
	Addresses    address.Repository
	Stock        stockAdjuster
	OrderNumbers numberIssuer
	TxNumbers    numberIssuer
	Gateway      payments.Gateway
	Tx           txRunner
	Logger       *logger.Logger
}

type service struct {
	carts        cartClearer
	cartCache    cart.SnapshotCache
	summaryCache SummaryCache
	orders       orders.Repository
	transactions transactions.Repository
	addresses    address.Repository
	stock        stockAdjuster
	orderNumbers numberIssuer
	txNumbers    numberIssuer
	gateway      payments.Gateway
	tx           txRunner
	logg         *logger.Logger
}

// NewService validates the wiring and builds a checkout service.
func NewService(params Params) (Service, error) {
	switch {
	case params.Carts == nil:
		return nil, fmt.Errorf("cart service required")
	case params.CartCache == nil:
		return nil, fmt.Errorf("cart cache required")
	case params.SummaryCache == nil:
		return nil, fmt.Errorf("summary cache required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Transactions == nil:
		return nil, fmt.Errorf("transactions repository required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address repository required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock adjuster required")
	case params.OrderNumbers == nil:
		return nil, fmt.Errorf("order number issuer required")
	case params.TxNumbers == nil:
		return nil, fmt.Errorf("transaction number issuer required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		carts:        params.Carts,
		cartCache:    params.CartCache,
		summaryCache: params.SummaryCache,
		orders:       params.Orders,
		transactions: params.Transactions,
		addresses:    params.Addresses,
		stock:        params.Stock,
		orderNumbers: params.OrderNumbers,
		txNumbers:    params.TxNumbers,
		gateway:      params.Gateway,
		tx:           params.Tx,
		logg:         params.Logger,
	}, nil
}

// OrderSummary prices the cart, persists a pending order and caches the
// enriched summary. Calling it again for the same cart refreshes the pending
// order in place instead of creating a second one.
func (s *service) OrderSummary(ctx context.Context, cartID, userID uuid.UUID) (*Summary, error) {
	ctx = s.logg.WithCartID(ctx, cartID.String())

	snapshot, err := s.cartCache.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.UserID != userID {
		snapshot, err = s.carts.Snapshot(ctx, cartID, userID)
		if err != nil {
			return nil, err
		}
	}
	if snapshot.SubTotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has nothing to order")
	}

	charge := transactions.CalculateCharge(snapshot.SubTotalCents)

	var summaryAddr *SummaryAddress
	saved, err := s.addresses.FindLatestByUser(ctx, userID)
	if err == nil {
		summaryAddr = &SummaryAddress{
			StreetAddress: saved.StreetAddress,
			City:          saved.City,
			State:         saved.State,
			PostalCode:    saved.PostalCode,
			Country:       saved.Country,
		}
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing address")
	}

	order, err := s.persistPendingOrder(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CartID:        cartID,
		UserID:        userID,
		Items:         snapshot.Items,
		SubTotalCents: snapshot.SubTotalCents,
		ChargeCents:   charge.FeeCents,
		TotalCents:    charge.TotalCents,
		Address:       summaryAddr,
	}
	if err := s.summaryCache.Put(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// Checkout turns a summarized cart into a pending transaction and a payment
// authorization. The intent is created after commit and is never retried; a
// stale pending transaction is the reaper's problem, a double charge is not.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	ctx = s.logg.WithCartID(ctx, input.CartID.String())

	summary, err := s.summaryCache.Get(ctx, input.CartID)
	if err != nil {
		return nil, err
	}
	if summary == nil || summary.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "no order summary for cart")
	}

	details := input.Shipping
	if input.BillingIsShipping {
		saved, err := s.addresses.FindLatestByUser(ctx, input.UserID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no saved billing address")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing address")
		}
		details = orders.FromAddress(saved)
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}

	order, err := s.orders.FindPendingByUserAndCart(ctx, input.UserID, input.CartID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "no pending order for cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending order")
	}

	txNumber, err := s.txNumbers.Next(ctx, "")
	if err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		UserID:            input.UserID,
		OrderID:           order.ID,
		TransactionNumber: txNumber,
		AmountCents:       summary.SubTotalCents,
		ChargeCents:       summary.ChargeCents,
		TotalCents:        summary.TotalCents,
		Status:            enums.TransactionStatusPending,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := orders.StoreShippingDetails(ctx, s.orders.WithTx(tx), order, details); err != nil {
			return err
		}
		if _, err := s.transactions.WithTx(tx).Create(ctx, transaction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithTransactionID(ctx, transaction.ID.String())
	clientSecret, err := s.gateway.CreateAuthorization(ctx, int64(summary.TotalCents), "usd", payments.Metadata{
		TransactionID:     transaction.ID.String(),
		OrderID:           order.ID.String(),
		CartID:            input.CartID.String(),
		UserID:            input.UserID.String(),
		TransactionNumber: txNumber,
		Status:            transaction.Status.String(),
		TransactionDate:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logg.Error(ctx, "payment authorization failed", err)
		return nil, err
	}

	return &CheckoutResult{
		TransactionID:     transaction.ID,
		TransactionNumber: txNumber,
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		TotalCents:        summary.TotalCents,
		ClientSecret:      clientSecret,
	}, nil
}

// errAlreadySettled aborts a confirmation whose transaction or order left the
// pending status between the verdict read and the local commit.
var errAlreadySettled = errors.New("checkout already settled")

// ConfirmPayment settles a transaction from the gateway's verdict. Repeating
// a confirmation for an already completed transaction succeeds without
// touching stock or the cart again. A transaction the reaper has already
// failed cannot be completed by a late verdict; that surfaces as a conflict.
func (s *service) ConfirmPayment(ctx context.Context, paymentRef string) (*ConfirmResult, error) {
	auth, err := s.gateway.RetrieveAuthorization(ctx, paymentRef)
	if err != nil {
		return nil, err
	}

	txID, err := uuid.Parse(auth.Metadata.TransactionID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment metadata missing transaction id")
	}
	ctx = s.logg.WithTransactionID(ctx, txID.String())

	transaction, err := s.transactions.FindByID(ctx, txID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}

	order, err := s.orders.FindByID(ctx, transaction.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if transaction.Status == enums.TransactionStatusCompleted {
		return &ConfirmResult{
			Succeeded:   true,
			Message:     "payment already confirmed",
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
		}, nil
	}

	if !auth.Succeeded {
		if _, err := s.transactions.TransitionStatus(ctx, transaction.ID, enums.TransactionStatusPending, enums.TransactionStatusFailed); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed payment")
		}
		return &ConfirmResult{
			Succeeded:   false,
			Message:     "payment failed",
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
		}, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.transactions.WithTx(tx).TransitionStatus(ctx, transaction.ID, enums.TransactionStatusPending, enums.TransactionStatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			return errAlreadySettled
		}
		moved, err = s.orders.WithTx(tx).TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
		if err != nil {
			return err
		}
		if !moved {
			return errAlreadySettled
		}

		summary, err := s.summaryCache.Get(ctx, order.CartID)
		if err != nil {
			return err
		}
		if summary != nil {
			for _, item := range summary.Items {
				if err := s.stock.Adjust(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			if err := s.summaryCache.Delete(ctx, order.CartID); err != nil {
				return err
			}
		}

		return s.carts.Clear(ctx, tx, order.CartID)
	})
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "transaction already settled")
		}
		s.logg.Error(ctx, "payment confirmation failed", err)
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "failed to confirm payment")
	}

	return &ConfirmResult{
		Succeeded:   true,
		Message:     "payment confirmed",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	}, nil
}

func (s *service) persistPendingOrder(ctx context.Context, snapshot *cart.Snapshot) (*models.Order, error) {
	items := make([]models.OrderItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		items = append(items, models.OrderItem{
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			PriceAtOrderCents: item.UnitPriceCents,
		})
	}

	existing, err := s.orders.FindPendingByUserAndCart(ctx, snapshot.UserID, snapshot.CartID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending order")
	}

	if existing != nil {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.orders.WithTx(tx)
			if err := repo.UpdateTotal(ctx, existing.ID, snapshot.SubTotalCents); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pending order")
			}
			return repo.ReplaceItems(ctx, existing.ID, items)
		})
		if err != nil {
			return nil, err
		}
		existing.TotalPriceCents = snapshot.SubTotalCents
		return existing, nil
	}

	number, err := s.orderNumbers.Next(ctx, "")
	if err != nil {
		return nil, err
	}
	order := &models.Order{
		UserID:          snapshot.UserID,
		CartID:          snapshot.CartID,
		OrderNumber:     number,
		Status:          enums.OrderStatusPending,
		TotalPriceCents: snapshot.SubTotalCents,
		Items:           items,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pending order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
