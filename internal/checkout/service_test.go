package checkout

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/internal/address"
	"github.com/shoplinehq/shopline-backend/internal/cart"
	"github.com/shoplinehq/shopline-backend/internal/orders"
	"github.com/shoplinehq/shopline-backend/internal/stock"
	"github.com/shoplinehq/shopline-backend/internal/transactions"
	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/enums"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
	"github.com/shoplinehq/shopline-backend/pkg/payments"
)

type fakeCartCache struct {
	snapshots map[uuid.UUID]*cart.Snapshot
}

func (f *fakeCartCache) Get(_ context.Context, cartID uuid.UUID) (*cart.Snapshot, error) {
	return f.snapshots[cartID], nil
}

func (f *fakeCartCache) Put(_ context.Context, snapshot *cart.Snapshot) error {
	f.snapshots[snapshot.CartID] = snapshot
	return nil
}

func (f *fakeCartCache) Delete(_ context.Context, cartID uuid.UUID) error {
	delete(f.snapshots, cartID)
	return nil
}

type fakeSummaryCache struct {
	summaries map[uuid.UUID]*Summary
}

func (f *fakeSummaryCache) Get(_ context.Context, cartID uuid.UUID) (*Summary, error) {
	return f.summaries[cartID], nil
}

func (f *fakeSummaryCache) Put(_ context.Context, summary *Summary) error {
	f.summaries[summary.CartID] = summary
	return nil
}

func (f *fakeSummaryCache) Delete(_ context.Context, cartID uuid.UUID) error {
	delete(f.summaries, cartID)
	return nil
}

type stubGateway struct {
	clientSecret string
	createErr    error
	creates      int
	auth         *payments.Authorization
	retrieveErr  error
	lastMetadata payments.Metadata
}

func (s *stubGateway) CreateAuthorization(_ context.Context, _ int64, _ string, metadata payments.Metadata) (string, error) {
	s.creates++
	s.lastMetadata = metadata
	if s.createErr != nil {
		return "", s.createErr
	}
	return s.clientSecret, nil
}

func (s *stubGateway) RetrieveAuthorization(context.Context, string) (*payments.Authorization, error) {
	if s.retrieveErr != nil {
		return nil, s.retrieveErr
	}
	return s.auth, nil
}

type countingIssuer struct {
	prefix string
	n      int
}

func (c *countingIssuer) Next(context.Context, string) (string, error) {
	c.n++
	return fmt.Sprintf("%s-20240511-%05d", c.prefix, c.n), nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type harness struct {
	conn         *gorm.DB
	svc          Service
	carts        cart.Service
	cartCache    *fakeCartCache
	summaryCache *fakeSummaryCache
	gateway      *stubGateway
	addresses    address.Repository
	orders       orders.Repository
	transactions transactions.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.User{}, &models.Address{},
		&models.Product{}, &models.Stock{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &models.ShippingAddress{},
		&models.Transaction{},
	))

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
	cartCache := &fakeCartCache{snapshots: map[uuid.UUID]*cart.Snapshot{}}
	summaryCache := &fakeSummaryCache{summaries: map[uuid.UUID]*Summary{}}
	gateway := &stubGateway{clientSecret: "cs_test_secret"}

	ledger, err := stock.NewLedger(stock.NewRepository(conn))
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(conn), ledger, cartCache, logg)
	require.NoError(t, err)

	ordersRepo := orders.NewRepository(conn)
	txRepo := transactions.NewRepository(conn)
	addrRepo := address.NewRepository(conn)

	svc, err := NewService(Params{
		Carts:        cartSvc,
		CartCache:    cartCache,
		SummaryCache: summaryCache,
		Orders:       ordersRepo,
		Transactions: txRepo,
		Addresses:    addrRepo,
		Stock:        ledger,
		OrderNumbers: &countingIssuer{prefix: "ORD"},
		TxNumbers:    &countingIssuer{prefix: "TRA"},
		Gateway:      gateway,
		Tx:           gormTxRunner{db: conn},
		Logger:       logg,
	})
	require.NoError(t, err)

	return &harness{
		conn:         conn,
		svc:          svc,
		carts:        cartSvc,
		cartCache:    cartCache,
		summaryCache: summaryCache,
		gateway:      gateway,
		addresses:    addrRepo,
		orders:       ordersRepo,
		transactions: txRepo,
	}
}

func (h *harness) seedProduct(t *testing.T, costCents, qty int) *models.Product {
	t.Helper()

	product := &models.Product{
		CategoryID: 7,
		Name:       "Widget",
		SKU:        "SKU-202405117-" + uuid.NewString()[:4],
	}
	require.NoError(t, h.conn.Create(product).Error)
	require.NoError(t, h.conn.Create(&models.Stock{
		ProductID:        product.ID,
		Quantity:         qty,
		CostPriceCents:   costCents,
		RetailPriceCents: costCents * 2,
	}).Error)
	return product
}

func (h *harness) seedCart(t *testing.T, userID uuid.UUID, lines map[uuid.UUID]int) uuid.UUID {
	t.Helper()

	for productID, qty := range lines {
		_, err := h.carts.AddItem(context.Background(), userID, productID, qty)
		require.NoError(t, err)
	}
	var cartRow models.Cart
	require.NoError(t, h.conn.Where("user_id = ?", userID).First(&cartRow).Error)
	return cartRow.ID
}

func (h *harness) seedAddress(t *testing.T, userID uuid.UUID) *models.Address {
	t.Helper()

	addr, err := h.addresses.Create(context.Background(), &models.Address{
		UserID:        userID,
		StreetAddress: "1 Main Street",
		City:          "Springfield",
		State:         "IL",
		PostalCode:    "62701",
		Country:       "US",
	})
	require.NoError(t, err)
	return addr
}

func TestOrderSummaryPersistsPendingOrder(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	product := h.seedProduct(t, 12918, 10)
	cartID := h.seedCart(t, userID, map[uuid.UUID]int{product.ID: 2})
	h.seedAddress(t, userID)

	summary, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)
	require.Equal(t, 25836, summary.SubTotalCents)
	require.Equal(t, 779, summary.ChargeCents)
	require.Equal(t, 26615, summary.TotalCents)
	require.Equal(t, "ORD-20240511-00001", summary.OrderNumber)
	require.NotNil(t, summary.Address)
	require.Equal(t, "Springfield", summary.Address.City)

	order, err := h.orders.FindPendingByUserAndCart(context.Background(), userID, cartID)
	require.NoError(t, err)
	require.Equal(t, 25836, order.TotalPriceCents)
	require.Len(t, order.Items, 1)
	require.Equal(t, 12918, order.Items[0].PriceAtOrderCents)

	// The enriched summary is cached for checkout.
	require.NotNil(t, h.summaryCache.summaries[cartID])
}

func TestOrderSummaryIsIdempotentPerCart(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	product := h.seedProduct(t, 100, 10)
	cartID := h.seedCart(t, userID, map[uuid.UUID]int{product.ID: 1})

	first, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)

	// Change the cart and summarize again: same order, refreshed amounts.
	_, err = h.carts.UpdateItemQuantity(context.Background(), userID, product.ID, 3)
	require.NoError(t, err)

	second, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)
	require.Equal(t, first.OrderNumber, second.OrderNumber)
	require.Equal(t, 300, second.SubTotalCents)

	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestOrderSummaryEmptyCart(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	product := h.seedProduct(t, 100, 10)
	cartID := h.seedCart(t, userID, map[uuid.UUID]int{product.ID: 1})
	require.NoError(t, h.carts.RemoveItem(context.Background(), userID, product.ID))

	_, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestOrderSummaryToleratesMissingAddress(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	product := h.seedProduct(t, 100, 10)
	cartID := h.seedCart(t, userID, map[uuid.UUID]int{product.ID: 1})

	summary, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)
	require.Nil(t, summary.Address)
}

func TestCheckoutWithoutSummaryConflicts(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Checkout(context.Background(), CheckoutInput{
		CartID: uuid.New(),
		UserID: uuid.New(),
		Shipping: orders.ShippingDetails{
			StreetAddress: "1 Main Street", City: "Springfield",
			State: "IL", PostalCode: "62701", Country: "US",
		},
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestCheckoutCreatesPendingTransaction(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	product := h.seedProduct(t, 12918, 10)
	cartID := h.seedCart(t, userID, map[uuid.UUID]int{product.ID: 2})
	h.seedAddress(t, userID)

	_, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)

	result, err := h.svc.Checkout(context.Background(), CheckoutInput{
		CartID:            cartID,
		UserID:            userID,
		BillingIsShipping: true,
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_secret", result.ClientSecret)
	require.Equal(t, "TRA-20240511-00001", result.TransactionNumber)
	require.Equal(t, 26615, result.TotalCents)
	require.Equal(t, 1, h.gateway.creates)
	require.Equal(t, result.TransactionID.String(), h.gateway.lastMetadata.TransactionID)
	require.Equal(t, cartID.String(), h.gateway.lastMetadata.CartID)

	transaction, err := h.transactions.FindByID(context.Background(), result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusPending, transaction.Status)
	require.Equal(t, 25836, transaction.AmountCents)
	require.Equal(t, 779, transaction.ChargeCents)
	require.Equal(t, 26615, transaction.TotalCents)

	var shipping models.ShippingAddress
	require.NoError(t, h.conn.Where("order_id = ?", result.OrderID).First(&shipping).Error)
	require.Equal(t, "1 Main Street", shipping.StreetAddress)
}

func TestCheckoutBillingIsShippingWithoutAddress(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	product := h.seedProduct(t, 100, 10)
	cartID := h.seedCart(t, userID, map[uuid.UUID]int{product.ID: 1})

	_, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)

	_, err = h.svc.Checkout(context.Background(), CheckoutInput{
		CartID:            cartID,
		UserID:            userID,
		BillingIsShipping: true,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCheckoutReusesShippingSnapshot(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	product := h.seedProduct(t, 100, 10)
	cartID := h.seedCart(t, userID, map[uuid.UUID]int{product.ID: 1})
	details := orders.ShippingDetails{
		StreetAddress: "1 Main Street", City: "Springfield",
		State: "IL", PostalCode: "62701", Country: "US",
	}

	_, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)

	_, err = h.svc.Checkout(context.Background(), CheckoutInput{CartID: cartID, UserID: userID, Shipping: details})
	require.NoError(t, err)
	_, err = h.svc.Checkout(context.Background(), CheckoutInput{CartID: cartID, UserID: userID, Shipping: details})
	require.NoError(t, err)

	var count int64
	require.NoError(t, h.conn.Model(&models.ShippingAddress{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func confirmFixture(t *testing.T, h *harness) (*CheckoutResult, uuid.UUID, uuid.UUID) {
	t.Helper()

	userID := uuid.New()
	product := h.seedProduct(t, 12918, 10)
	cartID := h.seedCart(t, userID, map[uuid.UUID]int{product.ID: 2})
	h.seedAddress(t, userID)

	_, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)
	result, err := h.svc.Checkout(context.Background(), CheckoutInput{
		CartID:            cartID,
		UserID:            userID,
		BillingIsShipping: true,
	})
	require.NoError(t, err)

	h.gateway.auth = &payments.Authorization{
		Reference: "pi_test",
		Status:    "succeeded",
		Succeeded: true,
		Metadata:  h.gateway.lastMetadata,
	}
	return result, product.ID, cartID
}

func TestConfirmPaymentSuccess(t *testing.T) {
	h := newHarness(t)
	result, productID, cartID := confirmFixture(t, h)

	confirm, err := h.svc.ConfirmPayment(context.Background(), "pi_test")
	require.NoError(t, err)
	require.True(t, confirm.Succeeded)
	require.Equal(t, result.OrderNumber, confirm.OrderNumber)

	transaction, err := h.transactions.FindByID(context.Background(), result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusCompleted, transaction.Status)

	order, err := h.orders.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, order.Status)

	var stockRow models.Stock
	require.NoError(t, h.conn.Where("product_id = ?", productID).First(&stockRow).Error)
	require.Equal(t, 8, stockRow.Quantity)

	// Both cache entries are gone and the cart is retired.
	require.Nil(t, h.summaryCache.summaries[cartID])
	require.Nil(t, h.cartCache.snapshots[cartID])
	var cartRow models.Cart
	require.NoError(t, h.conn.Unscoped().Where("id = ?", cartID).First(&cartRow).Error)
	require.False(t, cartRow.IsCurrent)
	require.True(t, cartRow.DeletedAt.Valid)
}

func TestConfirmPaymentFailureOnlyFailsTransaction(t *testing.T) {
	h := newHarness(t)
	result, productID, cartID := confirmFixture(t, h)
	h.gateway.auth.Succeeded = false
	h.gateway.auth.Status = "requires_payment_method"

	confirm, err := h.svc.ConfirmPayment(context.Background(), "pi_test")
	require.NoError(t, err)
	require.False(t, confirm.Succeeded)

	transaction, err := h.transactions.FindByID(context.Background(), result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusFailed, transaction.Status)

	order, err := h.orders.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)

	var stockRow models.Stock
	require.NoError(t, h.conn.Where("product_id = ?", productID).First(&stockRow).Error)
	require.Equal(t, 10, stockRow.Quantity)
	require.NotNil(t, h.summaryCache.summaries[cartID])
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	h := newHarness(t)
	result, productID, _ := confirmFixture(t, h)

	_, err := h.svc.ConfirmPayment(context.Background(), "pi_test")
	require.NoError(t, err)

	confirm, err := h.svc.ConfirmPayment(context.Background(), "pi_test")
	require.NoError(t, err)
	require.True(t, confirm.Succeeded)
	require.Equal(t, result.OrderNumber, confirm.OrderNumber)

	// Stock is adjusted exactly once.
	var stockRow models.Stock
	require.NoError(t, h.conn.Where("product_id = ?", productID).First(&stockRow).Error)
	require.Equal(t, 8, stockRow.Quantity)
}

func TestConfirmPaymentAfterReaperFailedTransaction(t *testing.T) {
	h := newHarness(t)
	result, productID, cartID := confirmFixture(t, h)

	// The reaper timed the checkout out before the gateway verdict arrived.
	moved, err := h.transactions.TransitionStatus(context.Background(), result.TransactionID, enums.TransactionStatusPending, enums.TransactionStatusFailed)
	require.NoError(t, err)
	require.True(t, moved)

	_, err = h.svc.ConfirmPayment(context.Background(), "pi_test")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
	require.Equal(t, "transaction already settled", typed.Message())

	// The failed transaction stays failed and nothing else moves.
	transaction, err := h.transactions.FindByID(context.Background(), result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusFailed, transaction.Status)
	order, err := h.orders.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	var stockRow models.Stock
	require.NoError(t, h.conn.Where("product_id = ?", productID).First(&stockRow).Error)
	require.Equal(t, 10, stockRow.Quantity)
	var cartRow models.Cart
	require.NoError(t, h.conn.Where("id = ?", cartID).First(&cartRow).Error)
	require.True(t, cartRow.IsCurrent)
}

func TestConfirmPaymentRollsBackWhenStockShort(t *testing.T) {
	h := newHarness(t)
	result, productID, cartID := confirmFixture(t, h)

	// Drain the stock behind the checkout's back.
	require.NoError(t, h.conn.Model(&models.Stock{}).
		Where("product_id = ?", productID).
		Update("quantity", 1).Error)

	_, err := h.svc.ConfirmPayment(context.Background(), "pi_test")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())
	require.Equal(t, "failed to confirm payment", typed.Message())

	// Everything rolled back.
	transaction, err := h.transactions.FindByID(context.Background(), result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusPending, transaction.Status)
	order, err := h.orders.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	var cartRow models.Cart
	require.NoError(t, h.conn.Where("id = ?", cartID).First(&cartRow).Error)
	require.True(t, cartRow.IsCurrent)
}

func TestFullCheckoutFlow(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	widget := h.seedProduct(t, 12918, 5)
	gizmo := h.seedProduct(t, 53, 20)
	h.seedAddress(t, userID)

	cartID := h.seedCart(t, userID, map[uuid.UUID]int{widget.ID: 1, gizmo.ID: 2})

	summary, err := h.svc.OrderSummary(context.Background(), cartID, userID)
	require.NoError(t, err)
	require.Equal(t, 13024, summary.SubTotalCents)

	result, err := h.svc.Checkout(context.Background(), CheckoutInput{
		CartID:            cartID,
		UserID:            userID,
		BillingIsShipping: true,
	})
	require.NoError(t, err)

	h.gateway.auth = &payments.Authorization{
		Reference: "pi_flow",
		Status:    "succeeded",
		Succeeded: true,
		Metadata:  h.gateway.lastMetadata,
	}

	confirm, err := h.svc.ConfirmPayment(context.Background(), "pi_flow")
	require.NoError(t, err)
	require.True(t, confirm.Succeeded)
	require.Equal(t, result.OrderNumber, confirm.OrderNumber)

	var widgetStock, gizmoStock models.Stock
	require.NoError(t, h.conn.Where("product_id = ?", widget.ID).First(&widgetStock).Error)
	require.NoError(t, h.conn.Where("product_id = ?", gizmo.ID).First(&gizmoStock).Error)
	require.Equal(t, 4, widgetStock.Quantity)
	require.Equal(t, 18, gizmoStock.Quantity)

	// The next mutation starts a fresh cart.
	_, err = h.carts.AddItem(context.Background(), userID, gizmo.ID, 1)
	require.NoError(t, err)
	var carts []models.Cart
	require.NoError(t, h.conn.Where("user_id = ?", userID).Find(&carts).Error)
	require.Len(t, carts, 1)
	require.NotEqual(t, cartID, carts[0].ID)
}
