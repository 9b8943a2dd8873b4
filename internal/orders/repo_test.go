package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/enums"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.ShippingAddress{},
	))
	return conn
}

func seedOrder(t *testing.T, repo Repository, number string, status enums.OrderStatus) *models.Order {
	t.Helper()

	order, err := repo.Create(context.Background(), &models.Order{
		UserID:          uuid.New(),
		CartID:          uuid.New(),
		OrderNumber:     number,
		Status:          status,
		TotalPriceCents: 25836,
	})
	require.NoError(t, err)
	return order
}

func TestFindPendingByUserAndCart(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	order := seedOrder(t, repo, "ORD-20240511-00001", enums.OrderStatusPending)

	found, err := repo.FindPendingByUserAndCart(context.Background(), order.UserID, order.CartID)
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)

	moved, err := repo.TransitionStatus(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	require.True(t, moved)
	_, err = repo.FindPendingByUserAndCart(context.Background(), order.UserID, order.CartID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTransitionStatusRequiresCurrentStatus(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	order := seedOrder(t, repo, "ORD-20240511-00001", enums.OrderStatusCancelled)

	moved, err := repo.TransitionStatus(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	require.False(t, moved)

	loaded, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, loaded.Status)
}

func TestReplaceItems(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	order := seedOrder(t, repo, "ORD-20240511-00001", enums.OrderStatusPending)

	first := []models.OrderItem{
		{ProductID: uuid.New(), Quantity: 1, PriceAtOrderCents: 100},
		{ProductID: uuid.New(), Quantity: 2, PriceAtOrderCents: 200},
	}
	require.NoError(t, repo.ReplaceItems(context.Background(), order.ID, first))

	second := []models.OrderItem{
		{ProductID: uuid.New(), Quantity: 5, PriceAtOrderCents: 500},
	}
	require.NoError(t, repo.ReplaceItems(context.Background(), order.ID, second))

	loaded, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	require.Equal(t, 5, loaded.Items[0].Quantity)
}

func TestSeedFromLatestOrderNumber(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	seed := SeedFromLatestNumber(repo)

	got, err := seed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, got)

	older := seedOrder(t, repo, "ORD-20240511-00003", enums.OrderStatusConfirmed)
	require.NoError(t, conn.Model(older).Update("created_at", time.Now().Add(-time.Hour)).Error)
	newest := seedOrder(t, repo, "ORD-20240511-00009", enums.OrderStatusPending)

	got, err = seed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, got)

	// Soft-deleted orders still count for seeding and uniqueness.
	require.NoError(t, conn.Delete(newest).Error)
	got, err = seed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, got)

	taken, err := ExistsNumber(repo)(context.Background(), "ORD-20240511-00009")
	require.NoError(t, err)
	require.True(t, taken)
}

func TestStoreShippingDetailsReusesExactMatch(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	order := seedOrder(t, repo, "ORD-20240511-00001", enums.OrderStatusPending)

	details := ShippingDetails{
		StreetAddress: "1 Main Street",
		City:          "Springfield",
		State:         "IL",
		PostalCode:    "62701",
		Country:       "US",
	}

	first, err := StoreShippingDetails(context.Background(), repo, order, details)
	require.NoError(t, err)

	second, err := StoreShippingDetails(context.Background(), repo, order, details)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	changed := details
	changed.PostalCode = "62702"
	third, err := StoreShippingDetails(context.Background(), repo, order, changed)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, third.ID)
}

func TestStoreShippingDetailsValidates(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	order := seedOrder(t, repo, "ORD-20240511-00001", enums.OrderStatusPending)

	_, err := StoreShippingDetails(context.Background(), repo, order, ShippingDetails{City: "Springfield"})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestFindPendingBefore(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)

	stale := seedOrder(t, repo, "ORD-20240511-00001", enums.OrderStatusPending)
	require.NoError(t, conn.Model(stale).Update("updated_at", time.Now().Add(-48*time.Hour)).Error)
	seedOrder(t, repo, "ORD-20240511-00002", enums.OrderStatusPending)
	confirmed := seedOrder(t, repo, "ORD-20240511-00003", enums.OrderStatusConfirmed)
	require.NoError(t, conn.Model(confirmed).Update("updated_at", time.Now().Add(-48*time.Hour)).Error)

	found, err := repo.FindPendingBefore(context.Background(), time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, stale.ID, found[0].ID)
}
