package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
)

func setupStockTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.Stock{}))
	return conn
}

func seedProductWithStock(t *testing.T, conn *gorm.DB, qty int) *models.Product {
	t.Helper()

	product := &models.Product{
		CategoryID: 7,
		Name:       "Widget",
		SKU:        "SKU-202405117-" + uuid.NewString()[:4],
	}
	require.NoError(t, conn.Create(product).Error)
	require.NoError(t, conn.Create(&models.Stock{
		ProductID:        product.ID,
		Quantity:         qty,
		CostPriceCents:   500,
		RetailPriceCents: 900,
	}).Error)
	return product
}

func TestEnsureAvailable(t *testing.T) {
	conn := setupStockTestDB(t)
	ledger, err := NewLedger(NewRepository(conn))
	require.NoError(t, err)
	product := seedProductWithStock(t, conn, 5)

	require.NoError(t, ledger.EnsureAvailable(context.Background(), product.ID, 5))

	err = ledger.EnsureAvailable(context.Background(), product.ID, 6)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
	require.Contains(t, typed.Message(), "only 5 left")
}

func TestEnsureAvailableMissingStock(t *testing.T) {
	conn := setupStockTestDB(t)
	ledger, err := NewLedger(NewRepository(conn))
	require.NoError(t, err)

	err = ledger.EnsureAvailable(context.Background(), uuid.New(), 1)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestAdjustDecrementsWithinTx(t *testing.T) {
	conn := setupStockTestDB(t)
	ledger, err := NewLedger(NewRepository(conn))
	require.NoError(t, err)
	product := seedProductWithStock(t, conn, 10)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Adjust(context.Background(), tx, product.ID, 4)
	})
	require.NoError(t, err)

	var stock models.Stock
	require.NoError(t, conn.Where("product_id = ?", product.ID).First(&stock).Error)
	require.Equal(t, 6, stock.Quantity)
}

func TestAdjustRefusesToCrossFloor(t *testing.T) {
	conn := setupStockTestDB(t)
	ledger, err := NewLedger(NewRepository(conn))
	require.NoError(t, err)
	product := seedProductWithStock(t, conn, 3)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Adjust(context.Background(), tx, product.ID, 4)
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeOutOfStock, typed.Code())

	// Rollback leaves the quantity untouched.
	var stock models.Stock
	require.NoError(t, conn.Where("product_id = ?", product.ID).First(&stock).Error)
	require.Equal(t, 3, stock.Quantity)
}

func TestAdjustMissingStock(t *testing.T) {
	conn := setupStockTestDB(t)
	ledger, err := NewLedger(NewRepository(conn))
	require.NoError(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Adjust(context.Background(), tx, uuid.New(), 1)
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestAdjustRequiresTx(t *testing.T) {
	conn := setupStockTestDB(t)
	ledger, err := NewLedger(NewRepository(conn))
	require.NoError(t, err)

	err = ledger.Adjust(context.Background(), nil, uuid.New(), 1)
	require.Error(t, err)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	conn := setupStockTestDB(t)
	ledger, err := NewLedger(NewRepository(conn))
	require.NoError(t, err)
	product := seedProductWithStock(t, conn, 1)

	_, err = ledger.Create(context.Background(), CreateInput{
		ProductID:        product.ID,
		Quantity:         2,
		CostPriceCents:   100,
		RetailPriceCents: 200,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}
