package catalog

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
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.Stock{}))
	return conn
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type stubIssuer struct {
	next  string
	err   error
	calls []string
}

func (s *stubIssuer) Next(_ context.Context, discriminator string) (string, error) {
	s.calls = append(s.calls, discriminator)
	if s.err != nil {
		return "", s.err
	}
	return s.next, nil
}

func TestCreateProductAssignsSKUAndStock(t *testing.T) {
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)
	issuer := &stubIssuer{next: "SKU-202405117-0001"}
	svc, err := NewService(repo, issuer, gormTxRunner{db: conn})
	require.NoError(t, err)

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		CategoryID:       7,
		Name:             "  Widget  ",
		Description:      "a widget",
		Quantity:         10,
		CostPriceCents:   500,
		RetailPriceCents: 900,
	})
	require.NoError(t, err)
	require.Equal(t, "SKU-202405117-0001", product.SKU)
	require.Equal(t, "Widget", product.Name)
	require.Equal(t, []string{"7"}, issuer.calls)

	loaded, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Stock)
	require.Equal(t, 10, loaded.Stock.Quantity)
	require.Equal(t, 500, loaded.Stock.CostPriceCents)
}

func TestCreateProductValidation(t *testing.T) {
	conn := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(conn), &stubIssuer{next: "SKU-202405117-0001"}, gormTxRunner{db: conn})
	require.NoError(t, err)

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{CategoryID: 7})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{Name: "Widget"})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGetProductNotFound(t *testing.T) {
	conn := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(conn), &stubIssuer{}, gormTxRunner{db: conn})
	require.NoError(t, err)

	_, err = svc.GetProduct(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestSeedFromLatestSKU(t *testing.T) {
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)

	seed := SeedFromLatestSKU(repo)
	got, err := seed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, got)

	old := &models.Product{CategoryID: 7, Name: "Old", SKU: "SKU-202405117-0003"}
	require.NoError(t, conn.Create(old).Error)
	require.NoError(t, conn.Model(old).Update("created_at", time.Now().Add(-time.Hour)).Error)
	newer := &models.Product{CategoryID: 7, Name: "New", SKU: "SKU-202405117-0008"}
	require.NoError(t, conn.Create(newer).Error)

	got, err = seed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8, got)

	// Soft-deleted rows still count toward the seed.
	require.NoError(t, conn.Delete(newer).Error)
	got, err = seed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8, got)
}

func TestExistsSKU(t *testing.T) {
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)
	product := &models.Product{CategoryID: 7, Name: "Widget", SKU: "SKU-202405117-0001"}
	require.NoError(t, conn.Create(product).Error)

	exists := ExistsSKU(repo)
	taken, err := exists(context.Background(), "SKU-202405117-0001")
	require.NoError(t, err)
	require.True(t, taken)

	taken, err = exists(context.Background(), "SKU-202405117-0002")
	require.NoError(t, err)
	require.False(t, taken)

	// Soft-deleted SKUs remain reserved.
	require.NoError(t, conn.Delete(product).Error)
	taken, err = exists(context.Background(), "SKU-202405117-0001")
	require.NoError(t, err)
	require.True(t, taken)
}
