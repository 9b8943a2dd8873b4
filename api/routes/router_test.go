package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	cartsvc "github.com/shoplinehq/shopline-backend/internal/cart"
	"github.com/shoplinehq/shopline-backend/internal/catalog"
	checkoutsvc "github.com/shoplinehq/shopline-backend/internal/checkout"
	pkgauth "github.com/shoplinehq/shopline-backend/pkg/auth"
	"github.com/shoplinehq/shopline-backend/pkg/config"
	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
)

type noopCartService struct{}

func (noopCartService) AddItem(context.Context, uuid.UUID, uuid.UUID, int) (*models.CartItem, error) {
	return &models.CartItem{}, nil
}

func (noopCartService) UpdateItemQuantity(context.Context, uuid.UUID, uuid.UUID, int) (*models.CartItem, error) {
	return &models.CartItem{}, nil
}

func (noopCartService) RemoveItem(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (noopCartService) ItemCount(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (noopCartService) EmptyCart(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (noopCartService) Snapshot(context.Context, uuid.UUID, uuid.UUID) (*cartsvc.Snapshot, error) {
	return &cartsvc.Snapshot{}, nil
}

func (noopCartService) Clear(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type noopCatalogService struct{}

func (noopCatalogService) CreateProduct(context.Context, catalog.CreateProductInput) (*models.Product, error) {
	return &models.Product{}, nil
}

func (noopCatalogService) GetProduct(context.Context, uuid.UUID) (*models.Product, error) {
	return &models.Product{}, nil
}

type noopCheckoutService struct{}

func (noopCheckoutService) OrderSummary(context.Context, uuid.UUID, uuid.UUID) (*checkoutsvc.Summary, error) {
	return &checkoutsvc.Summary{}, nil
}

func (noopCheckoutService) Checkout(context.Context, checkoutsvc.CheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	return &checkoutsvc.CheckoutResult{}, nil
}

func (noopCheckoutService) ConfirmPayment(context.Context, string) (*checkoutsvc.ConfirmResult, error) {
	return &checkoutsvc.ConfirmResult{}, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func routerFixture(t *testing.T) (http.Handler, config.JWTConfig) {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "shopline-test", ExpirationMinutes: 60},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error"), Output: io.Discard})

	router := NewRouter(cfg, logg, okPinger{}, okPinger{}, noopCartService{}, noopCatalogService{}, noopCheckoutService{})
	return router, cfg.JWT
}

func TestRouterPublicRoutes(t *testing.T) {
	router, _ := routerFixture(t)

	for _, target := range []string{"/health/live", "/health/ready", "/api/public/ping"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusOK, resp.Code, target)
	}
}

func TestRouterPrivateRoutesRequireToken(t *testing.T) {
	router, _ := routerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRouterPrivateRoutesAcceptMintedToken(t *testing.T) {
	router, jwtCfg := routerFixture(t)

	token, err := pkgauth.MintAccessToken(jwtCfg, time.Now(), uuid.New())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := routerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
