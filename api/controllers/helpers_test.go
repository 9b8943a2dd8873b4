package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/api/middleware"
	cartsvc "github.com/shoplinehq/shopline-backend/internal/cart"
	checkoutsvc "github.com/shoplinehq/shopline-backend/internal/checkout"
	"github.com/shoplinehq/shopline-backend/internal/catalog"
	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error"), Output: io.Discard})
}

func authedRequest(t *testing.T, method, target string, body string, userID uuid.UUID) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != uuid.Nil {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type stubCartService struct {
	item     *models.CartItem
	snapshot *cartsvc.Snapshot
	count    int
	err      error
}

func (s stubCartService) AddItem(context.Context, uuid.UUID, uuid.UUID, int) (*models.CartItem, error) {
	return s.item, s.err
}

func (s stubCartService) UpdateItemQuantity(context.Context, uuid.UUID, uuid.UUID, int) (*models.CartItem, error) {
	return s.item, s.err
}

func (s stubCartService) RemoveItem(context.Context, uuid.UUID, uuid.UUID) error {
	return s.err
}

func (s stubCartService) ItemCount(context.Context, uuid.UUID) (int, error) {
	return s.count, s.err
}

func (s stubCartService) EmptyCart(context.Context, uuid.UUID, uuid.UUID) error {
	return s.err
}

func (s stubCartService) Snapshot(context.Context, uuid.UUID, uuid.UUID) (*cartsvc.Snapshot, error) {
	return s.snapshot, s.err
}

func (s stubCartService) Clear(context.Context, *gorm.DB, uuid.UUID) error {
	return s.err
}

type stubCheckoutService struct {
	summary  *checkoutsvc.Summary
	checkout *checkoutsvc.CheckoutResult
	confirm  *checkoutsvc.ConfirmResult
	err      error
}

func (s stubCheckoutService) OrderSummary(context.Context, uuid.UUID, uuid.UUID) (*checkoutsvc.Summary, error) {
	return s.summary, s.err
}

func (s stubCheckoutService) Checkout(context.Context, checkoutsvc.CheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	return s.checkout, s.err
}

func (s stubCheckoutService) ConfirmPayment(context.Context, string) (*checkoutsvc.ConfirmResult, error) {
	return s.confirm, s.err
}

type stubCatalogService struct {
	product *models.Product
	err     error
}

func (s stubCatalogService) CreateProduct(context.Context, catalog.CreateProductInput) (*models.Product, error) {
	return s.product, s.err
}

func (s stubCatalogService) GetProduct(context.Context, uuid.UUID) (*models.Product, error) {
	return s.product, s.err
}
