package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cartsvc "github.com/shoplinehq/shopline-backend/internal/cart"
	checkoutsvc "github.com/shoplinehq/shopline-backend/internal/checkout"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
)

func TestCheckoutSummaryReturnsDecimalAmounts(t *testing.T) {
	userID := uuid.New()
	cartID := uuid.New()
	summary := &checkoutsvc.Summary{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-20240511-00001",
		CartID:      cartID,
		UserID:      userID,
		Items: []cartsvc.SnapshotItem{{
			ProductID:      uuid.New(),
			Name:           "Widget",
			SKU:            "SKU-202405117-0001",
			Quantity:       2,
			UnitPriceCents: 12918,
			PriceCents:     25836,
		}},
		SubTotalCents: 25836,
		ChargeCents:   779,
		TotalCents:    26615,
	}
	handler := CheckoutSummary(stubCheckoutService{summary: summary}, testLogger())

	req := authedRequest(t, http.MethodGet, "/api/v1/checkout/"+cartID.String()+"/order/summary", "", userID)
	req = withURLParam(req, "cartId", cartID.String())
	resp := httptest.NewRecorder()
	handler(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data struct {
			OrderSummary orderSummaryResponse `json:"order_summary"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "ORD-20240511-00001", envelope.Data.OrderSummary.OrderNumber)
	require.Equal(t, "258.36", envelope.Data.OrderSummary.SubTotal)
	require.Equal(t, "7.79", envelope.Data.OrderSummary.Charge)
	require.Equal(t, "266.15", envelope.Data.OrderSummary.Total)
	require.Len(t, envelope.Data.OrderSummary.Items, 1)
	require.Equal(t, "129.18", envelope.Data.OrderSummary.Items[0].UnitPrice)
	require.Equal(t, "258.36", envelope.Data.OrderSummary.Items[0].Price)
}

func TestCheckoutSummaryEmptyCart(t *testing.T) {
	svc := stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart has nothing to order")}
	handler := CheckoutSummary(svc, testLogger())

	cartID := uuid.New()
	req := authedRequest(t, http.MethodGet, "/api/v1/checkout/"+cartID.String()+"/order/summary", "", uuid.New())
	req = withURLParam(req, "cartId", cartID.String())
	resp := httptest.NewRecorder()
	handler(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCheckoutReturnsClientSecret(t *testing.T) {
	userID := uuid.New()
	cartID := uuid.New()
	result := &checkoutsvc.CheckoutResult{
		TransactionID:     uuid.New(),
		TransactionNumber: "TRA-20240511-00001",
		OrderID:           uuid.New(),
		OrderNumber:       "ORD-20240511-00001",
		TotalCents:        26615,
		ClientSecret:      "cs_test_secret",
	}
	handler := Checkout(stubCheckoutService{checkout: result}, testLogger())

	body := `{"billing_is_shipping":true}`
	req := authedRequest(t, http.MethodPost, "/api/v1/checkout/"+cartID.String()+"/order", body, userID)
	req = withURLParam(req, "cartId", cartID.String())
	resp := httptest.NewRecorder()
	handler(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "cs_test_secret", envelope.Data.ClientSecret)
	require.Equal(t, "TRA-20240511-00001", envelope.Data.TransactionNumber)
	require.Equal(t, "266.15", envelope.Data.Total)
}

func TestCheckoutWithoutSummaryConflicts(t *testing.T) {
	svc := stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeConflict, "no order summary for cart")}
	handler := Checkout(svc, testLogger())

	cartID := uuid.New()
	body := `{"shipping":{"street_address":"1 Main Street","city":"Springfield","state":"IL","postal_code":"62701","country":"US"}}`
	req := authedRequest(t, http.MethodPost, "/api/v1/checkout/"+cartID.String()+"/order", body, uuid.New())
	req = withURLParam(req, "cartId", cartID.String())
	resp := httptest.NewRecorder()
	handler(resp, req)

	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestConfirmPaymentReportsVerdict(t *testing.T) {
	confirm := &checkoutsvc.ConfirmResult{
		Succeeded:   true,
		Message:     "payment confirmed",
		OrderID:     uuid.New(),
		OrderNumber: "ORD-20240511-00001",
	}
	handler := ConfirmPayment(stubCheckoutService{confirm: confirm}, testLogger())

	req := authedRequest(t, http.MethodPost, "/api/v1/checkout/confirm-payment", `{"payment_reference":"pi_test"}`, uuid.New())
	resp := httptest.NewRecorder()
	handler(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data confirmPaymentResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Data.Succeeded)
	require.Equal(t, "ORD-20240511-00001", envelope.Data.OrderNumber)
}

func TestConfirmPaymentRequiresReference(t *testing.T) {
	handler := ConfirmPayment(stubCheckoutService{}, testLogger())

	req := authedRequest(t, http.MethodPost, "/api/v1/checkout/confirm-payment", `{}`, uuid.New())
	resp := httptest.NewRecorder()
	handler(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}
