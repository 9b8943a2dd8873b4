package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shoplinehq/shopline-backend/api/responses"
	"github.com/shoplinehq/shopline-backend/api/validators"
	checkoutsvc "github.com/shoplinehq/shopline-backend/internal/checkout"
	"github.com/shoplinehq/shopline-backend/internal/orders"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
)

type orderSummaryResponse struct {
	OrderID     uuid.UUID                   `json:"order_id"`
	OrderNumber string                      `json:"order_number"`
	CartID      uuid.UUID                   `json:"cart_id"`
	Items       []cartLineResponse          `json:"items"`
	SubTotal    string                      `json:"sub_total"`
	Charge      string                      `json:"charge"`
	Total       string                      `json:"total"`
	Address     *checkoutsvc.SummaryAddress `json:"address,omitempty"`
}

func newOrderSummaryResponse(summary *checkoutsvc.Summary) orderSummaryResponse {
	return orderSummaryResponse{
		OrderID:     summary.OrderID,
		OrderNumber: summary.OrderNumber,
		CartID:      summary.CartID,
		Items:       newCartLineResponses(summary.Items),
		SubTotal:    displayAmount(summary.SubTotalCents),
		Charge:      displayAmount(summary.ChargeCents),
		Total:       displayAmount(summary.TotalCents),
		Address:     summary.Address,
	}
}

// CheckoutSummary prices the cart, persists the pending order and returns the
// summary the client will be charged against.
func CheckoutSummary(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartID, err := uuidParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.OrderSummary(r.Context(), cartID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_summary": newOrderSummaryResponse(summary)})
	}
}

type shippingRequest struct {
	StreetAddress string `json:"street_address" validate:"omitempty,max=255"`
	City          string `json:"city" validate:"omitempty,max=100"`
	State         string `json:"state" validate:"omitempty,max=100"`
	PostalCode    string `json:"postal_code" validate:"omitempty,max=20"`
	Country       string `json:"country" validate:"omitempty,max=100"`
}

type checkoutRequest struct {
	BillingIsShipping bool             `json:"billing_is_shipping"`
	Shipping          *shippingRequest `json:"shipping,omitempty"`
}

type checkoutResponse struct {
	TransactionID     uuid.UUID `json:"transaction_id"`
	TransactionNumber string    `json:"transaction_number"`
	OrderID           uuid.UUID `json:"order_id"`
	OrderNumber       string    `json:"order_number"`
	Total             string    `json:"total"`
	ClientSecret      string    `json:"client_secret"`
}

// Checkout turns the summarized cart into a pending transaction plus a payment
// authorization and hands the client secret back.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartID, err := uuidParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.CheckoutInput{
			CartID:            cartID,
			UserID:            userID,
			BillingIsShipping: payload.BillingIsShipping,
		}
		if payload.Shipping != nil {
			input.Shipping = orders.ShippingDetails{
				StreetAddress: payload.Shipping.StreetAddress,
				City:          payload.Shipping.City,
				State:         payload.Shipping.State,
				PostalCode:    payload.Shipping.PostalCode,
				Country:       payload.Shipping.Country,
			}
		}

		result, err := svc.Checkout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			TransactionID:     result.TransactionID,
			TransactionNumber: result.TransactionNumber,
			OrderID:           result.OrderID,
			OrderNumber:       result.OrderNumber,
			Total:             displayAmount(result.TotalCents),
			ClientSecret:      result.ClientSecret,
		})
	}
}
