package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shoplinehq/shopline-backend/api/responses"
	"github.com/shoplinehq/shopline-backend/api/validators"
	checkoutsvc "github.com/shoplinehq/shopline-backend/internal/checkout"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
)

type confirmPaymentRequest struct {
	PaymentReference string `json:"payment_reference" validate:"required,max=255"`
}

type confirmPaymentResponse struct {
	Succeeded   bool      `json:"succeeded"`
	Message     string    `json:"message"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
}

// ConfirmPayment settles a checkout from the gateway's verdict on the
// referenced payment.
func ConfirmPayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := currentUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), payload.PaymentReference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmPaymentResponse{
			Succeeded:   result.Succeeded,
			Message:     result.Message,
			OrderID:     result.OrderID,
			OrderNumber: result.OrderNumber,
		})
	}
}
