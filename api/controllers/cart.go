package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shoplinehq/shopline-backend/api/responses"
	"github.com/shoplinehq/shopline-backend/api/validators"
	cartsvc "github.com/shoplinehq/shopline-backend/internal/cart"
	"github.com/shoplinehq/shopline-backend/internal/transactions"
	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
)

// displayAmount renders integer cents as a 2-place major-unit string for
// response payloads.
func displayAmount(cents int) string {
	return transactions.DisplayAmount(cents).StringFixed(2)
}

// cartLineResponse is one priced line in a cart or order summary payload.
type cartLineResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Price     string    `json:"price"`
}

func newCartLineResponses(items []cartsvc.SnapshotItem) []cartLineResponse {
	lines := make([]cartLineResponse, 0, len(items))
	for _, item := range items {
		lines = append(lines, cartLineResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: displayAmount(item.UnitPriceCents),
			Price:     displayAmount(item.PriceCents),
		})
	}
	return lines
}

type cartSnapshotResponse struct {
	CartID        uuid.UUID          `json:"id"`
	UserID        uuid.UUID          `json:"user_id"`
	Items         []cartLineResponse `json:"items"`
	SubTotal      string             `json:"sub_total"`
	TotalProducts int                `json:"total_products"`
}

func newCartSnapshotResponse(snapshot *cartsvc.Snapshot) cartSnapshotResponse {
	return cartSnapshotResponse{
		CartID:        snapshot.CartID,
		UserID:        snapshot.UserID,
		Items:         newCartLineResponses(snapshot.Items),
		SubTotal:      displayAmount(snapshot.SubTotalCents),
		TotalProducts: snapshot.TotalProducts,
	}
}

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type cartItemResponse struct {
	ItemID    uuid.UUID `json:"item_id"`
	CartID    uuid.UUID `json:"cart_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func newCartItemResponse(item *models.CartItem) cartItemResponse {
	return cartItemResponse{
		ItemID:    item.ID,
		CartID:    item.CartID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
	}
}

// CartAddItem puts a product into the user's current cart, creating the cart
// on first use.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AddItem(r.Context(), userID, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"item": newCartItemResponse(item)})
	}
}

// CartUpdateItem changes the quantity of a product already in the cart.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.UpdateItemQuantity(r.Context(), userID, productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"item": newCartItemResponse(item)})
	}
}

// CartRemoveItem deletes a product line from the cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveItem(r.Context(), userID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "item removed"})
	}
}

// CartItemCount returns the number of live lines in the user's cart; zero when
// the user has no cart yet.
func CartItemCount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.ItemCount(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"count": count})
	}
}

// CartFetch returns the priced snapshot of the cart.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		snapshot, err := svc.Snapshot(r.Context(), cartID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cart": newCartSnapshotResponse(snapshot)})
	}
}

// CartClear removes every item from the cart without ordering anything.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.EmptyCart(r.Context(), userID, cartID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "cart cleared"})
	}
}
