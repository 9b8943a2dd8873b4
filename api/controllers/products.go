package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shoplinehq/shopline-backend/api/responses"
	"github.com/shoplinehq/shopline-backend/api/validators"
	"github.com/shoplinehq/shopline-backend/internal/catalog"
	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
)

type createProductRequest struct {
	Name             string `json:"name" validate:"required,max=255"`
	CategoryID       int    `json:"category_id" validate:"required,min=1"`
	Description      string `json:"description" validate:"omitempty,max=2000"`
	Quantity         int    `json:"quantity" validate:"min=0"`
	CostPriceCents   int    `json:"cost_price_cents" validate:"min=0"`
	RetailPriceCents int    `json:"retail_price_cents" validate:"min=0"`
}

type productResponse struct {
	ProductID        uuid.UUID `json:"product_id"`
	CategoryID       int       `json:"category_id"`
	Name             string    `json:"name"`
	SKU              string    `json:"sku"`
	Description      string    `json:"description,omitempty"`
	Quantity         int       `json:"quantity"`
	CostPriceCents   int       `json:"cost_price_cents"`
	RetailPriceCents int       `json:"retail_price_cents"`
}

func newProductResponse(product *models.Product) productResponse {
	resp := productResponse{
		ProductID:   product.ID,
		CategoryID:  product.CategoryID,
		Name:        product.Name,
		SKU:         product.SKU,
		Description: product.Description,
	}
	if product.Stock != nil {
		resp.Quantity = product.Stock.Quantity
		resp.CostPriceCents = product.Stock.CostPriceCents
		resp.RetailPriceCents = product.Stock.RetailPriceCents
	}
	return resp
}

// ProductCreate registers a product with a generated SKU and its initial stock.
func ProductCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), catalog.CreateProductInput{
			CategoryID:       payload.CategoryID,
			Name:             payload.Name,
			Description:      payload.Description,
			Quantity:         payload.Quantity,
			CostPriceCents:   payload.CostPriceCents,
			RetailPriceCents: payload.RetailPriceCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"product": newProductResponse(product)})
	}
}

// ProductDetail returns a product with its current stock.
func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product": newProductResponse(product)})
	}
}
