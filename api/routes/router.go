package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoplinehq/shopline-backend/api/controllers"
	"github.com/shoplinehq/shopline-backend/api/middleware"
	"github.com/shoplinehq/shopline-backend/internal/cart"
	"github.com/shoplinehq/shopline-backend/internal/catalog"
	checkoutsvc "github.com/shoplinehq/shopline-backend/internal/checkout"
	"github.com/shoplinehq/shopline-backend/pkg/config"
	"github.com/shoplinehq/shopline-backend/pkg/db"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
	"github.com/shoplinehq/shopline-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	cartService cart.Service,
	catalogService catalog.Service,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.ProductCreate(catalogService, logg))
			r.Get("/{productId}", controllers.ProductDetail(catalogService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Put("/items/{productId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
			r.Get("/count", controllers.CartItemCount(cartService, logg))
			r.Get("/{cartId}", controllers.CartFetch(cartService, logg))
			r.Delete("/{cartId}", controllers.CartClear(cartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/{cartId}/order/summary", controllers.CheckoutSummary(checkoutService, logg))
			r.Post("/{cartId}/order", controllers.Checkout(checkoutService, logg))
			r.Post("/confirm-payment", controllers.ConfirmPayment(checkoutService, logg))
		})
	})

	return r
}
