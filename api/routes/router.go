package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopfront/storefront/api/controllers"
	"github.com/shopfront/storefront/api/middleware"
	"github.com/shopfront/storefront/internal/catalog"
	"github.com/shopfront/storefront/internal/orders"
	"github.com/shopfront/storefront/pkg/config"
	"github.com/shopfront/storefront/pkg/logger"
)

const streamHeartbeat = 15 * time.Second

// Dependencies are the components the HTTP surface exposes.
type Dependencies struct {
	Catalog  catalog.Service
	Cart     controllers.CartService
	Checkout controllers.CheckoutFlow
	Orders   orders.Service
	Events   controllers.EventSource
	Ready    map[string]controllers.Pinger
	Metrics  http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.CatalogProducts(deps.Catalog, logg))
		r.Get("/products/{productId}", controllers.CatalogProduct(deps.Catalog, logg))
		r.Get("/categories", controllers.CatalogCategories(deps.Catalog))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{productId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutStart(deps.Checkout, logg))
			r.Get("/", controllers.CheckoutFetch(deps.Checkout))
			r.Delete("/", controllers.CheckoutCancel(deps.Checkout))
			r.Patch("/fields", controllers.CheckoutUpdateFields(deps.Checkout, logg))
			r.Post("/submit", controllers.CheckoutSubmit(deps.Checkout, logg))
			r.Post("/back", controllers.CheckoutBack(deps.Checkout, logg))
			r.Post("/jump", controllers.CheckoutJump(deps.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrdersPlace(deps.Orders, logg))
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrdersFetch(deps.Orders, logg))
		})

		r.Get("/events", controllers.EventsStream(deps.Events, logg, streamHeartbeat))
	})

	return r
}
