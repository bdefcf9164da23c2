package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Catalog        Catalog
	Cart           Cart
	Logger         zerolog.Logger
	PageSize       int
	DefaultUserID  string
	RequestTimeout time.Duration
}

// NewRouter builds the storefront API, instrumented with OpenTelemetry.
func NewRouter(cfg RouterConfig) http.Handler {
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.PageSize, cfg.Logger)
	cartHandler := NewCartHandler(cfg.Cart, cfg.Catalog, cfg.DefaultUserID, cfg.Logger)

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", catalogHandler.ListCategories)
		r.Get("/search", catalogHandler.Search)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", catalogHandler.ListItems)
			r.Get("/{itemID}", catalogHandler.GetItem)
			r.Post("/{itemID}/reviews", catalogHandler.AddReview)
		})

		r.Get("/cart", cartHandler.DefaultCart)
		r.Route("/users/{userID}/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items/{itemID}", cartHandler.AddItem)
			r.Post("/items/{itemID}/quantity", cartHandler.UpdateQuantity)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
