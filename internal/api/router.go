// Package api registers the storefront's HTTP routes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Handlers struct {
	Catalog *catalog.Handler
	Cart    *cart.Handler
	Orders  *orders.Handler
	Health  http.HandlerFunc
	Metrics http.Handler
}

// NewRouter maps every route. Catalog reads are public; everything else
// needs an identity, and catalog writes need the admin role.
func NewRouter(h Handlers, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	authenticate := auth.Middleware(logger)

	public := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}
	private := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(authenticate(fn).ServeHTTP))
	}
	admin := func(pattern string, fn http.HandlerFunc) {
		private(pattern, auth.RequireAdmin(logger, fn))
	}

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	if h.Health != nil {
		public("GET /healthz", h.Health)
	}

	public("GET /api/products", h.Catalog.HandleList)
	public("GET /api/products/{id}", h.Catalog.HandleGet)
	admin("POST /api/products", h.Catalog.HandleCreate)
	admin("PUT /api/products/{id}", h.Catalog.HandleUpdate)

	private("GET /api/cart", h.Cart.HandleList)
	private("POST /api/cart", h.Cart.HandleAdd)
	private("DELETE /api/cart", h.Cart.HandleClear)
	private("PUT /api/cart/{id}", h.Cart.HandleUpdate)
	private("DELETE /api/cart/{id}", h.Cart.HandleRemove)

	private("POST /api/orders", h.Orders.HandleCreate)
	private("GET /api/orders", h.Orders.HandleList)
	private("GET /api/orders/{id}", h.Orders.HandleGet)
	private("PUT /api/orders/{id}", h.Orders.HandleUpdateStatus)

	return mux
}
