package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/cart"
	"github.com/joao-fontenele/shopflow/internal/catalog"
	"github.com/joao-fontenele/shopflow/internal/httpx"
	"github.com/joao-fontenele/shopflow/internal/inventory"
	"github.com/joao-fontenele/shopflow/internal/notify"
	"github.com/joao-fontenele/shopflow/internal/orders"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers groups everything the router serves.
type Handlers struct {
	Auth      *auth.Handler
	Catalog   *catalog.Handler
	Cart      *cart.Handler
	Orders    *orders.Handler
	Inventory *inventory.Handler
	Live      *notify.WebSocketHandler
	Metrics   http.Handler
	DB        Pinger
}

// NewRouter registers every route and wraps the mux in otelhttp. Each
// route records its pattern as http.route on the server span.
func NewRouter(h Handlers, authn *auth.Authenticator, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	public := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}
	user := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(authn.Required(fn)))
	}

	public("POST /register", h.Auth.HandleRegister)
	public("POST /login", h.Auth.HandleLogin)
	public("POST /token/refresh", h.Auth.HandleRefresh)
	user("GET /profile", h.Auth.HandleProfile)
	user("PATCH /profile", h.Auth.HandleUpdateProfile)

	public("GET /categories", h.Catalog.HandleListCategories)
	public("GET /categories/{id}", h.Catalog.HandleGetCategory)
	user("POST /categories", h.Catalog.HandleCreateCategory)
	user("PUT /categories/{id}", h.Catalog.HandleUpdateCategory)
	user("DELETE /categories/{id}", h.Catalog.HandleDeleteCategory)

	public("GET /products", h.Catalog.HandleListProducts)
	public("GET /products/{id}", h.Catalog.HandleGetProduct)
	user("POST /products", h.Catalog.HandleCreateProduct)
	user("PUT /products/{id}", h.Catalog.HandleUpdateProduct)
	user("DELETE /products/{id}", h.Catalog.HandleDeleteProduct)

	user("GET /cart", h.Cart.HandleList)
	user("POST /cart/add", h.Cart.HandleAdd)
	user("POST /cart/remove", h.Cart.HandleRemove)

	user("GET /orders", h.Orders.HandleList)
	user("POST /orders/place", h.Orders.HandlePlace)
	user("PATCH /orders/{id}/status", h.Orders.HandleUpdateStatus)

	user("GET /inventory/stock", h.Inventory.HandleListStock)
	user("GET /inventory/stock/{productId}", h.Inventory.HandleGetStock)

	user("GET /ws/orders/{userId}", h.Live.HandleOrderStatus)

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	mux.HandleFunc("GET /healthz", healthz(h.DB, logger))

	return otelhttp.NewHandler(mux, "shopflow",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
		}),
	)
}

func healthz(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				logger.Warn("health check failed", "error", err)
				httpx.WriteJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// New returns an http.Server with the timeouts used by every instance.
// WriteTimeout is left at zero because WebSocket streams are long-lived.
func New(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
