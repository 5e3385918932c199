package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dpedwards/webstore/internal/service"
	"github.com/dpedwards/webstore/pkg/health"
	"github.com/dpedwards/webstore/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "webstore"

// Services groups the business services the API exposes.
type Services struct {
	Orders     *service.OrderService
	Products   *service.ProductService
	Warehouses *service.WarehouseService
}

// RouterConfig holds the HTTP-layer settings taken from configuration.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all webstore routes registered.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	orderHandler := NewOrderHandler(svcs.Orders, logger)
	productHandler := NewProductHandler(svcs.Products, logger)
	warehouseHandler := NewWarehouseHandler(svcs.Warehouses, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/order", func(r chi.Router) {
			r.Get("/all", orderHandler.ListOrders)
			r.Post("/add", orderHandler.CreateOrder)
			r.Get("/{orderId}", orderHandler.GetOrder)
			r.Post("/{orderId}/positions", orderHandler.AddPosition)
			r.Delete("/delete/{orderId}/position/{positionId}", orderHandler.DeletePosition)
			r.Delete("/delete/{orderId}", orderHandler.DeleteOrder)
			r.Put("/close/{orderId}", orderHandler.CloseOrder)
		})

		r.Route("/product", func(r chi.Router) {
			r.Get("/all", productHandler.ListProducts)
			r.Post("/add", productHandler.CreateProduct)
			r.Get("/{productId}", productHandler.GetProduct)
			r.Put("/update/{productId}", productHandler.UpdateProduct)
			r.Delete("/delete/{productId}", productHandler.DeleteProduct)
		})

		r.Route("/warehouse", func(r chi.Router) {
			r.Get("/all", warehouseHandler.ListWarehouses)
			r.Get("/{warehouseNumber}", warehouseHandler.GetWarehouse)
			r.Post("/add/product/{productId}/warehouse/{warehouseNumber}", warehouseHandler.AddProductQuantity)
			r.Post("/reduce/product/{productId}/warehouse/{warehouseNumber}", warehouseHandler.ReduceProductQuantity)
			r.Get("/product/{productId}/total", warehouseHandler.TotalProductQuantity)
		})
	})

	return r
}
