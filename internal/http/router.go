package http

import (
	"net/http"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Availability   *AvailabilityHandler
	Reservations   *ReservationHandler
	Warehouse      *WarehouseHandler
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(Metrics(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/availability", cfg.Availability.CheckProduct)
		r.Post("/availability/batch", cfg.Availability.CheckBatch)
		r.Delete("/recipes/{product_id}/cache", cfg.Availability.InvalidateRecipe)

		r.Route("/orders/{order_id}/reservations", func(r chi.Router) {
			r.Get("/", cfg.Reservations.GetReservations)
			r.Post("/", cfg.Reservations.CreateReservations)
			r.Delete("/", cfg.Reservations.ReleaseReservations)
			r.Post("/convert", cfg.Reservations.ConvertToDeductions)
		})

		r.Route("/warehouse", func(r chi.Router) {
			r.Get("/stock", cfg.Warehouse.Stock)
			r.Get("/low-stock", cfg.Warehouse.LowStock)
			r.Post("/items/{item_id}/receive", cfg.Warehouse.ReceiveStock)
		})
	})

	return otelhttp.NewHandler(r, "bouquet-inventory")
}
