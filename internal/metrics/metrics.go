package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bouquet_inventory"

// Metrics holds every collector of the service. A nil *Metrics records nothing.
type Metrics struct {
	Operations      *prometheus.CounterVec
	OperationMS     *prometheus.HistogramVec
	ReservedUnits   prometheus.Counter
	ConvertedUnits  prometheus.Counter
	CleanupReleased prometheus.Counter
	OrderEvents     *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Reservation operations by outcome.",
		}, []string{"operation", "result"}),
		OperationMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_operation_duration_ms",
			Help:      "Reservation operation latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"operation"}),
		ReservedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserved_units_total",
			Help:      "Component units claimed by reservations.",
		}),
		ConvertedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "converted_units_total",
			Help:      "Reserved units deducted from on-hand stock.",
		}),
		CleanupReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_released_total",
			Help:      "Reservation rows released by the cleanup sweep.",
		}),
		OrderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_total",
			Help:      "Order status events consumed, by action.",
		}, []string{"action"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
	}

	reg.MustRegister(
		m.Operations, m.OperationMS, m.ReservedUnits, m.ConvertedUnits,
		m.CleanupReleased, m.OrderEvents, m.Requests, m.LatencyMS,
	)
	return m
}

// ObserveOperation records the outcome and latency of a reservation operation
func (m *Metrics) ObserveOperation(op, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, result).Inc()
	m.OperationMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *Metrics) AddReserved(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.ReservedUnits.Add(float64(units))
}

func (m *Metrics) AddConverted(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.ConvertedUnits.Add(float64(units))
}

func (m *Metrics) AddCleanupReleased(rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.CleanupReleased.Add(float64(rows))
}

func (m *Metrics) OrderEvent(action string) {
	if m == nil {
		return
	}
	m.OrderEvents.WithLabelValues(action).Inc()
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(handler string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
