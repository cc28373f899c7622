package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// billing workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	billsGenerated    prometheus.Counter
	paymentsConfirmed prometheus.Counter
	remindersSent     prometheus.Counter
	overdueSwept      prometheus.Counter
	revenueCollected  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	billsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_bills_generated_total",
		Help: "Total payment bills generated",
	})

	paymentsConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Total payments confirmed",
	})

	remindersSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_reminders_sent_total",
		Help: "Total payment reminders dispatched",
	})

	overdueSwept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bills_marked_overdue_total",
		Help: "Total bills flipped to overdue by the sweep",
	})

	revenueCollected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "revenue_collected_total",
		Help: "Sum of confirmed payment amounts",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		billsGenerated, paymentsConfirmed, remindersSent, overdueSwept, revenueCollected, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		billsGenerated:    billsGenerated,
		paymentsConfirmed: paymentsConfirmed,
		remindersSent:     remindersSent,
		overdueSwept:      overdueSwept,
		revenueCollected:  revenueCollected,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// BillGenerated increments the bill counter.
func (m *MetricsService) BillGenerated() {
	if m != nil {
		m.billsGenerated.Inc()
	}
}

// PaymentConfirmed increments the payment counter and adds to revenue.
func (m *MetricsService) PaymentConfirmed(amount float64) {
	if m == nil {
		return
	}
	m.paymentsConfirmed.Inc()
	if amount > 0 {
		m.revenueCollected.Add(amount)
	}
}

// ReminderSent increments the reminder counter.
func (m *MetricsService) ReminderSent() {
	if m != nil {
		m.remindersSent.Inc()
	}
}

// OverdueSwept adds swept bills to the counter.
func (m *MetricsService) OverdueSwept(count int) {
	if m != nil && count > 0 {
		m.overdueSwept.Add(float64(count))
	}
}
