// Package metrics exposes ledger activity as Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mobile_money"

// Outcome labels.
const (
	OutcomeSuccess = ports.OutcomeSuccess
	OutcomeFailure = ports.OutcomeFailure
)

// Recorder records ledger activity on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	movementsTotal      *prometheus.CounterVec
	movedAmountTotal    *prometheus.CounterVec
	activationsTotal    *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		movementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "movements_total",
				Help:      "Fund movements partitioned by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		movedAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "moved_amount_fcfa_total",
				Help:      "Total FCFA moved by successful movements, by kind.",
			},
			[]string{"kind"},
		),
		activationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "accounts",
				Name:      "activations_total",
				Help:      "OTP activation attempts by outcome.",
			},
			[]string{"outcome"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sms",
				Name:      "notifications_total",
				Help:      "SMS notifications by delivery outcome.",
			},
			[]string{"outcome"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// ObserveMovement counts one movement attempt. Amounts are only added on success.
func (r *Recorder) ObserveMovement(kind domain.EntryKind, outcome string, amount int64) {
	r.movementsTotal.WithLabelValues(string(kind), outcome).Inc()
	if outcome == OutcomeSuccess && amount > 0 {
		r.movedAmountTotal.WithLabelValues(string(kind)).Add(float64(amount))
	}
}

func (r *Recorder) ObserveActivation(outcome string) {
	r.activationsTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveNotification(outcome string) {
	r.notificationsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware records per-route request counts and latency.
// Unmatched routes are grouped under "unmatched".
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		r.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveMovement(domain.EntryKind, string, int64) {}
func (Nop) ObserveActivation(string)                        {}
func (Nop) ObserveNotification(string)                      {}
