package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/api-sage/txn-settlement-processor/internal/logger"
)

type Collector struct {
	registry               *prometheus.Registry
	reservationsRegistered prometheus.Counter
	reservationsRejected   *prometheus.CounterVec
	reservationDuration    prometheus.Histogram
	verdictsApplied        *prometheus.CounterVec
	verdictsDropped        *prometheus.CounterVec
	dispatchRetries        prometheus.Counter
	dispatchFailures       prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		reservationsRegistered: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "reservations_registered_total",
			Help: "Total number of transactions registered with funds held",
		}),
		reservationsRejected: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "reservations_rejected_total",
			Help: "Total number of rejected reservation attempts",
		}, []string{"reason"}),
		reservationDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "reservation_duration_seconds",
			Help:    "Time taken to register a transaction",
			Buckets: prometheus.DefBuckets,
		}),
		verdictsApplied: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "verdicts_applied_total",
			Help: "Total number of verdicts applied, by outcome",
		}, []string{"outcome"}),
		verdictsDropped: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "verdicts_dropped_total",
			Help: "Total number of verdicts dropped, by reason",
		}, []string{"reason"}),
		dispatchRetries: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dispatch_retries_total",
			Help: "Total number of retried verification request publishes",
		}),
		dispatchFailures: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dispatch_failures_total",
			Help: "Total number of verification requests that exhausted dispatch retries",
		}),
	}
}

func (c *Collector) RecordReservation(duration time.Duration) {
	c.reservationsRegistered.Inc()
	c.reservationDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordReservationRejected(reason string) {
	c.reservationsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordVerdictApplied(outcome string) {
	c.verdictsApplied.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordVerdictDropped(reason string) {
	c.verdictsDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordDispatchRetry() {
	c.dispatchRetries.Inc()
}

func (c *Collector) RecordDispatchFailure() {
	c.dispatchFailures.Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("starting metrics server", logger.Fields{"addr": addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", err, nil)
		}
	}()

	return server
}
