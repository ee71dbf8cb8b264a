// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsPosted  *prometheus.CounterVec
	TransactionsUpdated prometheus.Counter
	TransactionsDeleted prometheus.Counter
	TransactionErrors   *prometheus.CounterVec
	StockAdjustments    prometheus.Counter

	// Outbox metrics
	OutboxEnqueued   *prometheus.CounterVec
	OutboxDispatched *prometheus.CounterVec
	OutboxFailures   *prometheus.CounterVec
	OutboxDropped    *prometheus.CounterVec
	OutboxPending    prometheus.Gauge

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBConnections prometheus.Gauge

	// Redis metrics
	RedisErrors *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Transaction metrics
		TransactionsPosted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_transactions_posted_total",
				Help: "Total number of transactions posted by type",
			},
			[]string{"type"},
		),
		TransactionsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trading_transactions_updated_total",
			Help: "Total number of transactions updated",
		}),
		TransactionsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trading_transactions_deleted_total",
			Help: "Total number of transactions deleted",
		}),
		TransactionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_transaction_errors_total",
				Help: "Total number of transaction errors by type",
			},
			[]string{"error_type"},
		),
		StockAdjustments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trading_stock_adjustments_total",
			Help: "Total number of product stock adjustments",
		}),

		// Outbox metrics
		OutboxEnqueued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_outbox_enqueued_total",
				Help: "Total side-effect events written to the outbox by effect type",
			},
			[]string{"effect"},
		),
		OutboxDispatched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_outbox_dispatched_total",
				Help: "Total side-effect events delivered downstream by effect type",
			},
			[]string{"effect"},
		),
		OutboxFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_outbox_failures_total",
				Help: "Total side-effect delivery failures by effect type",
			},
			[]string{"effect"},
		),
		OutboxDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_outbox_dropped_total",
				Help: "Total best-effort events abandoned after exhausting attempts",
			},
			[]string{"effect"},
		),
		OutboxPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trading_outbox_pending",
			Help: "Undelivered events seen in the last dispatcher batch",
		}),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trading_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trading_db_connections",
			Help: "Current number of database connections",
		}),

		// Redis metrics
		RedisErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Authentication metrics
		AuthFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),
	}
}
