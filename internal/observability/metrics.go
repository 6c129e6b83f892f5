// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics are the TrackMint application metrics.
type Metrics struct {
	AuthOperations    *prometheus.CounterVec
	AuthDuration      *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	SweptRows         *prometheus.CounterVec
	SweepFailures     prometheus.Counter
	NotificationsSent *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackmint_auth_operations_total",
				Help: "Auth operations by operation and result kind",
			},
			[]string{"operation", "result"},
		),
		AuthDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackmint_auth_operation_duration_seconds",
				Help:    "Auth operation latency; login and register include password hashing",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackmint_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		SweptRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackmint_token_sweep_rows_total",
				Help: "Expired rows removed by the token sweeper by table",
			},
			[]string{"table"},
		),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackmint_token_sweep_failures_total",
			Help: "Token sweeps that failed",
		}),
		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackmint_notifications_total",
				Help: "Password reset notifications by channel and result",
			},
			[]string{"channel", "result"},
		),
	}

	reg.MustRegister(
		m.AuthOperations,
		m.AuthDuration,
		m.HTTPRequests,
		m.SweptRows,
		m.SweepFailures,
		m.NotificationsSent,
	)
	return m
}

// RecordAuth counts one operation. result is ResultOK or the failure kind.
func (m *Metrics) RecordAuth(operation, result string, elapsed time.Duration) {
	m.AuthOperations.WithLabelValues(operation, result).Inc()
	m.AuthDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordSweep adds one sweep's removed row counts, or a failure.
func (m *Metrics) RecordSweep(refresh, reset, revoked int64, err error) {
	if err != nil {
		m.SweepFailures.Inc()
	}
	m.SweptRows.WithLabelValues("refresh_tokens").Add(float64(refresh))
	m.SweptRows.WithLabelValues("password_reset_tokens").Add(float64(reset))
	m.SweptRows.WithLabelValues("revoked_tokens").Add(float64(revoked))
}

// RecordNotification counts one delivery attempt on channel.
func (m *Metrics) RecordNotification(channel string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.NotificationsSent.WithLabelValues(channel, result).Inc()
}
