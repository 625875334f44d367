package session

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opCreate    = "create"
	opValidate  = "validate"
	opRefresh   = "refresh"
	opDelete    = "delete"
	opDeleteAll = "delete_all"
)

const (
	outcomeOK             = "ok"
	outcomeInvalidToken   = "invalid_token"
	outcomeExpiredToken   = "expired_token"
	outcomeNotFound       = "not_found"
	outcomeExpired        = "expired"
	outcomeTenantMismatch = "tenant_mismatch"
	outcomeInvalidRequest = "invalid_request"
	outcomeUnavailable    = "unavailable"
	outcomeError          = "error"
)

// Metrics holds Prometheus collectors for session operations and sweeps.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	sweeps        *prometheus.CounterVec
	reconciled    prometheus.Counter
	sweepDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with registerer.
// A nil registerer falls back to prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "session",
			Name:      "operations_total",
			Help:      "Session operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "session",
			Name:      "sweeps_total",
			Help:      "Cleanup sweep passes by outcome.",
		}, []string{"outcome"}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "session",
			Name:      "sweep_reconciled_total",
			Help:      "Dangling index entries removed by the sweeper.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "session",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of cleanup sweep passes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
	}

	registerer.MustRegister(m.operations, m.sweeps, m.reconciled, m.sweepDuration)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, classify(err)).Inc()
}

func (m *Metrics) observeValidation(res *ValidationResult, err error) {
	if m == nil {
		return
	}
	if err == nil && res != nil && !res.Valid {
		err = res.Reason
	}
	m.operations.WithLabelValues(opValidate, classify(err)).Inc()
}

func (m *Metrics) observeSweep(report SweepReport, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	if err != nil || report.Failed > 0 {
		outcome = outcomeError
	}
	m.sweeps.WithLabelValues(outcome).Inc()
	m.reconciled.Add(float64(report.Removed))
	m.sweepDuration.Observe(took.Seconds())
}

func classify(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrStoreUnavailable):
		return outcomeUnavailable
	case errors.Is(err, ErrTokenExpired):
		return outcomeExpiredToken
	case errors.Is(err, ErrTokenInvalid):
		return outcomeInvalidToken
	case errors.Is(err, ErrSessionNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrSessionExpired):
		return outcomeExpired
	case errors.Is(err, ErrTenantMismatch):
		return outcomeTenantMismatch
	case errors.Is(err, ErrInvalidRequest):
		return outcomeInvalidRequest
	}
	return outcomeError
}
