package session

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithConfig sets custom configuration
func WithConfig(config Config) Option {
	return func(m *Manager) {
		m.config = config
	}
}

// WithDefaultTTL sets the lifetime used when a request doesn't specify one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.config.DefaultTTL = ttl
	}
}

// WithRefreshThreshold sets the window before expiry in which validate
// reports RequiresRefresh.
func WithRefreshThreshold(threshold time.Duration) Option {
	return func(m *Manager) {
		m.config.RefreshThreshold = threshold
	}
}

// WithTouchInterval sets the minimum age of LastAccessedAt before validate rewrites it.
func WithTouchInterval(interval time.Duration) Option {
	return func(m *Manager) {
		m.config.TouchInterval = interval
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}
