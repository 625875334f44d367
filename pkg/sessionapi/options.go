package sessionapi

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/clientip"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

// Option configures the API.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTransport sets where validate looks for a token when the body has none.
func WithTransport(t session.Transport) Option {
	return func(h *Handler) {
		if t != nil {
			h.transport = t
		}
	}
}

// WithClientIP sets how the caller address recorded in new sessions is resolved.
func WithClientIP(e *clientip.Extractor) Option {
	return func(h *Handler) {
		if e != nil {
			h.ips = e
		}
	}
}

// WithRetryAfter sets the Retry-After hint of 503 responses.
func WithRetryAfter(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.retryAfter = d
		}
	}
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}
