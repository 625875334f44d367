package session

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

// ErrorHandler writes the response for a request the middleware rejects.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	transport    Transport
	required     bool
	autoRefresh  bool
	refreshTTL   time.Duration
	retryAfter   time.Duration
	errorHandler ErrorHandler
	logger       *slog.Logger
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithTransport sets where tokens are read from and written to.
// Default is the Authorization header with a Bearer prefix.
func WithTransport(t Transport) MiddlewareOption {
	return func(c *middlewareConfig) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithRequired rejects requests without a valid session instead of passing
// them on unauthenticated.
func WithRequired() MiddlewareOption {
	return func(c *middlewareConfig) {
		c.required = true
	}
}

// WithAutoRefresh refreshes sessions that validate reports as close to expiry
// and sends the new token through the transport. ttl 0 means the manager default.
func WithAutoRefresh(ttl time.Duration) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.autoRefresh = true
		c.refreshTTL = ttl
	}
}

// WithRetryAfter sets the Retry-After hint sent with 503 responses.
func WithRetryAfter(d time.Duration) MiddlewareOption {
	return func(c *middlewareConfig) {
		if d > 0 {
			c.retryAfter = d
		}
	}
}

// WithErrorHandler replaces the default rejection responses.
func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// Middleware validates the request's session token and stores the session in
// the request context.
//
// When a tenant was resolved upstream (tenant.Middleware) the token must
// belong to that tenant. An invalid or expired token leaves the request
// unauthenticated; a backend failure is answered with 503 so clients are not
// logged out by an outage.
func Middleware(m *Manager, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		transport:  NewHeaderTransport(""),
		retryAfter: 5 * time.Second,
		logger:     m.logger,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.errorHandler == nil {
		cfg.errorHandler = defaultErrorHandler(cfg.retryAfter)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, err := cfg.transport.GetToken(r)
			if err != nil {
				if cfg.required {
					cfg.errorHandler(w, r, ErrNoToken)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			var res *ValidationResult
			if tenantID, ok := tenant.IDFromContext(ctx); ok {
				res, err = m.ValidateInTenant(ctx, tenantID, raw)
			} else {
				res, err = m.Validate(ctx, raw)
			}
			if err != nil {
				cfg.logger.ErrorContext(ctx, "session validation failed", logger.Error(err))
				cfg.errorHandler(w, r, err)
				return
			}

			if !res.Valid {
				_ = cfg.transport.ClearToken(w)
				if cfg.required {
					cfg.errorHandler(w, r, res.Reason)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			sess := res.Session
			if cfg.autoRefresh && res.RequiresRefresh {
				issued, err := m.Refresh(ctx, sess.TenantID, sess.ID, cfg.refreshTTL)
				if err != nil {
					cfg.logger.WarnContext(ctx, "session auto refresh failed",
						logger.TenantID(sess.TenantID),
						logger.SessionID(sess.ID),
						logger.Error(err),
					)
				} else {
					sess.ExpiresAt = issued.ExpiresAt
					if err := cfg.transport.SetToken(w, issued.Token, issued.ExpiresAt); err != nil {
						cfg.logger.WarnContext(ctx, "failed to send refreshed token", logger.Error(err))
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
		})
	}
}

// RequireSession rejects requests that reach it without a session in context.
func RequireSession(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler(0)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects sessions whose snapshot lacks perm.
func RequirePermission(perm string, errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler(0)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := FromContext(r.Context())
			if !ok {
				errorHandler(w, r, ErrNoToken)
				return
			}
			if !sess.HasPermission(perm) {
				errorHandler(w, r, ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultErrorHandler(retryAfter time.Duration) ErrorHandler {
	return func(w http.ResponseWriter, _ *http.Request, err error) {
		switch {
		case IsInfrastructure(err):
			if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(retryAfter.Round(time.Second).Seconds()))))
			}
			http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrTenantMismatch):
			http.Error(w, "Forbidden", http.StatusForbidden)
		case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrConfiguration):
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		default:
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}
}
