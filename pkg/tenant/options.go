package tenant

import (
	"errors"
	"log/slog"
	"net/http"
)

// MaxIDLength bounds accepted tenant identifiers.
const MaxIDLength = 128

// ErrorHandler handles errors that occur during tenant resolution.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Validator checks a resolved identifier before it enters the context.
type Validator func(id string) error

type config struct {
	errorHandler ErrorHandler
	validator    Validator
	skipPaths    []string
	logger       *slog.Logger
}

// Option configures the middleware.
type Option func(*config)

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithValidator replaces the default identifier check.
func WithValidator(v Validator) Option {
	return func(c *config) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithSkipPaths sets path prefixes that bypass tenant resolution.
func WithSkipPaths(paths ...string) Option {
	return func(c *config) {
		c.skipPaths = append(c.skipPaths, paths...)
	}
}

// WithLogger sets a custom logger for the middleware.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// ValidateID accepts printable identifiers up to MaxIDLength bytes.
func ValidateID(id string) error {
	if len(id) > MaxIDLength {
		return ErrInvalidIdentifier
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidIdentifier
		}
	}
	return nil
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidIdentifier):
		http.Error(w, "Invalid tenant identifier", http.StatusBadRequest)
	case errors.Is(err, ErrNoTenantInContext):
		http.Error(w, "Tenant required", http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
