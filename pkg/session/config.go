package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/token"
)

// Config holds session lifecycle settings.
type Config struct {
	// DefaultTTL is the logical lifetime used when a request doesn't carry one.
	DefaultTTL time.Duration `env:"SESSION_DEFAULT_TTL" envDefault:"168h"`

	// RefreshThreshold drives the advisory RequiresRefresh flag of validate.
	RefreshThreshold time.Duration `env:"SESSION_REFRESH_THRESHOLD" envDefault:"24h"`

	// TouchInterval skips the LastAccessedAt rewrite on validate while the stored
	// value is younger than the interval. 0 rewrites on every call.
	TouchInterval time.Duration `env:"SESSION_TOUCH_INTERVAL" envDefault:"0s"`

	// KeyPrefix is the first segment of every storage key.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"sess"`

	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	SweepTimeout  time.Duration `env:"SESSION_SWEEP_TIMEOUT" envDefault:"5m"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL:       7 * 24 * time.Hour,
		RefreshThreshold: 24 * time.Hour,
		KeyPrefix:        DefaultKeyPrefix,
		SweepInterval:    time.Hour,
		SweepTimeout:     5 * time.Minute,
	}
}

// Validate reports settings the manager cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.DefaultTTL < time.Second || c.DefaultTTL%time.Second != 0 {
		errs = append(errs, fmt.Errorf("default ttl must be a whole number of seconds, got %s", c.DefaultTTL))
	}
	if c.RefreshThreshold < 0 {
		errs = append(errs, fmt.Errorf("refresh threshold must not be negative, got %s", c.RefreshThreshold))
	}
	if c.TouchInterval < 0 {
		errs = append(errs, fmt.Errorf("touch interval must not be negative, got %s", c.TouchInterval))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval))
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sweep timeout must be positive, got %s", c.SweepTimeout))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrConfiguration}, errs...)...)
}

// NewFromConfig creates a Manager from the provided Config.
func NewFromConfig(store Store, codec *token.Codec, cfg Config, opts ...Option) (*Manager, error) {
	return New(store, codec, append([]Option{WithConfig(cfg)}, opts...)...)
}
