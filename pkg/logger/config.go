package logger

import (
	"fmt"
	"log/slog"
)

// Config holds process level logging settings.
type Config struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"SERVICE_NAME" envDefault:"sessiond"`
	// Level overrides the preset level when set (debug, info, warn, error).
	Level string `env:"LOG_LEVEL"`
}

// NewFromConfig creates a logger from cfg. Extra options are applied last.
func NewFromConfig(cfg Config, opts ...Option) (*slog.Logger, error) {
	base := []Option{WithEnvironment(cfg.Env, cfg.Service)}
	if cfg.Level != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
		}
		base = append(base, WithLevel(level))
	}
	return New(append(base, opts...)...), nil
}
