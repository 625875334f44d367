// Command sessiond serves the multi-tenant session API backed by Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/sessionkit/pkg/clientip"
	"github.com/dmitrymomot/sessionkit/pkg/config"
	"github.com/dmitrymomot/sessionkit/pkg/httpserver"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/redis"
	"github.com/dmitrymomot/sessionkit/pkg/requestid"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/sessionapi"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
	"github.com/dmitrymomot/sessionkit/pkg/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sessiond: %v\n", err)
		os.Exit(1)
	}
}

// settings groups every config section of the process.
type settings struct {
	Logger   logger.Config
	Token    token.Config
	Session  session.Config
	Redis    redis.Config
	HTTP     httpserver.Config
	ClientIP clientip.Config
}

func loadSettings() (settings, error) {
	var s settings
	err := errors.Join(
		config.Load(&s.Logger),
		config.Load(&s.Token),
		config.Load(&s.Session),
		config.Load(&s.Redis),
		config.Load(&s.HTTP),
		config.Load(&s.ClientIP),
	)
	return s, err
}

func run(ctx context.Context) error {
	cfg, err := loadSettings()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewFromConfig(cfg.Logger,
		logger.WithContextExtractors(tenant.LoggerExtractor(), requestid.LoggerExtractor()),
	)
	if err != nil {
		return err
	}
	logger.SetAsDefault(log)

	codec, err := token.NewFromConfig(cfg.Token)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close failed", logger.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := session.NewMetrics(registry)

	store := session.NewRedisStore(client, session.WithKeyPrefix(cfg.Session.KeyPrefix))
	manager, err := session.NewFromConfig(store, codec, cfg.Session,
		session.WithMetrics(metrics),
		session.WithLogger(log),
	)
	if err != nil {
		return err
	}

	sweeper := session.NewSweeper(store,
		session.WithSweepConfig(cfg.Session),
		session.WithSweeperLogger(log),
		session.WithSweeperMetrics(metrics),
	)

	router := sessionapi.NewRouter(manager,
		sessionapi.WithLogger(log),
		sessionapi.WithClientIP(clientip.NewFromConfig(cfg.ClientIP)),
	)
	router.Get("/health/live", httpserver.LivenessHandler())
	router.Get("/health/ready", httpserver.ReadinessHandler(log, 2*time.Second,
		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)},
	))
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	log.InfoContext(ctx, "sessiond starting",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("key_prefix", cfg.Session.KeyPrefix),
		slog.Duration("sweep_interval", cfg.Session.SweepInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx, router) })
	g.Go(sweeper.Run(ctx))

	if err := g.Wait(); err != nil {
		log.Error("sessiond stopped with error", logger.Error(err))
		return err
	}

	log.Info("sessiond stopped")
	return nil
}
