package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// SweepReport summarises one cleanup pass.
type SweepReport struct {
	Tenants int `json:"tenants"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Sweeper periodically removes index entries whose records expired passively.
// Start it once per process.
type Sweeper struct {
	store    Store
	id       uuid.UUID
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepConfig takes interval and timeout from cfg.
func WithSweepConfig(cfg Config) SweeperOption {
	return func(s *Sweeper) {
		WithSweepInterval(cfg.SweepInterval)(s)
		WithSweepTimeout(cfg.SweepTimeout)(s)
	}
}

// WithSweepInterval sets the delay between passes.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepTimeout bounds a single pass.
func WithSweepTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSweeperLogger sets the logger for the sweeper
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweeperMetrics records pass outcomes.
func WithSweeperMetrics(m *Metrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// NewSweeper creates a cleanup sweeper for store.
func NewSweeper(store Store, opts ...SweeperOption) *Sweeper {
	cfg := DefaultConfig()
	s := &Sweeper{
		store:    store,
		id:       uuid.New(),
		interval: cfg.SweepInterval,
		timeout:  cfg.SweepTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("session_sweeper"), slog.String("sweeper_id", s.id.String()))
	return s
}

// Start launches the sweep loop in the background.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrSweeperRunning
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("sweeper started", slog.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrSweeperNotRunning
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.logger.Info("sweeper stopped")
	return nil
}

// Run returns a function suitable for errgroup: it starts the sweeper,
// blocks until ctx is done and then stops it.
func (s *Sweeper) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return s.Stop()
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a started pass runs to completion even if Stop is called meanwhile
			_, _ = s.Sweep(context.WithoutCancel(ctx))
		}
	}
}

// Sweep runs one pass over every tenant. A failing tenant is logged and
// skipped; the returned error joins all tenant failures.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	report, err := s.sweep(ctx)
	took := time.Since(started)
	s.metrics.observeSweep(report, err, took)

	if err != nil {
		s.logger.ErrorContext(ctx, "sweep pass failed",
			logger.Error(err),
			slog.Int("tenants", report.Tenants),
			slog.Int("failed", report.Failed),
			logger.Duration(took),
		)
		return report, err
	}

	s.logger.DebugContext(ctx, "sweep pass finished",
		slog.Int("tenants", report.Tenants),
		slog.Int("removed", report.Removed),
		logger.Duration(took),
	)
	return report, nil
}

func (s *Sweeper) sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	tenants, err := s.store.Tenants(ctx)
	if err != nil {
		return report, err
	}

	var errs []error
	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		report.Tenants++
		removed, err := s.store.Reconcile(ctx, tenantID)
		if err != nil {
			report.Failed++
			s.logger.WarnContext(ctx, "tenant reconcile failed",
				logger.TenantID(tenantID),
				logger.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if removed > 0 {
			s.logger.InfoContext(ctx, "removed dangling session references",
				logger.TenantID(tenantID),
				slog.Int("removed", removed),
			)
		}
		report.Removed += removed
	}

	return report, errors.Join(errs...)
}
