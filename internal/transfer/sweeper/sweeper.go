// Package sweeper periodically expires pending transfer requests older than
// the expiry window.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/NogaLive/SNIUGB/internal/transfer/metrics"
)

const (
	DefaultInterval = time.Hour
	DefaultWindow   = 24 * time.Hour

	// LockKey names the lock that keeps replicas from sweeping the same tick.
	LockKey = "sniugb:transfer-expiry-sweep"
)

// Expirer moves stale pending requests to expired. Implemented by the transfer service.
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time, window time.Duration) (int, error)
}

// Locker is an optional cross-replica mutex. Acquire reports false when
// another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Sweeper struct {
	expirer  Expirer
	locker   Locker
	interval time.Duration
	window   time.Duration
	clock    func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithLocker(l Locker) Option {
	return func(s *Sweeper) {
		s.locker = l
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func New(expirer Expirer, opts ...Option) *Sweeper {
	s := &Sweeper{
		expirer:  expirer,
		interval: DefaultInterval,
		window:   DefaultWindow,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs a single sweep. When a Locker is configured and another
// replica holds the lock, it returns 0 without sweeping.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx, LockKey, s.interval)
		if err != nil {
			s.metrics.ObserveSweep(start, "error", 0)
			return 0, err
		}
		if !ok {
			s.metrics.ObserveSweep(start, "skipped", 0)
			s.logger.DebugContext(ctx, "expiry sweep skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), LockKey); err != nil {
				s.logger.WarnContext(ctx, "failed to release sweep lock", "error", err)
			}
		}()
	}

	now := s.clock()
	n, err := s.expirer.ExpireStale(ctx, now, s.window)
	if err != nil {
		s.metrics.ObserveSweep(start, "error", 0)
		return 0, err
	}
	s.metrics.ObserveSweep(start, "ok", n)
	s.logger.InfoContext(ctx, "expiry sweep finished",
		"expired", n,
		"cutoff", now.Add(-s.window),
		"duration", time.Since(start),
	)
	return n, nil
}

// Run sweeps every interval until ctx is cancelled. A failed sweep is logged
// and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "expiry sweeper started",
		"interval", s.interval,
		"window", s.window,
	)
	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
			}
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiry sweeper stopped")
			return nil
		}
	}
}
