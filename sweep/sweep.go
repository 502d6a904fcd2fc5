// Package sweep runs the periodic jobs that enforce time-driven session
// rules: expiring stale live sessions and sending pre-completion
// reminders. All transitions go through the timer engine so the
// version-checked write path applies to background writers too.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/focushive/sessiond/internal/timeutil"
	"github.com/focushive/sessiond/store"
	"github.com/focushive/sessiond/timer"
)

// Config holds the sweep cadence and the staleness threshold.
type Config struct {
	// StalenessThreshold is how long a session may stay live before the
	// staleness sweep forces it to EXPIRED.
	StalenessThreshold time.Duration

	// StaleInterval is the tick period of the staleness sweep.
	StaleInterval time.Duration

	// ReminderInterval is the tick period of the reminder sweep.
	ReminderInterval time.Duration
}

// DefaultConfig mirrors the service defaults: sessions expire after
// four hours, checked every minute; reminders are checked every thirty
// seconds.
func DefaultConfig() Config {
	return Config{
		StalenessThreshold: 4 * time.Hour,
		StaleInterval:      time.Minute,
		ReminderInterval:   30 * time.Second,
	}
}

// Sweeper owns the two periodic jobs. Each job is idempotent and
// fault-isolated per session: one bad record never aborts the rest of a
// tick.
type Sweeper struct {
	db     store.DB
	engine *timer.Engine
	clock  timeutil.Clock
	cfg    Config
	logger *slog.Logger
}

// New creates a sweeper over the given store and engine.
func New(
	db store.DB,
	engine *timer.Engine,
	clock timeutil.Clock,
	cfg Config,
) *Sweeper {
	return &Sweeper{
		db:     db,
		engine: engine,
		clock:  clock,
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Start runs both sweep loops until the context is cancelled. Ticks are
// non-overlapping: work runs inline in each loop, and any tick that
// fired while a sweep was executing is drained, not queued.
func (s *Sweeper) Start(ctx context.Context) {
	go s.loop(ctx, s.cfg.StaleInterval, s.SweepStale)
	go s.loop(ctx, s.cfg.ReminderInterval, s.SweepReminders)
}

func (s *Sweeper) loop(
	ctx context.Context,
	interval time.Duration,
	sweep func(context.Context),
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
			drain(ticker)
		}
	}
}

// drain discards a tick that fired while the previous sweep was still
// running, so a slow tick is skipped instead of queued.
func drain(ticker *time.Ticker) {
	select {
	case <-ticker.C:
	default:
	}
}

// SweepStale expires every live session older than the staleness
// threshold.
func (s *Sweeper) SweepStale(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.StalenessThreshold)

	stale, err := s.db.FindLiveOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("staleness sweep query failed", slog.Any("error", err))
		return
	}

	var expired int

	for _, sess := range stale {
		if err := s.engine.Expire(ctx, sess.ID); err != nil {
			// Losing the race to a foreground writer is expected; the
			// session will be re-evaluated on the next tick if still live.
			s.logger.Warn("failed to expire session",
				slog.String("session_id", sess.ID),
				slog.Any("error", err),
			)

			continue
		}

		expired++
	}

	if expired > 0 {
		s.logger.Info("expired stale sessions", slog.Int("count", expired))
	}
}

// SweepReminders sends every due, unsent reminder.
func (s *Sweeper) SweepReminders(ctx context.Context) {
	due, err := s.db.FindPendingReminders(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error("reminder sweep query failed", slog.Any("error", err))
		return
	}

	for _, sess := range due {
		if err := s.engine.SendReminder(ctx, sess.ID); err != nil {
			s.logger.Warn("failed to send reminder",
				slog.String("session_id", sess.ID),
				slog.Any("error", err),
			)
		}
	}
}
