// Package maintain runs periodic store maintenance decoupled from the
// request-serving paths: pattern cleanup, snapshot persistence and event
// log pruning.
package maintain

import (
	"context"
	"log/slog"
	"time"

	"github.com/ovrld/bannerhound/events"
	"github.com/ovrld/bannerhound/pattern"
)

// Config configures the scheduler.
type Config struct {
	// Interval between maintenance passes. Default: 10 minutes.
	Interval time.Duration
	// EventRetention bounds the event log. Default: 30 days.
	EventRetention time.Duration
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.EventRetention <= 0 {
		c.EventRetention = 30 * 24 * time.Hour
	}
}

// Scheduler drives periodic maintenance against the shared pattern store.
// It reads and writes the same store the extraction sessions use, but on
// its own clock.
type Scheduler struct {
	store  *pattern.Store
	events *events.Logger // nil disables event pruning
	cfg    Config
	logger *slog.Logger
}

// New creates a Scheduler.
func New(store *pattern.Store, ev *events.Logger, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, events: ev, cfg: cfg, logger: logger}
}

// Run performs maintenance on a ticker. Blocks until ctx is cancelled,
// then runs one final persistence pass so learned state survives
// shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Run once immediately on start.
	s.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			if err := s.store.Persist(); err != nil {
				s.logger.Warn("maintain: shutdown persist failed", "error", err)
			}
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	removed := s.store.Cleanup()

	// Write failure is non-fatal: in-memory state stays authoritative and
	// the next pass retries.
	if err := s.store.Persist(); err != nil {
		s.logger.Warn("maintain: persist failed", "error", err)
	}

	var pruned int64
	if s.events != nil {
		pruned = s.events.Prune(ctx, s.cfg.EventRetention)
	}

	sum := s.store.Summary()
	s.logger.Debug("maintain: pass complete",
		"patterns", sum.Patterns, "removed", removed, "events_pruned", pruned)
}
