// Package scheduler runs the periodic background tasks of brickd: the
// status broadcast on the event bus and chat log pruning.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/util"
)

// StatusSource produces the periodic status snapshot.
type StatusSource interface {
	Status(ctx context.Context) (events.ServerStatusPayload, error)
}

// ChatPruner deletes old chat log rows.
type ChatPruner interface {
	PruneChat(ctx context.Context, days int) (int64, error)
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	status   StatusSource
	pruner   ChatPruner
	logger   zerolog.Logger
}

// NewScheduler creates a new task scheduler. pruner may be nil when no
// database is configured.
func NewScheduler(cfg *config.Config, eventBus *events.EventBus, status StatusSource, pruner ChatPruner) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		eventBus: eventBus,
		status:   status,
		pruner:   pruner,
		logger:   util.ComponentLogger("scheduler"),
	}
}

// Start runs all scheduled tasks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	timers := s.cfg.GetApplicationData().Timers
	s.logger.Info().Msg("scheduler started")

	if timers.StatusInterval > 0 {
		go s.every(ctx, time.Duration(timers.StatusInterval)*time.Second, s.publishStatus)
	}
	if s.pruner != nil && timers.ChatPruneInterval > 0 {
		s.pruneChat(ctx)
		go s.every(ctx, time.Duration(timers.ChatPruneInterval)*time.Second, s.pruneChat)
	}

	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// every runs task each interval until ctx is done.
func (s *Scheduler) every(ctx context.Context, interval time.Duration, task func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}

// publishStatus emits a server_status event.
func (s *Scheduler) publishStatus(ctx context.Context) {
	status, err := s.status.Status(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to collect status")
		return
	}

	s.logger.Debug().
		Int("players", status.Players).
		Int("connections", status.Connections).
		Str("uptime", util.FormatDuration(time.Duration(status.UptimeSec)*time.Second)).
		Msg("status collected")

	s.eventBus.Publish(events.EventServerStatus, "scheduler", status)
}

// pruneChat removes chat log rows past the retention window.
func (s *Scheduler) pruneChat(ctx context.Context) {
	days := s.cfg.GetApplicationData().Database.ChatRetentionDays
	if days <= 0 {
		return
	}

	n, err := s.pruner.PruneChat(ctx, days)
	if err != nil {
		s.logger.Warn().Err(err).Msg("chat log pruning failed")
		return
	}
	s.logger.Info().
		Int64("deleted", n).
		Int("retention_days", days).
		Msg("chat log pruned")
}
