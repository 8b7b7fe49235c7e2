package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/app"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/config"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/dialer"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/backoff"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/concurrency"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/logger"
)

// requeueDelay pushes an entry back when its dispatch failed, so a broken
// dialer connection does not spin the scheduler on the same entry.
const requeueDelay = time.Minute

// Scheduler periodically claims due retry entries and hands them to the
// dialer. Entries whose calling window has closed since they were scheduled
// are shifted forward instead of dispatched.
type Scheduler struct {
	queue      repository.RetryQueueRepository
	strategies repository.StrategyRepository
	stats      repository.RetryStatsRepository
	dialer     dialer.Dialer
	lock       concurrency.TickLock
	cfg        config.SchedulerConfig
	logger     *logger.Logger
	now        func() time.Time
}

// New constructs a scheduler from the application container.
func New(container *app.Container) *Scheduler {
	repos := container.Repositories()
	return &Scheduler{
		queue:      repos.Queue,
		strategies: repos.Strategies,
		stats:      repos.Stats,
		dialer:     container.Dispatchers().Dial,
		lock:       container.Locks().Tick,
		cfg:        container.Config.Scheduler,
		logger:     container.Logger,
		now:        time.Now,
	}
}

// Run executes the dispatch loop until cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.cfg.TickInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one scheduling pass: defer entries that fell out of their
// calling window, then claim and dispatch what is due.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.lock != nil {
		release, acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if !acquired {
			s.logger.Debug("scheduler: tick held by another replica")
			return nil
		}
		defer release()
	}

	if s.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TickTimeout)
		defer cancel()
	}

	tracer := otel.Tracer("retry.scheduler")
	sctx, span := tracer.Start(ctx, "scheduler.tick")
	defer span.End()

	now := s.now().UTC()
	batch := s.cfg.MaxBatchSize
	if batch <= 0 {
		batch = 100
	}

	deferred, err := s.applyCallingWindows(sctx, now, batch)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("entries.deferred", deferred))

	claimed, err := s.queue.ClaimDue(sctx, now, batch)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("entries.claimed", len(claimed)))
	if len(claimed) == 0 {
		return nil
	}

	dispatched := 0
	perCampaign := make(map[uuid.UUID]int64)
	for _, entry := range claimed {
		if err := s.dialer.PlaceCall(sctx, entry); err != nil {
			span.RecordError(err)
			s.logger.Error("scheduler: dispatch failed", zap.Error(err),
				zap.String("entry_id", entry.ID.String()),
				zap.String("campaign_id", entry.CampaignID.String()))
			if rqErr := s.queue.Requeue(sctx, entry.CampaignID, entry.ID, now.Add(requeueDelay)); rqErr != nil {
				s.logger.Error("scheduler: requeue after failed dispatch", zap.Error(rqErr),
					zap.String("entry_id", entry.ID.String()))
			}
			continue
		}
		dispatched++
		perCampaign[entry.CampaignID]++
	}

	for campaignID, n := range perCampaign {
		if err := s.stats.ApplyDelta(sctx, campaignID, repository.StatsDelta{DispatchedDelta: n}); err != nil {
			s.logger.Error("scheduler: apply stats", zap.Error(err),
				zap.String("campaign_id", campaignID.String()))
		}
	}

	s.logger.Info("scheduler: tick finished",
		zap.Int("claimed", len(claimed)),
		zap.Int("dispatched", dispatched),
		zap.Int("deferred", deferred))
	return nil
}

// applyCallingWindows re-checks each due entry against its campaign's
// current guardrails. Strategy edits after enqueue may have moved or closed
// the calling window; such entries are shifted, not dispatched. Entries for
// deleted or disabled strategies are cancelled.
func (s *Scheduler) applyCallingWindows(ctx context.Context, now time.Time, batch int) (int, error) {
	due, err := s.queue.DueEntries(ctx, now, batch)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	deferred := 0
	cache := make(map[uuid.UUID]*domain.RetryStrategy)
	for _, entry := range due {
		strategy, ok := cache[entry.CampaignID]
		if !ok {
			loaded, err := s.strategies.Get(ctx, entry.CampaignID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				strategy = nil
			case err != nil:
				return deferred, err
			default:
				strategy = &loaded
			}
			cache[entry.CampaignID] = strategy
		}

		if strategy == nil || !strategy.Enabled {
			if err := s.queue.Cancel(ctx, entry.CampaignID, entry.ID); err != nil {
				s.logger.Error("scheduler: cancel orphaned entry", zap.Error(err),
					zap.String("entry_id", entry.ID.String()))
			}
			continue
		}

		clipped, err := backoff.ClipToGuardrails(strategy.Guardrails, now)
		if err != nil {
			s.logger.Error("scheduler: guardrail check", zap.Error(err),
				zap.String("campaign_id", entry.CampaignID.String()))
			continue
		}
		if clipped.After(now) {
			if err := s.queue.UpdateNextAttempt(ctx, entry.CampaignID, entry.ID, clipped); err != nil {
				s.logger.Error("scheduler: defer entry", zap.Error(err),
					zap.String("entry_id", entry.ID.String()))
				continue
			}
			deferred++
		}
	}
	return deferred, nil
}
