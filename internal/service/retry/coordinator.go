package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/queue"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/backoff"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/concurrency"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/eligibility"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/outcome"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/logger"
)

// DecisionPublisher emits audit events for evaluated attempts. Publishing is
// best-effort; a failed publish never blocks the retry flow.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, msg queue.DecisionMessage) error
}

// Coordinator orchestrates the retry pipeline for completed call attempts:
// classify, evaluate, schedule, enqueue. It is the single entry point the
// dialer integration invokes.
type Coordinator struct {
	strategies repository.StrategyRepository
	attempts   repository.AttemptStore
	queue      repository.RetryQueueRepository
	stats      repository.RetryStatsRepository
	classifier *outcome.Classifier
	evaluator  *eligibility.Evaluator
	locks      concurrency.LeadLocker
	decisions  DecisionPublisher
	logger     *logger.Logger
}

// NewCoordinator wires the coordinator. decisions may be nil when no audit
// stream is configured.
func NewCoordinator(
	strategies repository.StrategyRepository,
	attempts repository.AttemptStore,
	queueRepo repository.RetryQueueRepository,
	stats repository.RetryStatsRepository,
	classifier *outcome.Classifier,
	evaluator *eligibility.Evaluator,
	locks concurrency.LeadLocker,
	decisions DecisionPublisher,
	lg *logger.Logger,
) *Coordinator {
	return &Coordinator{
		strategies: strategies,
		attempts:   attempts,
		queue:      queueRepo,
		stats:      stats,
		classifier: classifier,
		evaluator:  evaluator,
		locks:      locks,
		decisions:  decisions,
		logger:     lg,
	}
}

// OnAttemptCompleted processes one finished call attempt. All queue
// mutations for the lead happen under its lock, so concurrent completions
// for the same lead serialize; other leads proceed in parallel.
func (c *Coordinator) OnAttemptCompleted(ctx context.Context, attempt domain.AttemptRecord) error {
	if attempt.CampaignID == uuid.Nil || attempt.LeadID == uuid.Nil {
		return fmt.Errorf("retry coordinator: attempt missing campaign or lead id")
	}
	return c.locks.WithLock(ctx, attempt.CampaignID, attempt.LeadID, func(ctx context.Context) error {
		return c.process(ctx, attempt)
	})
}

func (c *Coordinator) process(ctx context.Context, attempt domain.AttemptRecord) error {
	if err := c.attempts.Append(ctx, attempt); err != nil {
		return fmt.Errorf("retry coordinator: append attempt: %w", err)
	}

	c.settleRunningEntry(ctx, attempt.CampaignID, attempt.LeadID)

	strategy, err := c.strategies.Get(ctx, attempt.CampaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// No strategy configured: nothing to schedule, but clear any
			// leftover entry from a previously configured strategy.
			c.cancelActiveEntry(ctx, attempt.CampaignID, attempt.LeadID)
			return nil
		}
		return fmt.Errorf("retry coordinator: load strategy: %w", err)
	}

	normalized := c.classifier.Classify(attempt)

	history, err := c.attempts.ListByLead(ctx, attempt.CampaignID, attempt.LeadID)
	if err != nil {
		return fmt.Errorf("retry coordinator: load attempt history: %w", err)
	}

	decision, err := c.evaluator.Evaluate(strategy, history, normalized)
	if err != nil {
		return fmt.Errorf("retry coordinator: evaluate: %w", err)
	}

	if decision.Retry {
		return c.scheduleRetry(ctx, strategy, attempt, normalized, decision, len(history))
	}
	return c.recordStop(ctx, attempt, normalized, decision)
}

func (c *Coordinator) scheduleRetry(ctx context.Context, strategy domain.RetryStrategy, attempt domain.AttemptRecord, normalized domain.NormalizedOutcome, decision domain.Decision, attemptsSoFar int) error {
	// decision.AttemptNumber counts the original call; the backoff sequence
	// is indexed by retry ordinal.
	retryNumber := decision.AttemptNumber - 1
	nextAt, err := backoff.NextAttemptTime(strategy, retryNumber, attempt.CompletedAt)
	if err != nil {
		return fmt.Errorf("retry coordinator: compute next attempt: %w", err)
	}

	now := time.Now().UTC()
	entry := domain.RetryQueueEntry{
		ID:            uuid.New(),
		CampaignID:    attempt.CampaignID,
		LeadID:        attempt.LeadID,
		AttemptsSoFar: attemptsSoFar,
		MaxAttempts:   strategy.MaxAttempts,
		LastOutcome:   normalized.Status,
		NextAttemptAt: nextAt,
		Status:        domain.EntryStatusQueued,
		EnqueuedAt:    now,
		UpdatedAt:     now,
	}

	// An enqueue failure must surface: silently dropping the lead from the
	// queue would lose the retry.
	if err := c.queue.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("retry coordinator: enqueue: %w", err)
	}

	c.applyStats(ctx, attempt.CampaignID, repository.StatsDelta{EnqueuedDelta: 1})
	c.publishDecision(ctx, attempt, normalized, decision, &nextAt)

	c.logger.Info("retry scheduled",
		zap.String("campaign_id", attempt.CampaignID.String()),
		zap.String("lead_id", attempt.LeadID.String()),
		zap.Int("attempt_number", decision.AttemptNumber),
		zap.Time("next_attempt_at", nextAt),
	)
	return nil
}

func (c *Coordinator) recordStop(ctx context.Context, attempt domain.AttemptRecord, normalized domain.NormalizedOutcome, decision domain.Decision) error {
	c.cancelActiveEntry(ctx, attempt.CampaignID, attempt.LeadID)
	c.applyStats(ctx, attempt.CampaignID, repository.StatsDelta{StoppedDelta: 1})
	c.publishDecision(ctx, attempt, normalized, decision, nil)

	c.logger.Info("retry stopped",
		zap.String("campaign_id", attempt.CampaignID.String()),
		zap.String("lead_id", attempt.LeadID.String()),
		zap.String("reason", string(decision.Reason)),
	)
	return nil
}

// settleRunningEntry completes the lead's running entry, if any. The entry
// was claimed by the scheduler when this attempt was dispatched; its
// completion report is the attempt we are processing now.
func (c *Coordinator) settleRunningEntry(ctx context.Context, campaignID, leadID uuid.UUID) {
	active, err := c.queue.ActiveByLead(ctx, campaignID, leadID)
	if err != nil || active.Status != domain.EntryStatusRunning {
		return
	}
	if err := c.queue.MarkCompleted(ctx, campaignID, active.ID); err != nil {
		c.logger.Error("retry coordinator: complete running entry", zap.Error(err),
			zap.String("entry_id", active.ID.String()))
		return
	}
	c.applyStats(ctx, campaignID, repository.StatsDelta{CompletedDelta: 1})
}

func (c *Coordinator) cancelActiveEntry(ctx context.Context, campaignID, leadID uuid.UUID) {
	active, err := c.queue.ActiveByLead(ctx, campaignID, leadID)
	if err != nil {
		return
	}
	if err := c.queue.Cancel(ctx, campaignID, active.ID); err != nil {
		c.logger.Error("retry coordinator: cancel entry", zap.Error(err),
			zap.String("entry_id", active.ID.String()))
	}
}

func (c *Coordinator) applyStats(ctx context.Context, campaignID uuid.UUID, delta repository.StatsDelta) {
	if c.stats == nil {
		return
	}
	if err := c.stats.ApplyDelta(ctx, campaignID, delta); err != nil {
		c.logger.Error("retry coordinator: apply stats", zap.Error(err),
			zap.String("campaign_id", campaignID.String()))
	}
}

func (c *Coordinator) publishDecision(ctx context.Context, attempt domain.AttemptRecord, normalized domain.NormalizedOutcome, decision domain.Decision, nextAt *time.Time) {
	if c.decisions == nil {
		return
	}
	msg := queue.DecisionMessage{
		CampaignID:    attempt.CampaignID,
		LeadID:        attempt.LeadID,
		AttemptNumber: attempt.AttemptNumber,
		Outcome:       string(normalized.Status),
		Retry:         decision.Retry,
		StopReason:    decision.Reason,
		NextAttemptAt: nextAt,
		OccurredAt:    time.Now().UTC(),
	}
	if err := c.decisions.PublishDecision(ctx, msg); err != nil {
		c.logger.Error("retry coordinator: publish decision", zap.Error(err))
	}
}

// ListQueue returns the campaign's queue entries for the operator view.
func (c *Coordinator) ListQueue(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.RetryQueueEntry, error) {
	return c.queue.ListByCampaign(ctx, campaignID, limit)
}

// GetEntry returns a single queue entry.
func (c *Coordinator) GetEntry(ctx context.Context, campaignID, entryID uuid.UUID) (domain.RetryQueueEntry, error) {
	return c.queue.Get(ctx, campaignID, entryID)
}

// CancelEntry cancels a queue entry on operator request. Cancelling an
// already-terminal entry is a no-op.
func (c *Coordinator) CancelEntry(ctx context.Context, campaignID, entryID uuid.UUID) error {
	if err := c.queue.Cancel(ctx, campaignID, entryID); err != nil {
		return err
	}
	c.applyStats(ctx, campaignID, repository.StatsDelta{CancelledDelta: 1})
	return nil
}

// PauseEntry pauses a queued entry.
func (c *Coordinator) PauseEntry(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return c.queue.Pause(ctx, campaignID, entryID)
}

// ResumeEntry re-queues a paused entry.
func (c *Coordinator) ResumeEntry(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return c.queue.Resume(ctx, campaignID, entryID)
}

// Stats returns the campaign's retry counters.
func (c *Coordinator) Stats(ctx context.Context, campaignID uuid.UUID) (*domain.RetryStats, error) {
	return c.stats.Get(ctx, campaignID)
}
