package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	apperrors "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
	// ErrInvalidTransition indicates a queue entry state-machine violation.
	ErrInvalidTransition = apperrors.ErrInvalidTransition
)

// StrategyRepository persists the per-campaign retry strategy.
type StrategyRepository interface {
	Save(ctx context.Context, strategy domain.RetryStrategy) error
	Get(ctx context.Context, campaignID uuid.UUID) (domain.RetryStrategy, error)
}

// RetryQueueRepository manages pending retry entries. Implementations keep
// at most one entry per (campaignID, leadID): Enqueue is an upsert that
// replaces any existing entry for the key.
type RetryQueueRepository interface {
	Enqueue(ctx context.Context, entry domain.RetryQueueEntry) error
	Get(ctx context.Context, campaignID, entryID uuid.UUID) (domain.RetryQueueEntry, error)
	ActiveByLead(ctx context.Context, campaignID, leadID uuid.UUID) (domain.RetryQueueEntry, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.RetryQueueEntry, error)

	// DueEntries returns queued entries with nextAttemptAt <= now, ordered
	// by nextAttemptAt ascending, ties broken by insertion order.
	DueEntries(ctx context.Context, now time.Time, limit int) ([]domain.RetryQueueEntry, error)
	// ClaimDue atomically transitions due queued entries to running and
	// returns them. Two concurrent claimers never receive the same entry.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.RetryQueueEntry, error)
	// UpdateNextAttempt shifts an entry's due time without touching its
	// status (guardrail re-evaluation).
	UpdateNextAttempt(ctx context.Context, campaignID, entryID uuid.UUID, at time.Time) error

	MarkRunning(ctx context.Context, campaignID, entryID uuid.UUID) error
	// Requeue returns a running entry to queued with a new due time, used
	// when its dispatch failed.
	Requeue(ctx context.Context, campaignID, entryID uuid.UUID, at time.Time) error
	MarkCompleted(ctx context.Context, campaignID, entryID uuid.UUID) error
	Pause(ctx context.Context, campaignID, entryID uuid.UUID) error
	Resume(ctx context.Context, campaignID, entryID uuid.UUID) error
	// Cancel transitions any non-terminal entry to cancelled. Cancelling an
	// already-terminal entry is a no-op, not an error.
	Cancel(ctx context.Context, campaignID, entryID uuid.UUID) error
}

// AttemptStore persists per-lead attempt history.
type AttemptStore interface {
	Append(ctx context.Context, attempt domain.AttemptRecord) error
	// ListByLead returns the lead's attempts ordered by attempt number.
	ListByLead(ctx context.Context, campaignID, leadID uuid.UUID) ([]domain.AttemptRecord, error)
}

// RetryStatsRepository keeps aggregate retry counters per campaign.
type RetryStatsRepository interface {
	Ensure(ctx context.Context, campaignID uuid.UUID) error
	Get(ctx context.Context, campaignID uuid.UUID) (*domain.RetryStats, error)
	ApplyDelta(ctx context.Context, campaignID uuid.UUID, delta StatsDelta) error
}

// StatsDelta captures atomic counter increments.
type StatsDelta struct {
	EnqueuedDelta   int64
	DispatchedDelta int64
	CompletedDelta  int64
	StoppedDelta    int64
	CancelledDelta  int64
}
