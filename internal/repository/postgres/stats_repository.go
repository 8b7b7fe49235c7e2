package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
)

// RetryStatsRepository implements repository.RetryStatsRepository.
type RetryStatsRepository struct {
	db *sqlx.DB
}

// NewRetryStatsRepository builds the repository.
func NewRetryStatsRepository(db *sqlx.DB) *RetryStatsRepository {
	return &RetryStatsRepository{db: db}
}

// Ensure ensures a counters row exists for the campaign.
func (r *RetryStatsRepository) Ensure(ctx context.Context, campaignID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO campaign_retry_stats (campaign_id)
		VALUES ($1) ON CONFLICT (campaign_id) DO NOTHING`, campaignID)
	if err != nil {
		return fmt.Errorf("retry stats: ensure: %w", err)
	}
	return nil
}

// Get retrieves counters for a campaign.
func (r *RetryStatsRepository) Get(ctx context.Context, campaignID uuid.UUID) (*domain.RetryStats, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT entries_enqueued, entries_dispatched, entries_completed, entries_cancelled, stops_issued
		FROM campaign_retry_stats WHERE campaign_id = $1`, campaignID)

	var stats domain.RetryStats
	if err := row.StructScan(&stats); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("retry stats: get: %w", err)
	}
	return &stats, nil
}

// ApplyDelta applies counter deltas atomically.
func (r *RetryStatsRepository) ApplyDelta(ctx context.Context, campaignID uuid.UUID, delta repository.StatsDelta) error {
	_, err := r.db.ExecContext(ctx, `UPDATE campaign_retry_stats SET
		entries_enqueued = entries_enqueued + $2,
		entries_dispatched = entries_dispatched + $3,
		entries_completed = entries_completed + $4,
		entries_cancelled = entries_cancelled + $5,
		stops_issued = stops_issued + $6,
		updated_at = NOW()
	WHERE campaign_id = $1`,
		campaignID,
		delta.EnqueuedDelta,
		delta.DispatchedDelta,
		delta.CompletedDelta,
		delta.CancelledDelta,
		delta.StoppedDelta,
	)
	if err != nil {
		return fmt.Errorf("retry stats: apply delta: %w", err)
	}
	return nil
}
