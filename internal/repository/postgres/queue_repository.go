package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
)

const entryColumns = `id, campaign_id, lead_id, attempts_so_far, max_attempts, last_outcome, next_attempt_at, status, enqueued_at, updated_at`

// RetryQueueRepository implements repository.RetryQueueRepository using
// PostgreSQL. A unique index on (campaign_id, lead_id) enforces the
// one-entry-per-lead invariant; Enqueue relies on it for the upsert.
type RetryQueueRepository struct {
	db *sqlx.DB
}

// NewRetryQueueRepository constructs the repository.
func NewRetryQueueRepository(db *sqlx.DB) *RetryQueueRepository {
	return &RetryQueueRepository{db: db}
}

// Enqueue upserts the entry, replacing any previous entry for the same
// (campaign, lead) key.
func (r *RetryQueueRepository) Enqueue(ctx context.Context, entry domain.RetryQueueEntry) error {
	q := `INSERT INTO retry_queue_entries (
		id, campaign_id, lead_id, attempts_so_far, max_attempts, last_outcome, next_attempt_at, status, enqueued_at, updated_at
	) VALUES (:id, :campaign_id, :lead_id, :attempts_so_far, :max_attempts, :last_outcome, :next_attempt_at, :status, :enqueued_at, :updated_at)
	ON CONFLICT (campaign_id, lead_id) DO UPDATE SET
		id = EXCLUDED.id,
		attempts_so_far = EXCLUDED.attempts_so_far,
		max_attempts = EXCLUDED.max_attempts,
		last_outcome = EXCLUDED.last_outcome,
		next_attempt_at = EXCLUDED.next_attempt_at,
		status = EXCLUDED.status,
		enqueued_at = EXCLUDED.enqueued_at,
		updated_at = EXCLUDED.updated_at`

	params := map[string]any{
		"id":              entry.ID,
		"campaign_id":     entry.CampaignID,
		"lead_id":         entry.LeadID,
		"attempts_so_far": entry.AttemptsSoFar,
		"max_attempts":    entry.MaxAttempts,
		"last_outcome":    string(entry.LastOutcome),
		"next_attempt_at": entry.NextAttemptAt,
		"status":          string(entry.Status),
		"enqueued_at":     entry.EnqueuedAt,
		"updated_at":      entry.UpdatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("retry queue repo: enqueue: %w", err)
	}
	return nil
}

// Get fetches an entry by id within a campaign.
func (r *RetryQueueRepository) Get(ctx context.Context, campaignID, entryID uuid.UUID) (domain.RetryQueueEntry, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+entryColumns+` FROM retry_queue_entries WHERE campaign_id = $1 AND id = $2`, campaignID, entryID)
	var rec entryRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return domain.RetryQueueEntry{}, repository.ErrNotFound
		}
		return domain.RetryQueueEntry{}, fmt.Errorf("retry queue repo: get: %w", err)
	}
	return rec.toDomain(), nil
}

// ActiveByLead fetches the lead's entry if it is in a non-terminal state.
func (r *RetryQueueRepository) ActiveByLead(ctx context.Context, campaignID, leadID uuid.UUID) (domain.RetryQueueEntry, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+entryColumns+` FROM retry_queue_entries
		WHERE campaign_id = $1 AND lead_id = $2 AND status IN ('queued', 'running', 'paused')`, campaignID, leadID)
	var rec entryRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return domain.RetryQueueEntry{}, repository.ErrNotFound
		}
		return domain.RetryQueueEntry{}, fmt.Errorf("retry queue repo: active by lead: %w", err)
	}
	return rec.toDomain(), nil
}

// ListByCampaign lists entries for the campaign, soonest due first.
func (r *RetryQueueRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.RetryQueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryxContext(ctx, `SELECT `+entryColumns+` FROM retry_queue_entries
		WHERE campaign_id = $1 ORDER BY next_attempt_at ASC, enqueued_at ASC, id ASC LIMIT $2`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("retry queue repo: list: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// DueEntries returns queued entries due at or before now.
func (r *RetryQueueRepository) DueEntries(ctx context.Context, now time.Time, limit int) ([]domain.RetryQueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryxContext(ctx, `SELECT `+entryColumns+` FROM retry_queue_entries
		WHERE status = 'queued' AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC, enqueued_at ASC, id ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("retry queue repo: due entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ClaimDue atomically marks due queued entries running and returns them.
// SKIP LOCKED keeps concurrent scheduler workers from claiming the same rows.
func (r *RetryQueueRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.RetryQueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var claimed []domain.RetryQueueEntry
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		rows, err := tx.QueryxContext(ctx, `SELECT `+entryColumns+` FROM retry_queue_entries
			WHERE status = 'queued' AND next_attempt_at <= $1
			ORDER BY next_attempt_at ASC, enqueued_at ASC, id ASC
			LIMIT $2 FOR UPDATE SKIP LOCKED`, now, limit)
		if err != nil {
			return fmt.Errorf("retry queue repo: select for claim: %w", err)
		}
		entries, err := scanEntries(rows)
		rows.Close()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE retry_queue_entries SET status = 'running', updated_at = $1 WHERE id = ANY($2)`, now.UTC(), ids); err != nil {
			return fmt.Errorf("retry queue repo: mark claimed: %w", err)
		}

		for i := range entries {
			entries[i].Status = domain.EntryStatusRunning
			entries[i].UpdatedAt = now.UTC()
		}
		claimed = entries
		return nil
	})
	return claimed, err
}

// UpdateNextAttempt shifts the due time of an entry without changing status.
func (r *RetryQueueRepository) UpdateNextAttempt(ctx context.Context, campaignID, entryID uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE retry_queue_entries SET next_attempt_at = $1, updated_at = NOW()
		WHERE campaign_id = $2 AND id = $3`, at, campaignID, entryID)
	if err != nil {
		return fmt.Errorf("retry queue repo: update next attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retry queue repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkRunning transitions queued -> running.
func (r *RetryQueueRepository) MarkRunning(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return r.transition(ctx, campaignID, entryID, domain.EntryStatusRunning, domain.EntryStatusQueued)
}

// Requeue returns a running entry to queued with a new due time.
func (r *RetryQueueRepository) Requeue(ctx context.Context, campaignID, entryID uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE retry_queue_entries SET status = $1, next_attempt_at = $2, updated_at = NOW()
		WHERE campaign_id = $3 AND id = $4 AND status = $5`,
		string(domain.EntryStatusQueued), at, campaignID, entryID, string(domain.EntryStatusRunning))
	if err != nil {
		return fmt.Errorf("retry queue repo: requeue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retry queue repo: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	entry, err := r.Get(ctx, campaignID, entryID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, entry.Status, domain.EntryStatusQueued)
}

// MarkCompleted transitions running -> completed.
func (r *RetryQueueRepository) MarkCompleted(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return r.transition(ctx, campaignID, entryID, domain.EntryStatusCompleted, domain.EntryStatusRunning)
}

// Pause transitions queued -> paused.
func (r *RetryQueueRepository) Pause(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return r.transition(ctx, campaignID, entryID, domain.EntryStatusPaused, domain.EntryStatusQueued)
}

// Resume transitions paused -> queued.
func (r *RetryQueueRepository) Resume(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return r.transition(ctx, campaignID, entryID, domain.EntryStatusQueued, domain.EntryStatusPaused)
}

// Cancel transitions any non-terminal entry to cancelled; cancelling a
// terminal entry is a no-op.
func (r *RetryQueueRepository) Cancel(ctx context.Context, campaignID, entryID uuid.UUID) error {
	err := r.transition(ctx, campaignID, entryID, domain.EntryStatusCancelled,
		domain.EntryStatusQueued, domain.EntryStatusRunning, domain.EntryStatusPaused)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return nil
	}
	return err
}

func (r *RetryQueueRepository) transition(ctx context.Context, campaignID, entryID uuid.UUID, to domain.EntryStatus, from ...domain.EntryStatus) error {
	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}

	res, err := r.db.ExecContext(ctx, `UPDATE retry_queue_entries SET status = $1, updated_at = NOW()
		WHERE campaign_id = $2 AND id = $3 AND status = ANY($4)`, string(to), campaignID, entryID, states)
	if err != nil {
		return fmt.Errorf("retry queue repo: transition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retry queue repo: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Distinguish a missing entry from a state-machine violation.
	entry, err := r.Get(ctx, campaignID, entryID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, entry.Status, to)
}

type entryRecord struct {
	ID            uuid.UUID `db:"id"`
	CampaignID    uuid.UUID `db:"campaign_id"`
	LeadID        uuid.UUID `db:"lead_id"`
	AttemptsSoFar int       `db:"attempts_so_far"`
	MaxAttempts   int       `db:"max_attempts"`
	LastOutcome   string    `db:"last_outcome"`
	NextAttemptAt time.Time `db:"next_attempt_at"`
	Status        string    `db:"status"`
	EnqueuedAt    time.Time `db:"enqueued_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r entryRecord) toDomain() domain.RetryQueueEntry {
	return domain.RetryQueueEntry{
		ID:            r.ID,
		CampaignID:    r.CampaignID,
		LeadID:        r.LeadID,
		AttemptsSoFar: r.AttemptsSoFar,
		MaxAttempts:   r.MaxAttempts,
		LastOutcome:   domain.OutcomeStatus(r.LastOutcome),
		NextAttemptAt: r.NextAttemptAt,
		Status:        domain.EntryStatus(r.Status),
		EnqueuedAt:    r.EnqueuedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func scanEntries(rows *sqlx.Rows) ([]domain.RetryQueueEntry, error) {
	var results []domain.RetryQueueEntry
	for rows.Next() {
		var rec entryRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("retry queue repo: scan: %w", err)
		}
		results = append(results, rec.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retry queue repo: rows err: %w", err)
	}
	return results, nil
}
