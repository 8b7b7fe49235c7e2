package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
)

// AttemptStore persists per-lead attempt history in Scylla. Attempts are
// partitioned by (campaign_id, lead_id) and clustered by attempt_number, so
// a lead's full history is a single-partition read.
type AttemptStore struct {
	session *gocql.Session
}

// NewAttemptStore creates a new attempt store.
func NewAttemptStore(session *gocql.Session) *AttemptStore {
	return &AttemptStore{session: session}
}

// Append inserts an attempt record. Records are immutable once written.
func (s *AttemptStore) Append(ctx context.Context, attempt domain.AttemptRecord) error {
	if err := s.session.Query(`INSERT INTO attempts_by_lead (campaign_id, lead_id, attempt_number, status, disposition, duration_sec, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.CampaignID.String(), attempt.LeadID.String(), attempt.AttemptNumber,
		attempt.Status, attempt.Disposition, attempt.DurationSec, attempt.CompletedAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("attempt store: insert attempt: %w", err)
	}
	return nil
}

// ListByLead returns the lead's attempts ordered by attempt number.
func (s *AttemptStore) ListByLead(ctx context.Context, campaignID, leadID uuid.UUID) ([]domain.AttemptRecord, error) {
	iter := s.session.Query(`SELECT attempt_number, status, disposition, duration_sec, completed_at
		FROM attempts_by_lead WHERE campaign_id = ? AND lead_id = ?
		ORDER BY attempt_number ASC`, campaignID.String(), leadID.String()).
		WithContext(ctx).Iter()

	var (
		results     []domain.AttemptRecord
		number      int
		status      string
		disposition *string
		durationSec int
		completedAt time.Time
	)

	for iter.Scan(&number, &status, &disposition, &durationSec, &completedAt) {
		record := domain.AttemptRecord{
			LeadID:        leadID,
			CampaignID:    campaignID,
			AttemptNumber: number,
			Status:        status,
			DurationSec:   durationSec,
			CompletedAt:   completedAt,
		}
		if disposition != nil {
			d := *disposition
			record.Disposition = &d
		}
		results = append(results, record)
		disposition = nil
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("attempt store: list by lead: %w", err)
	}
	return results, nil
}
