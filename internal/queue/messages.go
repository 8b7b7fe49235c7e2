package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
)

// AttemptCompletedMessage is published by the dialer after each call attempt
// finishes. Status carries the provider's raw status string.
type AttemptCompletedMessage struct {
	CampaignID    uuid.UUID `json:"campaign_id"`
	LeadID        uuid.UUID `json:"lead_id"`
	AttemptNumber int       `json:"attempt_number"`
	Status        string    `json:"status"`
	Disposition   *string   `json:"disposition,omitempty"`
	DurationSec   int       `json:"duration_sec"`
	CompletedAt   time.Time `json:"completed_at"`
}

// ToAttemptRecord converts the wire message into the domain record.
func (m AttemptCompletedMessage) ToAttemptRecord() domain.AttemptRecord {
	return domain.AttemptRecord{
		CampaignID:    m.CampaignID,
		LeadID:        m.LeadID,
		AttemptNumber: m.AttemptNumber,
		Status:        m.Status,
		Disposition:   m.Disposition,
		DurationSec:   m.DurationSec,
		CompletedAt:   m.CompletedAt,
	}
}

// DialMessage instructs the dialer to place the next attempt for a lead.
type DialMessage struct {
	EntryID       uuid.UUID `json:"entry_id"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	LeadID        uuid.UUID `json:"lead_id"`
	AttemptNumber int       `json:"attempt_number"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// DecisionMessage is an audit event emitted for every evaluated attempt so
// the analytics side can follow retry/stop decisions.
type DecisionMessage struct {
	CampaignID    uuid.UUID         `json:"campaign_id"`
	LeadID        uuid.UUID         `json:"lead_id"`
	AttemptNumber int               `json:"attempt_number"`
	Outcome       string            `json:"outcome"`
	Retry         bool              `json:"retry"`
	StopReason    domain.StopReason `json:"stop_reason,omitempty"`
	NextAttemptAt *time.Time        `json:"next_attempt_at,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
