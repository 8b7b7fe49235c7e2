package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
)

// PlacedCall records one PlaceCall invocation.
type PlacedCall struct {
	EntryID       uuid.UUID
	CampaignID    uuid.UUID
	LeadID        uuid.UUID
	AttemptNumber int
}

// Dialer is a recording dialer for tests and demo runs. It never fails
// unless primed with an error.
type Dialer struct {
	mu       sync.Mutex
	calls    []PlacedCall
	FailWith error
}

// NewDialer constructs a mock dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// PlaceCall records the dispatch.
func (d *Dialer) PlaceCall(_ context.Context, entry domain.RetryQueueEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWith != nil {
		return d.FailWith
	}
	d.calls = append(d.calls, PlacedCall{
		EntryID:       entry.ID,
		CampaignID:    entry.CampaignID,
		LeadID:        entry.LeadID,
		AttemptNumber: entry.AttemptsSoFar + 1,
	})
	return nil
}

// Calls returns a copy of recorded dispatches.
func (d *Dialer) Calls() []PlacedCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PlacedCall(nil), d.calls...)
}
