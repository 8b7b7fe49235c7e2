package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
)

type leadKey struct {
	campaignID uuid.UUID
	leadID     uuid.UUID
}

type storedEntry struct {
	entry domain.RetryQueueEntry
	seq   uint64
}

// RetryQueue is an in-memory implementation of
// repository.RetryQueueRepository. It backs tests and demo mode; the
// Postgres implementation is the durable one.
type RetryQueue struct {
	mu     sync.Mutex
	byLead map[leadKey]*storedEntry
	byID   map[uuid.UUID]*storedEntry
	seq    uint64
}

// NewRetryQueue creates an empty queue.
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{
		byLead: make(map[leadKey]*storedEntry),
		byID:   make(map[uuid.UUID]*storedEntry),
	}
}

// Enqueue upserts the entry, replacing any previous entry for the same
// (campaign, lead) key. The insertion sequence is refreshed on replacement.
func (q *RetryQueue) Enqueue(_ context.Context, entry domain.RetryQueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := leadKey{campaignID: entry.CampaignID, leadID: entry.LeadID}
	if prev, ok := q.byLead[key]; ok {
		delete(q.byID, prev.entry.ID)
	}

	q.seq++
	stored := &storedEntry{entry: entry, seq: q.seq}
	q.byLead[key] = stored
	q.byID[entry.ID] = stored
	return nil
}

// Get fetches an entry by id within a campaign.
func (q *RetryQueue) Get(_ context.Context, campaignID, entryID uuid.UUID) (domain.RetryQueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored, ok := q.byID[entryID]
	if !ok || stored.entry.CampaignID != campaignID {
		return domain.RetryQueueEntry{}, repository.ErrNotFound
	}
	return stored.entry, nil
}

// ActiveByLead fetches the lead's entry if it is in a non-terminal state.
func (q *RetryQueue) ActiveByLead(_ context.Context, campaignID, leadID uuid.UUID) (domain.RetryQueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored, ok := q.byLead[leadKey{campaignID: campaignID, leadID: leadID}]
	if !ok || stored.entry.Status.Terminal() {
		return domain.RetryQueueEntry{}, repository.ErrNotFound
	}
	return stored.entry, nil
}

// ListByCampaign lists the campaign's entries, soonest due first.
func (q *RetryQueue) ListByCampaign(_ context.Context, campaignID uuid.UUID, limit int) ([]domain.RetryQueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	stored := make([]*storedEntry, 0)
	for _, s := range q.byLead {
		if s.entry.CampaignID == campaignID {
			stored = append(stored, s)
		}
	}
	sortByDue(stored)

	if len(stored) > limit {
		stored = stored[:limit]
	}
	out := make([]domain.RetryQueueEntry, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.entry)
	}
	return out, nil
}

// DueEntries returns queued entries due at or before now, ordered by due
// time ascending, insertion order on ties.
func (q *RetryQueue) DueEntries(_ context.Context, now time.Time, limit int) ([]domain.RetryQueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	due := q.dueLocked(now)
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]domain.RetryQueueEntry, 0, len(due))
	for _, s := range due {
		out = append(out, s.entry)
	}
	return out, nil
}

// ClaimDue atomically marks due queued entries running and returns them.
func (q *RetryQueue) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.RetryQueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	due := q.dueLocked(now)
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]domain.RetryQueueEntry, 0, len(due))
	for _, s := range due {
		s.entry.Status = domain.EntryStatusRunning
		s.entry.UpdatedAt = now.UTC()
		out = append(out, s.entry)
	}
	return out, nil
}

func (q *RetryQueue) dueLocked(now time.Time) []*storedEntry {
	due := make([]*storedEntry, 0)
	for _, s := range q.byLead {
		if s.entry.Status == domain.EntryStatusQueued && !s.entry.NextAttemptAt.After(now) {
			due = append(due, s)
		}
	}
	sortByDue(due)
	return due
}

// UpdateNextAttempt shifts the due time of an entry without changing status.
func (q *RetryQueue) UpdateNextAttempt(_ context.Context, campaignID, entryID uuid.UUID, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored, ok := q.byID[entryID]
	if !ok || stored.entry.CampaignID != campaignID {
		return repository.ErrNotFound
	}
	stored.entry.NextAttemptAt = at
	stored.entry.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkRunning transitions queued -> running.
func (q *RetryQueue) MarkRunning(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return q.transition(campaignID, entryID, domain.EntryStatusRunning, domain.EntryStatusQueued)
}

// Requeue returns a running entry to queued with a new due time.
func (q *RetryQueue) Requeue(_ context.Context, campaignID, entryID uuid.UUID, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored, ok := q.byID[entryID]
	if !ok || stored.entry.CampaignID != campaignID {
		return repository.ErrNotFound
	}
	if stored.entry.Status != domain.EntryStatusRunning {
		return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, stored.entry.Status, domain.EntryStatusQueued)
	}
	stored.entry.Status = domain.EntryStatusQueued
	stored.entry.NextAttemptAt = at
	stored.entry.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted transitions running -> completed.
func (q *RetryQueue) MarkCompleted(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return q.transition(campaignID, entryID, domain.EntryStatusCompleted, domain.EntryStatusRunning)
}

// Pause transitions queued -> paused.
func (q *RetryQueue) Pause(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return q.transition(campaignID, entryID, domain.EntryStatusPaused, domain.EntryStatusQueued)
}

// Resume transitions paused -> queued.
func (q *RetryQueue) Resume(ctx context.Context, campaignID, entryID uuid.UUID) error {
	return q.transition(campaignID, entryID, domain.EntryStatusQueued, domain.EntryStatusPaused)
}

// Cancel transitions any non-terminal entry to cancelled; cancelling a
// terminal entry is a no-op.
func (q *RetryQueue) Cancel(_ context.Context, campaignID, entryID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored, ok := q.byID[entryID]
	if !ok || stored.entry.CampaignID != campaignID {
		return repository.ErrNotFound
	}
	if stored.entry.Status.Terminal() {
		return nil
	}
	stored.entry.Status = domain.EntryStatusCancelled
	stored.entry.UpdatedAt = time.Now().UTC()
	return nil
}

func (q *RetryQueue) transition(campaignID, entryID uuid.UUID, to domain.EntryStatus, from ...domain.EntryStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored, ok := q.byID[entryID]
	if !ok || stored.entry.CampaignID != campaignID {
		return repository.ErrNotFound
	}
	allowed := len(from) == 0
	for _, f := range from {
		if stored.entry.Status == f {
			allowed = true
		}
	}
	if !allowed || !stored.entry.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, stored.entry.Status, to)
	}
	stored.entry.Status = to
	stored.entry.UpdatedAt = time.Now().UTC()
	return nil
}

func sortByDue(entries []*storedEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].entry.NextAttemptAt.Equal(entries[j].entry.NextAttemptAt) {
			return entries[i].seq < entries[j].seq
		}
		return entries[i].entry.NextAttemptAt.Before(entries[j].entry.NextAttemptAt)
	})
}
