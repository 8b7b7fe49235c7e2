package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
)

func newEntry(campaignID, leadID uuid.UUID, due time.Time) domain.RetryQueueEntry {
	now := time.Now().UTC()
	return domain.RetryQueueEntry{
		ID:            uuid.New(),
		CampaignID:    campaignID,
		LeadID:        leadID,
		AttemptsSoFar: 1,
		MaxAttempts:   3,
		LastOutcome:   domain.OutcomeNotAnswered,
		NextAttemptAt: due,
		Status:        domain.EntryStatusQueued,
		EnqueuedAt:    now,
		UpdatedAt:     now,
	}
}

func TestEnqueueReplacesLeadEntry(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	leadID := uuid.New()
	due := time.Now().UTC().Add(time.Hour)

	first := newEntry(campaignID, leadID, due)
	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	second := newEntry(campaignID, leadID, due.Add(time.Hour))
	if err := q.Enqueue(ctx, second); err != nil {
		t.Fatalf("enqueue replacement: %v", err)
	}

	entries, err := q.ListByCampaign(ctx, campaignID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single entry per lead, got %d", len(entries))
	}
	if entries[0].ID != second.ID {
		t.Fatalf("expected replacement to win, got entry %s", entries[0].ID)
	}

	if _, err := q.Get(ctx, campaignID, first.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("replaced entry must be gone, got %v", err)
	}
}

func TestDueEntriesOrdering(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	third := newEntry(campaignID, uuid.New(), base.Add(5*time.Minute))
	first := newEntry(campaignID, uuid.New(), base.Add(1*time.Minute))
	second := newEntry(campaignID, uuid.New(), base.Add(3*time.Minute))
	notDue := newEntry(campaignID, uuid.New(), base.Add(time.Hour))

	for _, e := range []domain.RetryQueueEntry{third, first, second, notDue} {
		if err := q.Enqueue(ctx, e); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	due, err := q.DueEntries(ctx, base.Add(10*time.Minute), 10)
	if err != nil {
		t.Fatalf("due entries: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("expected 3 due entries, got %d", len(due))
	}
	want := []uuid.UUID{first.ID, second.ID, third.ID}
	for i, e := range due {
		if e.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, e.ID, want[i])
		}
	}
}

func TestDueEntriesTieBreaksByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	due := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	a := newEntry(campaignID, uuid.New(), due)
	b := newEntry(campaignID, uuid.New(), due)
	if err := q.Enqueue(ctx, a); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, b); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := q.DueEntries(ctx, due, 10)
	if err != nil {
		t.Fatalf("due entries: %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("tie must preserve insertion order, got %v", got)
	}
}

func TestClaimDueMarksRunning(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	due := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	entry := newEntry(campaignID, uuid.New(), due)
	if err := q.Enqueue(ctx, entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := q.ClaimDue(ctx, due, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Status != domain.EntryStatusRunning {
		t.Fatalf("expected one running entry, got %v", claimed)
	}

	// A second claim finds nothing.
	again, err := q.ClaimDue(ctx, due, 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("claimed entries must not be claimable again, got %d", len(again))
	}
}

func TestConcurrentClaimsAreExclusive(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	due := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		if err := q.Enqueue(ctx, newEntry(campaignID, uuid.New(), due)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := q.ClaimDue(ctx, due, 10)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			mu.Lock()
			for _, e := range claimed {
				seen[e.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	for id, n := range seen {
		if n > 1 {
			t.Fatalf("entry %s claimed %d times", id, n)
		}
	}
}

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	entry := newEntry(campaignID, uuid.New(), time.Now().UTC())
	if err := q.Enqueue(ctx, entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := q.Pause(ctx, campaignID, entry.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := q.MarkRunning(ctx, campaignID, entry.ID); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("paused entry must not become running, got %v", err)
	}
	if err := q.Resume(ctx, campaignID, entry.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := q.MarkRunning(ctx, campaignID, entry.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := q.Resume(ctx, campaignID, entry.ID); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("running entry must not be resumable, got %v", err)
	}
	if err := q.MarkCompleted(ctx, campaignID, entry.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := q.MarkRunning(ctx, campaignID, entry.ID); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("completed entry must be terminal, got %v", err)
	}
}

func TestRequeueReturnsRunningEntryToQueue(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	due := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	entry := newEntry(campaignID, uuid.New(), due)
	if err := q.Enqueue(ctx, entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.ClaimDue(ctx, due, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	later := due.Add(time.Minute)
	if err := q.Requeue(ctx, campaignID, entry.ID, later); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	got, err := q.Get(ctx, campaignID, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.EntryStatusQueued || !got.NextAttemptAt.Equal(later) {
		t.Fatalf("expected queued entry due at %v, got %+v", later, got)
	}

	if err := q.Requeue(ctx, campaignID, entry.ID, later); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("requeue of queued entry must fail, got %v", err)
	}
}

func TestCancelIsIdempotentOnTerminalEntries(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	entry := newEntry(campaignID, uuid.New(), time.Now().UTC())
	if err := q.Enqueue(ctx, entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := q.Cancel(ctx, campaignID, entry.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := q.Cancel(ctx, campaignID, entry.ID); err != nil {
		t.Fatalf("cancel of cancelled entry must be a no-op, got %v", err)
	}

	got, err := q.Get(ctx, campaignID, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.EntryStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	if _, err := q.ActiveByLead(ctx, campaignID, entry.LeadID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("cancelled entry must not be active, got %v", err)
	}
}

func TestUpdateNextAttemptKeepsStatus(t *testing.T) {
	ctx := context.Background()
	q := NewRetryQueue()
	campaignID := uuid.New()
	due := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	entry := newEntry(campaignID, uuid.New(), due)
	if err := q.Enqueue(ctx, entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	shifted := due.Add(2 * time.Hour)
	if err := q.UpdateNextAttempt(ctx, campaignID, entry.ID, shifted); err != nil {
		t.Fatalf("update next attempt: %v", err)
	}

	got, err := q.Get(ctx, campaignID, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.EntryStatusQueued {
		t.Fatalf("status must be unchanged, got %s", got.Status)
	}
	if !got.NextAttemptAt.Equal(shifted) {
		t.Fatalf("expected due time %v, got %v", shifted, got.NextAttemptAt)
	}
}
