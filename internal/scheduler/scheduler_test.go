package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/config"
	dialermock "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/dialer/mock"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository/memory"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/logger"
)

type fakeStrategyRepo struct {
	mu         sync.Mutex
	strategies map[uuid.UUID]domain.RetryStrategy
}

func newFakeStrategyRepo() *fakeStrategyRepo {
	return &fakeStrategyRepo{strategies: make(map[uuid.UUID]domain.RetryStrategy)}
}

func (r *fakeStrategyRepo) Save(_ context.Context, strategy domain.RetryStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strategy.CampaignID] = strategy
	return nil
}

func (r *fakeStrategyRepo) Get(_ context.Context, campaignID uuid.UUID) (domain.RetryStrategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	strategy, ok := r.strategies[campaignID]
	if !ok {
		return domain.RetryStrategy{}, repository.ErrNotFound
	}
	return strategy, nil
}

type fakeStatsRepo struct {
	mu         sync.Mutex
	dispatched map[uuid.UUID]int64
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{dispatched: make(map[uuid.UUID]int64)}
}

func (r *fakeStatsRepo) Ensure(_ context.Context, _ uuid.UUID) error { return nil }

func (r *fakeStatsRepo) Get(_ context.Context, campaignID uuid.UUID) (*domain.RetryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &domain.RetryStats{EntriesDispatched: r.dispatched[campaignID]}, nil
}

func (r *fakeStatsRepo) ApplyDelta(_ context.Context, campaignID uuid.UUID, delta repository.StatsDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched[campaignID] += delta.DispatchedDelta
	return nil
}

type fixture struct {
	scheduler  *Scheduler
	queue      *memory.RetryQueue
	strategies *fakeStrategyRepo
	stats      *fakeStatsRepo
	dialer     *dialermock.Dialer
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		queue:      memory.NewRetryQueue(),
		strategies: newFakeStrategyRepo(),
		stats:      newFakeStatsRepo(),
		dialer:     dialermock.NewDialer(),
	}
	f.scheduler = &Scheduler{
		queue:      f.queue,
		strategies: f.strategies,
		stats:      f.stats,
		dialer:     f.dialer,
		cfg:        config.SchedulerConfig{MaxBatchSize: 50},
		logger:     &logger.Logger{Logger: zap.NewNop()},
		now:        func() time.Time { return now },
	}
	return f
}

func openStrategy(campaignID uuid.UUID) domain.RetryStrategy {
	return domain.RetryStrategy{
		CampaignID:     campaignID,
		Enabled:        true,
		Template:       domain.TemplateNoAnswer,
		MaxAttempts:    3,
		BackoffMode:    domain.BackoffModeBackoff,
		BackoffMinutes: []int{15},
		Trigger: domain.Trigger{
			Statuses: []domain.OutcomeStatus{domain.OutcomeNotAnswered},
		},
	}
}

func queuedEntry(campaignID uuid.UUID, due time.Time) domain.RetryQueueEntry {
	return domain.RetryQueueEntry{
		ID:            uuid.New(),
		CampaignID:    campaignID,
		LeadID:        uuid.New(),
		AttemptsSoFar: 1,
		MaxAttempts:   3,
		LastOutcome:   domain.OutcomeNotAnswered,
		NextAttemptAt: due,
		Status:        domain.EntryStatusQueued,
		EnqueuedAt:    due.Add(-15 * time.Minute),
		UpdatedAt:     due.Add(-15 * time.Minute),
	}
}

func TestTickDispatchesDueEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC) // Monday afternoon
	f := newFixture(now)

	campaignID := uuid.New()
	if err := f.strategies.Save(ctx, openStrategy(campaignID)); err != nil {
		t.Fatalf("save strategy: %v", err)
	}

	due1 := queuedEntry(campaignID, now.Add(-10*time.Minute))
	due2 := queuedEntry(campaignID, now.Add(-5*time.Minute))
	future := queuedEntry(campaignID, now.Add(time.Hour))
	for _, e := range []domain.RetryQueueEntry{due1, due2, future} {
		if err := f.queue.Enqueue(ctx, e); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	calls := f.dialer.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(calls))
	}
	if calls[0].EntryID != due1.ID || calls[1].EntryID != due2.ID {
		t.Fatalf("dispatch order wrong: %+v", calls)
	}
	if calls[0].AttemptNumber != 2 {
		t.Fatalf("expected attempt number 2, got %d", calls[0].AttemptNumber)
	}

	for _, id := range []uuid.UUID{due1.ID, due2.ID} {
		entry, err := f.queue.Get(ctx, campaignID, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if entry.Status != domain.EntryStatusRunning {
			t.Fatalf("dispatched entry must be running, got %s", entry.Status)
		}
	}

	untouched, err := f.queue.Get(ctx, campaignID, future.ID)
	if err != nil {
		t.Fatalf("get future entry: %v", err)
	}
	if untouched.Status != domain.EntryStatusQueued {
		t.Fatalf("future entry must stay queued, got %s", untouched.Status)
	}

	stats, _ := f.stats.Get(ctx, campaignID)
	if stats.EntriesDispatched != 2 {
		t.Fatalf("expected 2 dispatched in stats, got %d", stats.EntriesDispatched)
	}
}

func TestTickDefersEntriesOutsideCallingWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC) // Monday 22:00
	f := newFixture(now)

	campaignID := uuid.New()
	strategy := openStrategy(campaignID)
	strategy.Guardrails = domain.Guardrails{
		QuietHoursEnabled: true,
		Timezone:          "UTC",
		AllowedDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		StartHour: 9,
		EndHour:   20,
	}
	if err := f.strategies.Save(ctx, strategy); err != nil {
		t.Fatalf("save strategy: %v", err)
	}

	entry := queuedEntry(campaignID, now.Add(-time.Minute))
	if err := f.queue.Enqueue(ctx, entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if calls := f.dialer.Calls(); len(calls) != 0 {
		t.Fatalf("no dispatch expected outside the window, got %d", len(calls))
	}

	got, err := f.queue.Get(ctx, campaignID, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.EntryStatusQueued {
		t.Fatalf("deferred entry must stay queued, got %s", got.Status)
	}
	want := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	if !got.NextAttemptAt.Equal(want) {
		t.Fatalf("expected deferral to %v, got %v", want, got.NextAttemptAt)
	}
}

func TestTickCancelsEntriesWithoutStrategy(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	f := newFixture(now)

	campaignID := uuid.New()
	entry := queuedEntry(campaignID, now.Add(-time.Minute))
	if err := f.queue.Enqueue(ctx, entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got, err := f.queue.Get(ctx, campaignID, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.EntryStatusCancelled {
		t.Fatalf("orphaned entry must be cancelled, got %s", got.Status)
	}
	if calls := f.dialer.Calls(); len(calls) != 0 {
		t.Fatalf("orphaned entry must not be dispatched, got %d calls", len(calls))
	}
}

func TestTickRequeuesOnDispatchFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	f := newFixture(now)
	f.dialer.FailWith = errors.New("dialer unreachable")

	campaignID := uuid.New()
	if err := f.strategies.Save(ctx, openStrategy(campaignID)); err != nil {
		t.Fatalf("save strategy: %v", err)
	}
	entry := queuedEntry(campaignID, now.Add(-time.Minute))
	if err := f.queue.Enqueue(ctx, entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got, err := f.queue.Get(ctx, campaignID, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.EntryStatusQueued {
		t.Fatalf("failed dispatch must requeue, got %s", got.Status)
	}
	if !got.NextAttemptAt.After(now) {
		t.Fatalf("requeued entry must be pushed out, got %v", got.NextAttemptAt)
	}

	stats, _ := f.stats.Get(ctx, campaignID)
	if stats.EntriesDispatched != 0 {
		t.Fatalf("failed dispatch must not count, got %d", stats.EntriesDispatched)
	}
}
