package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
	apperrors "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/errors"
)

type fakeRepo struct {
	mu         sync.Mutex
	strategies map[uuid.UUID]domain.RetryStrategy
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{strategies: make(map[uuid.UUID]domain.RetryStrategy)}
}

func (r *fakeRepo) Save(_ context.Context, strategy domain.RetryStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strategy.CampaignID] = strategy
	return nil
}

func (r *fakeRepo) Get(_ context.Context, campaignID uuid.UUID) (domain.RetryStrategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	strategy, ok := r.strategies[campaignID]
	if !ok {
		return domain.RetryStrategy{}, repository.ErrNotFound
	}
	return strategy, nil
}

type fakeStats struct {
	mu      sync.Mutex
	ensured map[uuid.UUID]bool
}

func newFakeStats() *fakeStats {
	return &fakeStats{ensured: make(map[uuid.UUID]bool)}
}

func (s *fakeStats) Ensure(_ context.Context, campaignID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured[campaignID] = true
	return nil
}

func (s *fakeStats) Get(_ context.Context, _ uuid.UUID) (*domain.RetryStats, error) {
	return &domain.RetryStats{}, nil
}

func (s *fakeStats) ApplyDelta(_ context.Context, _ uuid.UUID, _ repository.StatsDelta) error {
	return nil
}

func sampleStrategy(campaignID uuid.UUID) domain.RetryStrategy {
	return domain.RetryStrategy{
		CampaignID:     campaignID,
		Enabled:        true,
		Template:       domain.TemplateNoAnswer,
		MaxAttempts:    3,
		BackoffMode:    domain.BackoffModeBackoff,
		BackoffMinutes: []int{15, 30},
		Trigger: domain.Trigger{
			Statuses: []domain.OutcomeStatus{domain.OutcomeNotAnswered},
		},
	}
}

func TestSaveValidatesAndStamps(t *testing.T) {
	repo := newFakeRepo()
	stats := newFakeStats()
	svc := NewService(repo, stats)
	campaignID := uuid.New()

	saved, err := svc.Save(context.Background(), sampleStrategy(campaignID))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be stamped")
	}
	if !stats.ensured[campaignID] {
		t.Fatalf("expected stats row to be ensured")
	}

	got, err := svc.Get(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MaxAttempts != 3 {
		t.Fatalf("round trip lost data: %+v", got)
	}
}

func TestSaveRejectsInvalidStrategy(t *testing.T) {
	svc := NewService(newFakeRepo(), newFakeStats())

	bad := sampleStrategy(uuid.New())
	bad.BackoffMinutes = []int{2}
	_, err := svc.Save(context.Background(), bad)
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSaveRequiresCampaignID(t *testing.T) {
	svc := NewService(newFakeRepo(), newFakeStats())
	_, err := svc.Save(context.Background(), sampleStrategy(uuid.Nil))
	if err == nil {
		t.Fatalf("expected error for missing campaign id")
	}
}

func TestGetUnknownCampaign(t *testing.T) {
	svc := NewService(newFakeRepo(), newFakeStats())
	_, err := svc.Get(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
