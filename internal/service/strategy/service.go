package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
)

// Service manages the per-campaign retry strategy. Invalid strategies are
// rejected at save time; nothing downstream ever sees an unvalidated one.
type Service struct {
	repo  repository.StrategyRepository
	stats repository.RetryStatsRepository
}

// NewService constructs a strategy service.
func NewService(repo repository.StrategyRepository, stats repository.RetryStatsRepository) *Service {
	return &Service{repo: repo, stats: stats}
}

// Save validates and persists the campaign's strategy.
func (s *Service) Save(ctx context.Context, strategy domain.RetryStrategy) (domain.RetryStrategy, error) {
	if strategy.CampaignID == uuid.Nil {
		return domain.RetryStrategy{}, fmt.Errorf("strategy service: campaign id is required")
	}
	if err := strategy.Validate(); err != nil {
		return domain.RetryStrategy{}, err
	}

	strategy.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, strategy); err != nil {
		return domain.RetryStrategy{}, fmt.Errorf("strategy service: save: %w", err)
	}

	if err := s.stats.Ensure(ctx, strategy.CampaignID); err != nil {
		return domain.RetryStrategy{}, fmt.Errorf("strategy service: ensure stats: %w", err)
	}

	return strategy, nil
}

// Get retrieves the campaign's strategy.
func (s *Service) Get(ctx context.Context, campaignID uuid.UUID) (domain.RetryStrategy, error) {
	return s.repo.Get(ctx, campaignID)
}
