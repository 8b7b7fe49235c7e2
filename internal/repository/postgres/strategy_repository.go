package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
)

// StrategyRepository implements repository.StrategyRepository using PostgreSQL.
// Trigger and guardrail sets are stored as JSON columns alongside the scalar
// policy fields; the whole strategy is one row per campaign.
type StrategyRepository struct {
	db *sqlx.DB
}

// NewStrategyRepository constructs a new repository.
func NewStrategyRepository(db *sqlx.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

// Save upserts the campaign's strategy.
func (r *StrategyRepository) Save(ctx context.Context, strategy domain.RetryStrategy) error {
	record, err := toStrategyRecord(strategy)
	if err != nil {
		return err
	}

	q := `INSERT INTO campaign_retry_strategies (
		campaign_id, enabled, template, max_attempts, backoff_mode, min_minutes_between,
		backoff_minutes, trigger_statuses, trigger_dispositions, trigger_duration_lt_sec,
		stop_on_converted, stop_dispositions, quiet_hours_enabled, timezone,
		allowed_days, start_hour, end_hour, updated_at
	) VALUES (
		:campaign_id, :enabled, :template, :max_attempts, :backoff_mode, :min_minutes_between,
		:backoff_minutes, :trigger_statuses, :trigger_dispositions, :trigger_duration_lt_sec,
		:stop_on_converted, :stop_dispositions, :quiet_hours_enabled, :timezone,
		:allowed_days, :start_hour, :end_hour, :updated_at
	) ON CONFLICT (campaign_id) DO UPDATE SET
		enabled = EXCLUDED.enabled,
		template = EXCLUDED.template,
		max_attempts = EXCLUDED.max_attempts,
		backoff_mode = EXCLUDED.backoff_mode,
		min_minutes_between = EXCLUDED.min_minutes_between,
		backoff_minutes = EXCLUDED.backoff_minutes,
		trigger_statuses = EXCLUDED.trigger_statuses,
		trigger_dispositions = EXCLUDED.trigger_dispositions,
		trigger_duration_lt_sec = EXCLUDED.trigger_duration_lt_sec,
		stop_on_converted = EXCLUDED.stop_on_converted,
		stop_dispositions = EXCLUDED.stop_dispositions,
		quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
		timezone = EXCLUDED.timezone,
		allowed_days = EXCLUDED.allowed_days,
		start_hour = EXCLUDED.start_hour,
		end_hour = EXCLUDED.end_hour,
		updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, q, record); err != nil {
		return fmt.Errorf("strategy repo: upsert: %w", err)
	}
	return nil
}

// Get fetches the strategy for a campaign.
func (r *StrategyRepository) Get(ctx context.Context, campaignID uuid.UUID) (domain.RetryStrategy, error) {
	q := `SELECT campaign_id, enabled, template, max_attempts, backoff_mode, min_minutes_between,
		backoff_minutes, trigger_statuses, trigger_dispositions, trigger_duration_lt_sec,
		stop_on_converted, stop_dispositions, quiet_hours_enabled, timezone,
		allowed_days, start_hour, end_hour, updated_at
	  FROM campaign_retry_strategies WHERE campaign_id = $1`

	row := r.db.QueryRowxContext(ctx, q, campaignID)
	var record strategyRecord
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return domain.RetryStrategy{}, repository.ErrNotFound
		}
		return domain.RetryStrategy{}, fmt.Errorf("strategy repo: get: %w", err)
	}

	return record.toDomain()
}

type strategyRecord struct {
	CampaignID           uuid.UUID `db:"campaign_id"`
	Enabled              bool      `db:"enabled"`
	Template             string    `db:"template"`
	MaxAttempts          int       `db:"max_attempts"`
	BackoffMode          string    `db:"backoff_mode"`
	MinMinutesBetween    int       `db:"min_minutes_between"`
	BackoffMinutes       []byte    `db:"backoff_minutes"`
	TriggerStatuses      []byte    `db:"trigger_statuses"`
	TriggerDispositions  []byte    `db:"trigger_dispositions"`
	TriggerDurationLtSec int       `db:"trigger_duration_lt_sec"`
	StopOnConverted      bool      `db:"stop_on_converted"`
	StopDispositions     []byte    `db:"stop_dispositions"`
	QuietHoursEnabled    bool      `db:"quiet_hours_enabled"`
	Timezone             string    `db:"timezone"`
	AllowedDays          []byte    `db:"allowed_days"`
	StartHour            int       `db:"start_hour"`
	EndHour              int       `db:"end_hour"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func toStrategyRecord(s domain.RetryStrategy) (map[string]any, error) {
	backoffMinutes, err := json.Marshal(s.BackoffMinutes)
	if err != nil {
		return nil, fmt.Errorf("strategy repo: marshal backoff minutes: %w", err)
	}
	statuses, err := json.Marshal(s.Trigger.Statuses)
	if err != nil {
		return nil, fmt.Errorf("strategy repo: marshal trigger statuses: %w", err)
	}
	dispositions, err := json.Marshal(s.Trigger.Dispositions)
	if err != nil {
		return nil, fmt.Errorf("strategy repo: marshal trigger dispositions: %w", err)
	}
	stopDispositions, err := json.Marshal(s.Guardrails.StopDispositions)
	if err != nil {
		return nil, fmt.Errorf("strategy repo: marshal stop dispositions: %w", err)
	}
	allowedDays, err := json.Marshal(s.Guardrails.AllowedDays)
	if err != nil {
		return nil, fmt.Errorf("strategy repo: marshal allowed days: %w", err)
	}

	return map[string]any{
		"campaign_id":             s.CampaignID,
		"enabled":                 s.Enabled,
		"template":                string(s.Template),
		"max_attempts":            s.MaxAttempts,
		"backoff_mode":            string(s.BackoffMode),
		"min_minutes_between":     s.MinMinutesBetween,
		"backoff_minutes":         backoffMinutes,
		"trigger_statuses":        statuses,
		"trigger_dispositions":    dispositions,
		"trigger_duration_lt_sec": s.Trigger.DurationLessThanSec,
		"stop_on_converted":       s.Guardrails.StopOnConverted,
		"stop_dispositions":       stopDispositions,
		"quiet_hours_enabled":     s.Guardrails.QuietHoursEnabled,
		"timezone":                s.Guardrails.Timezone,
		"allowed_days":            allowedDays,
		"start_hour":              s.Guardrails.StartHour,
		"end_hour":                s.Guardrails.EndHour,
		"updated_at":              s.UpdatedAt,
	}, nil
}

func (r strategyRecord) toDomain() (domain.RetryStrategy, error) {
	strategy := domain.RetryStrategy{
		CampaignID:        r.CampaignID,
		Enabled:           r.Enabled,
		Template:          domain.StrategyTemplate(r.Template),
		MaxAttempts:       r.MaxAttempts,
		BackoffMode:       domain.BackoffMode(r.BackoffMode),
		MinMinutesBetween: r.MinMinutesBetween,
		Trigger: domain.Trigger{
			DurationLessThanSec: r.TriggerDurationLtSec,
		},
		Guardrails: domain.Guardrails{
			StopOnConverted:   r.StopOnConverted,
			QuietHoursEnabled: r.QuietHoursEnabled,
			Timezone:          r.Timezone,
			StartHour:         r.StartHour,
			EndHour:           r.EndHour,
		},
		UpdatedAt: r.UpdatedAt,
	}

	if err := json.Unmarshal(r.BackoffMinutes, &strategy.BackoffMinutes); err != nil {
		return domain.RetryStrategy{}, fmt.Errorf("strategy repo: unmarshal backoff minutes: %w", err)
	}
	if err := json.Unmarshal(r.TriggerStatuses, &strategy.Trigger.Statuses); err != nil {
		return domain.RetryStrategy{}, fmt.Errorf("strategy repo: unmarshal trigger statuses: %w", err)
	}
	if err := json.Unmarshal(r.TriggerDispositions, &strategy.Trigger.Dispositions); err != nil {
		return domain.RetryStrategy{}, fmt.Errorf("strategy repo: unmarshal trigger dispositions: %w", err)
	}
	if err := json.Unmarshal(r.StopDispositions, &strategy.Guardrails.StopDispositions); err != nil {
		return domain.RetryStrategy{}, fmt.Errorf("strategy repo: unmarshal stop dispositions: %w", err)
	}
	if err := json.Unmarshal(r.AllowedDays, &strategy.Guardrails.AllowedDays); err != nil {
		return domain.RetryStrategy{}, fmt.Errorf("strategy repo: unmarshal allowed days: %w", err)
	}

	return strategy, nil
}
