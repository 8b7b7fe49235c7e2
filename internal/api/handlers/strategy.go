package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
)

type strategyRequest struct {
	Enabled           bool              `json:"enabled"`
	Template          string            `json:"template"`
	MaxAttempts       int               `json:"max_attempts"`
	BackoffMode       string            `json:"backoff_mode"`
	MinMinutesBetween int               `json:"min_minutes_between"`
	BackoffMinutes    []int             `json:"backoff_minutes"`
	Trigger           triggerRequest    `json:"trigger"`
	Guardrails        guardrailsRequest `json:"guardrails"`
}

type triggerRequest struct {
	Statuses            []string `json:"statuses"`
	Dispositions        []string `json:"dispositions"`
	DurationLessThanSec int      `json:"duration_less_than_sec"`
}

type guardrailsRequest struct {
	StopOnConverted   bool     `json:"stop_on_converted"`
	StopDispositions  []string `json:"stop_dispositions"`
	QuietHoursEnabled bool     `json:"quiet_hours_enabled"`
	Timezone          string   `json:"timezone"`
	AllowedDays       []int    `json:"allowed_days"`
	StartHour         int      `json:"start_hour"`
	EndHour           int      `json:"end_hour"`
}

type strategyResponse struct {
	CampaignID        uuid.UUID          `json:"campaign_id"`
	Enabled           bool               `json:"enabled"`
	Template          string             `json:"template"`
	MaxAttempts       int                `json:"max_attempts"`
	BackoffMode       string             `json:"backoff_mode"`
	MinMinutesBetween int                `json:"min_minutes_between"`
	BackoffMinutes    []int              `json:"backoff_minutes"`
	Trigger           triggerResponse    `json:"trigger"`
	Guardrails        guardrailsResponse `json:"guardrails"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type triggerResponse struct {
	Statuses            []string `json:"statuses"`
	Dispositions        []string `json:"dispositions"`
	DurationLessThanSec int      `json:"duration_less_than_sec"`
}

type guardrailsResponse struct {
	StopOnConverted   bool     `json:"stop_on_converted"`
	StopDispositions  []string `json:"stop_dispositions"`
	QuietHoursEnabled bool     `json:"quiet_hours_enabled"`
	Timezone          string   `json:"timezone"`
	AllowedDays       []int    `json:"allowed_days"`
	StartHour         int      `json:"start_hour"`
	EndHour           int      `json:"end_hour"`
}

type retryStatsResponse struct {
	EntriesEnqueued   int64 `json:"entries_enqueued"`
	EntriesDispatched int64 `json:"entries_dispatched"`
	EntriesCompleted  int64 `json:"entries_completed"`
	EntriesCancelled  int64 `json:"entries_cancelled"`
	StopsIssued       int64 `json:"stops_issued"`
}

func (h *HandlerSet) getStrategy(ctx *fiber.Ctx) error {
	campaignID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	strategy, err := h.strategies.Get(ctx.Context(), campaignID)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toStrategyResponse(strategy))
}

func (h *HandlerSet) putStrategy(ctx *fiber.Ctx) error {
	campaignID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	var req strategyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	saved, err := h.strategies.Save(ctx.Context(), toStrategyDomain(campaignID, req))
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toStrategyResponse(saved))
}

func (h *HandlerSet) retryStats(ctx *fiber.Ctx) error {
	campaignID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	stats, err := h.retry.Stats(ctx.Context(), campaignID)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(retryStatsResponse{
		EntriesEnqueued:   stats.EntriesEnqueued,
		EntriesDispatched: stats.EntriesDispatched,
		EntriesCompleted:  stats.EntriesCompleted,
		EntriesCancelled:  stats.EntriesCancelled,
		StopsIssued:       stats.StopsIssued,
	})
}

func toStrategyDomain(campaignID uuid.UUID, req strategyRequest) domain.RetryStrategy {
	statuses := make([]domain.OutcomeStatus, 0, len(req.Trigger.Statuses))
	for _, s := range req.Trigger.Statuses {
		statuses = append(statuses, domain.OutcomeStatus(s))
	}
	days := make([]time.Weekday, 0, len(req.Guardrails.AllowedDays))
	for _, d := range req.Guardrails.AllowedDays {
		days = append(days, time.Weekday(d))
	}

	return domain.RetryStrategy{
		CampaignID:        campaignID,
		Enabled:           req.Enabled,
		Template:          domain.StrategyTemplate(req.Template),
		MaxAttempts:       req.MaxAttempts,
		BackoffMode:       domain.BackoffMode(req.BackoffMode),
		MinMinutesBetween: req.MinMinutesBetween,
		BackoffMinutes:    req.BackoffMinutes,
		Trigger: domain.Trigger{
			Statuses:            statuses,
			Dispositions:        req.Trigger.Dispositions,
			DurationLessThanSec: req.Trigger.DurationLessThanSec,
		},
		Guardrails: domain.Guardrails{
			StopOnConverted:   req.Guardrails.StopOnConverted,
			StopDispositions:  req.Guardrails.StopDispositions,
			QuietHoursEnabled: req.Guardrails.QuietHoursEnabled,
			Timezone:          req.Guardrails.Timezone,
			AllowedDays:       days,
			StartHour:         req.Guardrails.StartHour,
			EndHour:           req.Guardrails.EndHour,
		},
	}
}

func toStrategyResponse(strategy domain.RetryStrategy) strategyResponse {
	statuses := make([]string, 0, len(strategy.Trigger.Statuses))
	for _, s := range strategy.Trigger.Statuses {
		statuses = append(statuses, string(s))
	}
	days := make([]int, 0, len(strategy.Guardrails.AllowedDays))
	for _, d := range strategy.Guardrails.AllowedDays {
		days = append(days, int(d))
	}

	return strategyResponse{
		CampaignID:        strategy.CampaignID,
		Enabled:           strategy.Enabled,
		Template:          string(strategy.Template),
		MaxAttempts:       strategy.MaxAttempts,
		BackoffMode:       string(strategy.BackoffMode),
		MinMinutesBetween: strategy.MinMinutesBetween,
		BackoffMinutes:    strategy.BackoffMinutes,
		Trigger: triggerResponse{
			Statuses:            statuses,
			Dispositions:        strategy.Trigger.Dispositions,
			DurationLessThanSec: strategy.Trigger.DurationLessThanSec,
		},
		Guardrails: guardrailsResponse{
			StopOnConverted:   strategy.Guardrails.StopOnConverted,
			StopDispositions:  strategy.Guardrails.StopDispositions,
			QuietHoursEnabled: strategy.Guardrails.QuietHoursEnabled,
			Timezone:          strategy.Guardrails.Timezone,
			AllowedDays:       days,
			StartHour:         strategy.Guardrails.StartHour,
			EndHour:           strategy.Guardrails.EndHour,
		},
		UpdatedAt: strategy.UpdatedAt,
	}
}
