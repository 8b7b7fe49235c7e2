package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
)

type queueEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	LeadID        uuid.UUID `json:"lead_id"`
	AttemptsSoFar int       `json:"attempts_so_far"`
	MaxAttempts   int       `json:"max_attempts"`
	LastOutcome   string    `json:"last_outcome"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	Status        string    `json:"status"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type listQueueResponse struct {
	Entries []queueEntryResponse `json:"entries"`
}

func (h *HandlerSet) listQueue(ctx *fiber.Ctx) error {
	campaignID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	defaultLimit := h.container.Config.Retry.QueueListLimit
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	limit, _ := strconv.Atoi(ctx.Query("limit", strconv.Itoa(defaultLimit)))

	entries, err := h.retry.ListQueue(ctx.Context(), campaignID, limit)
	if err != nil {
		return translateError(err)
	}

	resp := listQueueResponse{Entries: make([]queueEntryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, toQueueEntryResponse(entry))
	}
	return ctx.JSON(resp)
}

func (h *HandlerSet) cancelEntry(ctx *fiber.Ctx) error {
	return h.entryAction(ctx, h.retry.CancelEntry)
}

func (h *HandlerSet) pauseEntry(ctx *fiber.Ctx) error {
	return h.entryAction(ctx, h.retry.PauseEntry)
}

func (h *HandlerSet) resumeEntry(ctx *fiber.Ctx) error {
	return h.entryAction(ctx, h.retry.ResumeEntry)
}

func (h *HandlerSet) entryAction(ctx *fiber.Ctx, action func(ctx context.Context, campaignID, entryID uuid.UUID) error) error {
	campaignID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	entryID, err := uuid.Parse(ctx.Params("entryId"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid entry id")
	}

	if err := action(ctx.Context(), campaignID, entryID); err != nil {
		return translateError(err)
	}

	entry, err := h.retry.GetEntry(ctx.Context(), campaignID, entryID)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toQueueEntryResponse(entry))
}

func toQueueEntryResponse(entry domain.RetryQueueEntry) queueEntryResponse {
	return queueEntryResponse{
		ID:            entry.ID,
		CampaignID:    entry.CampaignID,
		LeadID:        entry.LeadID,
		AttemptsSoFar: entry.AttemptsSoFar,
		MaxAttempts:   entry.MaxAttempts,
		LastOutcome:   string(entry.LastOutcome),
		NextAttemptAt: entry.NextAttemptAt,
		Status:        string(entry.Status),
		EnqueuedAt:    entry.EnqueuedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}
