package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/app"
	retrysvc "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/retry"
	strategysvc "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/strategy"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	container  *app.Container
	strategies *strategysvc.Service
	retry      *retrysvc.Coordinator
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(container *app.Container) *HandlerSet {
	services := container.Services()
	return &HandlerSet{
		container:  container,
		strategies: services.Strategy,
		retry:      services.Coordinator,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	campaigns := v1.Group("/campaigns")
	campaigns.Get("/:id/retry-strategy", h.getStrategy)
	campaigns.Put("/:id/retry-strategy", h.putStrategy)
	campaigns.Get("/:id/retry-stats", h.retryStats)
	campaigns.Get("/:id/retry-queue", h.listQueue)
	campaigns.Post("/:id/retry-queue/:entryId/cancel", h.cancelEntry)
	campaigns.Post("/:id/retry-queue/:entryId/pause", h.pauseEntry)
	campaigns.Post("/:id/retry-queue/:entryId/resume", h.resumeEntry)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.container.Logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)

	if err := h.container.Postgres.DB().PingContext(healthCtx); err != nil {
		errs["postgres"] = err.Error()
	}

	if err := h.container.Redis.Inner().Ping(healthCtx).Err(); err != nil {
		errs["redis"] = err.Error()
	}

	if err := h.container.Scylla.Session().Query("SELECT now() FROM system.local").WithContext(healthCtx).Exec(); err != nil {
		errs["scylla"] = err.Error()
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
