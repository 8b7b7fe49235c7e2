package attempt

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/app"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/queue"
)

// Worker consumes completed-attempt events and feeds them to the retry
// coordinator.
type Worker struct {
	container *app.Container
}

// New creates a new attempt worker.
func New(container *app.Container) *Worker {
	return &Worker{container: container}
}

// Run processes attempt events until the context is cancelled. A coordinator
// failure leaves the message uncommitted so Kafka redelivers it; malformed
// payloads are committed and dropped.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	groupID := cfg.Kafka.ConsumerGroupID + "-attempts"
	reader := w.container.Kafka.NewReader(cfg.Kafka.AttemptTopic, groupID)
	defer reader.Close()

	coordinator := w.container.Services().Coordinator
	logger := w.container.Logger
	tracer := otel.Tracer("retry.attemptworker")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("attempt worker: fetch", zap.Error(err))
			continue
		}

		var event queue.AttemptCompletedMessage
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("attempt worker: unmarshal", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		sctx, span := tracer.Start(ctx, "attempt.completed", trace.WithAttributes(
			attribute.String("campaign.id", event.CampaignID.String()),
			attribute.String("lead.id", event.LeadID.String()),
			attribute.Int("attempt", event.AttemptNumber),
		))

		if err := coordinator.OnAttemptCompleted(sctx, event.ToAttemptRecord()); err != nil {
			span.RecordError(err)
			span.End()
			logger.Error("attempt worker: process", zap.Error(err),
				zap.String("campaign_id", event.CampaignID.String()),
				zap.String("lead_id", event.LeadID.String()))
			continue
		}
		span.End()

		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("attempt worker: commit", zap.Error(err))
		}
	}
}
