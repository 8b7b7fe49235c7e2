package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
)

// DialDispatcher publishes dial instructions to the dialer's topic. It is
// the Kafka-backed implementation of the dialer.Dialer capability.
type DialDispatcher struct {
	writer *kafka.Writer
}

// NewDialDispatcher constructs a dispatcher for the given topic.
func NewDialDispatcher(k *Kafka, topic string) *DialDispatcher {
	return &DialDispatcher{writer: k.NewWriter(topic)}
}

// PlaceCall publishes a dial message keyed by lead so attempts for the same
// lead stay ordered within a partition.
func (d *DialDispatcher) PlaceCall(ctx context.Context, entry domain.RetryQueueEntry) error {
	return d.Dispatch(ctx, DialMessage{
		EntryID:       entry.ID,
		CampaignID:    entry.CampaignID,
		LeadID:        entry.LeadID,
		AttemptNumber: entry.AttemptsSoFar + 1,
		EnqueuedAt:    time.Now().UTC(),
	})
}

// Dispatch writes the dial message to Kafka.
func (d *DialDispatcher) Dispatch(ctx context.Context, msg DialMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dial dispatcher: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   msg.LeadID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := d.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("dial dispatcher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (d *DialDispatcher) Close() error {
	return d.writer.Close()
}
