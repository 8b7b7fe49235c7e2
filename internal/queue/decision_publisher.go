package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DecisionPublisher emits retry/stop decision audit events.
type DecisionPublisher struct {
	writer *kafka.Writer
}

// NewDecisionPublisher constructs a publisher for the given topic.
func NewDecisionPublisher(k *Kafka, topic string) *DecisionPublisher {
	return &DecisionPublisher{writer: k.NewWriter(topic)}
}

// PublishDecision emits a decision message to Kafka.
func (p *DecisionPublisher) PublishDecision(ctx context.Context, msg DecisionMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("decision publisher: marshal message: %w", err)
	}
	record := kafka.Message{
		Key:   msg.LeadID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("decision publisher: write message: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *DecisionPublisher) Close() error {
	return p.writer.Close()
}
