package eligibility

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	apperrors "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/errors"
)

func noAnswerStrategy() domain.RetryStrategy {
	return domain.RetryStrategy{
		CampaignID:     uuid.New(),
		Enabled:        true,
		Template:       domain.TemplateNoAnswer,
		MaxAttempts:    3,
		BackoffMode:    domain.BackoffModeBackoff,
		BackoffMinutes: []int{15, 30, 60},
		Trigger: domain.Trigger{
			Statuses: []domain.OutcomeStatus{domain.OutcomeNotAnswered, domain.OutcomeBusy},
		},
	}
}

func attempts(n int) []domain.AttemptRecord {
	history := make([]domain.AttemptRecord, 0, n)
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		history = append(history, domain.AttemptRecord{
			AttemptNumber: i + 1,
			Status:        "no_answer",
			CompletedAt:   base.Add(time.Duration(i) * time.Hour),
		})
	}
	return history
}

func strPtr(s string) *string { return &s }

func TestEvaluateDisabledStrategyStops(t *testing.T) {
	strategy := noAnswerStrategy()
	strategy.Enabled = false

	decision, err := NewEvaluator(nil).Evaluate(strategy, attempts(1), domain.NormalizedOutcome{Status: domain.OutcomeNotAnswered})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Retry || decision.Reason != domain.StopReasonDisabled {
		t.Fatalf("expected disabled stop, got %+v", decision)
	}
}

func TestEvaluateInvalidStrategyErrors(t *testing.T) {
	strategy := noAnswerStrategy()
	strategy.BackoffMinutes = nil

	_, err := NewEvaluator(nil).Evaluate(strategy, attempts(1), domain.NormalizedOutcome{Status: domain.OutcomeNotAnswered})
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEvaluateConvertedStops(t *testing.T) {
	strategy := noAnswerStrategy()
	strategy.Guardrails.StopOnConverted = true

	evaluator := NewEvaluator([]string{"sale_closed", "appointment_booked"})
	decision, err := evaluator.Evaluate(strategy, attempts(1), domain.NormalizedOutcome{
		Status:      domain.OutcomeNotAnswered,
		Disposition: strPtr("sale_closed"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Retry || decision.Reason != domain.StopReasonConverted {
		t.Fatalf("expected converted stop, got %+v", decision)
	}
}

func TestEvaluateConvertedWinsOverStopDisposition(t *testing.T) {
	strategy := noAnswerStrategy()
	strategy.Guardrails.StopOnConverted = true
	strategy.Guardrails.StopDispositions = []string{"sale_closed"}

	decision, err := NewEvaluator([]string{"sale_closed"}).Evaluate(strategy, attempts(1), domain.NormalizedOutcome{
		Status:      domain.OutcomeNotAnswered,
		Disposition: strPtr("sale_closed"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Reason != domain.StopReasonConverted {
		t.Fatalf("expected converted to take precedence, got %+v", decision)
	}
}

func TestEvaluateStopDisposition(t *testing.T) {
	strategy := noAnswerStrategy()
	strategy.Guardrails.StopDispositions = []string{"do_not_call"}

	decision, err := NewEvaluator(nil).Evaluate(strategy, attempts(1), domain.NormalizedOutcome{
		Status:      domain.OutcomeNotAnswered,
		Disposition: strPtr("do_not_call"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Retry || decision.Reason != domain.StopReasonStopDisposition {
		t.Fatalf("expected stop disposition, got %+v", decision)
	}
}

func TestEvaluateMaxAttemptsReached(t *testing.T) {
	strategy := noAnswerStrategy()

	decision, err := NewEvaluator(nil).Evaluate(strategy, attempts(3), domain.NormalizedOutcome{Status: domain.OutcomeNotAnswered})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Retry || decision.Reason != domain.StopReasonMaxAttempts {
		t.Fatalf("expected max attempts stop, got %+v", decision)
	}
}

func TestEvaluateNoTriggerMatch(t *testing.T) {
	strategy := noAnswerStrategy()

	decision, err := NewEvaluator(nil).Evaluate(strategy, attempts(1), domain.NormalizedOutcome{Status: domain.OutcomeConnected})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Retry || decision.Reason != domain.StopReasonNoTriggerMatch {
		t.Fatalf("expected no trigger match, got %+v", decision)
	}
}

func TestEvaluateRetryNumbersAttempts(t *testing.T) {
	strategy := noAnswerStrategy()

	decision, err := NewEvaluator(nil).Evaluate(strategy, attempts(1), domain.NormalizedOutcome{Status: domain.OutcomeNotAnswered})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Retry {
		t.Fatalf("expected retry, got %+v", decision)
	}
	if decision.AttemptNumber != 2 {
		t.Fatalf("expected attempt number 2, got %d", decision.AttemptNumber)
	}

	decision, err = NewEvaluator(nil).Evaluate(strategy, attempts(2), domain.NormalizedOutcome{Status: domain.OutcomeBusy})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Retry || decision.AttemptNumber != 3 {
		t.Fatalf("expected retry with attempt number 3, got %+v", decision)
	}
}

func TestEvaluateDispositionTemplate(t *testing.T) {
	strategy := noAnswerStrategy()
	strategy.Template = domain.TemplateDisposition
	strategy.Trigger = domain.Trigger{Dispositions: []string{"callback_requested"}}

	evaluator := NewEvaluator(nil)

	decision, err := evaluator.Evaluate(strategy, attempts(1), domain.NormalizedOutcome{
		Status:      domain.OutcomeConnected,
		Disposition: strPtr("callback_requested"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Retry {
		t.Fatalf("expected retry on matching disposition, got %+v", decision)
	}

	decision, err = evaluator.Evaluate(strategy, attempts(1), domain.NormalizedOutcome{
		Status: domain.OutcomeConnected,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Retry || decision.Reason != domain.StopReasonNoTriggerMatch {
		t.Fatalf("expected stop with missing disposition, got %+v", decision)
	}
}

func TestEvaluateShortCallTemplate(t *testing.T) {
	strategy := noAnswerStrategy()
	strategy.Template = domain.TemplateShortCall
	strategy.Trigger = domain.Trigger{DurationLessThanSec: 30}

	evaluator := NewEvaluator(nil)

	decision, err := evaluator.Evaluate(strategy, attempts(1), domain.NormalizedOutcome{
		Status:      domain.OutcomeConnected,
		DurationSec: 12,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Retry {
		t.Fatalf("expected retry on short connected call, got %+v", decision)
	}

	decision, err = evaluator.Evaluate(strategy, attempts(1), domain.NormalizedOutcome{
		Status:      domain.OutcomeConnected,
		DurationSec: 95,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Retry {
		t.Fatalf("expected stop on long call, got %+v", decision)
	}

	decision, err = evaluator.Evaluate(strategy, attempts(1), domain.NormalizedOutcome{
		Status:      domain.OutcomeNotAnswered,
		DurationSec: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Retry {
		t.Fatalf("short_call must require a connected outcome, got %+v", decision)
	}
}
