package eligibility

import (
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
)

// Evaluator decides whether a lead gets another attempt. It is advisory and
// has no side effects; the coordinator acts on its decisions.
//
// Which dispositions count as "converted" is not derivable from the strategy
// itself, so the set is supplied externally at construction time.
type Evaluator struct {
	converted map[string]struct{}
}

// NewEvaluator builds an evaluator with the externally supplied set of
// dispositions that indicate conversion. An empty set means stopOnConverted
// never fires.
func NewEvaluator(convertedDispositions []string) *Evaluator {
	converted := make(map[string]struct{}, len(convertedDispositions))
	for _, d := range convertedDispositions {
		converted[d] = struct{}{}
	}
	return &Evaluator{converted: converted}
}

// Evaluate applies the eligibility rules in order; the first matching rule
// wins. The original attempt counts as attempt 1, so a lead with
// len(history) >= maxAttempts has consumed its budget.
//
// A malformed strategy surfaces as a configuration error rather than being
// coerced to defaults; strategies are validated at save time, so this is
// defense in depth.
func (e *Evaluator) Evaluate(strategy domain.RetryStrategy, history []domain.AttemptRecord, latest domain.NormalizedOutcome) (domain.Decision, error) {
	if !strategy.Enabled {
		return domain.StopDecision(domain.StopReasonDisabled), nil
	}

	if err := strategy.Validate(); err != nil {
		return domain.Decision{}, err
	}

	if strategy.Guardrails.StopOnConverted && latest.Disposition != nil {
		if _, ok := e.converted[*latest.Disposition]; ok {
			return domain.StopDecision(domain.StopReasonConverted), nil
		}
	}

	if latest.Disposition != nil {
		for _, d := range strategy.Guardrails.StopDispositions {
			if d == *latest.Disposition {
				return domain.StopDecision(domain.StopReasonStopDisposition), nil
			}
		}
	}

	if len(history) >= strategy.MaxAttempts {
		return domain.StopDecision(domain.StopReasonMaxAttempts), nil
	}

	if !triggerMatches(strategy, latest) {
		return domain.StopDecision(domain.StopReasonNoTriggerMatch), nil
	}

	return domain.RetryDecision(len(history) + 1), nil
}

func triggerMatches(strategy domain.RetryStrategy, latest domain.NormalizedOutcome) bool {
	switch strategy.Template {
	case domain.TemplateNoAnswer:
		for _, st := range strategy.Trigger.Statuses {
			if st == latest.Status {
				return true
			}
		}
	case domain.TemplateDisposition:
		if latest.Disposition == nil {
			return false
		}
		for _, d := range strategy.Trigger.Dispositions {
			if d == *latest.Disposition {
				return true
			}
		}
	case domain.TemplateShortCall:
		return latest.Status == domain.OutcomeConnected &&
			latest.DurationSec < strategy.Trigger.DurationLessThanSec
	}
	return false
}
