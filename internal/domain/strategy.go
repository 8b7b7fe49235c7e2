package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/errors"
)

// StrategyTemplate selects which trigger fields of a strategy are authoritative.
type StrategyTemplate string

const (
	TemplateNoAnswer    StrategyTemplate = "no_answer"
	TemplateDisposition StrategyTemplate = "disposition"
	TemplateShortCall   StrategyTemplate = "short_call"
)

// BackoffMode selects how the delay between attempts is computed.
type BackoffMode string

const (
	BackoffModeFixed   BackoffMode = "fixed"
	BackoffModeBackoff BackoffMode = "backoff"
)

// MinDelayMinutes is the smallest permitted delay between attempts.
const MinDelayMinutes = 5

// MaxAttemptsCeiling bounds the configurable attempt count per lead.
const MaxAttemptsCeiling = 10

// Trigger holds the per-template retry conditions. Only the field selected
// by the strategy template is consulted.
type Trigger struct {
	Statuses            []OutcomeStatus
	Dispositions        []string
	DurationLessThanSec int
}

// Guardrails suppress or delay retries regardless of trigger match.
type Guardrails struct {
	StopOnConverted   bool
	StopDispositions  []string
	QuietHoursEnabled bool
	Timezone          string
	AllowedDays       []time.Weekday
	StartHour         int
	EndHour           int
}

// RetryStrategy is the per-campaign retry policy. Values are immutable:
// updates go through the With* methods, which return a modified copy.
type RetryStrategy struct {
	CampaignID        uuid.UUID
	Enabled           bool
	Template          StrategyTemplate
	MaxAttempts       int
	BackoffMode       BackoffMode
	MinMinutesBetween int
	BackoffMinutes    []int
	Trigger           Trigger
	Guardrails        Guardrails
	UpdatedAt         time.Time
}

// WithEnabled returns a copy with the enabled flag set.
func (s RetryStrategy) WithEnabled(enabled bool) RetryStrategy {
	out := s.clone()
	out.Enabled = enabled
	return out
}

// WithTemplate returns a copy with the template and trigger replaced.
func (s RetryStrategy) WithTemplate(template StrategyTemplate, trigger Trigger) RetryStrategy {
	out := s.clone()
	out.Template = template
	out.Trigger = Trigger{
		Statuses:            append([]OutcomeStatus(nil), trigger.Statuses...),
		Dispositions:        append([]string(nil), trigger.Dispositions...),
		DurationLessThanSec: trigger.DurationLessThanSec,
	}
	return out
}

// WithTiming returns a copy with the backoff configuration replaced.
func (s RetryStrategy) WithTiming(mode BackoffMode, minMinutes int, backoffMinutes []int) RetryStrategy {
	out := s.clone()
	out.BackoffMode = mode
	out.MinMinutesBetween = minMinutes
	out.BackoffMinutes = append([]int(nil), backoffMinutes...)
	return out
}

// WithGuardrails returns a copy with the guardrails replaced.
func (s RetryStrategy) WithGuardrails(g Guardrails) RetryStrategy {
	out := s.clone()
	out.Guardrails = Guardrails{
		StopOnConverted:   g.StopOnConverted,
		StopDispositions:  append([]string(nil), g.StopDispositions...),
		QuietHoursEnabled: g.QuietHoursEnabled,
		Timezone:          g.Timezone,
		AllowedDays:       append([]time.Weekday(nil), g.AllowedDays...),
		StartHour:         g.StartHour,
		EndHour:           g.EndHour,
	}
	return out
}

func (s RetryStrategy) clone() RetryStrategy {
	out := s
	out.BackoffMinutes = append([]int(nil), s.BackoffMinutes...)
	out.Trigger.Statuses = append([]OutcomeStatus(nil), s.Trigger.Statuses...)
	out.Trigger.Dispositions = append([]string(nil), s.Trigger.Dispositions...)
	out.Guardrails.StopDispositions = append([]string(nil), s.Guardrails.StopDispositions...)
	out.Guardrails.AllowedDays = append([]time.Weekday(nil), s.Guardrails.AllowedDays...)
	return out
}

// Validate checks the strategy against the configuration rules. Failures wrap
// ErrConfiguration and are never silently corrected.
func (s RetryStrategy) Validate() error {
	switch s.Template {
	case TemplateNoAnswer, TemplateDisposition, TemplateShortCall:
	default:
		return fmt.Errorf("%w: unknown template %q", apperrors.ErrConfiguration, s.Template)
	}

	if s.MaxAttempts < 1 || s.MaxAttempts > MaxAttemptsCeiling {
		return fmt.Errorf("%w: max attempts %d outside [1,%d]", apperrors.ErrConfiguration, s.MaxAttempts, MaxAttemptsCeiling)
	}

	switch s.BackoffMode {
	case BackoffModeFixed:
		if s.MinMinutesBetween < MinDelayMinutes {
			return fmt.Errorf("%w: min minutes between attempts %d below %d", apperrors.ErrConfiguration, s.MinMinutesBetween, MinDelayMinutes)
		}
	case BackoffModeBackoff:
		if len(s.BackoffMinutes) == 0 {
			return fmt.Errorf("%w: backoff mode requires a non-empty delay sequence", apperrors.ErrConfiguration)
		}
		for i, m := range s.BackoffMinutes {
			if m < MinDelayMinutes {
				return fmt.Errorf("%w: backoff delay %d at index %d below %d minutes", apperrors.ErrConfiguration, m, i, MinDelayMinutes)
			}
		}
	default:
		return fmt.Errorf("%w: unknown backoff mode %q", apperrors.ErrConfiguration, s.BackoffMode)
	}

	switch s.Template {
	case TemplateNoAnswer:
		if len(s.Trigger.Statuses) == 0 {
			return fmt.Errorf("%w: no_answer template requires trigger statuses", apperrors.ErrConfiguration)
		}
		for _, st := range s.Trigger.Statuses {
			if !st.Valid() {
				return fmt.Errorf("%w: unknown trigger status %q", apperrors.ErrConfiguration, st)
			}
		}
	case TemplateDisposition:
		if len(s.Trigger.Dispositions) == 0 {
			return fmt.Errorf("%w: disposition template requires trigger dispositions", apperrors.ErrConfiguration)
		}
	case TemplateShortCall:
		if s.Trigger.DurationLessThanSec <= 0 {
			return fmt.Errorf("%w: short_call template requires a positive duration threshold", apperrors.ErrConfiguration)
		}
	}

	return s.Guardrails.validate()
}

func (g Guardrails) validate() error {
	if !g.QuietHoursEnabled {
		return nil
	}
	if g.Timezone == "" {
		return fmt.Errorf("%w: quiet hours require a timezone", apperrors.ErrConfiguration)
	}
	if _, err := time.LoadLocation(g.Timezone); err != nil {
		return fmt.Errorf("%w: invalid timezone %q: %v", apperrors.ErrConfiguration, g.Timezone, err)
	}
	if len(g.AllowedDays) == 0 {
		return fmt.Errorf("%w: quiet hours require at least one allowed day", apperrors.ErrConfiguration)
	}
	for _, d := range g.AllowedDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", apperrors.ErrConfiguration, d)
		}
	}
	if g.StartHour < 0 || g.EndHour > 24 {
		return fmt.Errorf("%w: calling window hours must fall within [0,24]", apperrors.ErrConfiguration)
	}
	// Windows spanning midnight are rejected rather than wrapped.
	if g.StartHour >= g.EndHour {
		return fmt.Errorf("%w: calling window start hour %d must precede end hour %d", apperrors.ErrConfiguration, g.StartHour, g.EndHour)
	}
	return nil
}

// DayAllowed reports whether the weekday is in the allowed set.
func (g Guardrails) DayAllowed(day time.Weekday) bool {
	for _, d := range g.AllowedDays {
		if d == day {
			return true
		}
	}
	return false
}
