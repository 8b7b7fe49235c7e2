package backoff

import (
	"fmt"
	"time"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	apperrors "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/errors"
)

// maxClipDays bounds the forward search for an allowed calling window. A
// valid guardrail configuration has at least one allowed weekday, so eight
// days always suffice.
const maxClipDays = 8

// NextAttemptTime computes when the given retry should be placed.
// retryNumber is 1-based: 1 for the first re-attempt after the original
// call. The raw candidate is then clipped forward into the strategy's
// allowed calling window.
func NextAttemptTime(strategy domain.RetryStrategy, retryNumber int, completedAt time.Time) (time.Time, error) {
	if retryNumber < 1 {
		return time.Time{}, fmt.Errorf("%w: retry number %d must be positive", apperrors.ErrConfiguration, retryNumber)
	}

	var delayMinutes int
	switch strategy.BackoffMode {
	case domain.BackoffModeFixed:
		delayMinutes = strategy.MinMinutesBetween
	case domain.BackoffModeBackoff:
		if len(strategy.BackoffMinutes) == 0 {
			return time.Time{}, fmt.Errorf("%w: backoff mode with empty delay sequence", apperrors.ErrConfiguration)
		}
		idx := retryNumber - 1
		if idx >= len(strategy.BackoffMinutes) {
			idx = len(strategy.BackoffMinutes) - 1
		}
		delayMinutes = strategy.BackoffMinutes[idx]
	default:
		return time.Time{}, fmt.Errorf("%w: unknown backoff mode %q", apperrors.ErrConfiguration, strategy.BackoffMode)
	}

	candidate := completedAt.Add(time.Duration(delayMinutes) * time.Minute)
	return ClipToGuardrails(strategy.Guardrails, candidate)
}

// ClipToGuardrails shifts t forward to the next instant that falls on an
// allowed weekday inside [StartHour, EndHour) in the guardrail timezone.
// A time already inside the window is returned unchanged, which makes the
// clip idempotent. Quiet hours disabled means no shift at all.
func ClipToGuardrails(g domain.Guardrails, t time.Time) (time.Time, error) {
	if !g.QuietHoursEnabled {
		return t, nil
	}
	if g.StartHour >= g.EndHour {
		return time.Time{}, fmt.Errorf("%w: calling window start hour %d must precede end hour %d", apperrors.ErrConfiguration, g.StartHour, g.EndHour)
	}
	if len(g.AllowedDays) == 0 {
		return time.Time{}, fmt.Errorf("%w: quiet hours with no allowed days", apperrors.ErrConfiguration)
	}

	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timezone %q: %v", apperrors.ErrConfiguration, g.Timezone, err)
	}

	local := t.In(loc)
	for day := 0; day < maxClipDays; day++ {
		if g.DayAllowed(local.Weekday()) {
			switch {
			case local.Hour() >= g.StartHour && local.Hour() < g.EndHour:
				return local.UTC(), nil
			case local.Hour() < g.StartHour:
				shifted := time.Date(local.Year(), local.Month(), local.Day(), g.StartHour, 0, 0, 0, loc)
				return shifted.UTC(), nil
			}
		}
		next := local.AddDate(0, 0, 1)
		local = time.Date(next.Year(), next.Month(), next.Day(), g.StartHour, 0, 0, 0, loc)
	}

	return time.Time{}, fmt.Errorf("%w: no allowed calling window within %d days", apperrors.ErrConfiguration, maxClipDays)
}
