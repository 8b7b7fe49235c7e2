package dialer

import (
	"context"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
)

// Dialer is the capability the retry engine requires from the telephony
// subsystem: place the next call attempt for a claimed queue entry. The
// dialer reports the result back asynchronously as an attempt-completed
// event.
type Dialer interface {
	PlaceCall(ctx context.Context, entry domain.RetryQueueEntry) error
}
