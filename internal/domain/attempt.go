package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus is the normalized result of a completed call attempt.
type OutcomeStatus string

const (
	OutcomeConnected   OutcomeStatus = "connected"
	OutcomeVoicemail   OutcomeStatus = "voicemail"
	OutcomeNotAnswered OutcomeStatus = "not_answered"
	OutcomeFailed      OutcomeStatus = "failed"
	OutcomeBusy        OutcomeStatus = "busy"
)

// Valid reports whether the status is one of the normalized values.
func (s OutcomeStatus) Valid() bool {
	switch s {
	case OutcomeConnected, OutcomeVoicemail, OutcomeNotAnswered, OutcomeFailed, OutcomeBusy:
		return true
	}
	return false
}

// AttemptRecord captures one completed call try against a lead. Records are
// created by the dialer on attempt completion and immutable thereafter.
// Status carries the provider's raw status string; normalization happens in
// the outcome classifier.
type AttemptRecord struct {
	LeadID        uuid.UUID
	CampaignID    uuid.UUID
	AttemptNumber int
	Status        string
	Disposition   *string
	DurationSec   int
	CompletedAt   time.Time
}

// NormalizedOutcome is the classifier's view of a finished attempt.
type NormalizedOutcome struct {
	Status      OutcomeStatus
	Disposition *string
	DurationSec int
}
