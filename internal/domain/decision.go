package domain

// StopReason explains why no further retries will be scheduled for a lead.
type StopReason string

const (
	StopReasonDisabled        StopReason = "disabled"
	StopReasonConverted       StopReason = "converted"
	StopReasonStopDisposition StopReason = "stop_disposition"
	StopReasonMaxAttempts     StopReason = "max_attempts_reached"
	StopReasonNoTriggerMatch  StopReason = "no_trigger_match"
)

// Decision is the evaluator's verdict for a completed attempt.
type Decision struct {
	Retry         bool
	AttemptNumber int
	Reason        StopReason
}

// RetryDecision builds a RETRY verdict for the given next attempt number.
func RetryDecision(attemptNumber int) Decision {
	return Decision{Retry: true, AttemptNumber: attemptNumber}
}

// StopDecision builds a STOP verdict with the given reason.
func StopDecision(reason StopReason) Decision {
	return Decision{Reason: reason}
}
