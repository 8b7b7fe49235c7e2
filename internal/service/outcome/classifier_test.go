package outcome

import (
	"testing"

	"go.uber.org/zap"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/logger"
)

func testClassifier() *Classifier {
	return NewClassifier(&logger.Logger{Logger: zap.NewNop()})
}

func TestClassifyKnownStatuses(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.OutcomeStatus
	}{
		{"connected", domain.OutcomeConnected},
		{"answered", domain.OutcomeConnected},
		{"human", domain.OutcomeConnected},
		{"voicemail", domain.OutcomeVoicemail},
		{"machine", domain.OutcomeVoicemail},
		{"no_answer", domain.OutcomeNotAnswered},
		{"ring_timeout", domain.OutcomeNotAnswered},
		{"busy", domain.OutcomeBusy},
		{"user_busy", domain.OutcomeBusy},
		{"failed", domain.OutcomeFailed},
		{"invalid_number", domain.OutcomeFailed},
	}

	c := testClassifier()
	for _, tc := range cases {
		got := c.Classify(domain.AttemptRecord{Status: tc.raw})
		if got.Status != tc.want {
			t.Errorf("classify %q: got %s, want %s", tc.raw, got.Status, tc.want)
		}
	}
}

func TestClassifyNormalizesSpelling(t *testing.T) {
	c := testClassifier()
	for _, raw := range []string{"NO-ANSWER", "  no answer ", "No_Answer"} {
		got := c.Classify(domain.AttemptRecord{Status: raw})
		if got.Status != domain.OutcomeNotAnswered {
			t.Errorf("classify %q: got %s, want %s", raw, got.Status, domain.OutcomeNotAnswered)
		}
	}
}

func TestClassifyUnknownStatusFallsBackToFailed(t *testing.T) {
	got := testClassifier().Classify(domain.AttemptRecord{Status: "carrier_exploded"})
	if got.Status != domain.OutcomeFailed {
		t.Fatalf("unknown status: got %s, want %s", got.Status, domain.OutcomeFailed)
	}
}

func TestClassifyCarriesDispositionAndDuration(t *testing.T) {
	disposition := "callback_requested"
	got := testClassifier().Classify(domain.AttemptRecord{
		Status:      "connected",
		Disposition: &disposition,
		DurationSec: 42,
	})
	if got.Disposition == nil || *got.Disposition != disposition {
		t.Fatalf("disposition not carried through: %v", got.Disposition)
	}
	if got.DurationSec != 42 {
		t.Fatalf("duration not carried through: %d", got.DurationSec)
	}
}
