package outcome

import (
	"strings"

	"go.uber.org/zap"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/domain"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/logger"
)

// statusAliases maps provider-specific status spellings onto the normalized
// outcome vocabulary. Telephony providers are not consistent about naming,
// so the table is intentionally permissive.
var statusAliases = map[string]domain.OutcomeStatus{
	"connected":      domain.OutcomeConnected,
	"answered":       domain.OutcomeConnected,
	"completed":      domain.OutcomeConnected,
	"human":          domain.OutcomeConnected,
	"voicemail":      domain.OutcomeVoicemail,
	"machine":        domain.OutcomeVoicemail,
	"answer_machine": domain.OutcomeVoicemail,
	"not_answered":   domain.OutcomeNotAnswered,
	"no_answer":      domain.OutcomeNotAnswered,
	"noanswer":       domain.OutcomeNotAnswered,
	"unanswered":     domain.OutcomeNotAnswered,
	"ring_timeout":   domain.OutcomeNotAnswered,
	"busy":           domain.OutcomeBusy,
	"line_busy":      domain.OutcomeBusy,
	"user_busy":      domain.OutcomeBusy,
	"failed":         domain.OutcomeFailed,
	"error":          domain.OutcomeFailed,
	"rejected":       domain.OutcomeFailed,
	"congestion":     domain.OutcomeFailed,
	"invalid_number": domain.OutcomeFailed,
}

// Classifier normalizes raw attempt results into the outcome vocabulary the
// eligibility rules operate on.
type Classifier struct {
	logger *logger.Logger
}

// NewClassifier builds a classifier.
func NewClassifier(lg *logger.Logger) *Classifier {
	return &Classifier{logger: lg}
}

// Classify maps the attempt's provider status onto a normalized outcome.
// Unknown statuses fall back to failed with a warning; classification never
// fails, since provider vocabularies are not enumerable in advance.
func (c *Classifier) Classify(attempt domain.AttemptRecord) domain.NormalizedOutcome {
	key := strings.ToLower(strings.TrimSpace(attempt.Status))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")

	status, ok := statusAliases[key]
	if !ok {
		status = domain.OutcomeFailed
		if c.logger != nil {
			c.logger.Warn("outcome classifier: unknown provider status",
				zap.String("status", attempt.Status),
				zap.String("campaign_id", attempt.CampaignID.String()),
				zap.String("lead_id", attempt.LeadID.String()),
			)
		}
	}

	return domain.NormalizedOutcome{
		Status:      status,
		Disposition: attempt.Disposition,
		DurationSec: attempt.DurationSec,
	}
}
