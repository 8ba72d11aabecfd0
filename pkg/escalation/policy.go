package escalation

import (
	"math"
	"strings"

	"autopilot-assistant/pkg/models"
)

// Decision is the outcome of an escalation evaluation. Reason labels the
// signal that fired, for notifications and metrics.
type Decision struct {
	Escalate bool
	Reason   string
}

const (
	ReasonKeyword   = "keyword"
	ReasonThreshold = "threshold"
	ReasonAdvisory  = "advisory"
)

// Evaluate decides whether a conversation warrants notifying the owner. The
// threshold rule table, the configured-keyword match and the collaborator's
// advisory escalate flag are OR-combined. The function is pure: it never
// touches the record's escalated flag.
func Evaluate(conv *models.Conversation, profile models.OwnerProfile, analysis models.Analysis) Decision {
	keywordHit := KeywordHit(conv.History, profile.KeywordList())

	if keywordHit {
		return Decision{Escalate: true, Reason: ReasonKeyword}
	}
	if ApplyThresholdRule(profile.Threshold, analysis, conv.UserTurnCount(), keywordHit) {
		return Decision{Escalate: true, Reason: ReasonThreshold}
	}
	if analysis.Escalate {
		return Decision{Escalate: true, Reason: ReasonAdvisory}
	}
	return Decision{}
}

// ApplyThresholdRule applies the sensitivity rule table for the owner's
// importance threshold.
func ApplyThresholdRule(threshold models.Threshold, analysis models.Analysis, userTurns int, keywordHit bool) bool {
	switch threshold {
	case models.ThresholdLow:
		return analysis.Urgency.Rank() >= models.UrgencyMedium.Rank() ||
			analysis.Sentiment < 0 ||
			analysis.Complex
	case models.ThresholdHigh:
		return (analysis.Urgency == models.UrgencyHigh && keywordHit) ||
			analysis.Sentiment <= -0.8
	default:
		return analysis.Urgency == models.UrgencyHigh ||
			math.Abs(analysis.Sentiment) >= 0.6 ||
			(analysis.Complex && userTurns >= 2)
	}
}

// KeywordHit reports whether any configured keyword appears as a
// case-insensitive substring in any user turn.
func KeywordHit(history []models.Message, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, msg := range history {
		if msg.Role != models.RoleUser {
			continue
		}
		text := strings.ToLower(msg.Content)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}
