package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"autopilot-assistant/pkg/models"
)

func TestApplyThresholdRule_Low(t *testing.T) {
	tests := []struct {
		name     string
		analysis models.Analysis
		want     bool
	}{
		{"medium urgency fires", models.Analysis{Urgency: models.UrgencyMedium}, true},
		{"high urgency fires", models.Analysis{Urgency: models.UrgencyHigh}, true},
		{"negative sentiment fires", models.Analysis{Urgency: models.UrgencyLow, Sentiment: -0.1}, true},
		{"complex fires", models.Analysis{Urgency: models.UrgencyLow, Complex: true}, true},
		{"calm simple low stays quiet", models.Analysis{Urgency: models.UrgencyLow, Sentiment: 0.2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyThresholdRule(models.ThresholdLow, tt.analysis, 1, false))
		})
	}
}

func TestApplyThresholdRule_Medium(t *testing.T) {
	tests := []struct {
		name      string
		analysis  models.Analysis
		userTurns int
		want      bool
	}{
		{"high urgency fires", models.Analysis{Urgency: models.UrgencyHigh}, 1, true},
		{"strong negative fires", models.Analysis{Urgency: models.UrgencyLow, Sentiment: -0.6}, 1, true},
		{"strong positive fires", models.Analysis{Urgency: models.UrgencyLow, Sentiment: 0.6}, 1, true},
		{"complex on second exchange fires", models.Analysis{Urgency: models.UrgencyLow, Complex: true}, 2, true},
		{"complex on first exchange waits", models.Analysis{Urgency: models.UrgencyLow, Complex: true}, 1, false},
		{"medium urgency alone waits", models.Analysis{Urgency: models.UrgencyMedium}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyThresholdRule(models.ThresholdMedium, tt.analysis, tt.userTurns, false))
		})
	}
}

func TestApplyThresholdRule_High(t *testing.T) {
	tests := []struct {
		name       string
		analysis   models.Analysis
		keywordHit bool
		want       bool
	}{
		{"high urgency with keyword fires", models.Analysis{Urgency: models.UrgencyHigh}, true, true},
		{"high urgency without keyword waits", models.Analysis{Urgency: models.UrgencyHigh}, false, false},
		{"very negative sentiment fires", models.Analysis{Sentiment: -0.8}, false, true},
		{"merely negative waits", models.Analysis{Sentiment: -0.7}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyThresholdRule(models.ThresholdHigh, tt.analysis, 3, tt.keywordHit))
		})
	}
}

func TestKeywordHit(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "Hello there"},
		{Role: models.RoleAssistant, Content: "this mentions URGENT but is not a user turn"},
		{Role: models.RoleUser, Content: "It's quite URGENT actually"},
	}

	assert.True(t, KeywordHit(history, []string{"urgent"}))
	assert.False(t, KeywordHit(history, []string{"refund"}))
	assert.False(t, KeywordHit(history, nil))
	assert.False(t, KeywordHit(history[:2], []string{"urgent"}))
}

func TestEvaluate_KeywordOverridesHardThreshold(t *testing.T) {
	conv := &models.Conversation{
		History: []models.Message{
			{Role: models.RoleUser, Content: "this is urgent, please"},
		},
	}
	profile := models.OwnerProfile{
		Threshold: models.ThresholdHigh,
		Keywords:  []string{"urgent"},
	}

	// Analysis carries no escalation signal at all.
	decision := Evaluate(conv, profile, models.SafeAnalysis())
	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonKeyword, decision.Reason)
}

func TestEvaluate_AdvisoryFlagFolds(t *testing.T) {
	conv := &models.Conversation{
		History: []models.Message{{Role: models.RoleUser, Content: "hello"}},
	}
	profile := models.OwnerProfile{Threshold: models.ThresholdHigh}

	analysis := models.SafeAnalysis()
	analysis.Escalate = true

	decision := Evaluate(conv, profile, analysis)
	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonAdvisory, decision.Reason)
}

func TestEvaluate_QuietConversation(t *testing.T) {
	conv := &models.Conversation{
		History: []models.Message{{Role: models.RoleUser, Content: "hello"}},
	}
	profile := models.OwnerProfile{Threshold: models.ThresholdMedium}

	decision := Evaluate(conv, profile, models.SafeAnalysis())
	assert.False(t, decision.Escalate)
}
