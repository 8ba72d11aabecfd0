package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/models"
)

const analysisUnavailable = "(unavailable)"

// notifyOwner composes the priority alert and delivers it to the owner.
// Returns whether delivery succeeded; the escalated flag only flips on
// success. The summarization collaborators fail soft: an alert with
// placeholder sections still beats no alert.
func (e *Engine) notifyOwner(ctx context.Context, msg models.InboundMessage, conv *models.Conversation, reason string) bool {
	log := e.logger.WithFields(logrus.Fields{
		"contact_id": msg.ContactID,
		"owner_id":   conv.OwnerID,
		"reason":     reason,
	})

	transcript := conv.Transcript()
	summary := e.summarySection(ctx, "summary", transcript, log)
	keyPoints := e.summarySection(ctx, "key_points", transcript, log)
	suggested := e.summarySection(ctx, "suggested_action", transcript, log)

	notification := fmt.Sprintf(`🚨 Priority Conversation Alert

From: %s

Summary: %s

Key Points:
%s

Direct Link: %s

Suggested Action: %s`,
		msg.ContactLabel(), summary, keyPoints, msg.ContactLink(), suggested)

	if err := e.messenger.SendMessage(ctx, conv.OwnerID, notification); err != nil {
		e.metrics.EscalationFailures.Inc()
		log.WithError(err).Error("Failed to deliver escalation notification")
		return false
	}

	e.metrics.EscalationsSent.WithLabelValues(reason).Inc()
	log.Info("Escalated conversation to owner")
	return true
}

func (e *Engine) summarySection(ctx context.Context, kind, transcript string, log *logrus.Entry) string {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	var (
		text string
		err  error
	)
	switch kind {
	case "summary":
		text, err = e.assistant.Summarize(callCtx, transcript)
	case "key_points":
		text, err = e.assistant.KeyPoints(callCtx, transcript)
	default:
		text, err = e.assistant.SuggestAction(callCtx, transcript)
	}
	if err != nil {
		log.WithError(err).WithField("section", kind).Warn("Notification section unavailable")
		return analysisUnavailable
	}
	return text
}
