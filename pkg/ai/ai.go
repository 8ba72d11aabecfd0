package ai

import (
	"context"

	"autopilot-assistant/pkg/models"
)

// FallbackReply stands in for the assistant's answer when the reply
// collaborator fails. The contact's turn is already persisted by then, so the
// conversation keeps its shape.
const FallbackReply = "I'm having a little trouble responding right now, but I've noted your message and will make sure it gets seen."

// Assistant is the AI collaborator boundary. All methods are pure
// request/response; implementations hold no conversation state.
type Assistant interface {
	GenerateReply(ctx context.Context, history []models.Message, profile models.OwnerProfile) (string, error)
	AnalyzeImportance(ctx context.Context, history []models.Message, profile models.OwnerProfile, userTurns int) (models.Analysis, error)
	Summarize(ctx context.Context, transcript string) (string, error)
	KeyPoints(ctx context.Context, transcript string) (string, error)
	SuggestAction(ctx context.Context, transcript string) (string, error)
}

// BoundHistory returns at most the last n turns of history.
func BoundHistory(history []models.Message, n int) []models.Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
