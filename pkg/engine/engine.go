package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/ai"
	"autopilot-assistant/pkg/commands"
	"autopilot-assistant/pkg/escalation"
	"autopilot-assistant/pkg/metrics"
	"autopilot-assistant/pkg/models"
	"autopilot-assistant/pkg/settings"
	"autopilot-assistant/pkg/store"
)

// Messenger is the outbound side of the chat transport. Delivery is
// best-effort; failures are logged by callers, not retried here.
type Messenger interface {
	SendMessage(ctx context.Context, recipientID, text string) error
}

const (
	ownerSelectPrompt = "Hi! I'm an AI assistant managing messages for my owners. Who are you trying to reach? Reply with their @username."
	ownerSelectFormat = "Please reply with just the @username of the person you want to reach, e.g. @alice."
	ownerAvailable    = "My owner is currently available. Please contact them directly if possible."
	contactDisclosure = "Sorry, I'm the personal assistant for my owner. This bot clearly states that the responder is an AI."
	conversationReset = "Something went wrong with our conversation, so I've restarted it. Who are you trying to reach? Reply with their @username."
)

// Engine is the per-contact conversation state machine.
type Engine struct {
	conversations store.ConversationStore
	settings      *settings.Service
	assistant     ai.Assistant
	messenger     Messenger
	commands      *commands.Router
	logger        *logrus.Logger
	metrics       *metrics.Metrics
	callTimeout   time.Duration
	now           func() time.Time
}

type Options struct {
	Conversations store.ConversationStore
	Settings      *settings.Service
	Assistant     ai.Assistant
	Messenger     Messenger
	Commands      *commands.Router
	Logger        *logrus.Logger
	Metrics       *metrics.Metrics
	CallTimeout   time.Duration
}

func New(opts Options) *Engine {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		conversations: opts.Conversations,
		settings:      opts.Settings,
		assistant:     opts.Assistant,
		messenger:     opts.Messenger,
		commands:      opts.Commands,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		callTimeout:   timeout,
		now:           time.Now,
	}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HandleInbound routes one inbound message. Messages from owners go to the
// command router; everything else runs the contact conversation flow. The
// caller is responsible for per-contact serialization.
func (e *Engine) HandleInbound(ctx context.Context, msg models.InboundMessage) {
	if msg.SenderIsOwner {
		e.commands.Handle(ctx, msg)
		e.metrics.MessagesProcessed.WithLabelValues("owner_command").Inc()
		return
	}

	if strings.TrimSpace(msg.Text) == "/start" {
		e.send(ctx, msg.ContactID, contactDisclosure)
		e.metrics.MessagesProcessed.WithLabelValues("contact_start").Inc()
		return
	}

	outcome := e.handleContactMessage(ctx, msg)
	e.metrics.MessagesProcessed.WithLabelValues(outcome).Inc()
}

func (e *Engine) handleContactMessage(ctx context.Context, msg models.InboundMessage) string {
	log := e.logger.WithField("contact_id", msg.ContactID)

	conv, err := e.conversations.Get(ctx, msg.ContactID)
	if errors.Is(err, store.ErrCorruptRecord) {
		// Unrecoverable for this record only: drop it and restart.
		log.Warn("Deleting corrupt conversation record")
		if delErr := e.conversations.Delete(ctx, msg.ContactID); delErr != nil {
			log.WithError(delErr).Error("Failed to delete corrupt conversation record")
		}
		conv = nil
	} else if err != nil {
		// Store reads fail soft: treat as no record rather than surfacing
		// internals to the contact.
		log.WithError(err).Error("Failed to read conversation record")
		conv = nil
	}

	if conv == nil {
		return e.startConversation(ctx, msg)
	}

	switch conv.State {
	case models.StateAwaitingOwnerSelection:
		return e.resolveOwner(ctx, msg, conv)
	case models.StateNormal:
		if conv.OwnerID == "" {
			// Invariant broken; restart the conversation.
			log.Warn("Conversation in normal state without an owner, restarting")
			conv.State = models.StateAwaitingOwnerSelection
			conv.OwnerID = ""
			if err := e.conversations.Put(ctx, conv); err != nil {
				log.WithError(err).Error("Failed to reset conversation record")
			}
			e.send(ctx, msg.ContactID, conversationReset)
			return "reset"
		}
		return e.relayMessage(ctx, msg, conv)
	default:
		log.WithField("state", conv.State).Warn("Unknown dialogue state, restarting conversation")
		if err := e.conversations.Delete(ctx, msg.ContactID); err != nil {
			log.WithError(err).Error("Failed to delete conversation record")
		}
		return e.startConversation(ctx, msg)
	}
}

// startConversation creates a fresh record in the owner-selection state and
// prompts the contact for a target owner.
func (e *Engine) startConversation(ctx context.Context, msg models.InboundMessage) string {
	conv := &models.Conversation{
		ContactID: msg.ContactID,
		State:     models.StateAwaitingOwnerSelection,
		StartedAt: e.now(),
	}
	if err := e.conversations.Put(ctx, conv); err != nil {
		e.logger.WithError(err).WithField("contact_id", msg.ContactID).Error("Failed to create conversation record")
		e.send(ctx, msg.ContactID, "Sorry, something went wrong on my side. Please try again in a moment.")
		return "store_error"
	}
	e.send(ctx, msg.ContactID, ownerSelectPrompt)
	return "new_conversation"
}

// resolveOwner runs the @username sub-dialogue. There is no timeout: the
// record stays in this state until a known owner is named.
func (e *Engine) resolveOwner(ctx context.Context, msg models.InboundMessage, conv *models.Conversation) string {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "@") {
		e.send(ctx, msg.ContactID, ownerSelectFormat)
		return "owner_select_reprompt"
	}

	profile, ok := e.settings.ResolveUsername(ctx, text)
	if !ok {
		e.send(ctx, msg.ContactID, "I couldn't find "+text+". Please check the username and send it again.")
		return "owner_select_reprompt"
	}

	conv.OwnerID = profile.OwnerID
	conv.State = models.StateNormal
	if err := e.conversations.Put(ctx, conv); err != nil {
		e.logger.WithError(err).WithField("contact_id", msg.ContactID).Error("Failed to persist owner selection")
		e.send(ctx, msg.ContactID, "Sorry, something went wrong on my side. Please send that again.")
		return "store_error"
	}

	e.send(ctx, msg.ContactID, settings.RenderAutoReply(profile))
	return "owner_selected"
}

// relayMessage runs the normal busy-owner flow: append the contact's turn,
// produce and persist the assistant's reply, then consider escalation. Both
// turns are committed to the store before the reply is dispatched, so a
// failed AI call or send never loses the contact's message.
func (e *Engine) relayMessage(ctx context.Context, msg models.InboundMessage, conv *models.Conversation) string {
	log := e.logger.WithFields(logrus.Fields{
		"contact_id": msg.ContactID,
		"owner_id":   conv.OwnerID,
	})

	if !e.settings.IsBusy(ctx, conv.OwnerID) {
		e.send(ctx, msg.ContactID, ownerAvailable)
		return "owner_available"
	}

	profile := e.settings.Get(ctx, conv.OwnerID)

	conv.History = append(conv.History, models.Message{Role: models.RoleUser, Content: msg.Text})
	if err := e.conversations.Put(ctx, conv); err != nil {
		log.WithError(err).Error("Failed to persist contact turn")
		e.send(ctx, msg.ContactID, "Sorry, something went wrong on my side. Please send that again.")
		return "store_error"
	}

	reply := e.generateReply(ctx, conv, profile, log)

	conv.History = append(conv.History, models.Message{Role: models.RoleAssistant, Content: reply})
	if err := e.conversations.Put(ctx, conv); err != nil {
		log.WithError(err).Error("Failed to persist assistant turn")
	}

	e.send(ctx, msg.ContactID, reply)

	// At most one escalation per conversation; once flipped, analysis stops
	// for good.
	if conv.Escalated {
		return "relayed"
	}

	analysis := e.analyze(ctx, conv, profile, log)
	decision := escalation.Evaluate(conv, profile, analysis)
	if !decision.Escalate {
		return "relayed"
	}

	if e.notifyOwner(ctx, msg, conv, decision.Reason) {
		conv.Escalated = true
		if err := e.conversations.Put(ctx, conv); err != nil {
			log.WithError(err).Error("Failed to persist escalation flag")
		}
		return "escalated"
	}
	return "relayed"
}

func (e *Engine) generateReply(ctx context.Context, conv *models.Conversation, profile models.OwnerProfile, log *logrus.Entry) string {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	reply, err := e.assistant.GenerateReply(callCtx, conv.History, profile)
	if err != nil {
		log.WithError(err).Warn("Reply collaborator failed, using fallback")
		return ai.FallbackReply
	}
	return reply
}

func (e *Engine) analyze(ctx context.Context, conv *models.Conversation, profile models.OwnerProfile, log *logrus.Entry) models.Analysis {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	analysis, err := e.assistant.AnalyzeImportance(callCtx, conv.History, profile, conv.UserTurnCount())
	if err != nil {
		log.WithError(err).Warn("Analysis collaborator failed, using safe default")
		return models.SafeAnalysis()
	}
	return analysis
}

func (e *Engine) send(ctx context.Context, recipientID, text string) {
	if err := e.messenger.SendMessage(ctx, recipientID, text); err != nil {
		e.metrics.OutboundSendFailures.Inc()
		e.logger.WithError(err).WithField("recipient_id", recipientID).Error("Failed to send message")
	}
}
