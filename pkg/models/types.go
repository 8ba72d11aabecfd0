package models

import (
	"strings"
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DialogueState is the transient state of a contact's conversation.
type DialogueState string

const (
	// StateNormal - owner resolved, messages are relayed through the AI.
	StateNormal DialogueState = "normal"

	// StateAwaitingOwnerSelection - the contact has not yet named a target
	// owner via @username.
	StateAwaitingOwnerSelection DialogueState = "awaiting_owner_selection"
)

// Conversation is the per-contact conversation record.
type Conversation struct {
	ContactID string        `json:"contact_id"`
	OwnerID   string        `json:"owner_id,omitempty"`
	State     DialogueState `json:"state"`
	History   []Message     `json:"history"`
	Escalated bool          `json:"escalated"`
	StartedAt time.Time     `json:"started_at"`
}

// UserTurnCount returns the number of user-role turns in the history.
func (c *Conversation) UserTurnCount() int {
	n := 0
	for _, m := range c.History {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Transcript renders the history as "role: text" lines for the
// summarization collaborators.
func (c *Conversation) Transcript() string {
	lines := make([]string, 0, len(c.History))
	for _, m := range c.History {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// Threshold controls escalation sensitivity.
type Threshold string

const (
	ThresholdLow    Threshold = "Low"
	ThresholdMedium Threshold = "Medium"
	ThresholdHigh   Threshold = "High"
)

// ParseThreshold normalizes a raw threshold value. Anything that is not
// low/medium/high resolves to Medium.
func ParseThreshold(raw string) Threshold {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return ThresholdLow
	case "high":
		return ThresholdHigh
	default:
		return ThresholdMedium
	}
}

// ProfileState tags owner profile lifecycle state.
type ProfileState string

const (
	ProfileActive              ProfileState = "active"
	ProfilePendingDeactivation ProfileState = "pending_deactivation"
)

// OwnerProfile holds an owner's settings.
type OwnerProfile struct {
	OwnerID     string       `json:"owner_id"`
	Username    string       `json:"username"`
	Busy        bool         `json:"busy"`
	AutoReply   string       `json:"auto_reply"`
	Threshold   Threshold    `json:"importance_threshold"`
	Keywords    []string     `json:"keywords"`
	Schedules   []string     `json:"busy_schedules"`
	DisplayName string       `json:"user_name"`
	FAQInfo     string       `json:"user_info"`
	State       ProfileState `json:"state"`
}

// KeywordList returns the configured keywords lowercased and trimmed, with
// empties dropped.
func (p *OwnerProfile) KeywordList() []string {
	out := make([]string, 0, len(p.Keywords))
	for _, kw := range p.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Urgency is the AI-judged urgency of a conversation.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Rank maps urgency onto an ordered scale for threshold comparisons.
// Unknown values rank lowest.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	default:
		return 0
	}
}

// ParseUrgency normalizes a raw urgency value; unknown values resolve to low.
func ParseUrgency(raw string) Urgency {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "medium":
		return UrgencyMedium
	case "high":
		return UrgencyHigh
	default:
		return UrgencyLow
	}
}

// Analysis is the structured importance judgment produced by the AI
// collaborator.
type Analysis struct {
	Sentiment float64 `json:"sentiment_score"`
	Urgency   Urgency `json:"urgency"`
	Intent    string  `json:"intent"`
	Complex   bool    `json:"complex"`
	Escalate  bool    `json:"escalate"`
}

// SafeAnalysis is the fallback used when the analysis collaborator fails:
// neutral sentiment, low urgency, not complex. It never escalates on its own.
func SafeAnalysis() Analysis {
	return Analysis{Sentiment: 0, Urgency: UrgencyLow, Complex: false, Escalate: false}
}

// InboundMessage is a message event delivered by the chat transport.
type InboundMessage struct {
	ContactID     string    `json:"contact_id"`
	Username      string    `json:"username,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	Text          string    `json:"text"`
	SenderIsOwner bool      `json:"sender_is_owner"`
	ReceivedAt    time.Time `json:"received_at"`
}

// ContactLink returns a direct link to the contact for owner notifications.
func (m *InboundMessage) ContactLink() string {
	if m.Username != "" {
		return "t.me/" + m.Username
	}
	return "Contact ID: " + m.ContactID
}

// ContactLabel returns the best human-readable name for the contact.
func (m *InboundMessage) ContactLabel() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	if m.Username != "" {
		return "@" + m.Username
	}
	return m.ContactID
}
