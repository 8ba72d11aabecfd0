package commands

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/models"
	"autopilot-assistant/pkg/schedule"
	"autopilot-assistant/pkg/settings"
)

// Messenger is the outbound transport needed by the command router.
type Messenger interface {
	SendMessage(ctx context.Context, recipientID, text string) error
}

const (
	welcomeText = "Welcome to Autopilot AI - The Intelligent Assistant. Use commands like /busy, /available, /set_auto_reply, /set_threshold, /set_keywords, /add_schedule, /set_name, /set_user_info, /deactivate to configure."
	ownerHint   = "Hi owner, use commands to manage me. Send /start for the command list."
	savedFailed = "Something went wrong saving that. Please try again."
)

// Router handles owner-only settings commands. Callers must have already
// authorized the sender as an owner; a non-owner never reaches this code.
type Router struct {
	settings  *settings.Service
	messenger Messenger
	logger    *logrus.Logger
}

func NewRouter(svc *settings.Service, messenger Messenger, logger *logrus.Logger) *Router {
	return &Router{settings: svc, messenger: messenger, logger: logger}
}

// Handle processes one message from an owner. While a deactivation is
// pending, the next message - whatever it is - resolves the confirmation.
func (r *Router) Handle(ctx context.Context, msg models.InboundMessage) {
	ownerID := msg.ContactID
	text := strings.TrimSpace(msg.Text)

	profile := r.settings.Get(ctx, ownerID)
	if profile.State == models.ProfilePendingDeactivation {
		r.finishDeactivation(ctx, ownerID, text)
		return
	}

	if !strings.HasPrefix(text, "/") {
		r.reply(ctx, ownerID, ownerHint)
		return
	}

	name, args, _ := strings.Cut(text, " ")
	args = strings.TrimSpace(args)

	switch name {
	case "/start":
		r.reply(ctx, ownerID, welcomeText)
	case "/busy":
		r.setBusy(ctx, ownerID, true, "You are now set as busy.")
	case "/available":
		r.setBusy(ctx, ownerID, false, "You are now set as available.")
	case "/set_auto_reply":
		r.setAutoReply(ctx, ownerID, args)
	case "/set_threshold":
		r.setThreshold(ctx, ownerID, args)
	case "/set_keywords":
		r.setKeywords(ctx, ownerID, args)
	case "/add_schedule":
		r.addSchedule(ctx, ownerID, args)
	case "/set_name":
		r.setField(ctx, ownerID, args, "Please provide a name.", "Display name set.", func(p *models.OwnerProfile, v string) {
			p.DisplayName = v
		})
	case "/set_user_info":
		r.setField(ctx, ownerID, args, "Please provide your FAQ info.", "FAQ info set.", func(p *models.OwnerProfile, v string) {
			p.FAQInfo = v
		})
	case "/deactivate":
		r.startDeactivation(ctx, ownerID)
	default:
		r.reply(ctx, ownerID, "Unknown command. Send /start for the command list.")
	}
}

func (r *Router) setBusy(ctx context.Context, ownerID string, busy bool, confirmation string) {
	err := r.settings.Update(ctx, ownerID, func(p *models.OwnerProfile) {
		p.Busy = busy
	})
	r.confirmOrRetry(ctx, ownerID, err, confirmation)
}

func (r *Router) setAutoReply(ctx context.Context, ownerID, args string) {
	if args == "" {
		r.reply(ctx, ownerID, "Please provide a message.")
		return
	}
	err := r.settings.Update(ctx, ownerID, func(p *models.OwnerProfile) {
		p.AutoReply = args
	})
	r.confirmOrRetry(ctx, ownerID, err, "Auto-reply message set.")
}

func (r *Router) setThreshold(ctx context.Context, ownerID, args string) {
	if args == "" {
		r.reply(ctx, ownerID, "Please provide Low, Medium, or High.")
		return
	}
	normalized := strings.ToLower(args)
	if normalized != "low" && normalized != "medium" && normalized != "high" {
		r.reply(ctx, ownerID, "Invalid: Low, Medium, High")
		return
	}
	threshold := models.ParseThreshold(args)
	err := r.settings.Update(ctx, ownerID, func(p *models.OwnerProfile) {
		p.Threshold = threshold
	})
	r.confirmOrRetry(ctx, ownerID, err, "Importance threshold set to "+string(threshold)+".")
}

func (r *Router) setKeywords(ctx context.Context, ownerID, args string) {
	if args == "" {
		r.reply(ctx, ownerID, "Please provide comma-separated keywords.")
		return
	}
	var keywords []string
	for _, kw := range strings.Split(args, ",") {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	err := r.settings.Update(ctx, ownerID, func(p *models.OwnerProfile) {
		p.Keywords = keywords
	})
	r.confirmOrRetry(ctx, ownerID, err, "Keywords set.")
}

func (r *Router) addSchedule(ctx context.Context, ownerID, args string) {
	if _, err := schedule.Parse(args); err != nil {
		r.reply(ctx, ownerID, "Usage: /add_schedule weekdays 09:00 17:00 or /add_schedule mon,tue,wed 09:00 17:00")
		return
	}
	err := r.settings.Update(ctx, ownerID, func(p *models.OwnerProfile) {
		p.Schedules = append(p.Schedules, args)
	})
	r.confirmOrRetry(ctx, ownerID, err, "Busy schedule added.")
}

func (r *Router) setField(ctx context.Context, ownerID, args, missing, confirmation string, apply func(*models.OwnerProfile, string)) {
	if args == "" {
		r.reply(ctx, ownerID, missing)
		return
	}
	err := r.settings.Update(ctx, ownerID, func(p *models.OwnerProfile) {
		apply(p, args)
	})
	r.confirmOrRetry(ctx, ownerID, err, confirmation)
}

func (r *Router) startDeactivation(ctx context.Context, ownerID string) {
	if err := r.settings.RequestDeactivation(ctx, ownerID); err != nil {
		r.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to mark profile pending deactivation")
		r.reply(ctx, ownerID, savedFailed)
		return
	}
	r.reply(ctx, ownerID, "This will delete your profile and settings. Reply YES to confirm; anything else cancels.")
}

func (r *Router) finishDeactivation(ctx context.Context, ownerID, text string) {
	deleted, err := r.settings.ConfirmDeactivation(ctx, ownerID, text)
	if err != nil {
		r.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to finish deactivation")
		r.reply(ctx, ownerID, savedFailed)
		return
	}
	if deleted {
		r.reply(ctx, ownerID, "Your profile has been deleted. Goodbye!")
		return
	}
	r.reply(ctx, ownerID, "Deactivation cancelled.")
}

func (r *Router) confirmOrRetry(ctx context.Context, ownerID string, err error, confirmation string) {
	if err != nil {
		r.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to update owner profile")
		r.reply(ctx, ownerID, savedFailed)
		return
	}
	r.reply(ctx, ownerID, confirmation)
}

func (r *Router) reply(ctx context.Context, ownerID, text string) {
	if err := r.messenger.SendMessage(ctx, ownerID, text); err != nil {
		r.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to send command reply")
	}
}
