package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/models"
	"autopilot-assistant/pkg/schedule"
	"autopilot-assistant/pkg/store"
)

// DefaultAutoReply greets a new contact while the owner is away. The
// placeholder is substituted with the owner's display name.
const DefaultAutoReply = "Hi! [User's Name] is busy right now. I'm their AI assistant - tell me what you need and I'll pass it along."

// NamePlaceholder is the token in auto-reply templates that gets replaced by
// the owner's display name.
const NamePlaceholder = "[User's Name]"

// Service wraps the settings store with profile defaults, the busy resolver
// and the owner directory.
type Service struct {
	store  store.SettingsStore
	logger *logrus.Logger
	now    func() time.Time
}

func NewService(st store.SettingsStore, logger *logrus.Logger) *Service {
	return &Service{store: st, logger: logger, now: time.Now}
}

// WithClock overrides the clock used by the busy resolver. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// DefaultProfile returns a fresh profile with documented defaults applied.
func DefaultProfile(ownerID string) models.OwnerProfile {
	return models.OwnerProfile{
		OwnerID:     ownerID,
		AutoReply:   DefaultAutoReply,
		Threshold:   models.ThresholdMedium,
		DisplayName: "the owner",
		State:       models.ProfileActive,
	}
}

// Get returns the owner's profile. A missing profile, or a store read
// failure, yields the default profile: reads never propagate store errors to
// the message path.
func (s *Service) Get(ctx context.Context, ownerID string) models.OwnerProfile {
	profile, ok, err := s.store.GetProfile(ctx, ownerID)
	if err != nil {
		s.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to read owner profile, using defaults")
		return DefaultProfile(ownerID)
	}
	if !ok {
		return DefaultProfile(ownerID)
	}
	return profile
}

// Exists reports whether an owner profile is stored for the identity.
func (s *Service) Exists(ctx context.Context, ownerID string) bool {
	_, ok, err := s.store.GetProfile(ctx, ownerID)
	if err != nil {
		s.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to check owner profile")
		return false
	}
	return ok
}

// EnsureOwner creates a default profile for a configured owner if none is
// stored yet, recording the owner's username for the directory.
func (s *Service) EnsureOwner(ctx context.Context, ownerID, username string) error {
	profile, ok, err := s.store.GetProfile(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to read owner profile: %w", err)
	}
	if !ok {
		profile = DefaultProfile(ownerID)
	}
	if username != "" {
		profile.Username = username
	}
	return s.store.PutProfile(ctx, profile)
}

// IsBusy resolves the owner's busy verdict: the manual flag wins, otherwise
// any matching schedule window makes the owner busy. Malformed schedule
// entries are skipped and logged, never trusted.
func (s *Service) IsBusy(ctx context.Context, ownerID string) bool {
	profile := s.Get(ctx, ownerID)
	if profile.Busy {
		return true
	}

	matched, errs := schedule.AnyMatch(profile.Schedules, s.now())
	for _, err := range errs {
		s.logger.WithError(err).WithField("owner_id", ownerID).Warn("Skipping malformed busy schedule entry")
	}
	return matched
}

// ResolveUsername maps an @username to the owner's profile via the owner
// directory. The leading @ and case are ignored.
func (s *Service) ResolveUsername(ctx context.Context, username string) (models.OwnerProfile, bool) {
	want := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if want == "" {
		return models.OwnerProfile{}, false
	}

	var found models.OwnerProfile
	ok := false
	err := s.store.EachProfile(ctx, func(profile models.OwnerProfile) bool {
		if strings.ToLower(profile.Username) == want {
			found = profile
			ok = true
			return false
		}
		return true
	})
	if err != nil {
		s.logger.WithError(err).WithField("username", want).Error("Owner directory scan failed")
		return models.OwnerProfile{}, false
	}
	return found, ok
}

// Update applies fn to the owner's current profile (or a default one) and
// persists the result.
func (s *Service) Update(ctx context.Context, ownerID string, fn func(*models.OwnerProfile)) error {
	profile, ok, err := s.store.GetProfile(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to read owner profile: %w", err)
	}
	if !ok {
		profile = DefaultProfile(ownerID)
	}
	fn(&profile)
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to write owner profile: %w", err)
	}
	return nil
}

// RequestDeactivation marks the profile pending deactivation. The profile is
// only deleted once ConfirmDeactivation sees the confirmation.
func (s *Service) RequestDeactivation(ctx context.Context, ownerID string) error {
	return s.Update(ctx, ownerID, func(p *models.OwnerProfile) {
		p.State = models.ProfilePendingDeactivation
	})
}

// ConfirmDeactivation finishes the two-step deactivation. "YES" deletes the
// profile entirely; anything else cancels and the profile returns to active.
// Returns whether the profile was deleted.
func (s *Service) ConfirmDeactivation(ctx context.Context, ownerID, reply string) (bool, error) {
	if strings.TrimSpace(reply) == "YES" {
		if err := s.store.DeleteProfile(ctx, ownerID); err != nil {
			return false, fmt.Errorf("failed to delete owner profile: %w", err)
		}
		return true, nil
	}
	err := s.Update(ctx, ownerID, func(p *models.OwnerProfile) {
		p.State = models.ProfileActive
	})
	return false, err
}

// RenderAutoReply substitutes the owner's display name into the auto-reply
// template.
func RenderAutoReply(profile models.OwnerProfile) string {
	return strings.ReplaceAll(profile.AutoReply, NamePlaceholder, profile.DisplayName)
}
