package store

import (
	"context"
	"errors"

	"autopilot-assistant/pkg/models"
)

// ErrCorruptRecord marks a persisted conversation record that cannot be
// decoded. The sweeper deletes such records unconditionally.
var ErrCorruptRecord = errors.New("corrupt conversation record")

// SettingsStore persists owner profiles, one per owner identity.
type SettingsStore interface {
	// GetProfile returns the stored profile and whether one exists.
	GetProfile(ctx context.Context, ownerID string) (models.OwnerProfile, bool, error)
	PutProfile(ctx context.Context, profile models.OwnerProfile) error
	DeleteProfile(ctx context.Context, ownerID string) error
	// EachProfile visits every stored profile until fn returns false.
	EachProfile(ctx context.Context, fn func(models.OwnerProfile) bool) error
}

// ConversationStore persists conversation records, one per contact identity.
type ConversationStore interface {
	// Get returns nil when no record exists, and ErrCorruptRecord when a
	// record exists but cannot be decoded.
	Get(ctx context.Context, contactID string) (*models.Conversation, error)
	Put(ctx context.Context, conv *models.Conversation) error
	Delete(ctx context.Context, contactID string) error
	// Each visits every stored record. Records that fail to decode are
	// reported with a nil conversation and the decode error; iteration
	// continues either way.
	Each(ctx context.Context, fn func(contactID string, conv *models.Conversation, err error)) error
}
