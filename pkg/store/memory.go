package store

import (
	"context"
	"sort"
	"sync"

	"autopilot-assistant/pkg/models"
)

// MemorySettings is an in-memory SettingsStore for tests and local runs.
type MemorySettings struct {
	mu       sync.Mutex
	profiles map[string]models.OwnerProfile

	// FailWrites makes every mutation return ErrInjected, simulating an
	// unavailable store.
	FailWrites bool
}

func NewMemorySettings() *MemorySettings {
	return &MemorySettings{profiles: make(map[string]models.OwnerProfile)}
}

type injectedError struct{}

func (injectedError) Error() string { return "injected store failure" }

// ErrInjected is returned by the in-memory stores when failure injection is
// enabled.
var ErrInjected error = injectedError{}

func (s *MemorySettings) GetProfile(_ context.Context, ownerID string) (models.OwnerProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[ownerID]
	return profile, ok, nil
}

func (s *MemorySettings) PutProfile(_ context.Context, profile models.OwnerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrInjected
	}
	s.profiles[profile.OwnerID] = profile
	return nil
}

func (s *MemorySettings) DeleteProfile(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrInjected
	}
	delete(s.profiles, ownerID)
	return nil
}

func (s *MemorySettings) EachProfile(_ context.Context, fn func(models.OwnerProfile) bool) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	profiles := make([]models.OwnerProfile, 0, len(ids))
	for _, id := range ids {
		profiles = append(profiles, s.profiles[id])
	}
	s.mu.Unlock()

	for _, profile := range profiles {
		if !fn(profile) {
			return nil
		}
	}
	return nil
}

// MemoryConversations is an in-memory ConversationStore for tests and local
// runs. Records marked corrupt behave like undecodable Redis hashes.
type MemoryConversations struct {
	mu            sync.Mutex
	conversations map[string]models.Conversation
	corrupt       map[string]bool
}

func NewMemoryConversations() *MemoryConversations {
	return &MemoryConversations{
		conversations: make(map[string]models.Conversation),
		corrupt:       make(map[string]bool),
	}
}

// MarkCorrupt makes the record for contactID undecodable.
func (s *MemoryConversations) MarkCorrupt(contactID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt[contactID] = true
	if _, ok := s.conversations[contactID]; !ok {
		s.conversations[contactID] = models.Conversation{ContactID: contactID}
	}
}

func (s *MemoryConversations) Get(_ context.Context, contactID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupt[contactID] {
		return nil, ErrCorruptRecord
	}
	conv, ok := s.conversations[contactID]
	if !ok {
		return nil, nil
	}
	copied := cloneConversation(conv)
	return &copied, nil
}

func (s *MemoryConversations) Put(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ContactID] = cloneConversation(*conv)
	delete(s.corrupt, conv.ContactID)
	return nil
}

func (s *MemoryConversations) Delete(_ context.Context, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, contactID)
	delete(s.corrupt, contactID)
	return nil
}

func (s *MemoryConversations) Each(_ context.Context, fn func(contactID string, conv *models.Conversation, err error)) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	type entry struct {
		id      string
		conv    models.Conversation
		corrupt bool
	}
	entries := make([]entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, entry{id: id, conv: cloneConversation(s.conversations[id]), corrupt: s.corrupt[id]})
	}
	s.mu.Unlock()

	for _, e := range entries {
		if e.corrupt {
			fn(e.id, nil, ErrCorruptRecord)
			continue
		}
		conv := e.conv
		fn(e.id, &conv, nil)
	}
	return nil
}

func cloneConversation(conv models.Conversation) models.Conversation {
	copied := conv
	copied.History = append([]models.Message(nil), conv.History...)
	return copied
}
