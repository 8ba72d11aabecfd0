package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/metrics"
	"autopilot-assistant/pkg/models"
)

const (
	settingsKeyPrefix     = "users:"
	conversationKeyPrefix = "conversations:"
	scanBatchSize         = 100
)

// RedisSettings is the Redis-backed SettingsStore. Profiles live in one hash
// per owner under users:<id>, refreshed with a TTL on every write.
type RedisSettings struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
	ttl     time.Duration
}

func NewRedisSettings(rdb *redis.Client, logger *logrus.Logger, m *metrics.Metrics, ttl time.Duration) *RedisSettings {
	return &RedisSettings{rdb: rdb, logger: logger, metrics: m, ttl: ttl}
}

func (s *RedisSettings) GetProfile(ctx context.Context, ownerID string) (models.OwnerProfile, bool, error) {
	start := time.Now()
	defer func() {
		s.metrics.RedisOperationDuration.WithLabelValues("get_profile").Observe(time.Since(start).Seconds())
	}()

	fields, err := s.rdb.HGetAll(ctx, settingsKeyPrefix+ownerID).Result()
	if err != nil {
		return models.OwnerProfile{}, false, fmt.Errorf("failed to read profile: %w", err)
	}
	if len(fields) == 0 {
		return models.OwnerProfile{}, false, nil
	}
	return decodeProfile(ownerID, fields), true, nil
}

func (s *RedisSettings) PutProfile(ctx context.Context, profile models.OwnerProfile) error {
	start := time.Now()
	defer func() {
		s.metrics.RedisOperationDuration.WithLabelValues("put_profile").Observe(time.Since(start).Seconds())
	}()

	schedules, err := json.Marshal(profile.Schedules)
	if err != nil {
		return fmt.Errorf("failed to encode schedules: %w", err)
	}

	key := settingsKeyPrefix + profile.OwnerID
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"username":             profile.Username,
		"busy":                 boolField(profile.Busy),
		"auto_reply":           profile.AutoReply,
		"importance_threshold": string(profile.Threshold),
		"keywords":             strings.Join(profile.Keywords, ","),
		"busy_schedules":       string(schedules),
		"user_name":            profile.DisplayName,
		"user_info":            profile.FAQInfo,
		"state":                string(profile.State),
	})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

func (s *RedisSettings) DeleteProfile(ctx context.Context, ownerID string) error {
	start := time.Now()
	defer func() {
		s.metrics.RedisOperationDuration.WithLabelValues("delete_profile").Observe(time.Since(start).Seconds())
	}()

	if err := s.rdb.Del(ctx, settingsKeyPrefix+ownerID).Err(); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

func (s *RedisSettings) EachProfile(ctx context.Context, fn func(models.OwnerProfile) bool) error {
	start := time.Now()
	defer func() {
		s.metrics.RedisOperationDuration.WithLabelValues("scan_profiles").Observe(time.Since(start).Seconds())
	}()

	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, settingsKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan profiles: %w", err)
		}
		for _, key := range keys {
			fields, err := s.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				s.logger.WithError(err).WithField("key", key).Error("Failed to read profile during scan")
				continue
			}
			if len(fields) == 0 {
				continue
			}
			if !fn(decodeProfile(strings.TrimPrefix(key, settingsKeyPrefix), fields)) {
				return nil
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func decodeProfile(ownerID string, fields map[string]string) models.OwnerProfile {
	profile := models.OwnerProfile{
		OwnerID:     ownerID,
		Username:    fields["username"],
		Busy:        fields["busy"] == "1",
		AutoReply:   fields["auto_reply"],
		Threshold:   models.ParseThreshold(fields["importance_threshold"]),
		DisplayName: fields["user_name"],
		FAQInfo:     fields["user_info"],
		State:       models.ProfileActive,
	}
	if raw := fields["keywords"]; raw != "" {
		profile.Keywords = strings.Split(raw, ",")
	}
	if raw := fields["busy_schedules"]; raw != "" {
		// Unknown or damaged schedule payloads are dropped; the busy
		// resolver already tolerates malformed entries.
		_ = json.Unmarshal([]byte(raw), &profile.Schedules)
	}
	if fields["state"] == string(models.ProfilePendingDeactivation) {
		profile.State = models.ProfilePendingDeactivation
	}
	return profile
}

// RedisConversations is the Redis-backed ConversationStore. Each contact's
// record is one hash under conversations:<id>, with the history serialized
// as a single JSON value. Retention is the sweeper's job, so no TTL is set.
type RedisConversations struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewRedisConversations(rdb *redis.Client, logger *logrus.Logger, m *metrics.Metrics) *RedisConversations {
	return &RedisConversations{rdb: rdb, logger: logger, metrics: m}
}

func (s *RedisConversations) Get(ctx context.Context, contactID string) (*models.Conversation, error) {
	start := time.Now()
	defer func() {
		s.metrics.RedisOperationDuration.WithLabelValues("get_conversation").Observe(time.Since(start).Seconds())
	}()

	fields, err := s.rdb.HGetAll(ctx, conversationKeyPrefix+contactID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeConversation(contactID, fields)
}

func (s *RedisConversations) Put(ctx context.Context, conv *models.Conversation) error {
	start := time.Now()
	defer func() {
		s.metrics.RedisOperationDuration.WithLabelValues("put_conversation").Observe(time.Since(start).Seconds())
	}()

	history, err := json.Marshal(conv.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	err = s.rdb.HSet(ctx, conversationKeyPrefix+conv.ContactID, map[string]interface{}{
		"conversation": string(history),
		"escalated":    boolField(conv.Escalated),
		"owner_id":     conv.OwnerID,
		"state":        string(conv.State),
		"started_at":   strconv.FormatInt(conv.StartedAt.Unix(), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	return nil
}

func (s *RedisConversations) Delete(ctx context.Context, contactID string) error {
	start := time.Now()
	defer func() {
		s.metrics.RedisOperationDuration.WithLabelValues("delete_conversation").Observe(time.Since(start).Seconds())
	}()

	if err := s.rdb.Del(ctx, conversationKeyPrefix+contactID).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (s *RedisConversations) Each(ctx context.Context, fn func(contactID string, conv *models.Conversation, err error)) error {
	start := time.Now()
	defer func() {
		s.metrics.RedisOperationDuration.WithLabelValues("scan_conversations").Observe(time.Since(start).Seconds())
	}()

	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, conversationKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan conversations: %w", err)
		}
		for _, key := range keys {
			contactID := strings.TrimPrefix(key, conversationKeyPrefix)
			fields, err := s.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				fn(contactID, nil, err)
				continue
			}
			if len(fields) == 0 {
				continue
			}
			conv, err := decodeConversation(contactID, fields)
			fn(contactID, conv, err)
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func decodeConversation(contactID string, fields map[string]string) (*models.Conversation, error) {
	rawHistory, ok := fields["conversation"]
	if !ok {
		return nil, fmt.Errorf("%w: missing history", ErrCorruptRecord)
	}
	var history []models.Message
	if err := json.Unmarshal([]byte(rawHistory), &history); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	startedAt, err := strconv.ParseInt(fields["started_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad started_at %q", ErrCorruptRecord, fields["started_at"])
	}

	state := models.DialogueState(fields["state"])
	if state != models.StateNormal && state != models.StateAwaitingOwnerSelection {
		return nil, fmt.Errorf("%w: unknown state %q", ErrCorruptRecord, fields["state"])
	}

	return &models.Conversation{
		ContactID: contactID,
		OwnerID:   fields["owner_id"],
		State:     state,
		History:   history,
		Escalated: fields["escalated"] == "1",
		StartedAt: time.Unix(startedAt, 0),
	}, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
