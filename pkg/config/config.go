package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OwnerSeed is a configured owner identity, "id:username".
type OwnerSeed struct {
	OwnerID  string
	Username string
}

type Config struct {
	RedisURL              string
	Port                  string
	LogLevel              string
	InstanceID            string
	TelegramToken         string
	TelegramAPIBase       string
	TelegramPollTimeoutS  int
	OpenAIKey             string
	OpenAIBaseURL         string
	OpenAIModel           string
	OwnerSeeds            []OwnerSeed
	HistoryWindow         int
	ExternalCallTimeoutMS int64
	SweepIntervalMS       int64
	RetentionHours        int
	SettingsTTLHours      int
	MaxConcurrentContacts int
}

func Load() *Config {
	config := &Config{
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		InstanceID:            getEnv("INSTANCE_ID", generateInstanceID()),
		TelegramToken:         getEnv("TELEGRAM_TOKEN", ""),
		TelegramAPIBase:       getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
		TelegramPollTimeoutS:  getEnvInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 30),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4"),
		OwnerSeeds:            parseOwnerSeeds(getEnv("OWNER_IDS", "")),
		HistoryWindow:         getEnvInt("HISTORY_WINDOW", 5),
		ExternalCallTimeoutMS: getEnvInt64("EXTERNAL_CALL_TIMEOUT_MS", 30000),
		SweepIntervalMS:       getEnvInt64("SWEEP_INTERVAL_MS", 300000),
		RetentionHours:        getEnvInt("RETENTION_HOURS", 24),
		SettingsTTLHours:      getEnvInt("SETTINGS_TTL_HOURS", 720),
		MaxConcurrentContacts: getEnvInt("MAX_CONCURRENT_CONTACTS", 16),
	}

	return config
}

func (c *Config) ExternalCallTimeout() time.Duration {
	return time.Duration(c.ExternalCallTimeoutMS) * time.Millisecond
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

func (c *Config) RetentionAge() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c *Config) SettingsTTL() time.Duration {
	return time.Duration(c.SettingsTTLHours) * time.Hour
}

// parseOwnerSeeds parses "id:username,id:username". Entries without a
// username are kept with an empty username; blank entries are dropped.
func parseOwnerSeeds(raw string) []OwnerSeed {
	var seeds []OwnerSeed
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, username, _ := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		seeds = append(seeds, OwnerSeed{
			OwnerID:  id,
			Username: strings.TrimSpace(strings.TrimPrefix(username, "@")),
		})
	}
	return seeds
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func generateInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
