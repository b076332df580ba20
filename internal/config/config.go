package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	StoreType   string
	MongoURI    string
	MongoDB     string

	EventsWebhookURL string

	ReputationCacheTTLSeconds int
	LockWaitMs                int

	// Claim priority weights. TierWeight must stay above five times
	// ReputationWeight so that a higher tier always outranks any
	// reputation spread (reputation contributes at most 5 * ReputationWeight).
	TierWeight       float64
	ReputationWeight float64

	DefaultVisibilityDelayMinutes int
	DefaultClaimWindowMinutes     int

	// SweepIntervalSeconds drives the in-process claim window sweep.
	// Zero disables it; the /internal resolve-due endpoint then remains
	// the only trigger.
	SweepIntervalSeconds int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		StoreType:   getEnv("STORE_TYPE", "memory"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "scheduler"),

		EventsWebhookURL: getEnv("EVENTS_WEBHOOK_URL", ""),

		ReputationCacheTTLSeconds: getEnvInt("REPUTATION_CACHE_TTL_SECONDS", 300),
		LockWaitMs:                getEnvInt("LOCK_WAIT_MS", 2000),

		TierWeight:       getEnvFloat("TIER_WEIGHT", 600),
		ReputationWeight: getEnvFloat("REPUTATION_WEIGHT", 100),

		DefaultVisibilityDelayMinutes: getEnvInt("DEFAULT_VISIBILITY_DELAY_MINUTES", 120),
		DefaultClaimWindowMinutes:     getEnvInt("DEFAULT_CLAIM_WINDOW_MINUTES", 30),

		SweepIntervalSeconds: getEnvInt("SWEEP_INTERVAL_SECONDS", 60),
	}

	if cfg.TierWeight <= 5*cfg.ReputationWeight {
		return nil, fmt.Errorf("TIER_WEIGHT (%v) must exceed five times REPUTATION_WEIGHT (%v)", cfg.TierWeight, cfg.ReputationWeight)
	}
	if cfg.StoreType != "memory" && cfg.StoreType != "mongo" {
		return nil, fmt.Errorf("unknown STORE_TYPE %q", cfg.StoreType)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
