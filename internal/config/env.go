// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Store
	DBPath     string
	DBPathTest string

	// Network
	ListenAddress   string
	ConsumerPort    int
	APIMaxBodyBytes int

	// Collaborators
	RealtimeURL string
	ReadURL     string
	ReadAPIKey  string

	// Delivery
	WebhookTimeout time.Duration
	ClaimWindow    time.Duration
	SentWindow     time.Duration

	// Dispatcher tuning
	DispatchBatchLimit   int
	DispatchMaxRetries   int
	DispatchRetrySleep   time.Duration
	DispatchStepSleep    time.Duration
	DispatchDrainCooloff time.Duration
	DispatchInitialDelay time.Duration
	DispatchSuccessDelay time.Duration
	DispatchMaxDelay     time.Duration

	// Ingestion
	SubscriptionCacheTTL time.Duration

	// Janitor
	JanitorSchedule string
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any required variable is missing or any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Store ---
	cfg.DBPath = strings.TrimSpace(envStr("WEB3CACHE_DB_PATH", ""))
	cfg.DBPathTest = strings.TrimSpace(envStr("WEB3CACHE_DB_PATH_TEST", ""))

	// --- Network ---
	cfg.ListenAddress = strings.TrimSpace(envStr("WEB3CACHE_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.ConsumerPort = envInt("WEB3CACHE_CONSUMER_PORT", 3001, &errs)
	cfg.APIMaxBodyBytes = envInt("WEB3CACHE_API_MAX_BODY_BYTES", 8<<20, &errs)

	// --- Collaborators ---
	cfg.RealtimeURL = strings.TrimSpace(envStr("WEB3CACHE_REALTIME_URL", ""))
	cfg.ReadURL = strings.TrimSpace(envStr("WEB3CACHE_READ_URL", ""))
	cfg.ReadAPIKey = envStr("WEB3CACHE_READ_API_KEY", "")

	// --- Delivery windows ---
	cfg.WebhookTimeout = envDuration("WEB3CACHE_WEBHOOK_TIMEOUT", 8*time.Second, &errs)
	cfg.ClaimWindow = envDuration("WEB3CACHE_CLAIM_WINDOW", 10*time.Second, &errs)
	cfg.SentWindow = envDuration("WEB3CACHE_SENT_WINDOW", 60*time.Second, &errs)

	// --- Dispatcher tuning ---
	cfg.DispatchBatchLimit = envInt("WEB3CACHE_DISPATCH_BATCH_LIMIT", 50, &errs)
	cfg.DispatchMaxRetries = envInt("WEB3CACHE_DISPATCH_MAX_RETRIES", 15, &errs)
	cfg.DispatchRetrySleep = envDuration("WEB3CACHE_DISPATCH_RETRY_SLEEP", 50*time.Millisecond, &errs)
	cfg.DispatchStepSleep = envDuration("WEB3CACHE_DISPATCH_STEP_SLEEP", 200*time.Millisecond, &errs)
	cfg.DispatchDrainCooloff = envDuration("WEB3CACHE_DISPATCH_DRAIN_COOLOFF", time.Second, &errs)
	cfg.DispatchInitialDelay = envDuration("WEB3CACHE_DISPATCH_INITIAL_DELAY", 100*time.Millisecond, &errs)
	cfg.DispatchSuccessDelay = envDuration("WEB3CACHE_DISPATCH_SUCCESS_DELAY", 150*time.Millisecond, &errs)
	cfg.DispatchMaxDelay = envDuration("WEB3CACHE_DISPATCH_MAX_DELAY", 10*time.Second, &errs)

	// --- Ingestion ---
	cfg.SubscriptionCacheTTL = envDuration("WEB3CACHE_SUBSCRIPTION_CACHE_TTL", time.Second, &errs)

	// --- Janitor ---
	cfg.JanitorSchedule = envStr("WEB3CACHE_JANITOR_SCHEDULE", "30 4 * * *")

	// --- Validation ---
	if cfg.DBPath == "" {
		errs = append(errs, "WEB3CACHE_DB_PATH must be set")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "WEB3CACHE_LISTEN_ADDRESS must not be empty")
	}
	validatePort("WEB3CACHE_CONSUMER_PORT", cfg.ConsumerPort, &errs)
	validatePositive("WEB3CACHE_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)

	if cfg.RealtimeURL == "" {
		errs = append(errs, "WEB3CACHE_REALTIME_URL must be set")
	} else {
		validateBaseURL("WEB3CACHE_REALTIME_URL", cfg.RealtimeURL, &errs)
	}
	if cfg.ReadURL != "" {
		validateBaseURL("WEB3CACHE_READ_URL", cfg.ReadURL, &errs)
	}

	validatePositiveDuration("WEB3CACHE_WEBHOOK_TIMEOUT", cfg.WebhookTimeout, &errs)
	validatePositiveDuration("WEB3CACHE_CLAIM_WINDOW", cfg.ClaimWindow, &errs)
	validatePositiveDuration("WEB3CACHE_SENT_WINDOW", cfg.SentWindow, &errs)
	if cfg.WebhookTimeout >= cfg.ClaimWindow {
		errs = append(errs, "WEB3CACHE_WEBHOOK_TIMEOUT must be less than WEB3CACHE_CLAIM_WINDOW")
	}

	validatePositive("WEB3CACHE_DISPATCH_BATCH_LIMIT", cfg.DispatchBatchLimit, &errs)
	validatePositive("WEB3CACHE_DISPATCH_MAX_RETRIES", cfg.DispatchMaxRetries, &errs)
	validatePositiveDuration("WEB3CACHE_DISPATCH_RETRY_SLEEP", cfg.DispatchRetrySleep, &errs)
	validatePositiveDuration("WEB3CACHE_DISPATCH_STEP_SLEEP", cfg.DispatchStepSleep, &errs)
	validatePositiveDuration("WEB3CACHE_DISPATCH_DRAIN_COOLOFF", cfg.DispatchDrainCooloff, &errs)
	validatePositiveDuration("WEB3CACHE_DISPATCH_INITIAL_DELAY", cfg.DispatchInitialDelay, &errs)
	validatePositiveDuration("WEB3CACHE_DISPATCH_SUCCESS_DELAY", cfg.DispatchSuccessDelay, &errs)
	validatePositiveDuration("WEB3CACHE_DISPATCH_MAX_DELAY", cfg.DispatchMaxDelay, &errs)
	if cfg.DispatchMaxDelay < cfg.DispatchInitialDelay {
		errs = append(errs, "WEB3CACHE_DISPATCH_MAX_DELAY must be >= WEB3CACHE_DISPATCH_INITIAL_DELAY")
	}

	if cfg.SubscriptionCacheTTL < 0 {
		errs = append(errs, "WEB3CACHE_SUBSCRIPTION_CACHE_TTL must not be negative")
	}

	if _, err := cron.ParseStandard(cfg.JanitorSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("WEB3CACHE_JANITOR_SCHEDULE: invalid cron expression %q: %v", cfg.JanitorSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validatePositiveDuration(name string, value time.Duration, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %s", name, value))
	}
}

func validateBaseURL(name, raw string, errs *[]string) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		*errs = append(*errs, fmt.Sprintf("%s: invalid URL %q", name, raw))
	}
}
