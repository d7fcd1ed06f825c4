// Package config loads the service's environment-driven configuration
// into a single validated Config struct, grounded on the teacher's
// pkg/database.LoadConfigFromEnv getenv-with-default pattern generalized
// across every ambient concern instead of just the database.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the umbrella environment-driven configuration for
// cmd/engineserver, covering the HTTP server, database, checkpoint
// manager, and URL-policy knobs for outbound execution-target/teacher
// HTTP calls.
type Config struct {
	// Server
	ServerHost string
	ServerPort int
	AppEnv     string // "development" | "production" | "test"
	CORSOrigins []string

	// Database
	DatabaseURL string

	// Checkpoint manager
	CheckpointCacheLimit        int
	CheckpointMemoryAlertThreshold int

	// Teacher model
	TeacherModelDelay time.Duration

	// Auth
	SessionTTL          time.Duration
	LoginMaxFailures    uint32
	LoginCooldown       time.Duration

	// ConnectivityProbeURL is the URL the connectivity sentinel polls to
	// determine whether outbound execution-target calls can reach the
	// network. Empty disables active probing; the sentinel then reports
	// status from recorded execution outcomes alone.
	ConnectivityProbeURL string

	// Outbound URL policy for Dify/Generic execution-target and
	// teacher-model base URLs. URLPolicy.Validate is not called on the
	// task-creation path; task requests carry no base_url.
	URLPolicy URLPolicy
}

// URLPolicy governs which outbound base URLs a task is allowed to
// configure for HTTP execution targets / teacher models, guarding
// against SSRF via task-supplied endpoints.
type URLPolicy struct {
	AllowHTTP          bool // allow plain http:// (else https:// only)
	AllowLocalhost     bool // allow loopback addresses
	AllowPrivateNetwork bool // allow RFC 1918 / link-local addresses
}

// Validate checks rawURL against the policy, returning a Validation
// AppError-shaped error via the caller's own wrapping (this package has
// no apperrors dependency so it can be imported from anywhere without a
// cycle; callers wrap with apperrors.Validation).
func (p URLPolicy) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && !(p.AllowHTTP && u.Scheme == "http") {
		return fmt.Errorf("URL scheme %q not permitted", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL missing host")
	}

	if isLoopbackHost(host) && !p.AllowLocalhost {
		return fmt.Errorf("loopback host %q not permitted", host)
	}
	if isPrivateNetworkHost(host) && !p.AllowPrivateNetwork {
		return fmt.Errorf("private-network host %q not permitted", host)
	}
	return nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isPrivateNetworkHost(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// Load reads configuration from the environment (optionally loading a
// .env file first via godotenv) and validates it.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env file is not an error

	port, err := strconv.Atoi(getEnvOrDefault("SERVER_PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	cacheLimit, err := strconv.Atoi(getEnvOrDefault("CHECKPOINT_CACHE_LIMIT", "100"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CHECKPOINT_CACHE_LIMIT: %w", err)
	}
	alertThreshold, err := strconv.Atoi(getEnvOrDefault("CHECKPOINT_MEMORY_ALERT_THRESHOLD", "80"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CHECKPOINT_MEMORY_ALERT_THRESHOLD: %w", err)
	}

	teacherDelayMs, err := strconv.Atoi(getEnvOrDefault("PROMPT_FASTER_TEACHER_MODEL_DELAY_MS", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PROMPT_FASTER_TEACHER_MODEL_DELAY_MS: %w", err)
	}

	sessionTTL, err := parseDurationEnv("SESSION_TTL", "24h")
	if err != nil {
		return Config{}, err
	}
	loginCooldown, err := parseDurationEnv("LOGIN_ATTEMPT_COOLDOWN", "60s")
	if err != nil {
		return Config{}, err
	}
	loginMaxFailures, err := strconv.Atoi(getEnvOrDefault("LOGIN_ATTEMPT_MAX_FAILURES", "5"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOGIN_ATTEMPT_MAX_FAILURES: %w", err)
	}

	cfg := Config{
		ServerHost:  getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
		ServerPort:  port,
		AppEnv:      getEnvOrDefault("APP_ENV", "development"),
		CORSOrigins: splitCSV(getEnvOrDefault("CORS_ORIGINS", "")),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		CheckpointCacheLimit:           cacheLimit,
		CheckpointMemoryAlertThreshold: alertThreshold,

		TeacherModelDelay: time.Duration(teacherDelayMs) * time.Millisecond,

		SessionTTL:       sessionTTL,
		LoginMaxFailures: uint32(loginMaxFailures),
		LoginCooldown:    loginCooldown,

		ConnectivityProbeURL: os.Getenv("CONNECTIVITY_PROBE_URL"),

		URLPolicy: URLPolicy{
			AllowHTTP:           getEnvBool("ALLOW_HTTP_BASE_URL", false),
			AllowLocalhost:      getEnvBool("ALLOW_LOCALHOST_BASE_URL", isDevEnv()),
			AllowPrivateNetwork: getEnvBool("ALLOW_PRIVATE_NETWORK_BASE_URL", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// isDevEnv is a one-shot helper so URLPolicy's localhost default can
// read APP_ENV before Config exists; it duplicates one getenv call
// rather than restructure Load's field order.
func isDevEnv() bool {
	return getEnvOrDefault("APP_ENV", "development") != "production"
}

// Validate checks cross-field and required-value invariants.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.CheckpointCacheLimit < 1 {
		return fmt.Errorf("CHECKPOINT_CACHE_LIMIT must be at least 1")
	}
	if c.CheckpointMemoryAlertThreshold < 1 || c.CheckpointMemoryAlertThreshold > c.CheckpointCacheLimit {
		return fmt.Errorf("CHECKPOINT_MEMORY_ALERT_THRESHOLD must be between 1 and CHECKPOINT_CACHE_LIMIT")
	}
	if c.AppEnv == "production" && c.URLPolicy.AllowLocalhost {
		return fmt.Errorf("ALLOW_LOCALHOST_BASE_URL cannot be enabled in production")
	}
	return nil
}

// Addr returns the host:port pair Start listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func parseDurationEnv(key, defaultVal string) (time.Duration, error) {
	raw := getEnvOrDefault(key, defaultVal)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
