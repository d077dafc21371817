package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	gopass "github.com/nbutton23/zxcvbn-go"
)

// Config holds the relay configuration. It is built once at startup and
// passed by pointer into every component; nothing mutates it afterwards.
type Config struct {
	Server   ServerConfig   `json:"server"`
	HMAC     HMACConfig     `json:"hmac"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
	Relay    RelayConfig    `json:"relay"`
	Cache    CacheConfig    `json:"cache"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	BaseRoute       string        `json:"baseRoute"`
	ProxyHeader     string        `json:"proxyHeader"`
	TrustedProxies  []string      `json:"trustedProxies"`
	Debug           bool          `json:"debug"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// HMACConfig holds HMAC-related configuration
type HMACConfig struct {
	Secret string `json:"-"`
	// Window is the maximum accepted age of a signed timestamp.
	Window time.Duration `json:"window"`
	// MaxFutureSkew rejects timestamps further than this in the future.
	// Zero disables the bound.
	MaxFutureSkew time.Duration `json:"maxFutureSkew"`
}

// EmailConfig holds email-related configuration
type EmailConfig struct {
	SMTPEmail       string        `json:"smtpEmail"`
	SMTPFromName    string        `json:"smtpFromName"`
	SMTPHost        string        `json:"smtpHost"`
	SMTPPort        int           `json:"smtpPort"`
	SMTPUser        string        `json:"smtpUser"`
	SMTPPass        string        `json:"-"`
	SMTPTimeout     time.Duration `json:"smtpTimeout"`
	SMTPImplicitTLS bool          `json:"smtpImplicitTls"`
}

// SecurityConfig holds the origin guard allow-lists
type SecurityConfig struct {
	AllowedIPPrefixes []string `json:"allowedIpPrefixes"`
	AllowedOrigins    []string `json:"allowedOrigins"`
}

// RelayConfig holds the relay endpoint settings
type RelayConfig struct {
	Name              string   `json:"name"`
	MaxAttachmentSize int64    `json:"maxAttachmentSize"`
	SummaryFields     []string `json:"summaryFields"`
}

// CacheConfig holds the replay cache configuration
type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	Backend         string        `json:"backend"`
	Prefix          string        `json:"prefix"`
	MaxEntries      int           `json:"maxEntries"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
	Redis           RedisConfig   `json:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Address      string `json:"address"`
	Password     string `json:"-"`
	Database     int    `json:"database"`
	PoolSize     int    `json:"poolSize"`
	MinIdleConns int    `json:"minIdleConns"`
}

const (
	// DefaultMaxAttachmentSize is the attachment ceiling (5 MB)
	DefaultMaxAttachmentSize = 5 * 1024 * 1024

	// minSecretScore is the zxcvbn score under which HMAC_SECRET is reported as weak
	minSecretScore = 3
)

var validCacheBackends = []string{"memory", "redis"}

// LoadFromEnv loads configuration from the environment.
// It follows a clear precedence:
// 1. Explicit Environment Variables (e.g., set in the shell or by CI)
// 2. Values from the .env file (if it exists)
// 3. Hardcoded defaults (if applicable)
func LoadFromEnv() (*Config, error) {
	// godotenv.Load never overrides variables that are already set.
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	var loadErr error
	for _, envPath := range envPaths {
		loadErr = godotenv.Load(envPath)
		if loadErr == nil {
			break
		}
	}

	if loadErr != nil {
		fmt.Println("INFO: .env file not found, using environment variables and defaults.")
	}

	return load(os.LookupEnv)
}

// LoadFromMap loads configuration from an in-memory map.
// This is the primary helper for testing configuration logic in isolation
// without manipulating global environment variables.
func LoadFromMap(envMap map[string]string) (*Config, error) {
	return load(func(key string) (string, bool) {
		value, exists := envMap[key]
		return value, exists
	})
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	src := source{lookup: lookup}

	config := &Config{
		Server: ServerConfig{
			Host:            src.getString("HOST", "0.0.0.0"),
			Port:            src.getInt("SERVER_PORT", 8080),
			BaseRoute:       src.getString("BASE_ROUTE", "/api"),
			ProxyHeader:     src.getString("SERVER_PROXY_HEADER", ""),
			TrustedProxies:  src.getList("SERVER_TRUSTED_PROXIES", nil),
			Debug:           src.getBool("DEBUG", false),
			ReadTimeout:     src.getDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    src.getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: src.getDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		HMAC: HMACConfig{
			Secret:        src.getString("HMAC_SECRET", ""),
			Window:        src.getDuration("HMAC_WINDOW", 5*time.Minute),
			MaxFutureSkew: src.getDuration("HMAC_MAX_FUTURE_SKEW", 0),
		},
		Email: EmailConfig{
			SMTPEmail:       src.getString("SMTP_EMAIL", ""),
			SMTPFromName:    src.getString("SMTP_FROM_NAME", ""),
			SMTPHost:        src.getString("SMTP_HOST", ""),
			SMTPPort:        src.getInt("SMTP_PORT", 587),
			SMTPUser:        src.getString("SMTP_USER", ""),
			SMTPPass:        src.getString("SMTP_PASS", ""),
			SMTPTimeout:     src.getDuration("SMTP_TIMEOUT", 30*time.Second),
			SMTPImplicitTLS: src.getBool("SMTP_IMPLICIT_TLS", false),
		},
		Security: SecurityConfig{
			AllowedIPPrefixes: src.getList("SECURITY_ALLOWED_IP_PREFIXES", nil),
			AllowedOrigins:    src.getList("SECURITY_ALLOWED_ORIGINS", nil),
		},
		Relay: RelayConfig{
			Name:              src.getString("APP_NAME", "Telar Relay"),
			MaxAttachmentSize: src.getInt64("RELAY_MAX_ATTACHMENT_SIZE", DefaultMaxAttachmentSize),
			SummaryFields: src.getList("RELAY_SUMMARY_FIELDS", []string{
				"firstName", "lastName", "email", "phone", "company", "message",
			}),
		},
		Cache: CacheConfig{
			Enabled:         src.getBool("REPLAY_PROTECTION_ENABLED", true),
			Backend:         src.getString("CACHE_BACKEND", "memory"),
			Prefix:          src.getString("CACHE_PREFIX", "relay:replay:"),
			MaxEntries:      src.getInt("CACHE_MAX_ENTRIES", 100000),
			CleanupInterval: src.getDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
			Redis: RedisConfig{
				Address:      src.getString("REDIS_ADDRESS", "localhost:6379"),
				Password:     src.getString("REDIS_PASSWORD", ""),
				Database:     src.getInt("REDIS_DATABASE", 0),
				PoolSize:     src.getInt("REDIS_POOL_SIZE", 10),
				MinIdleConns: src.getInt("REDIS_MIN_IDLE_CONNS", 2),
			},
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration for required fields
func (c *Config) Validate() error {
	var errors []string

	if c.Server.ProxyHeader != "" && len(c.Server.TrustedProxies) == 0 {
		errors = append(errors, "SERVER_TRUSTED_PROXIES is required when SERVER_PROXY_HEADER is set")
	}
	for _, entry := range c.Server.TrustedProxies {
		if !validAddressOrCIDR(entry) {
			errors = append(errors, fmt.Sprintf("SERVER_TRUSTED_PROXIES entry %q is not an IP address or CIDR", entry))
		}
	}

	if strings.TrimSpace(c.HMAC.Secret) == "" {
		errors = append(errors, "HMAC_SECRET is required")
	}
	if c.HMAC.Window <= 0 {
		errors = append(errors, "HMAC_WINDOW must be positive")
	}
	if c.HMAC.MaxFutureSkew < 0 {
		errors = append(errors, "HMAC_MAX_FUTURE_SKEW must not be negative")
	}

	if strings.TrimSpace(c.Email.SMTPHost) == "" {
		errors = append(errors, "SMTP_HOST is required")
	}
	if strings.TrimSpace(c.Email.SMTPEmail) == "" {
		errors = append(errors, "SMTP_EMAIL is required")
	}
	if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
		errors = append(errors, "SMTP_PORT must be between 1 and 65535")
	}

	if len(c.Security.AllowedIPPrefixes) == 0 {
		errors = append(errors, "SECURITY_ALLOWED_IP_PREFIXES requires at least one entry")
	}
	for _, entry := range c.Security.AllowedIPPrefixes {
		if strings.Contains(entry, "/") {
			if _, err := netip.ParsePrefix(strings.TrimSpace(entry)); err != nil {
				errors = append(errors, fmt.Sprintf("SECURITY_ALLOWED_IP_PREFIXES entry %q is not a valid CIDR", entry))
			}
		}
	}

	if c.Relay.MaxAttachmentSize <= 0 {
		errors = append(errors, "RELAY_MAX_ATTACHMENT_SIZE must be positive")
	}

	if !contains(validCacheBackends, c.Cache.Backend) {
		errors = append(errors, fmt.Sprintf("CACHE_BACKEND must be one of: %s", strings.Join(validCacheBackends, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func validAddressOrCIDR(entry string) bool {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

// Warnings reports settings that are accepted but unsafe for production.
func (c *Config) Warnings() []string {
	var warnings []string

	if strength := gopass.PasswordStrength(c.HMAC.Secret, nil); strength.Score < minSecretScore {
		warnings = append(warnings, fmt.Sprintf("HMAC_SECRET is weak (score %d/4); use a long random value", strength.Score))
	}
	if len(c.Security.AllowedOrigins) == 0 {
		warnings = append(warnings, "SECURITY_ALLOWED_ORIGINS is empty; every request carrying an Origin header will be rejected")
	}
	if !c.Cache.Enabled {
		warnings = append(warnings, "replay protection is disabled; signed requests can be replayed within HMAC_WINDOW")
	}
	if c.Email.SMTPUser != "" && !c.Email.SMTPImplicitTLS && c.Email.SMTPPort == 25 {
		warnings = append(warnings, "SMTP credentials on port 25; make sure the server offers STARTTLS")
	}

	return warnings
}

// redacted replaces a configured secret in debug output
const redacted = "[REDACTED]"

// Redacted returns a copy with secrets masked, for debug dumps.
func (c *Config) Redacted() Config {
	out := *c
	out.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	out.Security.AllowedIPPrefixes = append([]string(nil), c.Security.AllowedIPPrefixes...)
	out.Security.AllowedOrigins = append([]string(nil), c.Security.AllowedOrigins...)
	out.Relay.SummaryFields = append([]string(nil), c.Relay.SummaryFields...)
	for _, secret := range []*string{&out.HMAC.Secret, &out.Email.SMTPPass, &out.Cache.Redis.Password} {
		if *secret != "" {
			*secret = redacted
		}
	}
	return out
}

// Address returns the listen address of the HTTP server
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// source reads typed values from a key lookup with defaults.
// Unparseable values fall back to the default.
type source struct {
	lookup func(string) (string, bool)
}

func (s source) getString(key, defaultValue string) string {
	if value, ok := s.lookup(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (s source) getInt(key string, defaultValue int) int {
	if value, ok := s.lookup(key); ok && value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s source) getInt64(key string, defaultValue int64) int64 {
	if value, ok := s.lookup(key); ok && value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s source) getBool(key string, defaultValue bool) bool {
	if value, ok := s.lookup(key); ok && value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (s source) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := s.lookup(key); ok && value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getList splits a comma separated value, dropping blanks.
func (s source) getList(key string, defaultValue []string) []string {
	value, ok := s.lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
