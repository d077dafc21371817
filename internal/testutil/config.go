package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	platformconfig "github.com/qolzam/telar/apps/relay/internal/platform/config"
)

const (
	// TestSecret is the HMAC secret used by test configs.
	TestSecret = "K9v!tq2#Lr8@zX4m^Wp7&Hs1*Nd6"

	// TestClientIP is an address accepted by the test allow-list.
	TestClientIP = "10.0.0.7"

	// TestOrigin is an origin accepted by the test allow-list.
	TestOrigin = "https://forms.example.com"

	// TestProxyIP is the peer address fiber's app.Test connections report;
	// test configs trust it as a reverse proxy.
	TestProxyIP = "0.0.0.0"
)

// TestEnv returns a complete, valid environment for LoadFromMap.
func TestEnv() map[string]string {
	return map[string]string{
		"HMAC_SECRET":                  TestSecret,
		"HMAC_WINDOW":                  "5m",
		"SMTP_HOST":                    "smtp.example.com",
		"SMTP_PORT":                    "587",
		"SMTP_EMAIL":                   "relay@example.com",
		"SMTP_FROM_NAME":               "Telar Relay",
		"SECURITY_ALLOWED_IP_PREFIXES": "127.0.0.1,10.0.0.",
		"SERVER_PROXY_HEADER":          ForwardedForHeader,
		"SERVER_TRUSTED_PROXIES":       TestProxyIP,
		"SECURITY_ALLOWED_ORIGINS":     TestOrigin,
		"APP_NAME":                     "Telar Relay",
		"CACHE_BACKEND":                "memory",
		"CACHE_CLEANUP_INTERVAL":       "0s",
	}
}

// LoadTestConfig builds a platform config from TestEnv with overrides applied.
func LoadTestConfig(t *testing.T, overrides map[string]string) *platformconfig.Config {
	t.Helper()

	env := TestEnv()
	for k, v := range overrides {
		env[k] = v
	}

	cfg, err := platformconfig.LoadFromMap(env)
	require.NoError(t, err, "test config must be valid")
	return cfg
}
