package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, vars map[string]string, fn func()) {
	t.Helper()
	saved := map[string]string{}
	hadVar := map[string]bool{}
	for k, v := range vars {
		if old, ok := os.LookupEnv(k); ok {
			saved[k] = old
			hadVar[k] = true
		}
		require.NoError(t, os.Setenv(k, v))
	}
	defer func() {
		for k := range vars {
			if hadVar[k] {
				os.Setenv(k, saved[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}()
	fn()
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	withEnv(t, map[string]string{"DATABASE_URL": ""}, func() {
		os.Unsetenv("DATABASE_URL")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadAppliesDefaults(t *testing.T) {
	withEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/promptforge",
	}, func() {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.ServerPort)
		assert.Equal(t, "development", cfg.AppEnv)
		assert.Equal(t, 100, cfg.CheckpointCacheLimit)
		assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	})
}

func TestLoadRejectsLocalhostAllowedInProduction(t *testing.T) {
	withEnv(t, map[string]string{
		"DATABASE_URL":             "postgres://localhost/promptforge",
		"APP_ENV":                  "production",
		"ALLOW_LOCALHOST_BASE_URL": "true",
	}, func() {
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadParsesCORSOrigins(t *testing.T) {
	withEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/promptforge",
		"CORS_ORIGINS": "https://a.example.com, https://b.example.com",
	}, func() {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	})
}

func TestURLPolicyValidate(t *testing.T) {
	strict := URLPolicy{}
	assert.NoError(t, strict.Validate("https://api.example.com/v1/run"))
	assert.Error(t, strict.Validate("http://api.example.com/v1/run"))
	assert.Error(t, strict.Validate("https://localhost:9999/run"))
	assert.Error(t, strict.Validate("https://10.0.0.5/run"))

	permissive := URLPolicy{AllowHTTP: true, AllowLocalhost: true, AllowPrivateNetwork: true}
	assert.NoError(t, permissive.Validate("http://localhost:9999/run"))
	assert.NoError(t, permissive.Validate("http://10.0.0.5/run"))
}

func TestURLPolicyValidateRejectsMalformedURL(t *testing.T) {
	var policy URLPolicy
	assert.Error(t, policy.Validate("://not-a-url"))
}
