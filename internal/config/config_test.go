package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every GITVAULT_ env var that Load() reads.
var allConfigKeys = []string{
	"GITVAULT_SECRET_KEY",
	"GITVAULT_JWT_SECRET",
	"GITVAULT_JWT_ISSUER",
	"GITVAULT_LISTEN_ADDR",
	"GITVAULT_DB_PATH",
	"GITVAULT_PROVIDER_TIMEOUT",
	"GITVAULT_GITHUB_BASE_URL",
	"GITVAULT_GITLAB_BASE_URL",
	"GITVAULT_ANALYSIS_QUEUE",
	"GITVAULT_ANALYSIS_PRIORITY",
}

// isolateConfigEnv saves and unsets all GITVAULT_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GITVAULT_SECRET_KEY", "global-secret")
	t.Setenv("GITVAULT_JWT_SECRET", "0123456789abcdef")
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("GITVAULT_JWT_ISSUER", "identity")
	t.Setenv("GITVAULT_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("GITVAULT_DB_PATH", "/tmp/test.db")
	t.Setenv("GITVAULT_PROVIDER_TIMEOUT", "5s")
	t.Setenv("GITVAULT_GITHUB_BASE_URL", "https://ghe.example.com/api/v3/")
	t.Setenv("GITVAULT_GITLAB_BASE_URL", "https://gitlab.example.com")
	t.Setenv("GITVAULT_ANALYSIS_QUEUE", "heavy")
	t.Setenv("GITVAULT_ANALYSIS_PRIORITY", "9")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "global-secret", cfg.SecretKey)
	assert.Equal(t, "0123456789abcdef", cfg.JWTSecret)
	assert.Equal(t, "identity", cfg.JWTIssuer)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "https://ghe.example.com/api/v3/", cfg.GitHubBaseURL)
	assert.Equal(t, "https://gitlab.example.com", cfg.GitLabBaseURL)
	assert.Equal(t, "heavy", cfg.AnalysisQueue)
	assert.Equal(t, 9, cfg.AnalysisPriority)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "gitvault.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "analysis", cfg.AnalysisQueue)
	assert.Equal(t, 5, cfg.AnalysisPriority)
	assert.Empty(t, cfg.JWTIssuer)
	assert.Empty(t, cfg.GitHubBaseURL)
	assert.Empty(t, cfg.GitLabBaseURL)
}

func TestLoad_MissingSecretKey(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITVAULT_JWT_SECRET", "0123456789abcdef")

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "GITVAULT_SECRET_KEY")
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITVAULT_SECRET_KEY", "global-secret")
	t.Setenv("GITVAULT_JWT_SECRET", "too-short")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITVAULT_JWT_SECRET")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not a duration", "soon"},
		{"zero", "0s"},
		{"negative", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequired(t)
			t.Setenv("GITVAULT_PROVIDER_TIMEOUT", tt.value)

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), "GITVAULT_PROVIDER_TIMEOUT")
		})
	}
}

func TestLoad_InvalidPriority(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("GITVAULT_ANALYSIS_PRIORITY", "high")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITVAULT_ANALYSIS_PRIORITY")
}

func TestLoad_EmptyOptionalFallsBack(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("GITVAULT_LISTEN_ADDR", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
}
