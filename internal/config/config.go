// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const minJWTSecretLen = 16

// Config holds the application configuration loaded from environment variables.
type Config struct {
	SecretKey        string
	JWTSecret        string
	JWTIssuer        string
	ListenAddr       string
	DBPath           string
	ProviderTimeout  time.Duration
	GitHubBaseURL    string
	GitLabBaseURL    string
	AnalysisQueue    string
	AnalysisPriority int
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win.
//
// GITVAULT_SECRET_KEY and GITVAULT_JWT_SECRET are required. Optional variables
// with defaults: GITVAULT_LISTEN_ADDR (127.0.0.1:8080), GITVAULT_DB_PATH
// (gitvault.db), GITVAULT_PROVIDER_TIMEOUT (30s), GITVAULT_ANALYSIS_QUEUE
// (analysis), GITVAULT_ANALYSIS_PRIORITY (5). GITVAULT_JWT_ISSUER,
// GITVAULT_GITHUB_BASE_URL and GITVAULT_GITLAB_BASE_URL are optional.
func Load() (*Config, error) {
	_ = godotenv.Load()

	secretKey := os.Getenv("GITVAULT_SECRET_KEY")
	if secretKey == "" {
		return nil, errors.New("GITVAULT_SECRET_KEY is required")
	}

	jwtSecret := os.Getenv("GITVAULT_JWT_SECRET")
	if len(jwtSecret) < minJWTSecretLen {
		return nil, fmt.Errorf("GITVAULT_JWT_SECRET must be at least %d characters", minJWTSecretLen)
	}

	providerTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("GITVAULT_PROVIDER_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GITVAULT_PROVIDER_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("GITVAULT_PROVIDER_TIMEOUT must be positive, got %s", parsed)
		}
		providerTimeout = parsed
	}

	priority := 5
	if v, ok := os.LookupEnv("GITVAULT_ANALYSIS_PRIORITY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("GITVAULT_ANALYSIS_PRIORITY has invalid integer %q: %w", v, err)
		}
		priority = parsed
	}

	return &Config{
		SecretKey:        secretKey,
		JWTSecret:        jwtSecret,
		JWTIssuer:        os.Getenv("GITVAULT_JWT_ISSUER"),
		ListenAddr:       envOr("GITVAULT_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:           envOr("GITVAULT_DB_PATH", "gitvault.db"),
		ProviderTimeout:  providerTimeout,
		GitHubBaseURL:    os.Getenv("GITVAULT_GITHUB_BASE_URL"),
		GitLabBaseURL:    os.Getenv("GITVAULT_GITLAB_BASE_URL"),
		AnalysisQueue:    envOr("GITVAULT_ANALYSIS_QUEUE", "analysis"),
		AnalysisPriority: priority,
	}, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
