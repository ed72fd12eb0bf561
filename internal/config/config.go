// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// Deployment profiles selectable with MIRROR_PROFILE.
const (
	ProfileDefault = "default"
	ProfileStrict  = "strict"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr           string
	DBPath               string
	Profile              string
	RequirementThreshold float64
	TemporalThreshold    float64
	JWTSecret            string
	GitHubToken          string
	DashboardBaseURL     string
}

// GateThresholds returns the configured coverage gate thresholds.
func (c *Config) GateThresholds() model.GateThresholds {
	return model.GateThresholds{
		Requirement: c.RequirementThreshold,
		Temporal:    c.TemporalThreshold,
	}
}

// AuthEnabled reports whether API requests require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// PublishesCommitStatuses reports whether verdicts are posted to GitHub.
func (c *Config) PublishesCommitStatuses() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional:
//   - MIRROR_LISTEN_ADDR (127.0.0.1:8080), MIRROR_DB_PATH (mirror.db)
//   - MIRROR_PROFILE (default|strict) selects the temporal threshold (0.35|0.60)
//   - MIRROR_REQ_THRESHOLD (0.85) and MIRROR_TMP_THRESHOLD override the gate;
//     an explicit MIRROR_TMP_THRESHOLD wins over the profile
//   - MIRROR_JWT_SECRET enables bearer-token auth
//   - MIRROR_GITHUB_TOKEN enables commit status publishing
//   - MIRROR_DASHBOARD_BASE_URL prefixes dashboard links
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("MIRROR_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "mirror.db"
	if v, ok := os.LookupEnv("MIRROR_DB_PATH"); ok {
		dbPath = v
	}

	profile := ProfileDefault
	if v, ok := os.LookupEnv("MIRROR_PROFILE"); ok && strings.TrimSpace(v) != "" {
		profile = strings.ToLower(strings.TrimSpace(v))
	}

	var tmpThreshold float64
	switch profile {
	case ProfileDefault:
		tmpThreshold = model.DefaultTemporalThreshold
	case ProfileStrict:
		tmpThreshold = model.StrictTemporalThreshold
	default:
		return nil, fmt.Errorf("MIRROR_PROFILE has unknown profile %q: expected %q or %q", profile, ProfileDefault, ProfileStrict)
	}

	reqThreshold, err := thresholdFromEnv("MIRROR_REQ_THRESHOLD", model.DefaultRequirementThreshold)
	if err != nil {
		return nil, err
	}
	tmpThreshold, err = thresholdFromEnv("MIRROR_TMP_THRESHOLD", tmpThreshold)
	if err != nil {
		return nil, err
	}

	dashboardBaseURL := strings.TrimSuffix(strings.TrimSpace(os.Getenv("MIRROR_DASHBOARD_BASE_URL")), "/")
	if dashboardBaseURL != "" {
		u, err := url.Parse(dashboardBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("MIRROR_DASHBOARD_BASE_URL must be an absolute URL, got %q", dashboardBaseURL)
		}
	}

	return &Config{
		ListenAddr:           listenAddr,
		DBPath:               dbPath,
		Profile:              profile,
		RequirementThreshold: reqThreshold,
		TemporalThreshold:    tmpThreshold,
		JWTSecret:            os.Getenv("MIRROR_JWT_SECRET"),
		GitHubToken:          os.Getenv("MIRROR_GITHUB_TOKEN"),
		DashboardBaseURL:     dashboardBaseURL,
	}, nil
}

// thresholdFromEnv reads a ratio in [0,1] from key, or returns def when unset.
func thresholdFromEnv(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid number %q: %w", key, v, err)
	}
	if math.IsNaN(parsed) || parsed < 0 || parsed > 1 {
		return 0, fmt.Errorf("%s must be between 0 and 1, got %v", key, parsed)
	}
	return parsed, nil
}
