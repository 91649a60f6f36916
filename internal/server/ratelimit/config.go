package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a group of endpoints.
type EndpointConfig struct {
	Name   string        // Bucket group; requests matching the same rule share a bucket
	Path   string        // Exact path, or a prefix when it ends with "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Settings are the tunable knobs, read by the config package from RATE_LIMIT_* variables.
type Settings struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       []string
	Blacklist       []string
}

// NewConfig builds a limiter configuration with the default endpoint rules.
func NewConfig(s Settings) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    s.DefaultLimit,
		DefaultWindow:   s.DefaultWindow,
		CleanupInterval: s.CleanupInterval,
		Whitelist:       ipSet(s.Whitelist),
		Blacklist:       ipSet(s.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Each of these clones a repository and runs the Gemini CLI.
		{Name: "implementation", Path: "/api/implementation/generate", Method: http.MethodPost, Limit: 10, Window: time.Hour, Burst: 2},
		{Name: "implementation-batch", Path: "/api/implementation/batch", Method: http.MethodPost, Limit: 5, Window: time.Hour, Burst: 1},

		{Name: "analysis", Path: "/api/analysis", Method: http.MethodPost, Limit: 30, Window: time.Hour, Burst: 5},
		{Name: "deployments", Path: "/api/deployments", Method: http.MethodPost, Limit: 20, Window: time.Hour, Burst: 5},

		{Name: "mentor-auth", Path: "/api/mentors/login", Method: http.MethodPost, Limit: 10, Window: time.Minute, Burst: 5},
		{Name: "mentor-auth", Path: "/api/mentors/register", Method: http.MethodPost, Limit: 10, Window: time.Minute, Burst: 5},

		{Name: "github-write", Path: "/api/github/", Method: http.MethodPost, Limit: 100, Window: time.Minute, Burst: 10},
		{Name: "github-write", Path: "/api/github/", Method: http.MethodPatch, Limit: 100, Window: time.Minute, Burst: 10},
		{Name: "github-write", Path: "/api/github/", Method: http.MethodPut, Limit: 100, Window: time.Minute, Burst: 10},
		{Name: "github-write", Path: "/api/github/", Method: http.MethodDelete, Limit: 100, Window: time.Minute, Burst: 10},

		// Reads fall back to the default limit; /health and /metrics are unlimited.
	}
}

// ipSet parses a list of IP addresses into a set, ignoring blanks.
func ipSet(list []string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range list {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
