package config

import (
	"strings"
	"time"
)

// RateLimitConfig configures the token bucket applied to every request.
// The defaults allow 100 requests per minute per client key.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip, user, route, ip_user, ip_route, user_route, ip_user_route
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 100),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 100),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Minute),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	return cfg.normalized()
}

func (cfg RateLimitConfig) normalized() RateLimitConfig {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

// PerUser reports whether the key strategy includes the caller's user id.
// Unknown strategies key on ip, user and route.
func (cfg RateLimitConfig) PerUser() bool {
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip", "route", "ip_route":
		return false
	}
	return true
}

// Anonymous returns cfg with the user segment dropped from the key
// strategy, for the limiter that runs before the caller is authenticated.
func (cfg RateLimitConfig) Anonymous() RateLimitConfig {
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip", "route", "ip_route":
	case "user", "ip_user":
		cfg.KeyStrategy = "ip"
	default:
		cfg.KeyStrategy = "ip_route"
	}
	return cfg
}
