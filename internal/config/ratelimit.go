package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// RateLimitConfig drives the Redis token bucket in front of the mutating
// booking routes.  Each key gets Capacity tokens and regains RefillTokens
// every RefillInterval.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string // ip | user | route | ip_user | user_route | ip_user_route
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Booking writes are
// rare per client, so the default bucket is small.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 20),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 3*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route")),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "practice:rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    // keep state around long enough to refill a whole bucket
    if full := time.Duration(cfg.Capacity/cfg.RefillTokens+1) * cfg.RefillInterval; cfg.TTL < full {
        cfg.TTL = full
    }
    return cfg
}

func envStr(k, d string) string {
    if v := strings.TrimSpace(os.Getenv(k)); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := strings.TrimSpace(os.Getenv(k))
    if v == "" {
        return d
    }
    if b, err := strconv.ParseBool(v); err == nil {
        return b
    }
    switch strings.ToLower(v) {
    case "yes", "on":
        return true
    case "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := strings.TrimSpace(os.Getenv(k))
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := strings.TrimSpace(os.Getenv(k))
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}
