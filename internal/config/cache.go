package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the response cache in front of the
// public catalogue and slot reads.  When Enabled is false or no Redis
// client is available, caching is disabled.  TTL should stay short:
// slot listings go stale as soon as somebody books.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string // route | route_query | method_route_query
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.  Methods are upper-cased.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 15*time.Second),
        KeyStrategy:  strings.ToLower(envStr("CACHE_KEY_STRATEGY", "route_query")),
        Prefix:       envStr("CACHE_PREFIX", "practice:cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 256<<10),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
