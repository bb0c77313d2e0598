package config

// Redis backs the rate limiter and the response cache.  Both degrade to
// pass-through without it, so a failed connection is reported, not fatal.

import (
    "context"
    "crypto/tls"
    "fmt"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment.  REDIS_URL
// (redis:// or rediss://) wins; otherwise REDIS_ADDR or REDIS_HOST and
// REDIS_PORT, REDIS_PASSWORD, REDIS_DB and REDIS_TLS are used.  ok is
// false when REDIS_DISABLED is set.
func RedisOptions() (opts *redis.Options, ok bool, err error) {
    if envBool("REDIS_DISABLED", false) {
        return nil, false, nil
    }
    if u := os.Getenv("REDIS_URL"); u != "" {
        opts, err = redis.ParseURL(u)
        if err != nil {
            return nil, false, fmt.Errorf("parse REDIS_URL: %w", err)
        }
        return opts, true, nil
    }
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    opts = &redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
    }
    if envBool("REDIS_TLS", false) {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opts, true, nil
}

// NewRedisClient connects and pings Redis.  It returns nil and the cause
// when Redis is disabled or unreachable; callers run without it.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
    opts, ok, err := RedisOptions()
    if err != nil || !ok {
        return nil, err
    }
    client := redis.NewClient(opts)
    pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(pctx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
    }
    return client, nil
}
