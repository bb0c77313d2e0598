package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/practice-booking/internal/config"
)

// cachedResponse is what NewRedisCache stores per key.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// captureWriter tees the response body, up to limit bytes, while
// forwarding it to the client.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.truncated {
        if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
            cw.truncated = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var tail string
    switch cfg.KeyStrategy {
    case "route":
        tail = c.Path()
    case "method_route_query":
        tail = r.Method + " " + c.Path() + "?" + r.URL.RawQuery
    default:
        tail = c.Path() + "?" + r.URL.RawQuery
    }
    // path params are part of the request URL, not of c.Path()
    tail += "#" + r.URL.Path
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// NewRedisCache serves repeated 200 responses of the configured methods
// from Redis for cfg.TTL.  Responses too large for MaxBodyBytes and
// requests carrying an Authorization header are never cached.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil || cfg.TTL <= 0 {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = zap.NewNop()
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[strings.ToUpper(req.Method)] || req.Header.Get("Authorization") != "" {
                return next(c)
            }
            ctx := req.Context()
            key := cacheKey(cfg, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(bs, &hit) == nil {
                    for k, vals := range hit.Header {
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(hit.Status)
                    _, err := c.Response().Write(hit.Body)
                    return err
                }
            } else if err != redis.Nil {
                log.Debug("cache read failed", zap.Error(err))
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err(); err != nil {
                log.Debug("cache write failed", zap.Error(err))
            }
            return nil
        }
    }
}
