package middleware

import (
    "net/http"
    "net/http/httptest"
    "strconv"
    "strings"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/practice-booking/internal/config"
    "github.com/iliyamo/practice-booking/internal/utils"
)

const secret = "s3cret"

func whoami(c echo.Context) error {
    id, err := ClientID(c)
    if err != nil {
        return c.String(http.StatusTeapot, err.Error())
    }
    return c.String(http.StatusOK, strconv.FormatUint(id, 10)+" "+Role(c))
}

func serve(e *echo.Echo, bearer string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, "/me", nil)
    if bearer != "" {
        req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuthAndRole(t *testing.T) {
    e := echo.New()
    e.GET("/me", whoami, JWTAuth(secret), RequireRole(utils.RoleClient))

    good, err := utils.NewAccessToken(secret, 42, utils.RoleClient, 5)
    if err != nil {
        t.Fatal(err)
    }
    admin, _ := utils.NewAccessToken(secret, 7, utils.RoleAdmin, 5)
    foreign, _ := utils.NewAccessToken("other", 42, utils.RoleClient, 5)
    expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": "42", "role": utils.RoleClient, "exp": time.Now().Add(-time.Minute).Unix(),
    }).SignedString([]byte(secret))
    noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "role": utils.RoleClient, "exp": time.Now().Add(time.Minute).Unix(),
    }).SignedString([]byte(secret))

    tests := []struct {
        name   string
        bearer string
        want   int
    }{
        {"valid", good.Token, http.StatusOK},
        {"missing", "", http.StatusUnauthorized},
        {"wrong secret", foreign.Token, http.StatusUnauthorized},
        {"expired", expired, http.StatusUnauthorized},
        {"no subject", noSub, http.StatusUnauthorized},
        {"wrong role", admin.Token, http.StatusForbidden},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            rec := serve(e, tt.bearer)
            if rec.Code != tt.want {
                t.Fatalf("status = %d (%s), want %d", rec.Code, rec.Body.String(), tt.want)
            }
            if tt.want == http.StatusOK && rec.Body.String() != "42 CLIENT" {
                t.Fatalf("body = %q", rec.Body.String())
            }
        })
    }
}

func TestClientIDRejectsNonNumericSubject(t *testing.T) {
    e := echo.New()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    if _, err := ClientID(c); err != ErrNoIdentity {
        t.Fatalf("empty context: err = %v", err)
    }
    c.Set(keyUserID, "ops@example.com")
    if _, err := ClientID(c); err != ErrNoIdentity {
        t.Fatalf("non-numeric subject: err = %v", err)
    }
}

func TestRateKeyStrategies(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/bookings")
    c.Set(keyUserID, "42")

    cases := map[string]string{
        "ip":            "rl:ip:10.0.0.9",
        "user":          "rl:user:42",
        "user_route":    "rl:user:42:route:POST /v1/bookings",
        "ip_user_route": "rl:ip:10.0.0.9:user:42:route:POST /v1/bookings",
    }
    for strategy, want := range cases {
        got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
        if got != want {
            t.Errorf("%s: key = %q, want %q", strategy, got, want)
        }
    }
}

func TestPassThroughWithoutRedis(t *testing.T) {
    e := echo.New()
    limit := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil)
    cache := NewRedisCache(config.CacheConfig{Enabled: true, TTL: time.Second}, nil, nil)
    calls := 0
    e.GET("/x", func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, "ok")
    }, limit, cache)
    for i := 0; i < 3; i++ {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
        if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
            t.Fatalf("request %d: %d cache=%q", i, rec.Code, rec.Header().Get("X-Cache"))
        }
    }
    if calls != 3 {
        t.Fatalf("handler ran %d times, want 3", calls)
    }
}

func TestCaptureWriterDropsOversizedBodies(t *testing.T) {
    rec := httptest.NewRecorder()
    cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 8}
    _, _ = cw.Write([]byte("12345"))
    if cw.truncated || cw.buf.String() != "12345" {
        t.Fatalf("small write: truncated=%v buf=%q", cw.truncated, cw.buf.String())
    }
    _, _ = cw.Write([]byte("6789"))
    if !cw.truncated || cw.buf.Len() != 0 {
        t.Fatalf("oversized body kept: %q", cw.buf.String())
    }
    if rec.Body.String() != "123456789" {
        t.Fatalf("client saw %q", rec.Body.String())
    }
}

func TestCacheKeyIncludesQueryAndPath(t *testing.T) {
    e := echo.New()
    key := func(target string) string {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
        c.SetPath("/v1/slots")
        return cacheKey(config.CacheConfig{Prefix: "c", KeyStrategy: "route_query"}, c)
    }
    a := key("/v1/slots?date=2026-10-14&session_type=individual")
    b := key("/v1/slots?date=2026-10-15&session_type=individual")
    if a == b || !strings.HasPrefix(a, "c:") {
        t.Fatalf("keys %q and %q", a, b)
    }
    if a != key("/v1/slots?date=2026-10-14&session_type=individual") {
        t.Fatal("key is not stable")
    }
}
