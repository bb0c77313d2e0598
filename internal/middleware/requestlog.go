package middleware

import (
    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "go.uber.org/zap"
)

// RequestID tags every request with an X-Request-Id, reusing the
// caller's when present.
func RequestID() echo.MiddlewareFunc {
    return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
        Generator: uuid.NewString,
    })
}

// RequestLog writes one zap line per request.
func RequestLog(log *zap.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:    true,
        LogURIPath:   true,
        LogStatus:    true,
        LogLatency:   true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            fields := []zap.Field{
                zap.String("method", v.Method),
                zap.String("path", v.URIPath),
                zap.Int("status", v.Status),
                zap.Duration("latency", v.Latency),
                zap.String("request_id", v.RequestID),
                zap.String("subject", userID(c)),
            }
            if v.Error != nil {
                log.Warn("request", append(fields, zap.Error(v.Error))...)
                return nil
            }
            log.Info("request", fields...)
            return nil
        },
    })
}
