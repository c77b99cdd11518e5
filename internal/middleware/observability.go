package middleware

import (
    "fmt"
    "net/http"
    "runtime/debug"
    "time"

    "github.com/getsentry/sentry-go"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/logger"
)

// InitSentry configures error reporting. An empty DSN leaves it disabled.
func InitSentry(dsn, environment string) error {
    if dsn == "" {
        return nil
    }
    return sentry.Init(sentry.ClientOptions{
        Dsn:              dsn,
        Environment:      environment,
        AttachStacktrace: true,
    })
}

// FlushSentry waits briefly for buffered events to be sent.
func FlushSentry() { sentry.Flush(2 * time.Second) }

// Recover turns a panic into a 500 response, logs it and reports it to Sentry.
func Recover(log *logger.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) (err error) {
            defer func() {
                rec := recover()
                if rec == nil {
                    return
                }
                if rec == http.ErrAbortHandler {
                    panic(rec)
                }
                req := c.Request()
                sentry.WithScope(func(scope *sentry.Scope) {
                    scope.SetExtra("panic", fmt.Sprint(rec))
                    scope.SetExtra("stack", string(debug.Stack()))
                    scope.SetTag("path", req.URL.Path)
                    sentry.CaptureMessage("panic in request")
                })
                log.Error("panic recovered", "method", req.Method, "path", req.URL.Path, "panic", fmt.Sprint(rec))
                err = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error", "code": "INTERNAL"})
            }()
            return next(c)
        }
    }
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            req := c.Request()
            args := []any{
                "method", req.Method,
                "path", req.URL.Path,
                "status", c.Response().Status,
                "duration_ms", time.Since(start).Milliseconds(),
                "ip", c.RealIP(),
            }
            if uid, ok := UserID(c); ok {
                args = append(args, "user_id", uid)
            }
            if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
                args = append(args, "request_id", id)
            }
            log.Info("http_request", args...)
            return nil
        }
    }
}
