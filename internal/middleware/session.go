package middleware

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/apperror"
    "github.com/iliyamo/ride-queue-auth/internal/token"
)

// AccessTokenCookie is the cookie the session gate reads.
const AccessTokenCookie = "ACCESS_TOKEN"

// ExemptRule lets matching requests through without a session. Method "*"
// matches any method. With Prefix set, Path matches itself and anything
// below it ("/api/rides" matches "/api/rides/3" but not "/api/ridesX").
type ExemptRule struct {
    Method string
    Path   string
    Prefix bool
}

func (r ExemptRule) matches(method, path string) bool {
    if r.Method != "*" && !strings.EqualFold(r.Method, method) {
        return false
    }
    if !r.Prefix {
        return path == r.Path
    }
    if r.Path == "/" {
        return true
    }
    return path == r.Path || strings.HasPrefix(path, strings.TrimSuffix(r.Path, "/")+"/")
}

// ExemptTable is evaluated before any token check.
type ExemptTable []ExemptRule

// Exempt reports whether a request skips authentication.
func (t ExemptTable) Exempt(method, path string) bool {
    for _, r := range t {
        if r.matches(method, path) {
            return true
        }
    }
    return false
}

// DefaultExemptions covers pre-flight requests, health checks, catalog
// browsing and the endpoints that create a session.
var DefaultExemptions = ExemptTable{
    {Method: http.MethodOptions, Path: "/", Prefix: true},
    {Method: http.MethodGet, Path: "/healthz"},
    {Method: http.MethodGet, Path: "/api/rides", Prefix: true},
    {Method: http.MethodGet, Path: "/api/tickets/products", Prefix: true},
    {Method: http.MethodPost, Path: "/api/signup"},
    {Method: http.MethodPost, Path: "/api/login"},
    {Method: http.MethodPost, Path: "/api/refresh"},
}

// Client-facing 401 messages.
const (
    msgAccessMissing = "Access token not found"
    msgAccessExpired = "Access token has expired"
    msgAccessInvalid = "Invalid access token"
)

// SessionGate authenticates every non-exempt request from the ACCESS_TOKEN
// cookie or a bearer header. On success the user id is stored under ContextUserID and in the
// request context; otherwise the request ends with 401.
func SessionGate(tokens *token.Service, exempt ExemptTable) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if exempt.Exempt(req.Method, req.URL.Path) {
                return next(c)
            }

            raw := accessTokenFrom(c)
            if raw == "" {
                return unauthorized(c, apperror.ErrTokenMissing.WithMessage(msgAccessMissing))
            }

            if err := tokens.Validate(raw); err != nil {
                if errors.Is(err, apperror.ErrTokenExpired) {
                    return unauthorized(c, apperror.ErrTokenExpired.WithMessage(msgAccessExpired))
                }
                return unauthorized(c, apperror.ErrTokenInvalid.WithMessage(msgAccessInvalid))
            }
            if typ, err := tokens.TypeOf(raw); err != nil || typ != token.TypeAccess {
                return unauthorized(c, apperror.ErrTokenInvalid.WithMessage(msgAccessInvalid))
            }
            uid, err := tokens.SubjectOf(raw)
            if err != nil {
                return unauthorized(c, apperror.ErrTokenInvalid.WithMessage(msgAccessInvalid))
            }

            c.Set(ContextUserID, uid)
            c.SetRequest(req.WithContext(WithUserID(req.Context(), uid)))
            return next(c)
        }
    }
}

func unauthorized(c echo.Context, e *apperror.Error) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": e.Message, "code": e.Code})
}
