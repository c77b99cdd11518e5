package middleware

// identity.go carries the authenticated user id between the session gate,
// the rate limiter and the handlers.

import (
    "context"
    "strconv"

    "github.com/labstack/echo/v4"
)

// ContextUserID is the echo context key holding the caller's user id (uint64).
const ContextUserID = "user_id"

type userIDKey struct{}

// WithUserID returns a copy of ctx carrying the user id.
func WithUserID(ctx context.Context, id uint64) context.Context {
    return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext reads the id stored by WithUserID.
func UserIDFromContext(ctx context.Context) (uint64, bool) {
    id, ok := ctx.Value(userIDKey{}).(uint64)
    return id, ok
}

// UserID returns the authenticated user id of the request, if any.
func UserID(c echo.Context) (uint64, bool) {
    if id, ok := c.Get(ContextUserID).(uint64); ok {
        return id, true
    }
    return UserIDFromContext(c.Request().Context())
}

// userKey identifies the caller for rate limiting; "anon" when unauthenticated.
func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
