package middleware

import (
    "strings"

    "github.com/labstack/echo/v4"
)

// accessTokenFrom returns the raw access token of the request. The
// ACCESS_TOKEN cookie wins; API clients without a cookie jar may send
// "Authorization: Bearer <token>" instead.
func accessTokenFrom(c echo.Context) string {
    if ck, err := c.Cookie(AccessTokenCookie); err == nil && ck.Value != "" {
        return ck.Value
    }
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
        return strings.TrimSpace(auth[7:])
    }
    return ""
}
