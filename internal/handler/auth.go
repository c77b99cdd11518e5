package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/apperror"
    "github.com/iliyamo/ride-queue-auth/internal/logger"
    "github.com/iliyamo/ride-queue-auth/internal/middleware"
    "github.com/iliyamo/ride-queue-auth/internal/model"
    "github.com/iliyamo/ride-queue-auth/internal/service"
)

const (
    RefreshTokenCookie = "REFRESH_TOKEN"
    SessionIDCookie    = "SESSION_ID"
    AppAuthCookie      = "APP_AUTH"
)

// Authenticator is the account side of the service layer.
type Authenticator interface {
    SignUp(ctx context.Context, username, password string) (model.User, error)
    Login(ctx context.Context, username, password string) (model.User, service.TokenPair, error)
    Rotate(ctx context.Context, oldRefresh string) (model.User, service.TokenPair, error)
    Logout(ctx context.Context, userID uint64) error
    User(ctx context.Context, userID uint64) (model.User, error)
}

// CookieOptions are applied to every cookie the auth endpoints set.
type CookieOptions struct {
    Secure bool
    Domain string
}

// AuthHandler serves signup, login, refresh, logout and me.
type AuthHandler struct {
    auth    Authenticator
    cookies CookieOptions
    log     *logger.Logger
    now     func() time.Time
}

func NewAuthHandler(auth Authenticator, cookies CookieOptions, log *logger.Logger) *AuthHandler {
    return &AuthHandler{auth: auth, cookies: cookies, log: log, now: time.Now}
}

type credentialsReq struct {
    Username string `json:"username" validate:"required,max=50"`
    Password string `json:"password" validate:"required,max=72"`
}

type signupReq struct {
    Username string `json:"username" validate:"required,min=3,max=50"`
    Password string `json:"password" validate:"required,min=8,max=72"`
}

type userResp struct {
    Message  string `json:"message,omitempty"`
    UserID   uint64 `json:"userId"`
    Username string `json:"username"`
}

// Signup: POST /api/signup
func (h *AuthHandler) Signup(c echo.Context) error {
    var req signupReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return badRequest(c, err.Error())
    }

    u, err := h.auth.SignUp(c.Request().Context(), req.Username, req.Password)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, userResp{Message: "Signup successful", UserID: u.ID, Username: u.Username})
}

// Login: POST /api/login. Sets the session, access, refresh and flag cookies.
func (h *AuthHandler) Login(c echo.Context) error {
    var req credentialsReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return badRequest(c, err.Error())
    }

    u, pair, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
    if err != nil {
        return respondError(c, err)
    }

    c.SetCookie(h.cookie(SessionIDCookie, uuid.NewString(), 0, true))
    h.setTokenCookies(c, pair)
    c.SetCookie(h.cookie(AppAuthCookie, "1", 0, false))
    return c.JSON(http.StatusOK, userResp{Message: "Login successful", UserID: u.ID, Username: u.Username})
}

// Client-facing refresh messages.
const (
    msgRefreshMissing = "Refresh token not found"
    msgRefreshExpired = "Refresh token expired. Please login again."
    msgRefreshInvalid = "Invalid refresh token"
)

// Refresh: POST /api/refresh. Rotates both tokens from the REFRESH_TOKEN
// cookie. Any failure leaves the client's cookies as they were.
func (h *AuthHandler) Refresh(c echo.Context) error {
    ck, err := c.Cookie(RefreshTokenCookie)
    if err != nil || ck.Value == "" {
        return respondError(c, apperror.ErrTokenMissing.WithMessage(msgRefreshMissing))
    }

    u, pair, err := h.auth.Rotate(c.Request().Context(), ck.Value)
    switch {
    case err == nil:
    case errors.Is(err, apperror.ErrTokenExpired):
        return respondError(c, apperror.ErrTokenExpired.WithMessage(msgRefreshExpired))
    case apperror.IsKind(err, apperror.KindAuthentication):
        h.log.Info("refresh rejected", "error", err)
        return respondError(c, apperror.ErrTokenInvalid.WithMessage(msgRefreshInvalid))
    default:
        h.log.Error("refresh failed", "error", err)
        return respondError(c, err)
    }

    h.setTokenCookies(c, pair)
    return c.JSON(http.StatusOK, userResp{Message: "Tokens refreshed successfully", UserID: u.ID, Username: u.Username})
}

// Logout: POST /api/logout. Drops the stored refresh token and clears every
// auth cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    if err := h.auth.Logout(c.Request().Context(), uid); err != nil {
        h.log.Error("logout failed", "user_id", uid, "error", err)
        return respondError(c, err)
    }
    for _, name := range []string{SessionIDCookie, middleware.AccessTokenCookie, RefreshTokenCookie, AppAuthCookie} {
        c.SetCookie(h.expired(name))
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful"})
}

// Me: GET /api/me
func (h *AuthHandler) Me(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    u, err := h.auth.User(c.Request().Context(), uid)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "userId":    u.ID,
        "username":  u.Username,
        "createdAt": u.CreatedAt,
    })
}

func (h *AuthHandler) setTokenCookies(c echo.Context, pair service.TokenPair) {
    now := h.now()
    c.SetCookie(h.cookie(middleware.AccessTokenCookie, pair.Access.Value, maxAge(pair.Access.ExpiresAt, now), true))
    c.SetCookie(h.cookie(RefreshTokenCookie, pair.Refresh.Value, maxAge(pair.Refresh.ExpiresAt, now), true))
}

// cookie builds a Path=/ SameSite=Lax cookie. A zero maxAge makes it a
// session cookie.
func (h *AuthHandler) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
    return &http.Cookie{
        Name:     name,
        Value:    value,
        Path:     "/",
        Domain:   h.cookies.Domain,
        MaxAge:   maxAge,
        HttpOnly: httpOnly,
        Secure:   h.cookies.Secure,
        SameSite: http.SameSiteLaxMode,
    }
}

func (h *AuthHandler) expired(name string) *http.Cookie {
    ck := h.cookie(name, "", -1, name != AppAuthCookie)
    ck.Expires = time.Unix(0, 0)
    return ck
}

func maxAge(exp, now time.Time) int {
    s := int(exp.Sub(now).Seconds())
    if s < 1 {
        return 1
    }
    return s
}
