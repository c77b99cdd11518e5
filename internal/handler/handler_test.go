package handler

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/apperror"
    "github.com/iliyamo/ride-queue-auth/internal/logger"
    "github.com/iliyamo/ride-queue-auth/internal/middleware"
    "github.com/iliyamo/ride-queue-auth/internal/model"
    "github.com/iliyamo/ride-queue-auth/internal/service"
    "github.com/iliyamo/ride-queue-auth/internal/token"
)

type mockAuth struct {
    SignUpFunc func(ctx context.Context, username, password string) (model.User, error)
    LoginFunc  func(ctx context.Context, username, password string) (model.User, service.TokenPair, error)
    RotateFunc func(ctx context.Context, oldRefresh string) (model.User, service.TokenPair, error)
    LogoutFunc func(ctx context.Context, userID uint64) error
    UserFunc   func(ctx context.Context, userID uint64) (model.User, error)
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (model.User, error) {
    return m.SignUpFunc(ctx, username, password)
}

func (m *mockAuth) Login(ctx context.Context, username, password string) (model.User, service.TokenPair, error) {
    return m.LoginFunc(ctx, username, password)
}

func (m *mockAuth) Rotate(ctx context.Context, oldRefresh string) (model.User, service.TokenPair, error) {
    return m.RotateFunc(ctx, oldRefresh)
}

func (m *mockAuth) Logout(ctx context.Context, userID uint64) error {
    return m.LogoutFunc(ctx, userID)
}

func (m *mockAuth) User(ctx context.Context, userID uint64) (model.User, error) {
    return m.UserFunc(ctx, userID)
}

type mockQueue struct {
    EnqueueFunc      func(ctx context.Context, callerID, userID, rideID uint64, requested string) (model.EnqueueResult, error)
    CancelFunc       func(ctx context.Context, callerID, userID, rideID uint64) error
    CompleteRideFunc func(ctx context.Context, callerID, userID, rideID uint64) error
    StatusFunc       func(ctx context.Context, callerID, userID uint64) ([]model.QueueStatusItem, error)
}

func (m *mockQueue) Enqueue(ctx context.Context, callerID, userID, rideID uint64, requested string) (model.EnqueueResult, error) {
    return m.EnqueueFunc(ctx, callerID, userID, rideID, requested)
}

func (m *mockQueue) Cancel(ctx context.Context, callerID, userID, rideID uint64) error {
    return m.CancelFunc(ctx, callerID, userID, rideID)
}

func (m *mockQueue) CompleteRide(ctx context.Context, callerID, userID, rideID uint64) error {
    return m.CompleteRideFunc(ctx, callerID, userID, rideID)
}

func (m *mockQueue) Status(ctx context.Context, callerID, userID uint64) ([]model.QueueStatusItem, error) {
    return m.StatusFunc(ctx, callerID, userID)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func newEcho() *echo.Echo {
    e := echo.New()
    e.Validator = NewRequestValidator()
    return e
}

func jsonRequest(method, target, body string) *http.Request {
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
    t.Helper()
    var body errorResponse
    if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
        t.Fatalf("decode body %q: %v", rec.Body.String(), err)
    }
    return body
}

func testPair() service.TokenPair {
    now := time.Now()
    return service.TokenPair{
        Access:  token.Token{Value: "access-jwt", ExpiresAt: now.Add(time.Hour)},
        Refresh: token.Token{Value: "refresh-jwt", ExpiresAt: now.Add(30 * 24 * time.Hour)},
    }
}

func TestLogin_SetsAllCookies(t *testing.T) {
    auth := &mockAuth{
        LoginFunc: func(ctx context.Context, username, password string) (model.User, service.TokenPair, error) {
            return model.User{ID: 7, Username: username}, testPair(), nil
        },
    }
    h := NewAuthHandler(auth, CookieOptions{}, logger.Discard())
    e := newEcho()
    rec := httptest.NewRecorder()
    c := e.NewContext(jsonRequest(http.MethodPost, "/api/login", `{"username":"alice","password":"secret"}`), rec)

    if err := h.Login(c); err != nil {
        t.Fatalf("Login: %v", err)
    }
    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200", rec.Code)
    }

    cookies := map[string]*http.Cookie{}
    for _, ck := range rec.Result().Cookies() {
        cookies[ck.Name] = ck
    }
    tests := []struct {
        name     string
        httpOnly bool
    }{
        {middleware.AccessTokenCookie, true},
        {RefreshTokenCookie, true},
        {SessionIDCookie, true},
        {AppAuthCookie, false},
    }
    for _, tt := range tests {
        ck, ok := cookies[tt.name]
        if !ok {
            t.Errorf("cookie %s not set", tt.name)
            continue
        }
        if ck.HttpOnly != tt.httpOnly {
            t.Errorf("cookie %s HttpOnly = %v, want %v", tt.name, ck.HttpOnly, tt.httpOnly)
        }
        if ck.Path != "/" || ck.SameSite != http.SameSiteLaxMode {
            t.Errorf("cookie %s path=%q samesite=%v", tt.name, ck.Path, ck.SameSite)
        }
    }
    if got := cookies[middleware.AccessTokenCookie].Value; got != "access-jwt" {
        t.Errorf("access cookie = %q", got)
    }
    if age := cookies[RefreshTokenCookie].MaxAge; age < 29*24*3600 {
        t.Errorf("refresh cookie max-age = %d, want about 30 days", age)
    }
}

func TestLogin_Errors(t *testing.T) {
    tests := []struct {
        name       string
        body       string
        loginErr   error
        wantStatus int
    }{
        {"bad credentials", `{"username":"alice","password":"nope"}`, apperror.ErrInvalidCredentials, http.StatusUnauthorized},
        {"missing password", `{"username":"alice"}`, nil, http.StatusBadRequest},
        {"malformed body", `{"username":`, nil, http.StatusBadRequest},
        {"store failure", `{"username":"alice","password":"pw"}`, errors.New("db down"), http.StatusInternalServerError},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            auth := &mockAuth{
                LoginFunc: func(ctx context.Context, username, password string) (model.User, service.TokenPair, error) {
                    return model.User{}, service.TokenPair{}, tt.loginErr
                },
            }
            h := NewAuthHandler(auth, CookieOptions{}, logger.Discard())
            rec := httptest.NewRecorder()
            c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/login", tt.body), rec)

            if err := h.Login(c); err != nil {
                t.Fatalf("Login: %v", err)
            }
            if rec.Code != tt.wantStatus {
                t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
            }
            if len(rec.Result().Cookies()) != 0 {
                t.Error("failed login set cookies")
            }
        })
    }
}

func TestRefresh_FailuresLeaveCookiesUntouched(t *testing.T) {
    tests := []struct {
        name      string
        cookie    string
        rotateErr error
        wantMsg   string
        wantCode  string
    }{
        {"missing cookie", "", nil, "Refresh token not found", "TOKEN_MISSING"},
        {"expired", "old", apperror.ErrTokenExpired, "Refresh token expired. Please login again.", "TOKEN_EXPIRED"},
        {"not stored", "old", apperror.ErrTokenInvalid.WithMessage("refresh token not found"), "Invalid refresh token", "TOKEN_INVALID"},
        {"mismatch", "old", apperror.ErrTokenInvalid.WithMessage("refresh token does not match"), "Invalid refresh token", "TOKEN_INVALID"},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            called := false
            auth := &mockAuth{
                RotateFunc: func(ctx context.Context, oldRefresh string) (model.User, service.TokenPair, error) {
                    called = true
                    if oldRefresh != tt.cookie {
                        t.Errorf("Rotate got %q, want %q", oldRefresh, tt.cookie)
                    }
                    return model.User{}, service.TokenPair{}, tt.rotateErr
                },
            }
            h := NewAuthHandler(auth, CookieOptions{}, logger.Discard())
            req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
            if tt.cookie != "" {
                req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: tt.cookie})
            }
            rec := httptest.NewRecorder()

            if err := h.Refresh(newEcho().NewContext(req, rec)); err != nil {
                t.Fatalf("Refresh: %v", err)
            }
            if rec.Code != http.StatusUnauthorized {
                t.Errorf("status = %d, want 401", rec.Code)
            }
            body := decodeError(t, rec)
            if body.Error != tt.wantMsg || body.Code != tt.wantCode {
                t.Errorf("body = %+v, want %q/%q", body, tt.wantMsg, tt.wantCode)
            }
            if h := rec.Header().Values("Set-Cookie"); len(h) != 0 {
                t.Errorf("Set-Cookie = %v, want none", h)
            }
            if tt.cookie == "" && called {
                t.Error("Rotate called without a cookie")
            }
        })
    }
}

func TestRefresh_RotatesCookies(t *testing.T) {
    auth := &mockAuth{
        RotateFunc: func(ctx context.Context, oldRefresh string) (model.User, service.TokenPair, error) {
            return model.User{ID: 7, Username: "alice"}, testPair(), nil
        },
    }
    h := NewAuthHandler(auth, CookieOptions{Secure: true}, logger.Discard())
    req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
    req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "old"})
    rec := httptest.NewRecorder()

    if err := h.Refresh(newEcho().NewContext(req, rec)); err != nil {
        t.Fatalf("Refresh: %v", err)
    }
    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200", rec.Code)
    }
    got := map[string]string{}
    for _, ck := range rec.Result().Cookies() {
        got[ck.Name] = ck.Value
        if !ck.Secure {
            t.Errorf("cookie %s not secure", ck.Name)
        }
    }
    if got[middleware.AccessTokenCookie] != "access-jwt" || got[RefreshTokenCookie] != "refresh-jwt" {
        t.Errorf("cookies = %v", got)
    }
}

func TestLogout_ClearsCookies(t *testing.T) {
    var loggedOut uint64
    auth := &mockAuth{
        LogoutFunc: func(ctx context.Context, userID uint64) error {
            loggedOut = userID
            return nil
        },
    }
    h := NewAuthHandler(auth, CookieOptions{}, logger.Discard())
    rec := httptest.NewRecorder()
    c := newEcho().NewContext(httptest.NewRequest(http.MethodPost, "/api/logout", nil), rec)
    c.Set(middleware.ContextUserID, uint64(7))

    if err := h.Logout(c); err != nil {
        t.Fatalf("Logout: %v", err)
    }
    if rec.Code != http.StatusOK || loggedOut != 7 {
        t.Fatalf("status = %d, logged out = %d", rec.Code, loggedOut)
    }
    cleared := 0
    for _, ck := range rec.Result().Cookies() {
        if ck.MaxAge < 0 {
            cleared++
        }
    }
    if cleared != 4 {
        t.Errorf("cleared %d cookies, want 4", cleared)
    }
}

func TestSignup(t *testing.T) {
    tests := []struct {
        name       string
        body       string
        signErr    error
        wantStatus int
    }{
        {"created", `{"username":"alice","password":"long-enough"}`, nil, http.StatusOK},
        {"taken", `{"username":"alice","password":"long-enough"}`, apperror.ErrUsernameTaken, http.StatusConflict},
        {"short password", `{"username":"alice","password":"short"}`, nil, http.StatusBadRequest},
        {"missing username", `{"password":"long-enough"}`, nil, http.StatusBadRequest},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            auth := &mockAuth{
                SignUpFunc: func(ctx context.Context, username, password string) (model.User, error) {
                    return model.User{ID: 1, Username: username}, tt.signErr
                },
            }
            h := NewAuthHandler(auth, CookieOptions{}, logger.Discard())
            rec := httptest.NewRecorder()
            c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/signup", tt.body), rec)
            if err := h.Signup(c); err != nil {
                t.Fatalf("Signup: %v", err)
            }
            if rec.Code != tt.wantStatus {
                t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
            }
        })
    }
}

func TestEnqueue_StatusMapping(t *testing.T) {
    tests := []struct {
        name       string
        err        error
        wantStatus int
        wantCode   string
    }{
        {"success", nil, http.StatusOK, ""},
        {"not owner", apperror.ErrNotOwner, http.StatusForbidden, "NOT_OWNER"},
        {"no ticket", apperror.ErrNoActiveTicketToday, http.StatusBadRequest, "NO_ACTIVE_TICKET_TODAY"},
        {"type mismatch", apperror.ErrTicketTypeMismatch, http.StatusBadRequest, "TICKET_TYPE_MISMATCH"},
        {"already waiting", apperror.ErrAlreadyWaitingOrCompleted, http.StatusBadRequest, "ALREADY_WAITING_OR_COMPLETED"},
        {"data missing", apperror.ErrEntitlementDataMissing, http.StatusInternalServerError, "ENTITLEMENT_DATA_MISSING"},
        {"upstream timeout", apperror.ErrUpstreamTimeout, http.StatusInternalServerError, "UPSTREAM_TIMEOUT"},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            q := &mockQueue{
                EnqueueFunc: func(ctx context.Context, callerID, userID, rideID uint64, requested string) (model.EnqueueResult, error) {
                    if callerID != 7 || userID != 7 || rideID != 5 || requested != "GENERAL" {
                        t.Errorf("Enqueue(%d, %d, %d, %q)", callerID, userID, rideID, requested)
                    }
                    if tt.err != nil {
                        return model.EnqueueResult{}, tt.err
                    }
                    return model.EnqueueResult{Position: 3, EstimatedWaitMinutes: 12}, nil
                },
            }
            h := NewQueueHandler(q, logger.Discard())
            rec := httptest.NewRecorder()
            c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/queue/enqueue", `{"userId":7,"rideId":5,"ticketType":"GENERAL"}`), rec)
            c.Set(middleware.ContextUserID, uint64(7))

            if err := h.Enqueue(c); err != nil {
                t.Fatalf("Enqueue: %v", err)
            }
            if rec.Code != tt.wantStatus {
                t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
            }
            if tt.err == nil {
                var res model.EnqueueResult
                if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
                    t.Fatalf("decode: %v", err)
                }
                if res.Position != 3 || res.EstimatedWaitMinutes != 12 {
                    t.Errorf("result = %+v, want {3 12}", res)
                }
                return
            }
            if got := decodeError(t, rec).Code; got != tt.wantCode {
                t.Errorf("code = %q, want %q", got, tt.wantCode)
            }
        })
    }
}

func TestEnqueue_ValidatesBody(t *testing.T) {
    q := &mockQueue{
        EnqueueFunc: func(ctx context.Context, callerID, userID, rideID uint64, requested string) (model.EnqueueResult, error) {
            t.Error("Enqueue called for invalid body")
            return model.EnqueueResult{}, nil
        },
    }
    h := NewQueueHandler(q, logger.Discard())
    rec := httptest.NewRecorder()
    c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/queue/enqueue", `{"userId":7,"ticketType":"GENERAL"}`), rec)
    c.Set(middleware.ContextUserID, uint64(7))

    if err := h.Enqueue(c); err != nil {
        t.Fatalf("Enqueue: %v", err)
    }
    if rec.Code != http.StatusBadRequest {
        t.Errorf("status = %d, want 400", rec.Code)
    }
    if msg := decodeError(t, rec).Error; !strings.Contains(msg, "rideId") {
        t.Errorf("error = %q, want it to name rideId", msg)
    }
}

func TestCancelAndComplete(t *testing.T) {
    var cancelled, completed bool
    q := &mockQueue{
        CancelFunc: func(ctx context.Context, callerID, userID, rideID uint64) error {
            cancelled = true
            return apperror.ErrUpstreamUnreachable
        },
        CompleteRideFunc: func(ctx context.Context, callerID, userID, rideID uint64) error {
            completed = true
            return nil
        },
    }
    h := NewQueueHandler(q, logger.Discard())
    body := `{"userId":7,"rideId":5}`

    rec := httptest.NewRecorder()
    c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/queue/cancel", body), rec)
    c.Set(middleware.ContextUserID, uint64(7))
    if err := h.Cancel(c); err != nil {
        t.Fatalf("Cancel: %v", err)
    }
    if !cancelled || rec.Code != http.StatusInternalServerError {
        t.Errorf("cancel status = %d, want 500", rec.Code)
    }

    rec = httptest.NewRecorder()
    c = newEcho().NewContext(jsonRequest(http.MethodPost, "/api/queue/complete", body), rec)
    c.Set(middleware.ContextUserID, uint64(7))
    if err := h.Complete(c); err != nil {
        t.Fatalf("Complete: %v", err)
    }
    var resp rideActionResp
    if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
        t.Fatalf("decode: %v", err)
    }
    if !completed || rec.Code != http.StatusOK || !resp.Success || resp.UserID != 7 || resp.RideID != 5 {
        t.Errorf("complete = %d %+v", rec.Code, resp)
    }
}

func TestStatus(t *testing.T) {
    q := &mockQueue{
        StatusFunc: func(ctx context.Context, callerID, userID uint64) ([]model.QueueStatusItem, error) {
            if callerID != userID {
                return nil, apperror.ErrNotOwner
            }
            return []model.QueueStatusItem{{RideID: 5, RideName: "Coaster", TicketType: model.TicketGeneral, Position: 2}}, nil
        },
    }
    h := NewQueueHandler(q, logger.Discard())

    tests := []struct {
        name       string
        param      string
        wantStatus int
    }{
        {"own", "7", http.StatusOK},
        {"other user", "8", http.StatusForbidden},
        {"not a number", "abc", http.StatusBadRequest},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            rec := httptest.NewRecorder()
            c := newEcho().NewContext(httptest.NewRequest(http.MethodGet, "/api/queue/status/"+tt.param, nil), rec)
            c.SetParamNames("userId")
            c.SetParamValues(tt.param)
            c.Set(middleware.ContextUserID, uint64(7))

            if err := h.Status(c); err != nil {
                t.Fatalf("Status: %v", err)
            }
            if rec.Code != tt.wantStatus {
                t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
            }
            if tt.wantStatus == http.StatusOK && !strings.Contains(rec.Body.String(), `"rideName":"Coaster"`) {
                t.Errorf("body = %s", rec.Body.String())
            }
        })
    }
}

func TestHealth(t *testing.T) {
    tests := []struct {
        name       string
        pingErr    error
        wantStatus int
    }{
        {"up", nil, http.StatusOK},
        {"down", errors.New("connection refused"), http.StatusServiceUnavailable},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            h := NewHealthHandler(pingFunc(func(ctx context.Context) error { return tt.pingErr }))
            rec := httptest.NewRecorder()
            if err := h.Health(newEcho().NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)); err != nil {
                t.Fatalf("Health: %v", err)
            }
            if rec.Code != tt.wantStatus {
                t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
            }
        })
    }
}
