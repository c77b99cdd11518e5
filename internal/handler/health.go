package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// HealthHandler reports whether the database is reachable. Load balancers
// take a 503 as a signal to stop routing here.
type HealthHandler struct {
    db      Pinger
    timeout time.Duration
}

func NewHealthHandler(db Pinger) *HealthHandler {
    return &HealthHandler{db: db, timeout: 2 * time.Second}
}

// Health: GET /healthz
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
    defer cancel()

    if err := h.db.PingContext(ctx); err != nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "database": "down"})
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": "up"})
}
