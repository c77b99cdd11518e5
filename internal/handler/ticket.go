package handler

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/apperror"
    "github.com/iliyamo/ride-queue-auth/internal/logger"
    "github.com/iliyamo/ride-queue-auth/internal/middleware"
    "github.com/iliyamo/ride-queue-auth/internal/model"
)

// TicketManager sells and toggles the caller's ticket orders.
type TicketManager interface {
    Purchase(ctx context.Context, p model.Purchase) (model.TicketOrder, error)
    SetStatus(ctx context.Context, callerID, orderID uint64, status model.OrderStatus) (model.TicketOrder, error)
    Active(ctx context.Context, userID uint64) ([]model.TicketOrder, error)
}

type UsageHistory interface {
    History(ctx context.Context, userID uint64) ([]model.RideUsage, error)
}

// TicketHandler serves the caller's own entitlements and ride history.
type TicketHandler struct {
    tickets TicketManager
    usages  UsageHistory
    log     *logger.Logger
}

func NewTicketHandler(tickets TicketManager, usages UsageHistory, log *logger.Logger) *TicketHandler {
    return &TicketHandler{tickets: tickets, usages: usages, log: log}
}

type purchaseReq struct {
    AvailableAt string `json:"availableAt" validate:"required"`
    TicketType  string `json:"ticketType" validate:"required"`
}

type statusReq struct {
    Status string `json:"status"`
}

// accepted forms of availableAt
var dayLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339}

func parseDay(s string) (time.Time, bool) {
    for _, layout := range dayLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return t, true
        }
    }
    return time.Time{}, false
}

// Purchase: POST /api/tickets
func (h *TicketHandler) Purchase(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    var req purchaseReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return badRequest(c, err.Error())
    }
    day, ok := parseDay(req.AvailableAt)
    if !ok {
        return badRequest(c, "availableAt must be a date like 2006-01-02")
    }
    tt, ok := model.ParseTicketType(req.TicketType)
    if !ok {
        return respondError(c, apperror.ErrInvalidTicketType)
    }

    order, err := h.tickets.Purchase(c.Request().Context(), model.Purchase{UserID: uid, Day: day, TicketType: tt})
    if err != nil {
        h.log.Warn("ticket purchase rejected", "user_id", uid, "ticket_type", tt, "error", err)
        return respondError(c, err)
    }
    h.log.Info("ticket purchased", "user_id", uid, "ticket_order_id", order.ID)
    return c.JSON(http.StatusCreated, toOrderResp(order))
}

// SetStatus: PATCH /api/tickets/:id/status with {"status": "ACTIVE"} or ?status=ACTIVE
func (h *TicketHandler) SetStatus(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || orderID == 0 {
        return badRequest(c, "invalid ticket order id")
    }
    var req statusReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if req.Status == "" {
        req.Status = c.QueryParam("status")
    }
    status, ok := model.ParseOrderStatus(req.Status)
    if !ok {
        return respondError(c, apperror.ErrInvalidStatus)
    }

    order, err := h.tickets.SetStatus(c.Request().Context(), uid, orderID, status)
    if err != nil {
        h.log.Warn("ticket status change rejected", "user_id", uid, "ticket_order_id", orderID, "error", err)
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toOrderResp(order))
}

// MyActive: GET /api/tickets/my/active
func (h *TicketHandler) MyActive(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    orders, err := h.tickets.Active(c.Request().Context(), uid)
    if err != nil {
        return respondError(c, err)
    }
    out := make([]orderResp, 0, len(orders))
    for _, o := range orders {
        out = append(out, toOrderResp(o))
    }
    return c.JSON(http.StatusOK, out)
}

type usageResp struct {
    RideUsageID   uint64            `json:"rideUsageId"`
    RideID        uint64            `json:"rideId"`
    TicketOrderID uint64            `json:"ticketOrderId"`
    Status        model.UsageStatus `json:"status"`
    ArrivedAt     *string           `json:"arrivedAt"`
    CompletedAt   *string           `json:"completedAt"`
    CreatedAt     string            `json:"createdAt"`
}

const stampLayout = "2006-01-02T15:04:05"

func stamp(t *time.Time) *string {
    if t == nil {
        return nil
    }
    s := t.Format(stampLayout)
    return &s
}

// MyUsages: GET /api/ride-usages/my
func (h *TicketHandler) MyUsages(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    usages, err := h.usages.History(c.Request().Context(), uid)
    if err != nil {
        return respondError(c, err)
    }
    out := make([]usageResp, 0, len(usages))
    for _, u := range usages {
        out = append(out, usageResp{
            RideUsageID:   u.ID,
            RideID:        u.RideID,
            TicketOrderID: u.TicketOrderID,
            Status:        u.Status,
            ArrivedAt:     stamp(u.ArrivedAt),
            CompletedAt:   stamp(u.CompletedAt),
            CreatedAt:     u.CreatedAt.Format(stampLayout),
        })
    }
    return c.JSON(http.StatusOK, out)
}
