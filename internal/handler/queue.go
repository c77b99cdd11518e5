package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/apperror"
    "github.com/iliyamo/ride-queue-auth/internal/logger"
    "github.com/iliyamo/ride-queue-auth/internal/middleware"
    "github.com/iliyamo/ride-queue-auth/internal/model"
)

// QueueService is the reservation use cases the queue endpoints drive.
type QueueService interface {
    Enqueue(ctx context.Context, callerID, userID, rideID uint64, requested string) (model.EnqueueResult, error)
    Cancel(ctx context.Context, callerID, userID, rideID uint64) error
    CompleteRide(ctx context.Context, callerID, userID, rideID uint64) error
    Status(ctx context.Context, callerID, userID uint64) ([]model.QueueStatusItem, error)
}

type QueueHandler struct {
    queue QueueService
    log   *logger.Logger
}

func NewQueueHandler(q QueueService, log *logger.Logger) *QueueHandler {
    return &QueueHandler{queue: q, log: log}
}

type enqueueReq struct {
    UserID     uint64 `json:"userId" validate:"required"`
    RideID     uint64 `json:"rideId" validate:"required"`
    TicketType string `json:"ticketType" validate:"required"`
}

type rideActionReq struct {
    UserID uint64 `json:"userId" validate:"required"`
    RideID uint64 `json:"rideId" validate:"required"`
}

type rideActionResp struct {
    Success bool   `json:"success"`
    Message string `json:"message"`
    UserID  uint64 `json:"userId"`
    RideID  uint64 `json:"rideId"`
}

// Enqueue: POST /api/queue/enqueue
func (h *QueueHandler) Enqueue(c echo.Context) error {
    caller, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    var req enqueueReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return badRequest(c, err.Error())
    }

    res, err := h.queue.Enqueue(c.Request().Context(), caller, req.UserID, req.RideID, req.TicketType)
    if err != nil {
        h.log.Warn("enqueue rejected", "caller_id", caller, "user_id", req.UserID, "ride_id", req.RideID, "error", err)
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Status: GET /api/queue/status/:userId
func (h *QueueHandler) Status(c echo.Context) error {
    caller, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
    if err != nil || userID == 0 {
        return badRequest(c, "invalid userId")
    }

    items, err := h.queue.Status(c.Request().Context(), caller, userID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Complete: POST /api/queue/complete
func (h *QueueHandler) Complete(c echo.Context) error {
    return h.rideAction(c, "ride completed", h.queue.CompleteRide)
}

// Cancel: POST /api/queue/cancel
func (h *QueueHandler) Cancel(c echo.Context) error {
    return h.rideAction(c, "queue reservation cancelled", h.queue.Cancel)
}

func (h *QueueHandler) rideAction(c echo.Context, done string, act func(ctx context.Context, callerID, userID, rideID uint64) error) error {
    caller, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    var req rideActionReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return badRequest(c, err.Error())
    }

    if err := act(c.Request().Context(), caller, req.UserID, req.RideID); err != nil {
        h.log.Warn("queue action rejected", "action", done, "caller_id", caller, "user_id", req.UserID, "ride_id", req.RideID, "error", err)
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, rideActionResp{Success: true, Message: done, UserID: req.UserID, RideID: req.RideID})
}
