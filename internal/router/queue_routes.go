package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/handler"
)

// RegisterQueue mounts the reservation endpoints under /api/queue. All of
// them require a session; the handlers check that the caller acts on their
// own queue.
func RegisterQueue(g *echo.Group, h *handler.QueueHandler, limit echo.MiddlewareFunc) {
    q := g.Group("/queue", limit)
    q.POST("/enqueue", h.Enqueue)
    q.GET("/status/:userId", h.Status)
    q.POST("/complete", h.Complete)
    q.POST("/cancel", h.Cancel)
}
