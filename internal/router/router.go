package router

import (
    "net/http"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/ride-queue-auth/internal/config"
    "github.com/iliyamo/ride-queue-auth/internal/handler"
    "github.com/iliyamo/ride-queue-auth/internal/logger"
    "github.com/iliyamo/ride-queue-auth/internal/middleware"
    "github.com/iliyamo/ride-queue-auth/internal/token"
)

// Deps is everything the route table needs. Redis may be nil, in which case
// rate limiting and response caching are skipped.
type Deps struct {
    Auth    *handler.AuthHandler
    Queue   *handler.QueueHandler
    Catalog *handler.CatalogHandler
    Ticket  *handler.TicketHandler
    Health  *handler.HealthHandler

    Tokens      *token.Service
    Redis       *redis.Client
    RateLimit   config.RateLimitConfig
    Cache       config.CacheConfig
    CORSOrigins []string
    Log         *logger.Logger
}

// New builds the echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Validator = handler.NewRequestValidator()

    e.Use(middleware.Recover(d.Log))
    e.Use(echomw.RequestID())
    e.Use(middleware.RequestLogger(d.Log))
    e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
        AllowOrigins:     d.CORSOrigins,
        AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
        AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
        AllowCredentials: true,
    }))
    e.Use(middleware.SessionGate(d.Tokens, middleware.DefaultExemptions))

    RegisterRoutes(e, d)
    return e
}

// RegisterRoutes mounts the health check, auth, catalog, ticket and queue routes.
func RegisterRoutes(e *echo.Echo, d Deps) {
    e.GET("/healthz", d.Health.Health)

    limit := middleware.RateLimit(d.RateLimit, d.Redis, d.Log)
    cache := middleware.ResponseCache(d.Cache, d.Redis)

    api := e.Group("/api")
    RegisterAuth(api, d.Auth, limit)
    RegisterCatalog(api, d.Catalog, cache)
    RegisterTickets(api, d.Ticket)
    RegisterQueue(api, d.Queue, limit)
}

// RegisterAuth mounts the session endpoints. Signup, login and refresh are
// exempt from the session gate; logout and me are not.
func RegisterAuth(g *echo.Group, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
    g.POST("/signup", a.Signup, limit)
    g.POST("/login", a.Login, limit)
    g.POST("/refresh", a.Refresh, limit)
    g.POST("/logout", a.Logout)
    g.GET("/me", a.Me)
}

// RegisterCatalog mounts ride and ticket browsing. Public reads go through
// the response cache; the caller's own tickets never do.
func RegisterCatalog(g *echo.Group, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
    g.GET("/rides", h.ListRides, cache)
    g.GET("/rides/minutes", h.MinWaitMinutes, cache)
    g.GET("/rides/search", h.SearchRides, cache)
    g.GET("/rides/:id", h.GetRide, cache)
    g.GET("/tickets/products", h.Products, cache)
    g.GET("/tickets/my", h.MyTickets)
}

// RegisterTickets mounts the caller's purchases, activation and ride history.
// None of these are exempt from the session gate.
func RegisterTickets(g *echo.Group, h *handler.TicketHandler) {
    g.POST("/tickets", h.Purchase)
    g.GET("/tickets/my/active", h.MyActive)
    g.PATCH("/tickets/:id/status", h.SetStatus)
    g.GET("/ride-usages/my", h.MyUsages)
}
