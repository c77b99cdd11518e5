package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "sync"
    "syscall"
    "time"

    "github.com/joho/godotenv"

    "github.com/iliyamo/ride-queue-auth/internal/config"
    "github.com/iliyamo/ride-queue-auth/internal/database"
    "github.com/iliyamo/ride-queue-auth/internal/handler"
    "github.com/iliyamo/ride-queue-auth/internal/logger"
    "github.com/iliyamo/ride-queue-auth/internal/middleware"
    "github.com/iliyamo/ride-queue-auth/internal/queue"
    "github.com/iliyamo/ride-queue-auth/internal/queueclient"
    "github.com/iliyamo/ride-queue-auth/internal/repository"
    "github.com/iliyamo/ride-queue-auth/internal/router"
    "github.com/iliyamo/ride-queue-auth/internal/service"
    "github.com/iliyamo/ride-queue-auth/internal/token"
)

func main() {
    _ = godotenv.Load() // .env is optional; real env vars win

    cfg := config.Load()
    log := logger.New(logger.Config{
        Level:   cfg.LogLevel,
        Format:  cfg.LogFormat,
        Service: "ride-queue-auth",
    })

    if err := middleware.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
        log.Error("init sentry failed", "error", err)
    }
    defer middleware.FlushSentry()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    loc := cfg.Location()
    db, err := database.Open(database.Options{
        User:     cfg.DBUser,
        Pass:     cfg.DBPass,
        Host:     cfg.DBHost,
        Port:     cfg.DBPort,
        Name:     cfg.DBName,
        Location: loc,
    })
    if err != nil {
        log.Fatal("database connection failed", "error", err)
    }
    defer db.Close()
    if cfg.DBAutoMigrate {
        if err := database.Migrate(ctx, db); err != nil {
            log.Fatal("database migration failed", "error", err)
        }
    }

    rdb, err := config.NewRedisClient()
    if err != nil {
        log.Warn("redis unavailable; rate limiting, response cache and wait-time snapshot disabled", "error", err)
    } else {
        defer rdb.Close()
    }
    rlCfg := config.LoadRateLimitConfig()
    cacheCfg := config.LoadCacheConfig()
    brokerCfg := config.LoadBrokerConfig()

    users := repository.NewUserRepo(db)
    creds := repository.NewTokenRepo(db)
    tickets := repository.NewTicketRepo(db)
    rides := repository.NewRideRepo(db)
    usages := repository.NewRideUsageRepo(db)
    waitTimes := repository.NewWaitTimeCache(rdb, cacheCfg.Prefix)

    tokens := token.NewService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
    gateway := queueclient.New(cfg.QueueServerURL, cfg.QueueServerTimeout)

    var events service.EventPublisher
    if brokerCfg.Enabled {
        events = queue.NewPublisher(brokerCfg.RabbitURL, brokerCfg.UsageQueue)
    }

    tx := repository.NewTransactor(db)
    auth := service.NewAuthService(tx, users, creds, tokens, cfg.BcryptCost, log)
    entitlements := service.NewEntitlementResolver(tx, tickets, loc)
    reservations := service.NewReservationStateMachine(usages)
    orchestrator := service.NewQueueOrchestrator(
        tx, entitlements, reservations, gateway, rides, events, log,
    )
    catalog := service.NewCatalogService(rides, gateway, waitTimes, log)
    poller := service.NewWaitTimePoller(gateway, waitTimes, cfg.WaitTimePoll, log)

    var wg sync.WaitGroup
    spawn := func(name string, run func(context.Context)) {
        wg.Add(1)
        go func() {
            defer wg.Done()
            run(ctx)
            log.Info("background worker stopped", "worker", name)
        }()
    }
    spawn("wait-time-poller", poller.Run)
    if brokerCfg.Enabled {
        consumer := queue.NewQueueEventConsumer(brokerCfg.KafkaBrokers, brokerCfg.QueueEventTopic, brokerCfg.KafkaGroupID, orchestrator, log)
        defer consumer.Close()
        spawn("queue-event-consumer", func(ctx context.Context) {
            if err := consumer.Run(ctx); err != nil {
                log.Error("queue event consumer failed", "error", err)
            }
        })
        audit := queue.NewAuditConsumer(brokerCfg.RabbitURL, brokerCfg.UsageQueue, brokerCfg.AuditLogDir, log)
        spawn("ride-usage-audit", audit.Run)
    }

    e := router.New(router.Deps{
        Auth:        handler.NewAuthHandler(auth, handler.CookieOptions{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}, log),
        Queue:       handler.NewQueueHandler(orchestrator, log),
        Catalog:     handler.NewCatalogHandler(catalog, entitlements),
        Ticket:      handler.NewTicketHandler(entitlements, reservations, log),
        Health:      handler.NewHealthHandler(db),
        Tokens:      tokens,
        Redis:       rdb,
        RateLimit:   rlCfg,
        Cache:       cacheCfg,
        CORSOrigins: cfg.CORSOrigins,
        Log:         log,
    })

    addr := ":" + cfg.Port
    go func() {
        log.Info("listening", "addr", addr, "env", cfg.Env)
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Error("server stopped", "error", err)
            stop()
        }
    }()

    <-ctx.Done()
    log.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Error("graceful shutdown failed", "error", err)
    }
    if err := orchestrator.Drain(shutdownCtx); err != nil {
        log.Warn("ride usage events still pending at shutdown", "error", err)
    }
    wg.Wait()
}
