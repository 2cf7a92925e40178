package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"habittracker/internal/access"
	"habittracker/internal/config"
	"habittracker/internal/handler"
	"habittracker/internal/httpserver"
	"habittracker/internal/repository"
	"habittracker/internal/service/auth"
	"habittracker/internal/service/habit"
	"habittracker/pkg/circuitbreaker"
	"habittracker/pkg/db"
	"habittracker/pkg/logger"
	"habittracker/pkg/mq"
	"habittracker/pkg/outbox"
	redisclient "habittracker/pkg/redis"
	"habittracker/pkg/util"
)

type storage interface {
	habit.Store
	httpserver.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting habittracker...",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		habits     storage
		users      auth.UserStore
		dispatcher *outbox.Dispatcher
		publisher  *mq.Publisher
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("Using in-memory storage, data is lost on restart")
		mem := repository.NewMemoryStore()
		habits, users = mem, mem

	default:
		log.Info("Initializing database connection...")
		dbConn, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			log.Fatal("Failed to init DB", zap.Error(err))
		}
		defer dbConn.Close()

		if err := db.Migrate(ctx, dbConn, log); err != nil {
			log.Fatal("Failed to apply schema", zap.Error(err))
		}

		// 不分发事件时不写 outbox，避免表无限增长
		var outboxRepo *outbox.Repository
		if cfg.Outbox.Enabled {
			outboxRepo = outbox.NewRepository(dbConn)
		}
		habits = repository.NewHabitRepository(dbConn, outboxRepo, log)
		users = repository.NewUserRepository(dbConn, log)

		if outboxRepo != nil && cfg.MQ.URL != "" {
			publisher, err = mq.NewPublisher(cfg.MQ.URL)
			if err != nil {
				log.Fatal("Failed to init MQ publisher", zap.Error(err))
			}
			defer publisher.Close()

			breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
				FailureThreshold:    5,
				SuccessThreshold:    2,
				Timeout:             30 * time.Second,
				HalfOpenMaxRequests: 1,
				OnStateChange: func(from, to circuitbreaker.State) {
					log.Warn("Outbox circuit breaker state changed",
						zap.String("from", from.String()),
						zap.String("to", to.String()),
					)
				},
			})
			dispatcher = outbox.NewDispatcher(outboxRepo, publisher, log).
				WithInterval(cfg.Outbox.Interval).
				WithBatchSize(cfg.Outbox.BatchSize).
				WithMaxRetries(cfg.Outbox.MaxRetries).
				WithBreaker(breaker)
		}
	}

	// Redis 只用于创建请求的幂等键，不可用时跳过
	var deduper *util.Deduper
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, Idempotency-Key is ignored", zap.Error(err))
		} else {
			defer rdb.Close()
			deduper = util.NewDeduper(rdb, cfg.Idempotency.TTL, log)
		}
	}

	authService := auth.NewService(users, cfg.JWT.Secret, cfg.JWT.TTL, log)
	habitService := habit.NewService(habits, access.NewHabitPolicy(), habit.Options{
		PageSize:    cfg.Pagination.PageSize,
		MaxPageSize: cfg.Pagination.MaxPageSize,
	}, log)

	deps := httpserver.Deps{
		AuthHandler:    handler.NewAuthHandler(authService, log),
		HabitHandler:   handler.NewHabitHandler(habitService, deduper, log),
		Authenticator:  authService,
		Storage:        habits,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	}
	if publisher != nil {
		deps.Broker = publisher
	}
	router := httpserver.NewRouter(deps)

	if dispatcher != nil {
		go dispatcher.Start(ctx)
		log.Info("Outbox dispatcher started", zap.Duration("interval", cfg.Outbox.Interval))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	<-ctx.Done()
	log.Info("Shutting down habittracker gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("habittracker shutdown complete")
}
