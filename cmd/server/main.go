package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/todo-backend/api/handler"
	"github.com/fastygo/todo-backend/internal/config"
	"github.com/fastygo/todo-backend/internal/infrastructure/buffer"
	"github.com/fastygo/todo-backend/internal/infrastructure/events"
	"github.com/fastygo/todo-backend/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/todo-backend/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/todo-backend/internal/infrastructure/redis"
	"github.com/fastygo/todo-backend/internal/middleware"
	"github.com/fastygo/todo-backend/internal/router"
	"github.com/fastygo/todo-backend/internal/services"
	"github.com/fastygo/todo-backend/internal/services/lifecycle"
	"github.com/fastygo/todo-backend/pkg/httpcontext"
	"github.com/fastygo/todo-backend/pkg/logger"
	"github.com/fastygo/todo-backend/pkg/token"
	"github.com/fastygo/todo-backend/repository/postgres"
	redisRepo "github.com/fastygo/todo-backend/repository/redis"
	"github.com/fastygo/todo-backend/usecase"
	authUC "github.com/fastygo/todo-backend/usecase/auth"
	profileUC "github.com/fastygo/todo-backend/usecase/profile"
	taskUC "github.com/fastygo/todo-backend/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.UsesDevelopmentSecret() {
		zapLogger.Warn("JWT_SECRET not set, using the development secret")
	}
	zapLogger.Info("cors origins", zap.Strings("allowed", cfg.CORS.AllowedOrigins))

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	// Tables must exist before the listener accepts traffic.
	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "buffer")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(monitor.Checks{
		Postgres:   pool.Ping,
		Redis:      monitor.RedisCheck(redisClient),
		BufferSize: bufferStore.Size,
	}, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.JWT.TTL)

	bufferProcessor, err := services.NewBufferProcessor(
		bufferStore,
		mon,
		taskRepo,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  cfg.Buffer.Retention,
		},
	)
	if err != nil {
		zapLogger.Fatal("failed to create buffer processor", zap.Error(err))
	}
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	var publisher usecase.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, cfg.AppName, zapLogger)
		if err != nil {
			zapLogger.Warn("task events disabled", zap.Error(err))
		} else {
			publisher = events.NewPublisher(nc, cfg.NATS.SubjectPrefix, zapLogger)
			manager.Register("nats", func(ctx context.Context) error {
				return nc.Drain()
			})
		}
	}

	tokens := token.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	authUseCase := authUC.New(userRepo, sessionRepo, tokens, zapLogger)
	profileUseCase := profileUC.New(userRepo, zapLogger)
	taskUseCase := taskUC.New(taskRepo, bufferProcessor, publisher, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:   apiHandler.NewAuthHandler(authUseCase, profileUseCase, ctxAdapter, zapLogger),
		Task:   apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(tokens, authUseCase, cfg.Context.RequestTimeout, zapLogger)
	r := router.New(handlers, authMiddleware)
	cors := middleware.CORS(cfg.CORS.AllowedOrigins, zapLogger)

	server := &fasthttp.Server{
		Handler:      cors(r.Handler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
