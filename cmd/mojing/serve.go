package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/mojing/internal/config"
	"github.com/bitfantasy/mojing/internal/fleet/handler"
	"github.com/bitfantasy/mojing/internal/fleet/job"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/bitfantasy/mojing/internal/fleet/sse"
	"github.com/bitfantasy/mojing/internal/middleware"
	"github.com/bitfantasy/mojing/internal/shared/feishu"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting mojing service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	repos := repository.NewRepositories(db)
	if err := migrate(context.Background(), db, repos); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	hub := sse.NewHub(zapLogger)
	opts := service.Options{
		Logger:            zapLogger,
		Events:            hub,
		OutboxMaxAttempts: cfg.Outbox.MaxAttempts,
		OutboxBatchSize:   cfg.Outbox.BatchSize,
	}

	if cfg.Redis.Enabled() {
		rdb := initRedis(cfg.Redis)
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, device lock disabled", zap.Error(err))
		} else {
			opts.Locker = service.NewRedisLocker(rdb, cfg.Lock.TTL)
		}
	}

	if cfg.Feishu.Enabled() {
		opts.CardSender = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		opts.NotifyChatID = cfg.Feishu.ChatID
		zapLogger.Info("Feishu notification enabled", zap.String("chat_id", cfg.Feishu.ChatID))
	}

	services := service.NewServices(repos, opts)

	scheduler, err := job.NewScheduler(cfg.Outbox.RetrySpec, services.Outbox, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init scheduler", zap.Error(err))
	}
	scheduler.Start()

	ready := func() bool {
		sqlDB, err := db.DB()
		return err == nil && sqlDB.Ping() == nil
	}
	router := newRouter(cfg, zapLogger, handler.NewHandlers(services, hub), ready)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE 长连接
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
	return nil
}

func newRouter(cfg *config.Config, logger *zap.Logger, h *handler.Handlers, ready func() bool) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())
	// SSE 不压缩
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events"})))

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		if !ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))
	handler.RegisterRoutes(api, h)

	return router
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
