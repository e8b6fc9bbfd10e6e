// Package main runs the webcast report HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/webcast/config"
	"github.com/aura-webinar/webcast/internal/auth"
	"github.com/aura-webinar/webcast/internal/enrol"
	"github.com/aura-webinar/webcast/internal/export"
	"github.com/aura-webinar/webcast/internal/lang"
	"github.com/aura-webinar/webcast/internal/middleware"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/useractivity"
	"github.com/aura-webinar/webcast/internal/userstatus"
	"github.com/aura-webinar/webcast/internal/webcasts"
	"github.com/aura-webinar/webcast/pkg/cache"
	"github.com/aura-webinar/webcast/pkg/database"
	"github.com/aura-webinar/webcast/pkg/metrics"
	"github.com/aura-webinar/webcast/pkg/queue"
	"github.com/aura-webinar/webcast/pkg/redis"
	"github.com/aura-webinar/webcast/pkg/response"
	"github.com/aura-webinar/webcast/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, database.PoolConfig{DSN: cfg.Database.DSN(), MaxConns: int32(cfg.Database.MaxConns)}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.ExportsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	bundle, err := lang.Load(cfg.Report.Lang)
	if err != nil {
		logger.Fatal("language pack", zap.String("lang", cfg.Report.Lang), zap.Error(err))
	}
	reg := metrics.New()
	shared := cache.NewRedis(rdb, "webcast:")
	var counts cache.Cache = shared
	if cfg.Report.CountCache == "memory" {
		counts = cache.NewMemory(cfg.Report.RoundStep())
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Course modules and access
	webcastRepo := webcasts.NewRepository(pool)
	resolve := webcasts.ResolveCourseModule(webcastRepo, logger)
	requireManager := webcasts.RequireManager(webcastRepo, logger)

	// Report
	enrolRepo := enrol.NewRepository(pool)
	reportSvc := useractivity.NewService(useractivity.ServiceConfig{
		Identity:  cfg.Report.IdentityFields,
		RoundStep: cfg.Report.RoundStep(),
		PageSize:  cfg.Report.PageSize,
		Base:      cfg.Server.BaseURL,
	}, useractivity.ServiceDeps{
		DB:        pool,
		Instances: enrol.NewCachedInstances(enrolRepo, cfg.Report.RoundStep()),
		Cache:     counts,
		Metrics:   reg,
		Logger:    logger,
	})
	statusRepo := userstatus.NewRepository(pool)
	reportHandler := useractivity.NewHandler(reportSvc, statusRepo, authRepo, bundle, logger)
	pingHandler := userstatus.NewHandler(statusRepo, enrolRepo, int64(cfg.Report.AttendanceMaxGapS), logger)

	// Exports
	jobQueue := queue.NewQueue(rdb, logger)
	statuses := export.NewStatuses(shared)
	var presigner export.Presigner
	if s3Client != nil {
		presigner = s3Client
	}
	exportHandler := export.NewHandler(jobQueue, statuses, presigner, bundle.Code(), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET(useractivity.ActivityPath, resolve, requireManager, reportHandler.Page)

		api.GET("/api/webcasts/:cmid/useractivity", resolve, requireManager, reportHandler.JSON)
		api.POST("/api/webcasts/:cmid/useractivity/export", resolve, requireManager,
			middleware.RateLimit(cfg.Report.ExportRatePerMin), exportHandler.Create)
		api.GET("/api/exports/:job", exportHandler.Get)

		api.POST("/api/webcasts/:cmid/status/ping", resolve, pingHandler.Ping)

		api.GET("/metrics", middleware.RequireRole(models.RoleAdmin), reg.Handler())
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (report export to S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		processor := export.NewProcessor(webcastRepo, reportSvc, s3Client, jobQueue, statuses, reg, logger)
		go processor.Run(workerCtx)
		logger.Info("export worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
