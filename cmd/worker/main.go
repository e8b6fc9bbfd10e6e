// Package main runs the background job worker (report export to S3).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/webcast/config"
	"github.com/aura-webinar/webcast/internal/enrol"
	"github.com/aura-webinar/webcast/internal/export"
	"github.com/aura-webinar/webcast/internal/useractivity"
	"github.com/aura-webinar/webcast/internal/webcasts"
	"github.com/aura-webinar/webcast/pkg/cache"
	"github.com/aura-webinar/webcast/pkg/database"
	"github.com/aura-webinar/webcast/pkg/metrics"
	"github.com/aura-webinar/webcast/pkg/queue"
	"github.com/aura-webinar/webcast/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ExportsBucket:        cfg.AWS.ExportsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	shared := cache.NewRedis(rdb, "webcast:")
	reportSvc := useractivity.NewService(useractivity.ServiceConfig{
		Identity:  cfg.Report.IdentityFields,
		RoundStep: cfg.Report.RoundStep(),
		PageSize:  cfg.Report.PageSize,
		Base:      cfg.Server.BaseURL,
	}, useractivity.ServiceDeps{
		DB:        pool,
		Instances: enrol.NewCachedInstances(enrol.NewRepository(pool), cfg.Report.RoundStep()),
		Cache:     shared,
		Logger:    logger,
	})
	jobQueue := queue.NewQueue(rdb, logger)
	processor := export.NewProcessor(webcasts.NewRepository(pool), reportSvc, s3Client, jobQueue,
		export.NewStatuses(shared), metrics.New(), logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
