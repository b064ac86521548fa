package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Brownie44l1/fer-classifier/internal/classifier"
	"github.com/Brownie44l1/fer-classifier/internal/config"
	"github.com/Brownie44l1/fer-classifier/internal/model"
	"github.com/Brownie44l1/fer-classifier/internal/repository"
)

// App holds the classifier service and the resources behind it.
type App struct {
	Service  *classifier.Service
	Metadata model.Metadata

	redis *redis.Client
	db    *gorm.DB
}

// New initializes the ONNX runtime, the model loader and the optional cache
// and history stores. The model itself is not opened here; every
// classification loads it on demand.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := model.InitRuntime(cfg.ONNXRuntimeLib); err != nil {
		return nil, err
	}

	metadata, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		_ = model.ShutdownRuntime()
		return nil, err
	}
	loader, err := model.NewONNXLoader(cfg.ModelPath, metadata)
	if err != nil {
		_ = model.ShutdownRuntime()
		return nil, err
	}
	logger.Info("model configured",
		zap.String("model_path", cfg.ModelPath),
		zap.Strings("classes", metadata.Classes))

	a := &App{Metadata: metadata}

	var cache classifier.Cache
	if cfg.RedisAddr != "" {
		a.redis, err = initRedis(ctx, cfg.RedisAddr)
		if err != nil {
			a.Close()
			return nil, err
		}
		cache = classifier.NewRedisCache(a.redis)
		logger.Info("redis cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	var repo classifier.Repository
	if cfg.DatabaseDSN != "" {
		a.db, err = initDatabase(ctx, cfg.DatabaseDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		history := repository.NewClassificationRepository(a.db)
		if err := history.AutoMigrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("auto migrate failed: %w", err)
		}
		repo = history
		logger.Info("classification history enabled")
	}

	a.Service = classifier.NewService(loader, cache, repo, logger, classifier.Options{
		Threshold: cfg.Threshold,
		Timeout:   cfg.InferenceTimeout,
		CacheTTL:  cfg.CacheTTL,
	})
	return a, nil
}

// Close releases the stores and the ONNX runtime.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	errs = append(errs, model.ShutdownRuntime())
	return errors.Join(errs...)
}

func initDatabase(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access db handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

func initRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
