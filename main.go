package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"synapsechat-backend/internal/config"
	"synapsechat-backend/internal/database"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/handlers"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/jwt"
	"synapsechat-backend/internal/keyValue"
	"synapsechat-backend/internal/snowflake"
	"synapsechat-backend/internal/store"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = level
	if cfg.LogToFile {
		zapConfig.OutputPaths = []string{"app.log", "stdout"}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}

func setupRedis(ctx context.Context, address string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: "",
		DB:       0,
	})

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func run(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) error {
	sqlDB, err := database.Setup(sugar, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var redisClient *redis.Client
	if !cfg.SelfContained {
		sugar.Infof("Connecting to redis at %s...", cfg.RedisAddress)
		redisClient, err = setupRedis(ctx, cfg.RedisAddress)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	keyValue.Setup(ctx, sugar, redisClient, cfg.ProjectID)
	hub.Setup(sugar, redisClient, cfg.ProjectID)

	err = snowflake.Setup(cfg.WorkerID)
	if err != nil {
		return err
	}

	jwt.Setup(cfg.JwtSecret, cfg.IsHttps())
	fileHandlers.Setup(sugar, cfg.StorageDir)

	router := handlers.Setup(ctx, cfg, sugar, store.New(sqlDB))

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Address, cfg.Port),
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		if cfg.IsHttps() {
			sugar.Infof("Server is running on https://%s", server.Addr)
			err = server.ListenAndServeTLS(cfg.TlsCert, cfg.TlsKey)
		} else {
			sugar.Infof("Server is running on http://%s", server.Addr)
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()
		sugar.Info("Shutting down...")

		// websockets are hijacked so the http server doesn't wait for them
		hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sugar, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer sugar.Sync()

	for _, warning := range cfg.Warnings {
		sugar.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, sugar)
	if err != nil {
		sugar.Error(err)
		sugar.Sync()
		os.Exit(1)
	}
}
