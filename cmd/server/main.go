// Package main implements the entry point for the tournament task service:
// the asynchronous task engine, its durable store and the HTTP surface for
// querying and controlling submitted work.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pzielinski/tourney-api/internal/config"
	"github.com/pzielinski/tourney-api/internal/platform/logger"
	"github.com/pzielinski/tourney-api/internal/platform/metrics"
	"github.com/pzielinski/tourney-api/internal/platform/postgres"
	redisstore "github.com/pzielinski/tourney-api/internal/platform/redis"
	"github.com/pzielinski/tourney-api/internal/task"
	"github.com/pzielinski/tourney-api/migrations"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Task.StoreBackend,
		"worker_count", cfg.Task.WorkerCount)

	taskStore, closeStore, err := openTaskStore(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	engineCfg := task.Config{
		WorkerCount:   cfg.Task.WorkerCount,
		QueueSize:     cfg.Task.QueueSize,
		RetentionAge:  time.Duration(cfg.Task.RetentionDays) * 24 * time.Hour,
		SweepInterval: time.Duration(cfg.Task.SweepIntervalMinutes) * time.Minute,
	}

	engine := task.NewEngine(taskStore, engineCfg, appLogger)
	engine.SetNotifier(task.NewLogNotifier(appLogger))

	if err := engine.Start(); err != nil {
		return fmt.Errorf("failed to start task engine: %w", err)
	}
	defer engine.Stop()

	promRegistry := metrics.Register(engine)
	router := setupRouter(engine, promRegistry, appLogger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-stop:
		appLogger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}

// openTaskStore builds the configured durable store backend and returns it
// with a close function for its underlying connection.
func openTaskStore(cfg *config.Config, appLogger *slog.Logger) (task.Store, func(), error) {
	switch cfg.Task.StoreBackend {
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		appLogger.Info("using redis task store", "addr", cfg.Redis.Addr)
		return redisstore.NewTaskStore(rdb), func() { _ = rdb.Close() }, nil

	default:
		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(context.Background()); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := runMigrations(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		appLogger.Info("using postgres task store")
		return postgres.NewTaskStore(db), func() { _ = db.Close() }, nil
	}
}

// runMigrations applies the embedded goose migrations.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
