// Backbeat Scheduler — переносит наступившие отложенные вызовы
// из deferred_calls в RabbitMQ.
//
// Экземпляров может быть несколько: тик выполняет только лидер,
// удерживающий advisory lock в Postgres.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groupon/backbeat-sub000/internal/config"
	"github.com/groupon/backbeat-sub000/internal/mq"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/scheduler"
	"github.com/groupon/backbeat-sub000/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const schedLockKey int64 = 424242

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting backbeat-scheduler", "interval", cfg.Relay.Interval)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("db connected")

	// Без RabbitMQ relay'ю некуда публиковать; вызовы выполнит polling worker'ов
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	relay := scheduler.New(scheduler.Config{
		Store:     repo.NewPostgresStore(pool),
		Publisher: mq.NewPublisher(mqConn, logger),
		Logger:    logger,
		BatchSize: cfg.Relay.BatchSize,
	})

	lock := repo.NewLeaderLock(pool, schedLockKey)
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("failed to release leader lock", "error", err)
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := config.Addr(cfg.Ports.Scheduler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http error", "error", err)
			cancel()
		}
	}()

	// scheduler loop
	var leader bool
	err = scheduler.Run(ctx, cfg.Relay.Interval, logger, func(ctx context.Context) {
		// пытаемся стать лидером (или подтвердить лидерство)
		ok, err := lock.TryAcquire(ctx)
		if err != nil {
			logger.Error("leader lock error", "error", err)
			return
		}
		if ok != leader {
			logger.Info("leadership changed", "leader", ok)
			leader = ok
		}
		if !ok {
			// не лидер, пропускаем тик
			return
		}

		if err := relay.Tick(ctx); err != nil {
			logger.Error("relay tick failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("scheduler stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info("backbeat-scheduler stopped")
}
