package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadrouter_backend/internal/alerts"
	"leadrouter_backend/internal/crm"
	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/internal/scheduler"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/db"
	"leadrouter_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	if cfg.RedisURL == "" {
		panic("REDIS_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	outboxRepo := outbox.New(pool)

	// Outbox dispatcher: moves due rows onto the queue.
	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		panic("failed to initialize task client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewDispatcher(outboxRepo, client, log)
	go dispatcher.Run(ctx)

	// Task worker: performs the external deliveries.
	tokens := crm.NewTokenSource(cfg, nil)
	deliverer := crm.NewClient(cfg, tokens, log)
	sender := alerts.NewEmailSender(cfg, log)

	worker, err := scheduler.NewWorker(cfg, outboxRepo, deliverer, sender, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, stopping worker")
		worker.Shutdown()
	}()

	if err := worker.Run(); err != nil {
		log.Error("worker stopped with error", "error", err)
		panic("worker stopped with error: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
