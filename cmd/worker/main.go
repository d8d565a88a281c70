// Command worker delivers the emails that the server enqueues when
// EMAIL_QUEUE is enabled.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"retailpos/backend/internal/config"
	"retailpos/backend/internal/jobs"
	"retailpos/backend/internal/logging"
	"retailpos/backend/internal/mailer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	worker, err := newWorker(cfg, logger)
	if err != nil {
		logger.Error("worker setup failed", "error", err)
		os.Exit(1)
	}
	if err := worker.Start(); err != nil {
		logger.Error("worker failed to start", "error", err)
		os.Exit(1)
	}

	shutdownCtx, forceShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer forceShutdown()

	code := <-gfshutdown.GracefulShutdown(shutdownCtx, shutdownTimeout, map[string]gfshutdown.Operation{
		"email-worker": func(context.Context) error {
			worker.Shutdown()
			return nil
		},
	})
	if code != 0 {
		os.Exit(code)
	}
}

func newWorker(cfg config.Config, logger *slog.Logger) (*jobs.Worker, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	return jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Concurrency: cfg.WorkerConcurrency,
		Sender:      mailer.NewSender(cfg.BrevoBaseURL, cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName, logger),
		Logger:      logger,
	})
}
