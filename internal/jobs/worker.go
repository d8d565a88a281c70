package jobs

import (
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"retailpos/backend/internal/mailer"
)

// Worker wraps the asynq server consuming the email queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Concurrency int
	Sender      mailer.Sender
	Logger      *slog.Logger
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Sender == nil {
		return nil, errors.New("worker: email sender is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSendEmail, NewMailHandler(cfg.Sender, logger).Handle)

	return &Worker{server: srv, mux: mux, logger: logger}, nil
}

// Start begins processing tasks in the background. Stop it with Shutdown.
func (w *Worker) Start() error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	w.logger.Info("email worker started", "queue", QueueDefault)
	return w.server.Start(w.mux)
}

// Shutdown stops pulling new tasks and waits for active ones to finish.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("email worker stopped")
}
