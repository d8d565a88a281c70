// Package jobs moves email delivery onto an asynq queue.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"retailpos/backend/internal/mailer"
)

const (
	QueueDefault      = "default"
	TaskTypeSendEmail = "mail:send"
)

func NewSendEmailTask(envelope mailer.Envelope) (*asynq.Task, error) {
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// MailHandler processes TaskTypeSendEmail tasks.
type MailHandler struct {
	sender mailer.Sender
	logger *slog.Logger
}

func NewMailHandler(sender mailer.Sender, logger *slog.Logger) *MailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailHandler{sender: sender, logger: logger}
}

func (h *MailHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var envelope mailer.Envelope
	if err := json.Unmarshal(task.Payload(), &envelope); err != nil {
		h.logger.Warn("drop malformed email task", "error", err)
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}
	if err := mailer.Deliver(ctx, h.sender, envelope); err != nil {
		h.logger.Warn("email delivery failed", "to", envelope.To, "subject", envelope.Subject, "error", err)
		return err
	}
	h.logger.Info("email delivered", "to", envelope.To, "subject", envelope.Subject)
	return nil
}
