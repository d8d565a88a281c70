package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"retailpos/backend/internal/mailer"
)

// Client enqueues email envelopes. It satisfies mailer.Dispatcher.
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// Dispatch enqueues a single-attempt delivery.
func (c *Client) Dispatch(ctx context.Context, envelope mailer.Envelope) error {
	task, err := NewSendEmailTask(envelope)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
	return err
}

func (c *Client) Close() error {
	return c.client.Close()
}
