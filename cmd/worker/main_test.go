package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/backend/internal/config"
	"retailpos/backend/internal/logging"
)

func TestNewWorkerRequiresRedis(t *testing.T) {
	_, err := newWorker(config.Config{}, logging.NewWithWriter(io.Discard, "text", "error"))
	assert.EqualError(t, err, "REDIS_ADDR is required")
}

func TestNewWorkerBuildsWithLogSender(t *testing.T) {
	worker, err := newWorker(config.Config{RedisAddr: "127.0.0.1:6379", WorkerConcurrency: 2}, logging.NewWithWriter(io.Discard, "text", "error"))
	require.NoError(t, err)
	assert.NotNil(t, worker)
}
