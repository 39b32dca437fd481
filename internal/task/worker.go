// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Handler executes one task. Payload is the raw JSON the dispatcher
// enqueued. Handlers run under at-least-once delivery and must be
// idempotent.
type Handler func(ctx context.Context, payload []byte) error

// Retry policy for failing handlers within a single delivery.
const (
	handlerMaxRetries = 3
	handlerRetryBase  = 500 * time.Millisecond
)

// Worker pops messages off the queue and runs registered handlers. It is
// the consuming half of the dispatcher and runs in its own process.
type Worker struct {
	queue     Queue
	queueKey  string
	handlers  map[string]Handler
	logger    *slog.Logger
	processed *prometheus.CounterVec
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerQueueKey overrides the Redis list name.
func WithWorkerQueueKey(key string) WorkerOption {
	return func(w *Worker) {
		if key != "" {
			w.queueKey = key
		}
	}
}

// WithWorkerLogger overrides the default logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithProcessedCounter records processed task outcomes, labelled by task
// name and status.
func WithProcessedCounter(c *prometheus.CounterVec) WorkerOption {
	return func(w *Worker) { w.processed = c }
}

// NewWorker creates a Worker over the given queue.
func NewWorker(queue Queue, opts ...WorkerOption) (*Worker, error) {
	if queue == nil {
		return nil, oops.Code("TASK_CONFIG_INVALID").Errorf("queue is required")
	}
	w := &Worker{
		queue:    queue,
		queueKey: DefaultQueue,
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Register binds a handler to a task name. Registering twice for the same
// name is a programming error.
func (w *Worker) Register(name string, h Handler) error {
	if name == "" {
		return oops.Code("TASK_INVALID_NAME").Errorf("task name cannot be empty")
	}
	if h == nil {
		return oops.Code("TASK_CONFIG_INVALID").With("task", name).Errorf("handler cannot be nil")
	}
	if _, exists := w.handlers[name]; exists {
		return oops.Code("TASK_CONFIG_INVALID").With("task", name).Errorf("handler already registered")
	}
	w.handlers[name] = h
	return nil
}

// Run consumes the queue until the context is cancelled. Handler failures
// are retried with exponential backoff within the delivery, then logged and
// dropped; redelivery beyond that is the queue's at-least-once concern, not
// the worker's.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("task worker started", "queue", w.queueKey, "handlers", len(w.handlers))

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("task worker stopped", "queue", w.queueKey)
			return err //nolint:wrapcheck // cancellation is the normal exit path
		}

		raw, err := w.queue.Pop(ctx, w.queueKey, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("queue pop failed", "queue", w.queueKey, "error", err)
			// Back off briefly so a dead queue doesn't spin the loop.
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if raw == nil {
			continue
		}

		w.process(ctx, raw)
	}
}

// process decodes and executes one delivery.
func (w *Worker) process(ctx context.Context, raw []byte) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		w.logger.Error("dropping undecodable task message", "error", err)
		w.count("unknown", "decode_error")
		return
	}

	handler, ok := w.handlers[msg.Name]
	if !ok {
		w.logger.Warn("dropping task with no handler", "task", msg.Name, "task_id", msg.ID)
		w.count(msg.Name, "unhandled")
		return
	}

	backoff := retry.WithMaxRetries(handlerMaxRetries, retry.NewExponential(handlerRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if herr := handler(ctx, msg.Payload); herr != nil {
			return retry.RetryableError(herr)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error("task failed after retries",
				"task", msg.Name, "task_id", msg.ID, "error", err)
		}
		w.count(msg.Name, "error")
		return
	}

	w.logger.Debug("task completed", "task", msg.Name, "task_id", msg.ID)
	w.count(msg.Name, "ok")
}

func (w *Worker) count(task, status string) {
	if w.processed != nil {
		w.processed.WithLabelValues(task, status).Inc()
	}
}
