// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package task

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultQueue is the Redis list the dispatcher and worker agree on.
const DefaultQueue = "gatehouse:tasks"

// popTimeout bounds each blocking pop so the worker can notice context
// cancellation between polls.
const popTimeout = 5 * time.Second

// Queue abstracts the underlying list operations so dispatcher and worker
// logic can be tested against an in-memory fake.
type Queue interface {
	// Push appends an encoded message to the named queue.
	Push(ctx context.Context, queue string, payload []byte) error

	// Pop blocks up to timeout for the next message. Returns (nil, nil)
	// when the timeout elapses with an empty queue.
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
}

// RedisQueue implements Queue on a Redis list (LPUSH producer, BRPOP
// consumer).
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a RedisQueue.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Push appends an encoded message with LPUSH.
func (q *RedisQueue) Push(ctx context.Context, queue string, payload []byte) error {
	if err := q.client.LPush(ctx, queue, payload).Err(); err != nil {
		return oops.Code("QUEUE_PUSH_FAILED").With("queue", queue).Wrap(err)
	}
	return nil
}

// Pop blocks with BRPOP up to timeout.
func (q *RedisQueue) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := q.client.BRPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("QUEUE_POP_FAILED").With("queue", queue).Wrap(err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, oops.Code("QUEUE_POP_FAILED").
			With("queue", queue).
			Errorf("unexpected BRPOP reply length %d", len(res))
	}
	return []byte(res[1]), nil
}

var _ Queue = (*RedisQueue)(nil)

// Dispatcher enqueues named operations for out-of-process execution.
type Dispatcher struct {
	queue    Queue
	queueKey string
	enqueued *prometheus.CounterVec
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueKey overrides the Redis list name.
func WithQueueKey(key string) DispatcherOption {
	return func(d *Dispatcher) {
		if key != "" {
			d.queueKey = key
		}
	}
}

// WithEnqueueCounter records enqueue outcomes, labelled by task name and
// status.
func WithEnqueueCounter(c *prometheus.CounterVec) DispatcherOption {
	return func(d *Dispatcher) { d.enqueued = c }
}

// NewDispatcher creates a Dispatcher over the given queue.
func NewDispatcher(queue Queue, opts ...DispatcherOption) (*Dispatcher, error) {
	if queue == nil {
		return nil, oops.Code("TASK_CONFIG_INVALID").Errorf("queue is required")
	}
	d := &Dispatcher{
		queue:    queue,
		queueKey: DefaultQueue,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch encodes and enqueues a named operation, returning as soon as the
// queue accepts it. It never waits on execution. The error is for the
// caller to judge: signup treats it as log-and-continue, a CLI caller may
// treat it as fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload any) error {
	msg, err := NewMessage(name, payload)
	if err != nil {
		return err
	}

	raw, err := msg.Encode()
	if err != nil {
		return err
	}

	if err := d.queue.Push(ctx, d.queueKey, raw); err != nil {
		d.count(name, "error")
		return oops.Code("TASK_ENQUEUE_FAILED").
			With("task", name).
			With("queue", d.queueKey).
			Wrap(err)
	}
	d.count(name, "ok")
	return nil
}

func (d *Dispatcher) count(task, status string) {
	if d.enqueued != nil {
		d.enqueued.WithLabelValues(task, status).Inc()
	}
}
