// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package task provides the background work queue: a dispatcher that
// enqueues named operations onto a Redis list and a worker that pops and
// executes them in a separate process.
//
// Delivery is at-least-once. Handlers own their idempotency; a handler that
// cannot tolerate replays must guard against them itself. Enqueue is a
// single non-blocking network call and never waits on task execution.
package task
