// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package task

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Message is a named operation plus arguments placed on the queue.
type Message struct {
	ID         string          `json:"id"`
	Name       string          `json:"task_name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewMessage creates a Message with a fresh ULID, encoding the payload as
// JSON.
func NewMessage(name string, payload any) (*Message, error) {
	if name == "" {
		return nil, oops.Code("TASK_INVALID_NAME").Errorf("task name cannot be empty")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, oops.Code("TASK_ENCODE_FAILED").
			With("task", name).
			Wrap(err)
	}

	return &Message{
		ID:         ulid.Make().String(),
		Name:       name,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Encode serializes the message for the wire.
func (m *Message) Encode() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, oops.Code("TASK_ENCODE_FAILED").With("task", m.Name).Wrap(err)
	}
	return raw, nil
}

// DecodeMessage parses a wire message.
func DecodeMessage(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, oops.Code("TASK_DECODE_FAILED").Wrap(err)
	}
	if m.Name == "" {
		return nil, oops.Code("TASK_DECODE_FAILED").Errorf("message has no task name")
	}
	return &m, nil
}
