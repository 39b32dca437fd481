// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package task_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/task"
)

func TestNewMessage(t *testing.T) {
	t.Run("encodes payload and assigns id", func(t *testing.T) {
		msg, err := task.NewMessage("user.welcome_email", map[string]string{"email": "a@example.com"})
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "user.welcome_email", msg.Name)
		assert.JSONEq(t, `{"email":"a@example.com"}`, string(msg.Payload))
		assert.False(t, msg.EnqueuedAt.IsZero())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := task.NewMessage("", nil)
		assert.Error(t, err)
	})

	t.Run("rejects unencodable payload", func(t *testing.T) {
		_, err := task.NewMessage("bad", make(chan int))
		assert.Error(t, err)
	})
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := task.NewMessage("user.welcome_email", map[string]string{"email": "a@example.com"})
	require.NoError(t, err)

	raw, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := task.DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, msg.Name, decoded.Name)
	assert.JSONEq(t, string(msg.Payload), string(decoded.Payload))
}

func TestDecodeMessage(t *testing.T) {
	t.Run("rejects invalid json", func(t *testing.T) {
		_, err := task.DecodeMessage([]byte("{not json"))
		assert.Error(t, err)
	})

	t.Run("rejects message without task name", func(t *testing.T) {
		_, err := task.DecodeMessage([]byte(`{"id":"x","payload":{}}`))
		assert.Error(t, err)
	})
}
