// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package task

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Mailer sends account emails. The production implementation lives behind
// this seam; LogMailer stands in until one exists.
type Mailer interface {
	SendWelcome(ctx context.Context, email string) error
}

// LogMailer records sends in the log instead of delivering mail.
type LogMailer struct {
	Logger *slog.Logger
}

// SendWelcome logs the would-be delivery.
func (m *LogMailer) SendWelcome(_ context.Context, email string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("welcome email sent", "email", email)
	return nil
}

// WelcomeEmailHandler builds the handler for auth.TaskWelcomeEmail.
// Sending the same welcome email twice is harmless, which is what makes the
// handler safe under at-least-once delivery.
func WelcomeEmailHandler(mailer Mailer) Handler {
	return func(ctx context.Context, payload []byte) error {
		var p auth.WelcomeEmailPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return oops.Code("TASK_DECODE_FAILED").
				With("task", auth.TaskWelcomeEmail).
				Wrap(err)
		}
		if p.Email == "" {
			return oops.Code("TASK_INVALID_PAYLOAD").
				With("task", auth.TaskWelcomeEmail).
				Errorf("payload has no email")
		}
		if err := mailer.SendWelcome(ctx, p.Email); err != nil {
			return oops.Code("TASK_WELCOME_EMAIL_FAILED").
				With("user_id", p.UserID).
				Wrap(err)
		}
		return nil
	}
}
