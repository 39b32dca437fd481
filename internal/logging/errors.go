// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package logging

import (
	"log/slog"

	"github.com/samber/oops"
)

// Error logs err at error level with structured context. Errors built with
// oops contribute their code and context map as attributes; plain errors
// log as a single string. extra attrs are appended as-is.
func Error(logger *slog.Logger, msg string, err error, extra ...any) {
	if logger == nil {
		logger = slog.Default()
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{"error", oopsErr.Error()}
		if code := oopsErr.Code(); code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		attrs = append(attrs, extra...)
		logger.Error(msg, attrs...)
		return
	}

	attrs := append([]any{"error", err}, extra...)
	logger.Error(msg, attrs...)
}
