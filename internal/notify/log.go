// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes reset requests to the log instead of sending them.
// The link itself only appears at debug level.
type LogNotifier struct {
	frontendURL string
	logger      *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(frontendURL string, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{
		frontendURL: frontendURL,
		logger:      logger.With("component", "notify.log"),
	}
}

// SendPasswordReset implements auth.Notifier. It never fails.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	n.logger.InfoContext(ctx, "password reset requested", "email", email)
	n.logger.DebugContext(ctx, "password reset link", "email", email, "link", ResetLink(n.frontendURL, token))
	return nil
}
