// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/trackmint/trackmint/internal/auth"
)

// ResetLink builds the frontend URL a user follows to choose a new password.
func ResetLink(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// Recorder counts delivery attempts. *observability.Metrics satisfies it.
type Recorder interface {
	RecordNotification(channel string, err error)
}

type instrumented struct {
	next    auth.Notifier
	channel string
	rec     Recorder
}

// Instrument reports every delivery made through n to rec under channel.
func Instrument(n auth.Notifier, channel string, rec Recorder) auth.Notifier {
	if rec == nil {
		return n
	}
	return &instrumented{next: n, channel: channel, rec: rec}
}

func (i *instrumented) SendPasswordReset(ctx context.Context, email, token string) error {
	err := i.next.SendPasswordReset(ctx, email, token)
	i.rec.RecordNotification(i.channel, err)
	return err
}
