// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"
)

// EventPasswordResetRequested is the event type published for reset requests.
const EventPasswordResetRequested = "password_reset_requested"

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ResetEvent is the JSON payload consumed by the mail worker.
type ResetEvent struct {
	Type        string    `json:"type"`
	Email       string    `json:"email"`
	ResetLink   string    `json:"reset_link"`
	RequestedAt time.Time `json:"requested_at"`
}

// KafkaNotifier publishes reset requests for an out-of-process mailer.
type KafkaNotifier struct {
	w           MessageWriter
	frontendURL string
	now         func() time.Time
	logger      *slog.Logger
}

// NewKafkaWriter creates a writer that hashes message keys across partitions.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaNotifier creates a KafkaNotifier writing to w.
func NewKafkaNotifier(w MessageWriter, frontendURL string, logger *slog.Logger) *KafkaNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaNotifier{
		w:           w,
		frontendURL: frontendURL,
		now:         time.Now,
		logger:      logger.With("component", "notify.kafka"),
	}
}

// SendPasswordReset implements auth.Notifier. Events are keyed by email so a
// user's requests stay ordered.
func (n *KafkaNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	value, err := json.Marshal(ResetEvent{
		Type:        EventPasswordResetRequested,
		Email:       email,
		ResetLink:   ResetLink(n.frontendURL, token),
		RequestedAt: n.now().UTC(),
	})
	if err != nil {
		return oops.Code("KAFKA_ENCODE_FAILED").Wrap(err)
	}

	msg := kafka.Message{
		Key:   []byte(email),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventPasswordResetRequested)},
		},
	}
	if err := n.w.WriteMessages(ctx, msg); err != nil {
		return oops.Code("KAFKA_PUBLISH_FAILED").With("event", EventPasswordResetRequested).Wrap(err)
	}
	n.logger.DebugContext(ctx, "reset event published", "value_len", len(value))
	return nil
}

// Close closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}
