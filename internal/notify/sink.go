// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/auth"
)

// LogSink writes notifications to a logger instead of sending them.
// Only the keys of Message.Data are logged; the values can carry reset links.
type LogSink struct {
	logger *slog.Logger
	from   string
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger, from string) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, from: from}
}

// Deliver logs msg at INFO without its data values.
func (s *LogSink) Deliver(ctx context.Context, msg auth.Message) error {
	s.logger.InfoContext(ctx, "notification",
		"from", s.from,
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
		"data_keys", slices.Sorted(maps.Keys(msg.Data)),
	)
	return nil
}

// publisher is the part of *amqp.Channel used by AMQPSink.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Envelope is the JSON body published for each notification.
type Envelope struct {
	From    string       `json:"from"`
	Message auth.Message `json:"message"`
}

// AMQPSink publishes notifications as persistent JSON messages to a queue
// consumed by the mail worker.
type AMQPSink struct {
	ch    publisher
	queue string
	from  string
	now   func() time.Time
}

// NewAMQPSink creates an AMQPSink publishing to queue on the default exchange.
func NewAMQPSink(ch publisher, queue, from string) *AMQPSink {
	return &AMQPSink{ch: ch, queue: queue, from: from, now: time.Now}
}

// Deliver publishes msg.
func (s *AMQPSink) Deliver(ctx context.Context, msg auth.Message) error {
	body, err := json.Marshal(Envelope{From: s.from, Message: msg})
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").With("template", msg.Template).Wrap(err)
	}

	err = s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    s.now().UTC(),
		Type:         msg.Template,
		Body:         body,
	})
	if err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("queue", s.queue).
			With("template", msg.Template).
			Wrap(err)
	}
	return nil
}

// AMQPConnection owns the broker connection and channel behind an AMQPSink.
type AMQPConnection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects to url and declares queue as durable.
func DialAMQP(url, queue string) (*AMQPConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, oops.Code("NOTIFY_DIAL_FAILED").With("operation", "dial broker").Wrap(err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_DIAL_FAILED").With("operation", "open channel").Wrap(err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_DIAL_FAILED").
			With("operation", "declare queue").
			With("queue", queue).
			Wrap(err)
	}
	return &AMQPConnection{conn: conn, ch: ch}, nil
}

// Sink returns an AMQPSink on the connection's channel.
func (c *AMQPConnection) Sink(queue, from string) *AMQPSink {
	return NewAMQPSink(c.ch, queue, from)
}

// Close closes the channel and connection.
func (c *AMQPConnection) Close() error {
	chErr := c.ch.Close()
	if err := c.conn.Close(); err != nil {
		return oops.Code("NOTIFY_CLOSE_FAILED").Wrap(err)
	}
	if chErr != nil {
		return oops.Code("NOTIFY_CLOSE_FAILED").Wrap(chErr)
	}
	return nil
}
