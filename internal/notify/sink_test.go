// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/pkg/errutil"
)

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

func TestAMQPSink_Deliver(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewAMQPSink(pub, "shopfront.mail", "shop@x.com")
	sink.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }

	m := auth.Message{
		To:       "user@x.com",
		Subject:  "Reset Password !",
		Template: auth.TemplateResetRequested,
		Data:     map[string]string{"reset_link": "http://localhost:3000/reset/abc"},
	}
	require.NoError(t, sink.Deliver(context.Background(), m))

	assert.Empty(t, pub.exchange)
	assert.Equal(t, "shopfront.mail", pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, auth.TemplateResetRequested, pub.msg.Type)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.msg.Body, &env))
	assert.Equal(t, "shop@x.com", env.From)
	assert.Equal(t, m, env.Message)
}

func TestAMQPSink_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	err := NewAMQPSink(pub, "q", "").Deliver(context.Background(), auth.Message{Template: "t"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "NOTIFY_PUBLISH_FAILED")
	errutil.AssertErrorContext(t, err, "queue", "q")
}

func TestLogSink_Deliver(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)), "shop@x.com")

	require.NoError(t, sink.Deliver(context.Background(), auth.Message{
		To:       "user@x.com",
		Subject:  "Signup Succeeded",
		Template: auth.TemplateSignupSucceeded,
	}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification", entry["msg"])
	assert.Equal(t, "user@x.com", entry["to"])
	assert.Equal(t, auth.TemplateSignupSucceeded, entry["template"])
}

func TestLogSink_DeliverOmitsResetLink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)), "shop@x.com")
	token := strings.Repeat("ab", 32)
	msg := auth.Message{
		To:       "user@x.com",
		Subject:  "Reset Password !",
		Template: auth.TemplateResetRequested,
		Data:     map[string]string{"reset_link": "http://localhost:3000/reset/" + token},
	}

	require.NoError(t, sink.Deliver(context.Background(), msg))

	assert.NotContains(t, buf.String(), token)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, []any{"reset_link"}, entry["data_keys"])
	assert.Equal(t, auth.TemplateResetRequested, entry["template"])
}
