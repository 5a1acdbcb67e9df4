// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopfront/shopfront/internal/auth"
)

// recordingNotifier captures handed-off messages.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []auth.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg auth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) messages() []auth.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.Message(nil), n.msgs...)
}

// lastResetToken extracts the plaintext token from the most recent reset mail.
func (n *recordingNotifier) lastResetToken() string {
	msgs := n.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Template == auth.TemplateResetRequested {
			link := msgs[i].Data["reset_link"]
			return link[strings.LastIndex(link, "/")+1:]
		}
	}
	return ""
}

// fixedClock is a settable time source.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
