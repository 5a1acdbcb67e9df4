// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package notify delivers auth notifications off the request path.
//
// A Dispatcher accepts messages into a bounded queue and returns at once.
// Worker goroutines hand each message to a Sink, retrying with exponential
// backoff. Failures after the last attempt are logged and counted; callers
// never see them.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/shopfront/shopfront/internal/auth"
)

// Dispatcher defaults.
const (
	DefaultWorkers    = 2
	DefaultBuffer     = 256
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 200 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// Sink performs the actual delivery of one message.
type Sink interface {
	Deliver(ctx context.Context, msg auth.Message) error
}

// Config tunes a Dispatcher. Zero values select the defaults.
type Config struct {
	Workers int
	Buffer  int
	// MaxRetries caps retries after the first attempt. Negative disables retries.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultBuffer
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Dispatcher implements auth.Notifier over a Sink.
type Dispatcher struct {
	sink   Sink
	cfg    Config
	queue  chan auth.Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts cfg.Workers goroutines delivering to sink.
// Call Close to stop them.
func NewDispatcher(sink Sink, cfg Config) (*Dispatcher, error) {
	if sink == nil {
		return nil, oops.Errorf("sink is required")
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:   sink,
		cfg:    cfg,
		queue:  make(chan auth.Message, cfg.Buffer),
		ctx:    ctx,
		cancel: cancel,
	}
	for range cfg.Workers {
		d.wg.Add(1)
		go d.work()
	}
	return d, nil
}

// Send enqueues msg without waiting for delivery.
// It fails only when the queue is full or the dispatcher is closed.
func (d *Dispatcher) Send(_ context.Context, msg auth.Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return oops.Code("NOTIFY_CLOSED").With("template", msg.Template).Errorf("dispatcher is closed")
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		Deliveries.WithLabelValues(msg.Template, StatusDropped).Inc()
		return oops.Code("NOTIFY_QUEUE_FULL").
			With("template", msg.Template).
			With("capacity", cap(d.queue)).
			Errorf("notification queue is full")
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
// If ctx ends first, in-flight retries are abandoned and ctx.Err is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return oops.Code("NOTIFY_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg auth.Message) {
	backoff := retry.WithMaxRetries(uint64(d.cfg.MaxRetries), //nolint:gosec // MaxRetries is non-negative
		retry.WithCappedDuration(d.cfg.MaxDelay, retry.NewExponential(d.cfg.BaseDelay)))

	attempt := 0
	err := retry.Do(d.ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			Retries.Inc()
		}
		if err := d.sink.Deliver(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		Deliveries.WithLabelValues(msg.Template, StatusFailed).Inc()
		d.cfg.Logger.Warn("notification delivery failed",
			"operation", "deliver notification",
			"template", msg.Template,
			"attempts", attempt,
			"error", err,
		)
		return
	}
	Deliveries.WithLabelValues(msg.Template, StatusSent).Inc()
}

// Compile-time interface check.
var _ auth.Notifier = (*Dispatcher)(nil)
