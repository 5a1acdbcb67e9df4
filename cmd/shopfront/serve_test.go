// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/auth/memstore"
	"github.com/shopfront/shopfront/internal/auth/postgres"
	"github.com/shopfront/shopfront/internal/auth/redisstore"
	"github.com/shopfront/shopfront/internal/config"
	"github.com/shopfront/shopfront/internal/notify"
	"github.com/shopfront/shopfront/pkg/errutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isolateConfig keeps serve from reading config or dotenv files on the host.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
	envFile = filepath.Join(t.TempDir(), ".env")
	t.Cleanup(func() { envFile = defaultEnvFile })
	restore := slog.Default()
	t.Cleanup(func() { slog.SetDefault(restore) })
}

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestServe_InvalidConfig(t *testing.T) {
	isolateConfig(t)

	opened := false
	err := runServeWithDeps(context.Background(), NewServeCmd(), &ServeDeps{
		Getenv: envOf(nil),
		DatabaseOpener: func(context.Context, string) (*pgxpool.Pool, error) {
			opened = true
			return nil, errors.New("unreachable")
		},
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.False(t, opened, "database is not dialed with a bad config")
}

func TestServe_DatabaseUnavailable(t *testing.T) {
	isolateConfig(t)

	var gotURL string
	err := runServeWithDeps(context.Background(), NewServeCmd(), &ServeDeps{
		Getenv: envOf(map[string]string{config.EnvDatabaseURL: "postgres://db:5432/shop"}),
		DatabaseOpener: func(_ context.Context, url string) (*pgxpool.Pool, error) {
			gotURL = url
			return nil, oops.Code("DB_CONNECT_FAILED").Errorf("connection refused")
		},
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	assert.Equal(t, "postgres://db:5432/shop", gotURL)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := config.Load(nil, "", envOf(map[string]string{config.EnvDatabaseURL: "postgres://db/shop"}))
	require.NoError(t, err)
	return cfg
}

func TestOpenSessionStore(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		cfg := testConfig(t)
		repo, closeFn, err := openSessionStore(cfg, nil, &ServeDeps{})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &postgres.WebSessionRepository{}, repo)
	})

	t.Run("memory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Session.Backend = config.SessionBackendMemory
		repo, closeFn, err := openSessionStore(cfg, nil, &ServeDeps{})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &memstore.SessionRepository{}, repo)
	})

	t.Run("redis", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Session.Backend = config.SessionBackendRedis
		cfg.Session.RedisURL = "redis://localhost:6379/0"
		repo, closeFn, err := openSessionStore(cfg, nil, &ServeDeps{RedisOpener: openRedis})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &redisstore.SessionRepository{}, repo)
	})

	t.Run("bad redis url", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Session.Backend = config.SessionBackendRedis
		cfg.Session.RedisURL = "http://localhost:6379"
		_, _, err := openSessionStore(cfg, nil, &ServeDeps{RedisOpener: openRedis})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "REDIS_CONFIG_INVALID")
	})
}

func TestOpenNotifier(t *testing.T) {
	t.Run("log backend", func(t *testing.T) {
		cfg := testConfig(t)
		d, closeFn, err := openNotifier(cfg, discardLogger(), &ServeDeps{})
		require.NoError(t, err)
		defer closeFn()

		require.NoError(t, d.Send(context.Background(), auth.Message{To: "user@x.com", Template: "signup"}))
		require.NoError(t, d.Close(context.Background()))
	})

	t.Run("amqp dial failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Notify.Backend = config.NotifyBackendAMQP
		cfg.Notify.AMQPURL = "amqp://guest:guest@mq:5672/"

		var gotQueue string
		_, _, err := openNotifier(cfg, discardLogger(), &ServeDeps{
			AMQPDialer: func(_, queue string) (*notify.AMQPConnection, error) {
				gotQueue = queue
				return nil, oops.Code("NOTIFY_DIAL_FAILED").Errorf("connection refused")
			},
		})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "NOTIFY_DIAL_FAILED")
		assert.Equal(t, config.DefaultNotifyQueue, gotQueue)
	})
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSink) Deliver(context.Context, auth.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("smtp unavailable")
}

func TestDispatcherRetries(t *testing.T) {
	assert.Equal(t, -1, dispatcherRetries(0))
	assert.Equal(t, -1, dispatcherRetries(-2))
	assert.Equal(t, 5, dispatcherRetries(5))

	t.Run("zero configured retries makes one attempt", func(t *testing.T) {
		sink := &failingSink{}
		d, err := notify.NewDispatcher(sink, notify.Config{
			Workers:    1,
			Buffer:     1,
			MaxRetries: dispatcherRetries(0),
			Logger:     discardLogger(),
		})
		require.NoError(t, err)
		require.NoError(t, d.Send(context.Background(), auth.Message{To: "user@x.com", Template: "signup"}))
		require.NoError(t, d.Close(context.Background()))

		sink.mu.Lock()
		defer sink.mu.Unlock()
		assert.Equal(t, 1, sink.calls)
	})
}

type countingNotifier struct{ sent []auth.Message }

func (n *countingNotifier) Send(_ context.Context, msg auth.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

func TestBuildServices(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.BaseURL = "https://shop.example.com"
	cfg.Session.TTL = time.Hour

	notifier := &countingNotifier{}
	users := memstore.NewUserRepository()
	sessions := memstore.NewSessionRepository()
	svc, err := buildServices(cfg, discardLogger(), users, sessions, notifier)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.registration.Signup(ctx, auth.SignupInput{Email: "user@x.com", Password: "abcde1", ConfirmPassword: "abcde1"})
	require.NoError(t, err)

	session, _, err := svc.auth.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute, "session TTL comes from config")

	_, err = svc.reset.RequestReset(ctx, "user@x.com")
	require.NoError(t, err)
	require.Len(t, notifier.sent, 2)
	assert.Contains(t, notifier.sent[1].Data["reset_link"], "https://shop.example.com/reset/")
}
