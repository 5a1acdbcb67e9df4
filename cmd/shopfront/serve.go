// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/auth/memstore"
	"github.com/shopfront/shopfront/internal/auth/postgres"
	"github.com/shopfront/shopfront/internal/auth/redisstore"
	"github.com/shopfront/shopfront/internal/config"
	"github.com/shopfront/shopfront/internal/logging"
	"github.com/shopfront/shopfront/internal/notify"
	"github.com/shopfront/shopfront/internal/observability"
	"github.com/shopfront/shopfront/internal/store"
	"github.com/shopfront/shopfront/internal/web"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// readinessTimeout bounds the database ping behind /readyz.
const readinessTimeout = 2 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the storefront HTTP server",
		Long: `Start the storefront HTTP server which handles signup, login,
logout and password recovery, backed by PostgreSQL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// loadConfig reads the dotenv file and layered config for cmd.
func loadConfig(cmd *cobra.Command, getenv func(string) string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cmd.Flags(), configFile, getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.DatabaseOpener == nil {
		deps.DatabaseOpener = store.Open
	}
	if deps.RedisOpener == nil {
		deps.RedisOpener = openRedis
	}
	if deps.AMQPDialer == nil {
		deps.AMQPDialer = notify.DialAMQP
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, registrars...)
		}
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}

	cfg, err := loadConfig(cmd, deps.Getenv)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "shopfront",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	})

	logger.Info("starting shopfront",
		"http_addr", cfg.HTTP.Addr,
		"session_backend", cfg.Session.Backend,
		"notify_backend", cfg.Notify.Backend,
	)

	pool, err := deps.DatabaseOpener(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	logger.Info("connected to database")

	sessions, closeSessions, err := openSessionStore(cfg, pool, deps)
	if err != nil {
		return err
	}
	defer closeSessions()

	dispatcher, closeBroker, err := openNotifier(cfg, logger, deps)
	if err != nil {
		return err
	}
	defer closeBroker()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pingReadiness(pool),
			auth.RegisterMetrics, notify.RegisterMetrics)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			closeDispatcher(dispatcher, logger)
			return oops.With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	services, err := buildServices(cfg, logger, postgres.NewUserRepository(pool), sessions, dispatcher)
	if err != nil {
		closeDispatcher(dispatcher, logger)
		return err
	}

	handler, err := web.NewHandler(web.Config{
		Auth:         services.auth,
		Registration: services.registration,
		Reset:        services.reset,
		Logger:       logger,
		Metrics:      metrics,
		CookieSecure: cfg.HTTP.CookieSecure,
	})
	if err != nil {
		closeDispatcher(dispatcher, logger)
		return oops.With("operation", "create http handler").Wrap(err)
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		closeDispatcher(dispatcher, logger)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	go runPurgeLoop(ctx, logger, cfg.Purge.Interval,
		sweep{name: "sessions", run: services.sessions.PurgeExpired},
		sweep{name: "reset_tokens", run: services.reset.PurgeExpiredTokens},
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Shopfront started")
	logger.Info("shopfront ready", "http_addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		logger.Error("http server error", "error", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("error draining notifications", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	if serveErr != nil {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}

type serviceSet struct {
	sessions     *auth.SessionManager
	auth         *auth.Service
	registration *auth.RegistrationService
	reset        *auth.PasswordResetService
}

// buildServices wires the auth services over the given stores.
func buildServices(cfg *config.Config, logger *slog.Logger, users auth.UserRepository, sessions auth.SessionRepository, notifier auth.Notifier) (*serviceSet, error) {
	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithStoreTimeout(cfg.Store.Timeout),
		auth.WithSessionTTL(cfg.Session.TTL),
		auth.WithResetBaseURL(cfg.HTTP.BaseURL),
	}
	hasher := auth.NewArgon2idHasher()
	tokens := auth.NewTokenGenerator()

	manager, err := auth.NewSessionManager(sessions, tokens, opts...)
	if err != nil {
		return nil, oops.With("operation", "create session manager").Wrap(err)
	}
	login, err := auth.NewAuthService(users, manager, hasher, opts...)
	if err != nil {
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}
	registration, err := auth.NewRegistrationService(users, hasher, notifier, opts...)
	if err != nil {
		return nil, oops.With("operation", "create registration service").Wrap(err)
	}
	reset, err := auth.NewPasswordResetService(users, tokens, hasher, manager, notifier, opts...)
	if err != nil {
		return nil, oops.With("operation", "create password reset service").Wrap(err)
	}
	return &serviceSet{sessions: manager, auth: login, registration: registration, reset: reset}, nil
}

// openSessionStore selects the session backend. The returned func releases it.
func openSessionStore(cfg *config.Config, pool *pgxpool.Pool, deps *ServeDeps) (auth.SessionRepository, func(), error) {
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		rdb, err := deps.RedisOpener(cfg.Session.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				slog.Debug("error closing redis client", "error", err)
			}
		}
		return redisstore.NewSessionRepository(rdb, cfg.Session.RedisPrefix), closeFn, nil
	case config.SessionBackendMemory:
		slog.Warn("sessions are kept in memory and lost on restart")
		return memstore.NewSessionRepository(), func() {}, nil
	default:
		return postgres.NewWebSessionRepository(pool), func() {}, nil
	}
}

// openRedis parses url and creates a client. It does not connect.
func openRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	return redis.NewClient(opts), nil
}

// openNotifier builds the notification dispatcher over the configured sink.
// The returned func closes the broker connection, if any.
func openNotifier(cfg *config.Config, logger *slog.Logger, deps *ServeDeps) (*notify.Dispatcher, func(), error) {
	var sink notify.Sink
	closeFn := func() {}

	switch cfg.Notify.Backend {
	case config.NotifyBackendAMQP:
		conn, err := deps.AMQPDialer(cfg.Notify.AMQPURL, cfg.Notify.Queue)
		if err != nil {
			return nil, nil, err
		}
		sink = conn.Sink(cfg.Notify.Queue, cfg.Notify.From)
		closeFn = func() {
			if err := conn.Close(); err != nil {
				logger.Debug("error closing broker connection", "error", err)
			}
		}
	default:
		logger.Warn("notifications are written to the log, not sent")
		sink = notify.NewLogSink(logger, cfg.Notify.From)
	}

	dispatcher, err := notify.NewDispatcher(sink, notify.Config{
		Workers:    cfg.Notify.Workers,
		Buffer:     cfg.Notify.Buffer,
		MaxRetries: dispatcherRetries(cfg.Notify.MaxRetries),
		Logger:     logger,
	})
	if err != nil {
		closeFn()
		return nil, nil, oops.With("operation", "create notification dispatcher").Wrap(err)
	}
	return dispatcher, closeFn, nil
}

// dispatcherRetries maps notify.max_retries onto notify.Config, where zero
// selects the default. A configured zero means a single attempt.
func dispatcherRetries(configured int) int {
	if configured <= 0 {
		return -1
	}
	return configured
}

func closeDispatcher(d *notify.Dispatcher, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		logger.Warn("error draining notifications", "error", err)
	}
}

// pingReadiness reports ready while the database answers pings.
func pingReadiness(pool *pgxpool.Pool) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		return pool.Ping(ctx) == nil
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
