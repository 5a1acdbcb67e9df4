// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shopfront/shopfront/internal/notify"
	"github.com/shopfront/shopfront/internal/observability"
	"github.com/shopfront/shopfront/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseOpener connects to PostgreSQL.
	// Default: store.Open
	DatabaseOpener func(ctx context.Context, url string) (*pgxpool.Pool, error)

	// RedisOpener creates a Redis client for the redis session backend.
	// Default: openRedis
	RedisOpener func(url string) (*redis.Client, error)

	// AMQPDialer connects to the broker for the amqp notify backend.
	// Default: notify.DialAMQP
	AMQPDialer func(url, queue string) (*notify.AMQPConnection, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer

	// Getenv reads connection URLs.
	// Default: os.Getenv
	Getenv func(string) string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}
