// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopfront/shopfront/pkg/errutil"
)

// sweep removes one kind of expired record.
type sweep struct {
	name string
	run  func(ctx context.Context) (int64, error)
}

// runPurgeLoop runs every sweep once per interval until ctx ends.
// A failing sweep is logged and retried on the next tick.
func runPurgeLoop(ctx context.Context, logger *slog.Logger, interval time.Duration, sweeps ...sweep) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runSweeps(ctx, logger, sweeps)
		}
	}
}

func runSweeps(ctx context.Context, logger *slog.Logger, sweeps []sweep) {
	for _, s := range sweeps {
		n, err := s.run(ctx)
		if err != nil {
			errutil.LogErrorContext(ctx, logger, "purge failed", err)
			continue
		}
		if n > 0 {
			logger.InfoContext(ctx, "purged expired records", "kind", s.name, "count", n)
		}
	}
}
