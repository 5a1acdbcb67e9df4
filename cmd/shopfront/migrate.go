// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/config"
	"github.com/shopfront/shopfront/internal/store"
)

// newMigrator opens a migrator for a database URL. Tests replace it.
var newMigrator = func(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply, roll back, inspect or repair the PostgreSQL schema.
Without a subcommand, all pending migrations are applied.`,
		RunE: runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m Migrator) error {
				st, err := m.Status()
				if err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "read migration status").Wrap(err)
				}
				cmd.Print(formatMigrationStatus(st))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag.
Use after repairing a migration that failed partway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force version").With("version", v).Wrap(err)
				}
				cmd.Printf("Schema version forced to %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m Migrator) error {
				if all {
					cmd.Println("Rolling back all migrations...")
					if err := m.Down(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "roll back all migrations").Wrap(err)
					}
				} else {
					cmd.Println("Rolling back one migration...")
					if err := m.Steps(-1); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "roll back migration").Wrap(err)
					}
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration, dropping all tables")
	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(func(m Migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

// withMigrator opens a migrator for the configured database, runs fn and
// closes it.
func withMigrator(fn func(Migrator) error) error {
	databaseURL, err := getDatabaseURL()
	if err != nil {
		return err
	}

	m, err := newMigrator(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	return fn(m)
}

// getDatabaseURL reads DATABASE_URL, after loading the dotenv file.
func getDatabaseURL() (string, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return "", err
	}
	databaseURL := os.Getenv(config.EnvDatabaseURL)
	if databaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("%s environment variable is required", config.EnvDatabaseURL)
	}
	return databaseURL, nil
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	return v, nil
}

func formatMigrationStatus(st *store.Status) string {
	var b strings.Builder
	state := "clean"
	if st.Dirty {
		state = "dirty"
	}
	fmt.Fprintf(&b, "Schema version: %d (%s)\n", st.Version, state)
	for _, m := range st.Applied {
		fmt.Fprintf(&b, "  [x] %06d %s\n", m.Version, m.Name)
	}
	for _, m := range st.Pending {
		fmt.Fprintf(&b, "  [ ] %06d %s\n", m.Version, m.Name)
	}
	return b.String()
}
