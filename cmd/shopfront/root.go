// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// defaultEnvFile is read when present unless --env-file says otherwise.
const defaultEnvFile = ".env"

// NewRootCmd creates the root command for the shopfront CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopfront",
		Short: "Shopfront - storefront accounts and sessions",
		Long: `Shopfront serves storefront customer accounts: signup, login with
server-side sessions, and password recovery by emailed one-time links.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/shopfront/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file with connection URLs")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}
