// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file format",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check [FILE]",
		Short: "Validate a config file against the schema",
		Long: `Validate a config file against the schema. Without FILE, the file
given by --config or the default location is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = config.DefaultPath()
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
			}
			if err := config.ValidateFile(data); err != nil {
				return oops.With("path", path).Wrap(err)
			}
			cmd.Printf("%s is valid\n", path)
			return nil
		},
	})

	return cmd
}
