// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package xdg resolves XDG Base Directory paths for shopfront.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "shopfront"

// ConfigDir returns the shopfront config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the path of name inside ConfigDir.
func ConfigFile(name string) string {
	return filepath.Join(ConfigDir(), name)
}
