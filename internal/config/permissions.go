// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

//go:build !windows

package config

import (
	"log/slog"
	"os"
)

// WarnInsecurePermissions nudges the operator when the config file at path
// is readable by group or world, since the file can hold a literal upstream
// API key. Best effort: it never fails startup, and an empty path means the
// process is running on defaults with nothing to check.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("skipping config permission check", "path", path, "error", err)
		return
	}

	// 0o044 covers the group and world read bits.
	if info.Mode().Perm()&0o044 == 0 {
		return
	}

	slog.Warn("config file is readable by other users",
		"path", path,
		"mode", info.Mode(),
		"recommended", "0600",
	)
}
