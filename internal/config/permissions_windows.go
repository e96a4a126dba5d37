// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions does nothing on Windows, where file access is
// governed by ACLs rather than Unix mode bits.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("config permission check not implemented on Windows", "path", path)
	}
}
