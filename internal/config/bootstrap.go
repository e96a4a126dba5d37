// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
)

// DefaultConfigYAML is the commented starter config written on first run and
// by `rivulet init`.
//
//go:embed rivulet.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/rivulet/rivulet.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", riverr.Errorf(riverr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "rivulet", "rivulet.yaml"), nil
}

// WriteDefaultConfig writes the starter config to path, creating parent
// directories as needed. The file is written owner-only since it may later
// hold a literal API key. An existing file is overwritten.
func WriteDefaultConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return riverr.Errorf(riverr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return riverr.Errorf(riverr.CodeConfigLoadReadFailure, "writing config to %s: %w", path, err)
	}
	return nil
}

// BootstrapConfig seeds the default location with the starter config when
// nothing is there yet and returns the path it wrote. It returns "" when a
// file already exists or the write is not possible; running on defaults is
// fine, so nothing here is fatal.
func BootstrapConfig() string {
	path, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	if _, err := os.Stat(path); err == nil {
		return ""
	}

	if err := WriteDefaultConfig(path); err != nil {
		slog.Debug("skipping config bootstrap", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
