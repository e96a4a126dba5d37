// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package secrets

import (
	"strings"

	"github.com/rivulet-dev/rivulet/internal/config"
	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits a keyring://service/name URI into its parts.
func ParseKeyringURI(uri string) (service, name string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", riverr.Errorf(riverr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	path := strings.TrimPrefix(uri, keyringScheme)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", riverr.Errorf(riverr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/name", uri)
	}

	return parts[0], parts[1], nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value,
// opening the store for whatever service the URI names. Values that are not
// keyring URIs pass through unchanged.
func ResolveKeyringURI(open OpenStore, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, name, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := open(service).Get(name)
	if err != nil {
		return "", riverr.Wrapf(err, riverr.CodeSecretResolveFailure,
			"resolving keyring URI %q", value)
	}

	return secret, nil
}

// ResolveConfigSecrets replaces keyring:// references in the loaded config
// with their stored values, in place. The only secret-bearing field is
// upstream.api_key; an unresolvable reference is a startup error.
func ResolveConfigSecrets(cfg *config.Config, open OpenStore) error {
	resolved, err := ResolveKeyringURI(open, cfg.Upstream.APIKey)
	if err != nil {
		return err
	}
	cfg.Upstream.APIKey = resolved
	return nil
}
