// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

// Package secrets keeps the upstream API key out of config files. Values
// live in the OS keyring and the config refers to them by keyring:// URI.
package secrets

// DefaultService is the keyring service Rivulet stores its own secrets under.
const DefaultService = "rivulet"

// Store is a flat named-secret store bound to a single keyring service at
// construction time.
type Store interface {
	// Set writes value under name, overwriting any previous value.
	Set(name, value string) error

	// Get returns the value stored under name. A missing name yields
	// CodeSecretNotFound (check with riverr.HasCode).
	Get(name string) (string, error)

	// Delete removes name. A missing name yields CodeSecretNotFound.
	Delete(name string) error

	// Keys lists the stored names.
	Keys() ([]string, error)
}

// OpenStore opens the store for a keyring service. The indirection lets the
// CLI substitute an in-memory store in tests and lets URI resolution honor
// whatever service the URI names.
type OpenStore func(service string) Store
