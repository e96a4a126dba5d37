// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package secrets

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
	"github.com/zalando/go-keyring"
)

// rosterName is a reserved entry per service holding the newline-separated
// list of stored names. go-keyring cannot enumerate entries, so the store
// keeps this roster itself.
const rosterName = ".names"

// KeyringStore keeps secrets in the OS keyring (Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows), scoped to the
// service it was opened for.
type KeyringStore struct {
	service string
}

// NewKeyringStore opens the keyring-backed store for service. An empty
// service falls back to DefaultService.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Set(name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := keyring.Set(s.service, name, value); err != nil {
		return riverr.Wrapf(err, riverr.CodeSecretStoreFailure, "writing %s/%s", s.service, name)
	}
	return s.updateRoster(func(names []string) []string {
		if slices.Contains(names, name) {
			return names
		}
		return append(names, name)
	})
}

func (s *KeyringStore) Get(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	value, err := keyring.Get(s.service, name)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", riverr.Errorf(riverr.CodeSecretNotFound, "secret %s/%s not found", s.service, name)
	case err != nil:
		return "", riverr.Wrapf(err, riverr.CodeSecretStoreFailure, "reading %s/%s", s.service, name)
	}
	return value, nil
}

func (s *KeyringStore) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := keyring.Delete(s.service, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return riverr.Errorf(riverr.CodeSecretNotFound, "secret %s/%s not found", s.service, name)
		}
		return riverr.Wrapf(err, riverr.CodeSecretDeleteFailure, "deleting %s/%s", s.service, name)
	}
	return s.updateRoster(func(names []string) []string {
		return slices.DeleteFunc(names, func(n string) bool { return n == name })
	})
}

// Keys returns the stored names in the order they were first set.
func (s *KeyringStore) Keys() ([]string, error) {
	return s.readRoster()
}

// checkName rejects names the store cannot represent: the empty string, the
// reserved roster entry, and anything that would corrupt the roster encoding.
func checkName(name string) error {
	switch {
	case name == "":
		return riverr.New(riverr.CodeSecretInvalidInput, "secret name must not be empty")
	case name == rosterName:
		return riverr.Errorf(riverr.CodeSecretInvalidInput, "secret name %q is reserved", name)
	case strings.Contains(name, "\n"):
		return riverr.New(riverr.CodeSecretInvalidInput, "secret name must not contain newlines")
	}
	return nil
}

func (s *KeyringStore) readRoster() ([]string, error) {
	raw, err := keyring.Get(s.service, rosterName)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, riverr.Wrapf(err, riverr.CodeSecretListFailure, "reading name roster for %s", s.service)
	}
	if raw == "" {
		return nil, nil
	}
	return strings.Split(raw, "\n"), nil
}

// updateRoster applies mutate to the current roster and writes it back. An
// empty result removes the roster entry, so a cleaned-out service leaves
// nothing behind in the keyring.
func (s *KeyringStore) updateRoster(mutate func([]string) []string) error {
	names, err := s.readRoster()
	if err != nil {
		return err
	}
	names = mutate(names)

	if len(names) == 0 {
		if err := keyring.Delete(s.service, rosterName); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("could not remove empty name roster", "service", s.service, "error", err)
		}
		return nil
	}
	if err := keyring.Set(s.service, rosterName, strings.Join(names, "\n")); err != nil {
		return riverr.Wrapf(err, riverr.CodeSecretListFailure, "writing name roster for %s", s.service)
	}
	return nil
}
