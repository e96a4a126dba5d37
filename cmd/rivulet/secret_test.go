// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package main

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/rivulet-dev/rivulet/internal/secrets"
	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSecretStore is an in-memory secrets.Store for testing. It records
// names in insertion order the way the keyring-backed roster does.
type mockSecretStore struct {
	data  map[string]string
	names []string
}

func newMockSecretStore(names ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, n := range names {
		m.data[n] = "redacted"
		m.names = append(m.names, n)
	}
	return m
}

func (m *mockSecretStore) Set(name, value string) error {
	if _, ok := m.data[name]; !ok {
		m.names = append(m.names, name)
	}
	m.data[name] = value
	return nil
}

func (m *mockSecretStore) Get(name string) (string, error) {
	v, ok := m.data[name]
	if !ok {
		return "", riverr.Errorf(riverr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(name string) error {
	if _, ok := m.data[name]; !ok {
		return riverr.Errorf(riverr.CodeSecretNotFound, "not found")
	}
	delete(m.data, name)
	m.names = slices.DeleteFunc(m.names, func(n string) bool { return n == name })
	return nil
}

func (m *mockSecretStore) Keys() ([]string, error) {
	return slices.Clone(m.names), nil
}

func withMockStore(t *testing.T, mock *mockSecretStore) {
	t.Helper()
	origFactory := secretStoreFactory
	secretStoreFactory = func(string) secrets.Store { return mock }
	t.Cleanup(func() { secretStoreFactory = origFactory })
}

func TestSecretSet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	mock := newMockSecretStore()
	withMockStore(t, mock)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("sk-or-value\n"))
	cmd.SetArgs([]string{"secret", "set", "upstream_api_key"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Stored secret: upstream_api_key")
	assert.Contains(t, buf.String(), "keyring://rivulet/upstream_api_key")
	assert.Equal(t, "sk-or-value", mock.data["upstream_api_key"])
}

func TestSecretSet_EmptyValue(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	withMockStore(t, newMockSecretStore())

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"secret", "set", "upstream_api_key"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, riverr.HasCode(err, riverr.CodeSecretInvalidInput))
}

func TestSecretList(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{
			name: "empty store",
			want: "No secrets stored.\n",
		},
		{
			name:  "single name",
			names: []string{"upstream_api_key"},
			want:  "upstream_api_key\n",
		},
		{
			name:  "multiple names in stored order",
			names: []string{"api-key-1", "api-key-2"},
			want:  "api-key-1\napi-key-2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			withMockStore(t, newMockSecretStore(tt.names...))

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"secret", "list"})

			err := cmd.Execute()
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSecretDelete(t *testing.T) {
	tests := []struct {
		name       string
		names      []string
		deleteName string
		wantOutput string
		wantErr    bool
		wantCode   riverr.Code
	}{
		{
			name:       "delete existing secret",
			names:      []string{"upstream_api_key"},
			deleteName: "upstream_api_key",
			wantOutput: "Deleted secret: upstream_api_key\n",
		},
		{
			name:       "delete non-existent secret",
			deleteName: "missing-key",
			wantErr:    true,
			wantCode:   riverr.CodeSecretNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			withMockStore(t, newMockSecretStore(tt.names...))

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"secret", "delete", tt.deleteName})

			err := cmd.Execute()

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, riverr.HasCode(err, tt.wantCode),
					"expected error code %s, got: %v", tt.wantCode, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOutput, buf.String())
			}
		})
	}
}
