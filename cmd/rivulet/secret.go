// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/rivulet-dev/rivulet/internal/secrets"
	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
	"github.com/spf13/cobra"
)

// secretStoreFactory opens the secret store for a keyring service. It is a
// package-level variable so tests can substitute an in-memory store.
var secretStoreFactory secrets.OpenStore = func(service string) secrets.Store {
	return secrets.NewKeyringStore(service)
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long:  "Store, list, and delete secrets kept under the Rivulet service in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret read from stdin",
		Long: `Read a secret value from standard input and store it in the OS keyring.
Reference it from the config file as keyring://rivulet/<name>.`,
		Args: cobra.ExactArgs(1),
		RunE: runSecretSet,
	}
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return riverr.Errorf(riverr.CodeSecretStoreFailure, "reading secret value: %w", err)
	}
	value := strings.TrimRight(line, "\r\n")
	if value == "" {
		return riverr.New(riverr.CodeSecretInvalidInput, "secret value must not be empty")
	}

	store := secretStoreFactory(secrets.DefaultService)
	if err := store.Set(name, value); err != nil {
		return riverr.Errorf(riverr.CodeSecretStoreFailure, "storing secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s\nReference it as keyring://%s/%s\n",
		name, secrets.DefaultService, name)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	store := secretStoreFactory(secrets.DefaultService)
	names, err := store.Keys()
	if err != nil {
		return riverr.Errorf(riverr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, n := range names {
		_, _ = fmt.Fprintln(out, n)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory(secrets.DefaultService)

	if err := store.Delete(name); err != nil {
		if riverr.HasCode(err, riverr.CodeSecretNotFound) {
			return riverr.Errorf(riverr.CodeSecretNotFound, "secret %q not found", name)
		}
		return riverr.Errorf(riverr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
