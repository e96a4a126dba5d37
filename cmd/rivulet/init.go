// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package main

import (
	"fmt"
	"os"

	"github.com/rivulet-dev/rivulet/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Long: `Write a commented default configuration to ~/.config/rivulet/rivulet.yaml.

Store the upstream API key in the OS keyring afterwards:
  rivulet secret set upstream_api_key
and reference it from the config as keyring://rivulet/upstream_api_key.`,
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	cfgPath, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}

	// The root command bootstraps a default config on first run, so an
	// existing file is the common case here.
	if !force {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"Config already exists at %s (use --force to overwrite)\n", cfgPath)
			return nil
		}
	}

	if err := config.WriteDefaultConfig(cfgPath); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", cfgPath)
	return nil
}
