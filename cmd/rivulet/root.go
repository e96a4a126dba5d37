// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package main

import (
	"errors"

	"github.com/rivulet-dev/rivulet/internal/config"
	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root rivulet command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rivulet",
		Short:         "Rivulet streaming chat gateway",
		Long:          "Rivulet relays chat completions from an upstream LLM API to browser clients over server-sent events.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags. These map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newStatusCmd(),
		newVersionCmd(),
		newSecretCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return riverr.Errorf(riverr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover rivulet.yaml from standard locations.
		// Note: SetConfigType is intentionally omitted. When set, Viper
		// falls back to trying the bare config name without extension,
		// which collides with the ./rivulet binary in the project root.
		v.SetConfigName("rivulet")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/rivulet")
		v.AddConfigPath("/etc/rivulet")
		// No config file is fine; defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return riverr.Errorf(riverr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere. Bootstrap a default to ~/.config/rivulet/.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return riverr.Errorf(riverr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return riverr.Errorf(riverr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
