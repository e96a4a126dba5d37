// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rivulet-dev/rivulet/internal/config"
	"github.com/rivulet-dev/rivulet/internal/provider/openrouter"
	"github.com/rivulet-dev/rivulet/internal/relay"
	"github.com/rivulet-dev/rivulet/internal/secrets"
	"github.com/rivulet-dev/rivulet/internal/server"
	"github.com/rivulet-dev/rivulet/internal/session"
	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the rivulet gateway",
		Long:  "Load configuration, connect to the upstream completion API, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = viper.ConfigFileUsed()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply any flag/env overrides that Viper resolved.
	if listen := viper.GetString("server.listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	setupLogging(viper.GetBool("verbose"))
	config.WarnInsecurePermissions(cfgPath)

	if err := secrets.ResolveConfigSecrets(cfg, secretStoreFactory); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	if cfg.Upstream.APIKey == "" {
		return riverr.New(riverr.CodeCLISetupFailure,
			"no upstream API key configured; set upstream.api_key or RIVULET_UPSTREAM_API_KEY")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := session.NewRegistry(cfg.Sessions.TTL, cfg.Sessions.SweepInterval)

	completer, err := openrouter.New(openrouter.Config{
		APIKey:    cfg.Upstream.APIKey,
		BaseURL:   cfg.Upstream.BaseURL,
		Model:     cfg.Upstream.Model,
		MaxTokens: cfg.Upstream.MaxTokens,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("configuring upstream client: %w", err)
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, registry)
	if err != nil {
		return fmt.Errorf("configuring server: %w", err)
	}
	srv.RegisterExchangeHandler(relay.New(registry, completer, slog.Default()))

	go registry.Run(ctx)

	slog.Info("starting rivulet gateway",
		"listen", cfg.Server.Listen,
		"model", cfg.Upstream.Model,
		"session_ttl", cfg.Sessions.TTL,
	)

	return srv.Start(ctx)
}

// setupLogging installs the process-wide slog handler.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
