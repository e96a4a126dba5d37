// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level Rivulet configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Sessions SessionsConfig `mapstructure:"sessions"`
}

// ServerConfig controls how the gateway listens for connections.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// UpstreamConfig holds credentials and tuning for the completion API.
// APIKey may be a keyring:// reference resolved at startup.
type UpstreamConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// SessionsConfig controls session lifecycle.
type SessionsConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SetDefaults installs the default configuration values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:3001")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	// The empty api_key default makes RIVULET_UPSTREAM_API_KEY visible to
	// Unmarshal; viper only maps env vars for keys it already knows.
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("upstream.model", "anthropic/claude-3.5-sonnet")
	v.SetDefault("upstream.max_tokens", 4000)
	v.SetDefault("sessions.ttl", 30*time.Minute)
	v.SetDefault("sessions.sweep_interval", time.Minute)
}

// SetupEnv binds environment variable overrides (prefix RIVULET_) on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("RIVULET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix RIVULET_).
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, riverr.Errorf(riverr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, riverr.Errorf(riverr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, riverr.Errorf(riverr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateUpstream()...)
	errs = append(errs, c.validateSessions()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
	} else {
		host, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
				"config: server.listen must be a valid host:port address, got %q: %w",
				c.Server.Listen, err,
			))
		} else {
			_ = host // host can be empty (e.g., ":3001"), which is valid
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	for i, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
				"config: server.cors_origins[%d] must be an absolute URL or \"*\", got %q",
				i, origin,
			))
		}
	}

	return errs
}

func (c *Config) validateUpstream() []error {
	var errs []error

	if c.Upstream.BaseURL == "" {
		errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue, "config: upstream.base_url must not be empty"))
	} else if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
			"config: upstream.base_url must be an absolute URL, got %q",
			c.Upstream.BaseURL,
		))
	}

	if c.Upstream.Model == "" {
		errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue, "config: upstream.model must not be empty"))
	} else if !strings.Contains(c.Upstream.Model, "/") {
		errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
			"config: upstream.model must be in \"provider/model\" format, got %q",
			c.Upstream.Model,
		))
	}

	if c.Upstream.MaxTokens <= 0 {
		errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
			"config: upstream.max_tokens must be greater than 0, got %d",
			c.Upstream.MaxTokens,
		))
	}

	// upstream.api_key is deliberately not required here: it may arrive via
	// environment or a keyring:// reference resolved at startup.

	return errs
}

func (c *Config) validateSessions() []error {
	var errs []error

	if c.Sessions.TTL < 0 {
		errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
			"config: sessions.ttl must not be negative, got %s",
			c.Sessions.TTL,
		))
	}

	if c.Sessions.TTL > 0 && c.Sessions.SweepInterval <= 0 {
		errs = append(errs, riverr.Errorf(riverr.CodeConfigValidateInvalidValue,
			"config: sessions.sweep_interval must be greater than 0 when sessions.ttl is set, got %s",
			c.Sessions.SweepInterval,
		))
	}

	return errs
}
