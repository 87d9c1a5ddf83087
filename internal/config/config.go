// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads and validates Gatehouse configuration from a YAML
// file with command-line flag overrides.
package config

import (
	"strings"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Account store backends.
const (
	AccountBackendFile     = "file"
	AccountBackendPostgres = "postgres"
)

// Session store backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config is the root Gatehouse configuration.
type Config struct {
	ListenAddr  string `koanf:"listen_addr" json:"listen_addr,omitempty" jsonschema_description:"HTTP listen address"`
	MetricsAddr string `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema_description:"Metrics/health HTTP address, empty disables"`
	LogFormat   string `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`

	Accounts AccountsConfig `koanf:"accounts" json:"accounts,omitempty"`
	Sessions SessionsConfig `koanf:"sessions" json:"sessions,omitempty"`
	Cookie   CookieConfig   `koanf:"cookie" json:"cookie,omitempty"`
}

// AccountsConfig selects and parameterizes the account store backend.
type AccountsConfig struct {
	Backend     string `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=file,enum=postgres"`
	DataDir     string `koanf:"data_dir" json:"data_dir,omitempty" jsonschema_description:"Record directory for the file backend"`
	DatabaseURL string `koanf:"database_url" json:"database_url,omitempty" jsonschema_description:"PostgreSQL URL for the postgres backend"`
}

// SessionsConfig selects and parameterizes the session store backend.
type SessionsConfig struct {
	Backend   string        `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=memory,enum=redis"`
	RedisAddr string        `koanf:"redis_addr" json:"redis_addr,omitempty"`
	TTL       time.Duration `koanf:"ttl" json:"ttl,omitempty" jsonschema:"oneof_type=string;integer"`
}

// CookieConfig describes the session cookie issued to clients. The same
// attributes are used when clearing the cookie on logout, so the expired
// replacement actually matches the one the browser holds.
type CookieConfig struct {
	Name   string `koanf:"name" json:"name,omitempty"`
	Path   string `koanf:"path" json:"path,omitempty"`
	Domain string `koanf:"domain" json:"domain,omitempty"`
	Secure bool   `koanf:"secure" json:"secure,omitempty"`
}

// Default returns the configuration used when no file or flags override it.
func Default() Config {
	return Config{
		ListenAddr:  "127.0.0.1:8080",
		MetricsAddr: "127.0.0.1:9100",
		LogFormat:   "json",
		Accounts: AccountsConfig{
			Backend: AccountBackendFile,
			DataDir: "data",
		},
		Sessions: SessionsConfig{
			Backend: SessionBackendMemory,
			TTL:     24 * time.Hour,
		},
		Cookie: CookieConfig{
			Name: "gatehouse_session",
			Path: "/",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (if non-empty), then flag overrides (if flags is non-nil). Flag names
// use dashes; they map onto config keys with underscores, so --listen-addr
// overrides listen_addr and --accounts.data-dir overrides accounts.data_dir.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := ValidateFile(path); err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Flags carry empty defaults so Default() and file values win; only
		// flags the caller actually set participate in the merge. Returning
		// an empty key tells the provider to drop the entry.
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			if f := flags.Lookup(key); f == nil || !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "merge flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}

	switch c.Accounts.Backend {
	case AccountBackendFile:
		if c.Accounts.DataDir == "" {
			return oops.Code("CONFIG_INVALID").Errorf("accounts.data_dir is required for the file backend")
		}
	case AccountBackendPostgres:
		if c.Accounts.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("accounts.database_url is required for the postgres backend")
		}
	default:
		return oops.Code("CONFIG_INVALID").Errorf("accounts.backend must be 'file' or 'postgres', got %q", c.Accounts.Backend)
	}

	switch c.Sessions.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Sessions.RedisAddr == "" {
			return oops.Code("CONFIG_INVALID").Errorf("sessions.redis_addr is required for the redis backend")
		}
	default:
		return oops.Code("CONFIG_INVALID").Errorf("sessions.backend must be 'memory' or 'redis', got %q", c.Sessions.Backend)
	}

	if c.Cookie.Name == "" {
		return oops.Code("CONFIG_INVALID").Errorf("cookie.name is required")
	}
	return nil
}
