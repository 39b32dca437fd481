// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads Gatehouse configuration from a YAML file, command
// line flags, and environment fallbacks for secrets, in that order of
// precedence (flags win).
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultAPIAddr     = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultQueueKey    = "gatehouse:tasks"
	DefaultTokenTTL    = 7 * 24 * time.Hour
	DefaultLogFormat   = "json"
)

// Config is the full Gatehouse configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Token    TokenConfig    `koanf:"token"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the API and observability listeners.
type ServerConfig struct {
	// Addr is the API listen address.
	Addr string `koanf:"addr"`

	// MetricsAddr is the metrics/health listen address; empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// SecureCookies marks the session cookie Secure. Disable only for
	// local development over plain HTTP.
	SecureCookies bool `koanf:"secure_cookies"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// RedisConfig configures the task queue broker.
type RedisConfig struct {
	URL   string `koanf:"url"`
	Queue string `koanf:"queue"`
}

// TokenConfig configures session token signing.
type TokenConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:          DefaultAPIAddr,
			MetricsAddr:   DefaultMetricsAddr,
			SecureCookies: true,
		},
		Redis: RedisConfig{
			Queue: DefaultQueueKey,
		},
		Token: TokenConfig{
			TTL: DefaultTokenTTL,
		},
		Log: LogConfig{
			Format: DefaultLogFormat,
		},
	}
}

// Load builds the configuration. path is the YAML file ("" skips the file
// layer); flags may be nil. Environment variables DATABASE_URL, REDIS_URL,
// and TOKEN_SECRET fill their fields when the file and flags left them
// empty, so secrets can stay out of config files.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = os.Getenv("REDIS_URL")
	}
	if cfg.Token.Secret == "" {
		cfg.Token.Secret = os.Getenv("TOKEN_SECRET")
	}

	return cfg, nil
}

// Validate checks the fields every long-running process needs.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}
	if c.Token.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("token.secret (or TOKEN_SECRET) is required")
	}
	if c.Token.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token.ttl must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	return nil
}
