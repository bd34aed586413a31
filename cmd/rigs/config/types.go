// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the rigs CLI configuration file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/M4n5ter/rigs/services/workflow/history"
	"github.com/M4n5ter/rigs/services/workflow/server"
	"github.com/M4n5ter/rigs/services/workflow/telemetry"
	"github.com/M4n5ter/rigs/services/workflow/units"
)

// CurrentConfigVersion is written to new config files.
const CurrentConfigVersion = "1"

// Config is the on-disk configuration, usually ~/.rigs/rigs.yaml.
type Config struct {
	Version string `yaml:"version"`

	Engine    EngineConfig     `yaml:"engine"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	History   HistoryConfig    `yaml:"history"`
	Server    ServerConfig     `yaml:"server"`
	Chat      ChatConfig       `yaml:"chat"`
}

// EngineConfig sets engine defaults. A manifest's own values win.
type EngineConfig struct {
	NodeTimeout    time.Duration `yaml:"node_timeout"`
	MaxConcurrency int64         `yaml:"max_concurrency"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // empty disables the file sink
	JSON  bool   `yaml:"json"`
}

type HistoryConfig struct {
	Backend  string        `yaml:"backend"` // none, badger, redis
	Path     string        `yaml:"path"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Store converts to the history package's config.
func (h HistoryConfig) Store() history.Config {
	return history.Config{
		Backend:  h.Backend,
		Path:     expandHome(h.Path),
		RedisURL: h.RedisURL,
		TTL:      h.TTL,
	}
}

type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"` // run requests per second
	Burst     int     `yaml:"burst"`
}

// Server converts to the server package's config.
func (s ServerConfig) Server() server.Config {
	cfg := server.DefaultConfig()
	if s.Addr != "" {
		cfg.Addr = s.Addr
	}
	cfg.RateLimit = s.RateLimit
	if s.Burst > 0 {
		cfg.Burst = s.Burst
	}
	return cfg
}

type ChatConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the API key. The
	// key itself is never stored in the file.
	APIKeyEnv string `yaml:"api_key_env"`
}

// Units resolves the API key from the environment.
func (c ChatConfig) Units() units.ChatConfig {
	cfg := units.ChatConfig{BaseURL: c.BaseURL, Model: c.Model}
	if c.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(c.APIKeyEnv)
	}
	return cfg
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Version: CurrentConfigVersion,
		Engine: EngineConfig{
			NodeTimeout: time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
		History: HistoryConfig{
			Backend: history.BackendBadger,
			Path:    filepath.Join("~", ".rigs", "history"),
		},
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 10,
			Burst:     20,
		},
		Chat: ChatConfig{
			Model:     units.DefaultChatModel,
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

func expandHome(path string) string {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
