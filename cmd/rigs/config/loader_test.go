// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".rigs", "rigs.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file was not created: %v", err)
	}

	if cfg.Version != CurrentConfigVersion {
		t.Errorf("Version = %q, want %q", cfg.Version, CurrentConfigVersion)
	}
	if cfg.Engine.NodeTimeout != time.Hour {
		t.Errorf("Engine.NodeTimeout = %v, want 1h", cfg.Engine.NodeTimeout)
	}
	if cfg.History.Backend != "badger" {
		t.Errorf("History.Backend = %q, want badger", cfg.History.Backend)
	}
	if cfg.Chat.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("Chat.APIKeyEnv = %q", cfg.Chat.APIKeyEnv)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk Config
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("written config does not parse: %v", err)
	}
	if onDisk.Server.Addr != ":8080" {
		t.Errorf("Server.Addr on disk = %q", onDisk.Server.Addr)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rigs.yaml")
	content := "engine:\n  node_timeout: 30s\nhistory:\n  backend: none\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Engine.NodeTimeout != 30*time.Second {
		t.Errorf("NodeTimeout = %v, want 30s", cfg.Engine.NodeTimeout)
	}
	if cfg.History.Backend != "none" {
		t.Errorf("Backend = %q, want none", cfg.History.Backend)
	}
	if cfg.Server.Burst != 20 {
		t.Errorf("Server.Burst = %d, want default 20", cfg.Server.Burst)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rigs.yaml")
	if err := os.WriteFile(path, []byte("engine: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("RIGS_TEST_DOTENV_KEY=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RIGS_TEST_DOTENV_KEY", "")
	os.Unsetenv("RIGS_TEST_DOTENV_KEY")

	if err := LoadDotEnv(envFile, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() failed: %v", err)
	}
	if got := os.Getenv("RIGS_TEST_DOTENV_KEY"); got != "from-file" {
		t.Errorf("RIGS_TEST_DOTENV_KEY = %q, want from-file", got)
	}
}

func TestChatConfig_Units(t *testing.T) {
	t.Setenv("RIGS_TEST_CHAT_KEY", "sk-test")
	cfg := ChatConfig{BaseURL: "http://localhost:11434/v1", Model: "llama3", APIKeyEnv: "RIGS_TEST_CHAT_KEY"}

	got := cfg.Units()
	if got.APIKey != "sk-test" || got.Model != "llama3" || got.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("Units() = %+v", got)
	}
}

func TestHistoryConfig_StoreExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got := HistoryConfig{Backend: "badger", Path: "~/runs"}.Store()
	if got.Path != filepath.Join(home, "runs") {
		t.Errorf("Path = %q", got.Path)
	}
}

func TestServerConfig_Server(t *testing.T) {
	got := ServerConfig{Addr: ":9090", RateLimit: 2}.Server()
	if got.Addr != ":9090" || got.RateLimit != 2 || got.Burst != 20 {
		t.Errorf("Server() = %+v", got)
	}
}
