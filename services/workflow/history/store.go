// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/M4n5ter/rigs/services/workflow/storage/badger"
)

// DefaultListLimit caps List when the caller passes limit <= 0.
const DefaultListLimit = 20

// Store persists run records.
type Store interface {
	// Save stores rec, replacing any record with the same RunID.
	Save(ctx context.Context, rec Record) error

	// Get returns the record for runID or ErrNotFound.
	Get(ctx context.Context, runID string) (Record, error)

	// List returns up to limit records, newest first. An empty workflow
	// lists every workflow.
	List(ctx context.Context, workflow string, limit int) ([]Record, error)

	Close() error
}

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config selects and configures a Store.
type Config struct {
	Backend  string
	Path     string
	RedisURL string
	// TTL expires records after the given age. Zero keeps them forever.
	TTL time.Duration
}

// Open builds the store named by cfg.Backend. BackendNone (or "") returns
// (nil, nil): callers skip recording.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendBadger:
		bcfg := badger.DefaultConfig()
		bcfg.Path = cfg.Path
		bcfg.Logger = logger
		db, err := badger.OpenDB(bcfg)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		return NewBadgerStore(db, cfg.TTL), nil
	case BackendRedis:
		return NewRedisStore(ctx, RedisConfig{URL: cfg.RedisURL, TTL: cfg.TTL})
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
