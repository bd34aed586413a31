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
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key the store writes.
const DefaultRedisPrefix = "rigs:"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL.
	URL string

	// Prefix defaults to DefaultRedisPrefix.
	Prefix string

	// TTL expires run records. Zero keeps them forever.
	TTL time.Duration
}

// RedisStore keeps history in Redis.
//
// Records live under <prefix>run:<id>. Sorted sets <prefix>runs and
// <prefix>runs:<workflow> index them by start time. Index entries whose
// record has expired are dropped lazily by List.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis history requires a URL")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisStoreFromClient wraps an existing client. Close closes it.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) recordKey(runID string) string {
	return s.prefix + "run:" + runID
}

func (s *RedisStore) indexKey(workflow string) string {
	if workflow == "" {
		return s.prefix + "runs"
	}
	return s.prefix + "runs:" + workflow
}

// Save writes the record and its index entries in one pipeline.
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	score := float64(rec.StartedAt.UnixNano())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.RunID), data, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(""), redis.Z{Score: score, Member: rec.RunID})
		pipe.ZAdd(ctx, s.indexKey(rec.Workflow), redis.Z{Score: score, Member: rec.RunID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	return nil
}

// Get loads one record by id.
func (s *RedisStore) Get(ctx context.Context, runID string) (Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return decode(data)
}

// List reads the newest ids from the index and fetches them with MGET.
func (s *RedisStore) List(ctx context.Context, workflow string, limit int) ([]Record, error) {
	limit = normalizeLimit(limit)
	index := s.indexKey(workflow)

	ids, err := s.client.ZRevRange(ctx, index, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch runs: %w", err)
	}

	out := make([]Record, 0, len(ids))
	var expired []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		rec, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(expired) > 0 {
		s.client.ZRem(ctx, index, expired...)
	}
	return out, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
