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
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/M4n5ter/rigs/services/workflow/storage/badger"
)

// Key layout:
//
//	id/<runID>                        -> encoded Record
//	idx/all/<startedAtNanos>/<runID>  -> runID
//	idx/wf/<workflow>/<nanos>/<runID> -> runID
//
// Timestamps are zero padded so lexical order is chronological.
const (
	prefixID       = "id/"
	prefixAll      = "idx/all/"
	prefixWorkflow = "idx/wf/"
)

// BadgerStore keeps history in an embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	closed atomic.Bool
}

// NewBadgerStore takes ownership of db; Close closes it.
func NewBadgerStore(db *badger.DB, ttl time.Duration) *BadgerStore {
	return &BadgerStore{db: db, ttl: ttl}
}

func idKey(runID string) []byte {
	return []byte(prefixID + runID)
}

func workflowPrefix(workflow string) []byte {
	if workflow == "" {
		return []byte(prefixAll)
	}
	return []byte(prefixWorkflow + url.PathEscape(workflow) + "/")
}

func indexKey(prefix []byte, rec Record) []byte {
	return fmt.Appendf(append([]byte(nil), prefix...), "%020d/%s", rec.StartedAt.UnixNano(), rec.RunID)
}

func (s *BadgerStore) entry(key, value []byte) *badgerdb.Entry {
	e := badgerdb.NewEntry(key, value)
	if s.ttl > 0 {
		e = e.WithTTL(s.ttl)
	}
	return e
}

// Save writes the record and both index entries in one transaction.
func (s *BadgerStore) Save(ctx context.Context, rec Record) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := encode(rec)
	if err != nil {
		return err
	}

	return s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := txn.SetEntry(s.entry(idKey(rec.RunID), data)); err != nil {
			return err
		}
		for _, prefix := range [][]byte{workflowPrefix(""), workflowPrefix(rec.Workflow)} {
			if err := txn.SetEntry(s.entry(indexKey(prefix, rec), []byte(rec.RunID))); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get loads one record by id.
func (s *BadgerStore) Get(ctx context.Context, runID string) (Record, error) {
	if s.closed.Load() {
		return Record{}, ErrClosed
	}

	var rec Record
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		var err error
		rec, err = getRecord(txn, runID)
		return err
	})
	return rec, err
}

func getRecord(txn *badgerdb.Txn, runID string) (Record, error) {
	item, err := txn.Get(idKey(runID))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return Record{}, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return Record{}, err
	}
	return decode(data)
}

// List walks the index in reverse key order.
func (s *BadgerStore) List(ctx context.Context, workflow string, limit int) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	limit = normalizeLimit(limit)
	prefix := workflowPrefix(workflow)

	var out []Record
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(bytes.Clone(prefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			runID, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := getRecord(txn, string(runID))
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
