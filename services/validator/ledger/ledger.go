// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ledger persists validation reports in an append-only BadgerDB
// store.
//
// The ledger is an opt-in collaborator. Callers that want a durable
// record of validation runs append each report after the run completes;
// nothing in the analysis or evaluation path writes here implicitly.
// Reports are keyed by generation time, so List walks newest first.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hindsightlabs/hindsight/services/validator/report"
)

// keyTimeLayout pads fractional seconds to nine digits so keys sort
// chronologically. time.RFC3339Nano trims trailing zeros and would not.
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// runPrefix keys the primary records, ordered by generation time.
	runPrefix = []byte("run:")

	// idPrefix keys the id index, pointing at the primary key.
	idPrefix = []byte("id:")
)

var (
	// ErrNotFound is returned by Get when no report has the given id.
	ErrNotFound = errors.New("report not found")

	// ErrDuplicate is returned by Append when the report id is already
	// recorded. The ledger is append-only; reports are never replaced.
	ErrDuplicate = errors.New("report already recorded")
)

// Config holds configuration for a ledger store.
type Config struct {
	// Path is the directory for the store's files.
	// Required for persistent stores.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for store operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5 (GC when 50% of value log is garbage).
	GCDiscardRatio float64
}

// DefaultConfig returns sensible defaults for production use.
//
// Description:
//
//	Returns a Config with:
//	- SyncWrites enabled for durability
//	- 5-minute GC interval
//	- 50% discard ratio threshold
//
// Outputs:
//
//	Config - Ready-to-use production configuration
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing.
//
// Description:
//
//	Returns a Config with:
//	- InMemory mode enabled (no disk I/O)
//	- SyncWrites disabled (faster tests)
//	- GC disabled
//
// Outputs:
//
//	Config - Ready-to-use test configuration
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0, // disabled
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Ledger is an append-only store of validation reports.
//
// Thread Safety: Safe for concurrent use.
type Ledger struct {
	db     *badger.DB
	logger *slog.Logger
	gcStop chan struct{}
	gcDone chan struct{}
}

// Open creates and opens a ledger with the given configuration.
//
// Description:
//
//	Opens a BadgerDB store at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist and
//	starts periodic value log GC when GCInterval is configured.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Ledger - The opened ledger. Caller must call Close() when done.
//	error - Non-nil if path is invalid or the store cannot be opened.
//
// Thread Safety: The returned *Ledger is safe for concurrent use.
func Open(cfg Config) (*Ledger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent ledger")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create ledger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	// Reports are immutable once appended; one version per key.
	opts = opts.WithNumVersionsToKeep(1)

	// Configure logging
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil) // Disable BadgerDB's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	l := &Ledger{
		db:     db,
		logger: cfg.Logger,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		l.gcStop = make(chan struct{})
		l.gcDone = make(chan struct{})
		go l.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return l, nil
}

// Append records a report.
//
// Description:
//
//	Writes the report under a time-ordered primary key plus an id
//	index entry, in one transaction. A report id that is already
//	recorded is rejected with ErrDuplicate; the ledger never
//	overwrites.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	rep - Report to record. Must have a non-empty ID.
//
// Outputs:
//
//	error - ErrDuplicate (wrapped) if the id is already recorded,
//	        otherwise non-nil on validation or storage failure.
//
// Thread Safety: Safe for concurrent use.
func (l *Ledger) Append(ctx context.Context, rep *report.Report) error {
	if ctx == nil {
		return errors.New("context cannot be nil")
	}
	if rep == nil {
		return errors.New("report cannot be nil")
	}
	if rep.ID == "" {
		return errors.New("report id is required")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", rep.ID, err)
	}

	primary := runKey(rep)
	index := idKey(rep.ID)

	return l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(index)
		if err == nil {
			return fmt.Errorf("report %s: %w", rep.ID, ErrDuplicate)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check report %s: %w", rep.ID, err)
		}
		if err := txn.Set(primary, payload); err != nil {
			return fmt.Errorf("write report %s: %w", rep.ID, err)
		}
		if err := txn.Set(index, primary); err != nil {
			return fmt.Errorf("index report %s: %w", rep.ID, err)
		}
		return nil
	})
}

// Get looks a report up by id.
//
// Description:
//
//	Resolves the id through the index to the primary record and
//	decodes it.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	id - Report id as assigned at assembly.
//
// Outputs:
//
//	*report.Report - The recorded report.
//	error - ErrNotFound (wrapped) if no report has the id.
//
// Thread Safety: Safe for concurrent use.
func (l *Ledger) Get(ctx context.Context, id string) (*report.Report, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}
	if id == "" {
		return nil, errors.New("report id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var rep report.Report
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("look up report %s: %w", id, err)
		}

		primary, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read index for report %s: %w", id, err)
		}

		item, err = txn.Get(primary)
		if errors.Is(err, badger.ErrKeyNotFound) {
			// Index without a record means a torn write; surface as absent.
			return fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read report %s: %w", id, err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &rep); err != nil {
				return fmt.Errorf("decode report %s: %w", id, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// List returns recorded reports, newest first.
//
// Description:
//
//	Walks the time-ordered primary keys in reverse. A limit of zero
//	or less returns every recorded report.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	limit - Maximum number of reports to return. <= 0 means all.
//
// Outputs:
//
//	[]report.Report - Reports in reverse chronological order. Never
//	                  nil, so the JSON encoding is always an array.
//	error - Non-nil on storage or decode failure.
//
// Thread Safety: Safe for concurrent use.
func (l *Ledger) List(ctx context.Context, limit int) ([]report.Report, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	reports := []report.Report{}
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = runPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the last key at or before the
		// target, so start just past the prefix range.
		seek := append(append([]byte{}, runPrefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(runPrefix); it.Next() {
			if limit > 0 && len(reports) >= limit {
				break
			}
			var rep report.Report
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rep)
			})
			if err != nil {
				return fmt.Errorf("decode report at %s: %w", it.Item().Key(), err)
			}
			reports = append(reports, rep)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// Close stops garbage collection (if running) and closes the store.
//
// Outputs:
//
//	error - Non-nil if the store close fails.
func (l *Ledger) Close() error {
	if l.gcStop != nil {
		close(l.gcStop)
		<-l.gcDone
		l.gcStop = nil
	}
	return l.db.Close()
}

func (l *Ledger) runGC(interval time.Duration, ratio float64) {
	defer close(l.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite means no GC was needed, not an error
			err := l.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && l.logger != nil {
				l.logger.Warn("ledger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// runKey builds the time-ordered primary key. The report id breaks
// ties between reports generated in the same nanosecond.
func runKey(rep *report.Report) []byte {
	ts := rep.GeneratedAt.UTC().Format(keyTimeLayout)
	key := make([]byte, 0, len(runPrefix)+len(ts)+1+len(rep.ID))
	key = append(key, runPrefix...)
	key = append(key, ts...)
	key = append(key, ':')
	key = append(key, rep.ID...)
	return key
}

func idKey(id string) []byte {
	key := make([]byte, 0, len(idPrefix)+len(id))
	key = append(key, idPrefix...)
	key = append(key, id...)
	return key
}
