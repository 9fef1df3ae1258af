// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package database is the DuckDB persistence layer: day-granular metric
// buckets plus the deal and message mirrors. All merge-policy decisions
// happen here in single atomic statements, never read-then-write.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/paceboard/paceboard/internal/config"
	"github.com/paceboard/paceboard/internal/logging"
)

// DB wraps the DuckDB connection.
type DB struct {
	conn *sql.DB
	cfg  config.DatabaseConfig
	loc  *time.Location

	// Per-bucket write locks so concurrent upserts on the same key
	// serialize instead of triggering DuckDB transaction conflicts.
	bucketLocks sync.Map

	// now is a clock seam for the historical/current day split.
	now func() time.Time
}

// New opens (or creates) the database file, applies tuning options and
// creates the schema. loc is the reference timezone used to classify a
// bucket's day as historical or current.
func New(cfg config.DatabaseConfig, loc *time.Location) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  cfg,
		loc:  loc,
		now:  time.Now,
	}

	if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("database ready")
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// acquireBucketLock locks the per-bucket mutex for a bucket key.
func (db *DB) acquireBucketLock(key string) *sync.Mutex {
	muInterface, _ := db.bucketLocks.LoadOrStore(key, &sync.Mutex{})
	mu, ok := muInterface.(*sync.Mutex)
	if !ok {
		mu = &sync.Mutex{}
		db.bucketLocks.Store(key, mu)
	}
	mu.Lock()
	return mu
}

// isTransactionConflict reports whether err is a retryable DuckDB
// transaction conflict.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update") ||
		strings.Contains(errStr, "cannot update a table that has been altered")
}

// isInternalError reports whether err is a DuckDB INTERNAL error.
// These indicate bugs and must never be retried.
func isInternalError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "INTERNAL Error")
}
