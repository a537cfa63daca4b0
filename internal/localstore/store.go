// Package localstore is the agent's durable local database: the queue of
// writes not yet confirmed by the remote store, and a read cache for
// reference data. Both live in one SQLite file and survive restarts.
package localstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/storeledger/internal/database"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - offline_queue, cached_data, issued_ids
const currentSchemaVersion = 1

// ErrStorage matches every *StorageError with errors.Is.
var ErrStorage = errors.New("local storage failure")

// StorageError reports that the local database could not complete an
// operation. For Enqueue it means the write is not safely queued anywhere.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Open opens (or creates) the SQLite file at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := database.NewSQLiteDB(ctx, path)
	if err != nil {
		return nil, storageErr("open", err)
	}
	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database and applies the schema. It is
// idempotent.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, storageErr("migrate", fmt.Errorf("failed to execute schema: %w", err))
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return nil, storageErr("migrate", fmt.Errorf("set user_version: %w", err))
	}
	return &Store{db: db, now: time.Now, newID: newQueueID}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ClearAll empties both the queue and the cache. Issued ids are kept so that
// none is handed out again after a reset.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("clear", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM offline_queue`); err != nil {
		return storageErr("clear", fmt.Errorf("failed to clear queue: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_data`); err != nil {
		return storageErr("clear", fmt.Errorf("failed to clear cache: %w", err))
	}
	return storageErr("clear", tx.Commit())
}
