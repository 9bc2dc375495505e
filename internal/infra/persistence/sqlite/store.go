// Package sqlite provides a SQLite-backed record store. It reuses the
// in-memory store for all catalog semantics and snapshots the full state to a
// single table as a JSON blob after every successful mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"doorcore/internal/infra/persistence/memory"
	"doorcore/pkg/domain"
)

var _ domain.RecordStore = (*Store)(nil)

const recordsBucket = "doors"

// Store persists the in-memory catalog state to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path, hydrating the in-memory
// state from any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "doorcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, recordsBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(payload, &snapshot.Records); err != nil {
		return fmt.Errorf("decode %s: %w", recordsBucket, err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	data, err := json.Marshal(snapshot.Records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", recordsBucket, err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, recordsBucket, data); err != nil {
		return fmt.Errorf("upsert %s: %w", recordsBucket, err)
	}
	return nil
}

// Ping verifies the database file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert persists through the in-memory store, then snapshots to SQLite.
func (s *Store) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	created, err := s.Store.Insert(ctx, rec)
	if err != nil {
		return domain.Record{}, err
	}
	if err := s.persist(ctx); err != nil {
		return domain.Record{}, err
	}
	return created, nil
}

// InsertMany persists a batch, then snapshots.
func (s *Store) InsertMany(ctx context.Context, recs []domain.Record) ([]domain.Record, error) {
	created, err := s.Store.InsertMany(ctx, recs)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateManyByFilter applies the bulk write, then snapshots when anything
// changed.
func (s *Store) UpdateManyByFilter(ctx context.Context, filter, fields map[string]any) (domain.UpdateResult, error) {
	res, err := s.Store.UpdateManyByFilter(ctx, filter, fields)
	if err != nil {
		return res, err
	}
	if res.Modified > 0 {
		if err := s.persist(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// DeleteByID removes the record, then snapshots when it existed.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	existed, err := s.Store.DeleteByID(ctx, id)
	if err != nil || !existed {
		return existed, err
	}
	if err := s.persist(ctx); err != nil {
		return existed, err
	}
	return existed, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
