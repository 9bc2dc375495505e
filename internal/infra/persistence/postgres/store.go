// Package postgres provides a Postgres-backed record store that mirrors the
// in-memory semantics, snapshotting state to a JSONB table after every
// successful mutation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"doorcore/internal/infra/persistence/memory"
	"doorcore/pkg/domain"
)

var _ domain.RecordStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/doorcore?sslmode=disable"
	recordsBucket = "doors"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists catalog state to Postgres while reusing the in-memory
// implementation for all record semantics.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory state from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	mem := memory.NewStore()
	s := &Store{Store: mem, db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = $1`, recordsBucket).Scan(&payload)
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
	if _, err := s.db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, recordsBucket, data); err != nil {
		return fmt.Errorf("upsert %s: %w", recordsBucket, err)
	}
	return nil
}

// Ping verifies server connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert persists through the in-memory store, then snapshots to Postgres.
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
