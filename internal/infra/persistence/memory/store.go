// Package memory provides the in-memory record store used for tests,
// ephemeral environments, and as the transactional core of the durable
// backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"doorcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.RecordStore = (*Store)(nil)

// Snapshot captures a point-in-time clone of the store state for external
// persistence.
type Snapshot struct {
	Records map[string]domain.Record `json:"doors"`
}

// Store holds door records in a mutex-guarded map. Every value crossing the
// store boundary is deep-cloned so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.Record
	nowFn   func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]domain.Record),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the store clock, for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// Ping always succeeds: the process-local store is reachable whenever the
// process is.
func (s *Store) Ping(context.Context) error { return nil }

// FindByID returns a clone of the record with the given identifier.
func (s *Store) FindByID(_ context.Context, id string) (domain.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

// List returns all records ordered newest first, identifier as tiebreak so
// the ordering is stable across calls.
func (s *Store) List(_ context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Insert persists a record, stamping creation and update timestamps.
func (s *Store) Insert(_ context.Context, rec domain.Record) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *Store) insertLocked(rec domain.Record) (domain.Record, error) {
	if rec.ID == "" {
		return domain.Record{}, fmt.Errorf("record id required")
	}
	if _, exists := s.records[rec.ID]; exists {
		return domain.Record{}, fmt.Errorf("record %s already exists", rec.ID)
	}
	now := s.nowFn()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = rec.Clone()
	return rec, nil
}

// InsertMany persists a batch atomically: any failure leaves the store
// unchanged.
func (s *Store) InsertMany(_ context.Context, recs []domain.Record) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			return nil, fmt.Errorf("record id required")
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("duplicate record id %s in batch", rec.ID)
		}
		if _, exists := s.records[rec.ID]; exists {
			return nil, fmt.Errorf("record %s already exists", rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}
	out := make([]domain.Record, 0, len(recs))
	for _, rec := range recs {
		created, err := s.insertLocked(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// CountByFilter counts matching records without writing.
func (s *Store) CountByFilter(_ context.Context, filter map[string]any) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, rec := range s.records {
		if rec.MatchesFilter(filter) {
			n++
		}
	}
	return n, nil
}

// UpdateManyByFilter merges fields into every matching record. Matching is
// evaluated once against the state at entry, so a write that changes the
// filtered field does not re-select records mid-pass. Records whose content
// does not change keep their updatedAt stamp and are counted as matched but
// not modified.
func (s *Store) UpdateManyByFilter(_ context.Context, filter map[string]any, fields map[string]any) (domain.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	var result domain.UpdateResult
	var matchedIDs []string
	for id, rec := range s.records {
		if rec.MatchesFilter(filter) {
			matchedIDs = append(matchedIDs, id)
		}
	}
	for _, id := range matchedIDs {
		rec := s.records[id].Clone()
		result.Matched++
		if rec.Apply(fields) {
			rec.UpdatedAt = now
			s.records[id] = rec
			result.Modified++
		}
	}
	return result, nil
}

// DeleteByID removes a record, reporting whether it existed.
func (s *Store) DeleteByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

// ExportState clones the current state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{Records: make(map[string]domain.Record, len(s.records))}
	for id, rec := range s.records {
		out.Records[id] = rec.Clone()
	}
	return out
}

// ImportState replaces the store state with the snapshot. Entries missing an
// identifier are dropped rather than imported under an empty key.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.Record, len(snapshot.Records))
	for id, rec := range snapshot.Records {
		if id == "" {
			continue
		}
		if rec.ID == "" {
			rec.ID = id
		}
		s.records[id] = rec.Clone()
	}
}
