package domain

import "context"

// UpdateResult summarizes a filter-scoped bulk write. Matched counts the
// records the filter selected; Modified counts those whose content actually
// changed. The two differ when a matched record is already in the target state.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// RecordStore is the persistence contract the catalog service depends on.
// Implementations provide single-node read-your-writes consistency; the
// service performs no retries and no compensation on top of it.
type RecordStore interface {
	// Ping reports store connectivity. Handlers gate every store-touching
	// request on it, returning 503 before attempting any operation.
	Ping(ctx context.Context) error
	// FindByID returns the record with the given canonical identifier.
	FindByID(ctx context.Context, id string) (Record, bool, error)
	// List returns all records, newest first.
	List(ctx context.Context) ([]Record, error)
	// Insert persists a new record, stamping createdAt/updatedAt.
	Insert(ctx context.Context, rec Record) (Record, error)
	// InsertMany persists a batch atomically.
	InsertMany(ctx context.Context, recs []Record) ([]Record, error)
	// CountByFilter counts records matching the filter without writing.
	CountByFilter(ctx context.Context, filter map[string]any) (int64, error)
	// UpdateManyByFilter merges fields into every record matching the filter.
	UpdateManyByFilter(ctx context.Context, filter map[string]any, fields map[string]any) (UpdateResult, error)
	// DeleteByID removes a record, reporting whether it existed.
	DeleteByID(ctx context.Context, id string) (bool, error)
}
