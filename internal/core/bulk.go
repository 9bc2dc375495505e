package core

import (
	"context"

	"doorcore/pkg/domain"
)

// BulkOutcome reports a criteria-based bulk update: matched and modified
// counts plus the echoed criteria and written field names.
type BulkOutcome struct {
	Matched       int64
	Modified      int64
	Criteria      map[string]any
	UpdatedFields []string
}

// BulkUpdateEngine applies a field-level merge to every record matching an
// arbitrary caller-supplied filter.
type BulkUpdateEngine struct {
	store domain.RecordStore
}

// NewBulkUpdateEngine constructs an engine over the given store.
func NewBulkUpdateEngine(store domain.RecordStore) *BulkUpdateEngine {
	return &BulkUpdateEngine{store: store}
}

// BulkUpdate merges payload into every record matching criteria. Criteria must
// be supplied; the empty criteria map is permitted and means "all records",
// a deliberate hazard that lets one call rewrite the whole catalog.
// Matching is checked before any write: zero matches returns NotFound with no
// write attempted.
func (e *BulkUpdateEngine) BulkUpdate(ctx context.Context, criteria, payload map[string]any) (BulkOutcome, error) {
	if criteria == nil {
		return BulkOutcome{}, domain.InvalidInputError{Reason: "missing required fields", Missing: []string{"criteria"}}
	}
	if len(payload) == 0 {
		return BulkOutcome{}, domain.InvalidInputError{Reason: "no update data provided"}
	}
	_, body := SplitIdentifier(payload)
	if len(body) == 0 {
		return BulkOutcome{}, domain.InvalidInputError{Reason: "no update data provided"}
	}
	if err := ValidateUpdateBody(body); err != nil {
		return BulkOutcome{}, err
	}

	matched, err := e.store.CountByFilter(ctx, criteria)
	if err != nil {
		return BulkOutcome{}, domain.StoreOperationError{Op: "count", Err: err}
	}
	if matched == 0 {
		return BulkOutcome{}, domain.NotFoundError{Criteria: criteria}
	}

	result, err := e.store.UpdateManyByFilter(ctx, criteria, body)
	if err != nil {
		return BulkOutcome{}, domain.StoreOperationError{Op: "update-many", Err: err}
	}

	return BulkOutcome{
		Matched:       result.Matched,
		Modified:      result.Modified,
		Criteria:      criteria,
		UpdatedFields: sortedFieldNames(body),
	}, nil
}
