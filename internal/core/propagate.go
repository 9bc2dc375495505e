package core

import (
	"context"
	"sort"

	"doorcore/pkg/domain"
)

// PropagationOutcome reports a completed propagation update: the freshest
// available view of the target, the field names written, the grouping key the
// fan-out matched on, and how many records the group-wide write modified.
type PropagationOutcome struct {
	Record        domain.Record
	UpdatedFields []string
	GroupingKey   string
	TotalUpdated  int64
}

// PropagationEngine fans a single-target update out to every record sharing
// the target's material. The grouping key is captured once, before any
// mutation, so an update body that itself changes material still applies to
// the group as it stood pre-update. No locking spans the resolve and apply
// phases: concurrent propagations interleave as last-writer-wins.
type PropagationEngine struct {
	store domain.RecordStore
}

// NewPropagationEngine constructs an engine over the given store.
func NewPropagationEngine(store domain.RecordStore) *PropagationEngine {
	return &PropagationEngine{store: store}
}

// SplitIdentifier extracts the target identifier from a raw update payload,
// honoring both identifier aliases, and returns the remaining update body.
// The identifier is the lookup key only and is never part of the write.
func SplitIdentifier(payload map[string]any) (string, map[string]any) {
	body := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == domain.FieldID || k == domain.FieldAltID {
			continue
		}
		body[k] = v
	}
	if id, ok := payload[domain.FieldID].(string); ok && id != "" {
		return id, body
	}
	if id, ok := payload[domain.FieldAltID].(string); ok && id != "" {
		return id, body
	}
	return "", body
}

// ResolveGroup validates the target identifier, looks the record up, and
// returns the pre-update copy together with its material grouping key.
// Failure here is terminal: zero records have been touched.
func (e *PropagationEngine) ResolveGroup(ctx context.Context, targetID string) (string, domain.Record, error) {
	if !ValidateIdentifier(targetID) {
		return "", domain.Record{}, domain.InvalidIdentifierError{Raw: targetID}
	}
	target, ok, err := e.store.FindByID(ctx, targetID)
	if err != nil {
		return "", domain.Record{}, domain.StoreOperationError{Op: "find", Err: err}
	}
	if !ok {
		return "", domain.Record{}, domain.NotFoundError{ID: targetID}
	}
	return target.Material, target, nil
}

// ApplyToGroup writes the update body to every record whose material equals
// the captured grouping key. The store's bulk write is treated as
// atomic-enough; a failure surfaces as a store error with no partial-outcome
// reporting and no rollback.
func (e *PropagationEngine) ApplyToGroup(ctx context.Context, groupingKey string, body map[string]any) (domain.UpdateResult, error) {
	res, err := e.store.UpdateManyByFilter(ctx, map[string]any{domain.FieldMaterial: groupingKey}, body)
	if err != nil {
		return domain.UpdateResult{}, domain.StoreOperationError{Op: "update-many", Err: err}
	}
	return res, nil
}

// Propagate runs the full match-then-fan-out sequence for a target identifier
// and update body.
func (e *PropagationEngine) Propagate(ctx context.Context, targetID string, body map[string]any) (PropagationOutcome, error) {
	if len(body) == 0 {
		return PropagationOutcome{}, domain.InvalidInputError{Reason: "no update data provided"}
	}
	if err := ValidateUpdateBody(body); err != nil {
		return PropagationOutcome{}, err
	}

	groupingKey, target, err := e.ResolveGroup(ctx, targetID)
	if err != nil {
		return PropagationOutcome{}, err
	}

	result, err := e.ApplyToGroup(ctx, groupingKey, body)
	if err != nil {
		return PropagationOutcome{}, err
	}

	// Best-effort re-read for the response; the write already succeeded, so a
	// failed re-read falls back to the pre-update copy rather than erroring.
	freshest := target
	if updated, ok, err := e.store.FindByID(ctx, targetID); err == nil && ok {
		freshest = updated
	}

	return PropagationOutcome{
		Record:        freshest,
		UpdatedFields: sortedFieldNames(body),
		GroupingKey:   groupingKey,
		TotalUpdated:  result.Modified,
	}, nil
}

func sortedFieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
