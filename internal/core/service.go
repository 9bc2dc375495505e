package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"doorcore/pkg/domain"
)

// Service exposes the catalog operations backed by a record store. Each call
// is a self-contained sequence of store operations; all state lives in the
// store and no cross-request state is held here.
type Service struct {
	store       domain.RecordStore
	metrics     MetricsRecorder
	propagation *PropagationEngine
	bulk        *BulkUpdateEngine
	newID       func() string
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithMetrics installs a metrics recorder observing every operation.
func WithMetrics(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithIDGenerator overrides identifier generation, for tests.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService constructs a catalog service over the given store.
func NewService(store domain.RecordStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:       store,
		metrics:     NopMetricsRecorder{},
		propagation: NewPropagationEngine(store),
		bulk:        NewBulkUpdateEngine(store),
		newID:       newIdentifier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newIdentifier produces a fresh identifier in the catalog's pattern: a UUID
// plus an eight-hex suffix group.
func newIdentifier() string {
	return uuid.NewString() + "-" + uuid.NewString()[:8]
}

// Store returns the underlying record store.
func (s *Service) Store() domain.RecordStore { return s.store }

func (s *Service) observe(ctx context.Context, op string, started time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
}

// ListRecords returns the full catalog, newest first.
func (s *Service) ListRecords(ctx context.Context) (recs []domain.Record, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "list", started, err) }()
	recs, err = s.store.List(ctx)
	if err != nil {
		return nil, domain.StoreOperationError{Op: "list", Err: err}
	}
	return recs, nil
}

// CreateRecord validates and persists a single record. A caller-supplied
// identifier must match the identifier pattern; when absent one is generated.
// Required fields are enforced either way.
func (s *Service) CreateRecord(ctx context.Context, rec domain.Record) (created domain.Record, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "create", started, err) }()
	if rec.ID != "" && !ValidateIdentifier(rec.ID) {
		return domain.Record{}, domain.InvalidIdentifierError{Raw: rec.ID}
	}
	if err = ValidateNewRecord(rec); err != nil {
		return domain.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	} else {
		_, exists, ferr := s.store.FindByID(ctx, rec.ID)
		if ferr != nil {
			err = domain.StoreOperationError{Op: "find", Err: ferr}
			return domain.Record{}, err
		}
		if exists {
			err = domain.InvalidInputError{Reason: "identifier already in use"}
			return domain.Record{}, err
		}
	}
	created, err = s.store.Insert(ctx, rec)
	if err != nil {
		err = domain.StoreOperationError{Op: "insert", Err: err}
		return domain.Record{}, err
	}
	return created, nil
}

// CreateBatch validates and persists a batch of records in one store call.
// The batch must be non-empty; every element passes the same checks as a
// single create.
func (s *Service) CreateBatch(ctx context.Context, recs []domain.Record) (created []domain.Record, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "batch", started, err) }()
	if len(recs) == 0 {
		err = domain.InvalidInputError{Reason: "request body must be a non-empty array of records"}
		return nil, err
	}
	for i := range recs {
		if recs[i].ID != "" && !ValidateIdentifier(recs[i].ID) {
			err = domain.InvalidIdentifierError{Raw: recs[i].ID}
			return nil, err
		}
		if err = ValidateNewRecord(recs[i]); err != nil {
			return nil, err
		}
		if recs[i].ID == "" {
			recs[i].ID = s.newID()
		}
	}
	created, err = s.store.InsertMany(ctx, recs)
	if err != nil {
		err = domain.StoreOperationError{Op: "insert-many", Err: err}
		return nil, err
	}
	return created, nil
}

// PropagateUpdate applies an update body to the target record's whole material
// group. See PropagationEngine for the match-then-fan-out semantics.
func (s *Service) PropagateUpdate(ctx context.Context, targetID string, body map[string]any) (out PropagationOutcome, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "propagate_update", started, err) }()
	if targetID == "" {
		err = domain.InvalidInputError{Reason: "record identifier is required", Missing: []string{domain.FieldID}}
		return PropagationOutcome{}, err
	}
	out, err = s.propagation.Propagate(ctx, targetID, body)
	return out, err
}

// BulkUpdate applies an update payload to every record matching the criteria.
func (s *Service) BulkUpdate(ctx context.Context, criteria, payload map[string]any) (out BulkOutcome, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "bulk_update", started, err) }()
	out, err = s.bulk.BulkUpdate(ctx, criteria, payload)
	return out, err
}

// DeleteRecord removes a record by identifier.
func (s *Service) DeleteRecord(ctx context.Context, id string) (err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "delete", started, err) }()
	if id == "" {
		err = domain.InvalidInputError{Reason: "record identifier is required", Missing: []string{domain.FieldID}}
		return err
	}
	if !ValidateIdentifier(id) {
		err = domain.InvalidIdentifierError{Raw: id}
		return err
	}
	existed, derr := s.store.DeleteByID(ctx, id)
	if derr != nil {
		err = domain.StoreOperationError{Op: "delete", Err: derr}
		return err
	}
	if !existed {
		err = domain.NotFoundError{ID: id}
		return err
	}
	return nil
}
