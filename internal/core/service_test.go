package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"doorcore/internal/infra/persistence/memory"
	"doorcore/pkg/domain"
)

type recordedObservation struct {
	operation string
	success   bool
}

// memMetrics captures observations for assertions.
type memMetrics struct {
	mu   sync.Mutex
	seen []recordedObservation
}

func (m *memMetrics) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, recordedObservation{operation: operation, success: success})
}

func (m *memMetrics) last() (recordedObservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.seen) == 0 {
		return recordedObservation{}, false
	}
	return m.seen[len(m.seen)-1], true
}

func TestCreateRecordGeneratesIdentifier(t *testing.T) {
	svc := NewService(memory.NewStore())
	created, err := svc.CreateRecord(context.Background(), domain.Record{
		Name:       "Front",
		Material:   "Wood",
		Dimensions: domain.Dimensions{Height: 2100, Width: 900},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !ValidateIdentifier(created.ID) {
		t.Fatalf("generated identifier fails validation: %q", created.ID)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not stamped: %+v", created)
	}
}

func TestCreateRecordHonorsCustomIdentifier(t *testing.T) {
	svc := NewService(memory.NewStore())
	rec := domain.Record{
		ID:         woodDoor1,
		Name:       "Front",
		Material:   "Wood",
		Dimensions: domain.Dimensions{Height: 2100, Width: 900},
	}
	created, err := svc.CreateRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != woodDoor1 {
		t.Fatalf("custom identifier not preserved: %q", created.ID)
	}

	// Re-using the identifier is rejected.
	_, err = svc.CreateRecord(context.Background(), rec)
	var invalid domain.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for duplicate, got %v", err)
	}
}

func TestCreateRecordRejectsMalformedIdentifier(t *testing.T) {
	svc := NewService(memory.NewStore())
	_, err := svc.CreateRecord(context.Background(), domain.Record{
		ID:         "nope",
		Name:       "Front",
		Material:   "Wood",
		Dimensions: domain.Dimensions{Height: 2100, Width: 900},
	})
	var invalid domain.InvalidIdentifierError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidIdentifierError, got %v", err)
	}
}

func TestCreateRecordValidatesEvenWithCustomIdentifier(t *testing.T) {
	svc := NewService(memory.NewStore())
	_, err := svc.CreateRecord(context.Background(), domain.Record{ID: woodDoor1, Name: "Front"})
	var invalid domain.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if len(invalid.Missing) == 0 {
		t.Fatalf("expected missing fields to be enumerated")
	}
}

func TestCreateBatchIsAllOrNothing(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.CreateBatch(ctx, []domain.Record{
		{Name: "Front", Material: "Wood", Dimensions: domain.Dimensions{Height: 2100, Width: 900}},
		{Name: "Broken"},
	})
	if err == nil {
		t.Fatalf("expected batch rejection")
	}
	recs, _ := store.List(ctx)
	if len(recs) != 0 {
		t.Fatalf("failed batch must not insert anything, got %d records", len(recs))
	}

	created, err := svc.CreateBatch(ctx, []domain.Record{
		{Name: "Front", Material: "Wood", Dimensions: domain.Dimensions{Height: 2100, Width: 900}},
		{Name: "Back", Material: "Wood", Dimensions: domain.Dimensions{Height: 2000, Width: 850}},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created, got %d", len(created))
	}
	for _, rec := range created {
		if !ValidateIdentifier(rec.ID) {
			t.Fatalf("batch element missing generated identifier: %+v", rec)
		}
	}
}

func TestCreateBatchRejectsEmpty(t *testing.T) {
	svc := NewService(memory.NewStore())
	_, err := svc.CreateBatch(context.Background(), nil)
	var invalid domain.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestDeleteRecord(t *testing.T) {
	store := seedDoors(t)
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.DeleteRecord(ctx, woodDoor1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, exists, _ := store.FindByID(ctx, woodDoor1); exists {
		t.Fatalf("record still present after delete")
	}

	var notFound domain.NotFoundError
	if err := svc.DeleteRecord(ctx, woodDoor1); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError on repeat delete, got %v", err)
	}
	var badID domain.InvalidIdentifierError
	if err := svc.DeleteRecord(ctx, "nope"); !errors.As(err, &badID) {
		t.Fatalf("expected InvalidIdentifierError, got %v", err)
	}
	var missing domain.InvalidInputError
	if err := svc.DeleteRecord(ctx, ""); !errors.As(err, &missing) {
		t.Fatalf("expected InvalidInputError for empty identifier, got %v", err)
	}
}

// Two wood doors, update one, both come back changed and the response reports
// the pair. End-to-end walk of create then propagate then read back.
func TestServiceWoodDoorPropagation(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store)
	ctx := context.Background()

	first, err := svc.CreateRecord(ctx, domain.Record{
		Name: "wood-door-1", Material: "Wood", Finish: "Varnish",
		Dimensions: domain.Dimensions{Height: 2100, Width: 900},
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.CreateRecord(ctx, domain.Record{
		Name: "wood-door-2", Material: "Wood", Finish: "Varnish",
		Dimensions: domain.Dimensions{Height: 2000, Width: 850},
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	out, err := svc.PropagateUpdate(ctx, first.ID, map[string]any{"finish": "Gloss"})
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}
	if out.TotalUpdated != 2 {
		t.Fatalf("expected both wood doors updated, got %d", out.TotalUpdated)
	}
	if out.GroupingKey != "Wood" {
		t.Fatalf("unexpected grouping key %q", out.GroupingKey)
	}
	for _, id := range []string{first.ID, second.ID} {
		rec, _, _ := store.FindByID(ctx, id)
		if rec.Finish != "Gloss" {
			t.Fatalf("door %s missed the update: %q", id, rec.Finish)
		}
	}
}

func TestServiceObservesOperations(t *testing.T) {
	metrics := &memMetrics{}
	svc := NewService(seedDoors(t), WithMetrics(metrics))
	ctx := context.Background()

	if _, err := svc.ListRecords(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	obs, ok := metrics.last()
	if !ok || obs.operation != "list" || !obs.success {
		t.Fatalf("expected successful list observation, got %+v", obs)
	}

	if err := svc.DeleteRecord(ctx, absentID); err == nil {
		t.Fatalf("expected delete failure")
	}
	obs, _ = metrics.last()
	if obs.operation != "delete" || obs.success {
		t.Fatalf("expected failed delete observation, got %+v", obs)
	}
}

func TestWithIDGenerator(t *testing.T) {
	svc := NewService(memory.NewStore(), WithIDGenerator(func() string { return woodDoor2 }))
	created, err := svc.CreateRecord(context.Background(), domain.Record{
		Name: "Back", Material: "Wood", Dimensions: domain.Dimensions{Height: 2000, Width: 850},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != woodDoor2 {
		t.Fatalf("injected generator ignored: %q", created.ID)
	}
}
