package memory

import (
	"context"
	"testing"
	"time"

	"doorcore/pkg/domain"
)

func testRecord(id, material string) domain.Record {
	return domain.Record{
		ID:         id,
		Name:       "Door " + id,
		Material:   material,
		Dimensions: domain.Dimensions{Height: 2100, Width: 900},
	}
}

func TestInsertStampsTimestampsAndClones(t *testing.T) {
	store := NewStore()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	rec := testRecord("a", "Wood")
	rec.Extra = map[string]any{"quality": "Standard"}
	created, err := store.Insert(context.Background(), rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !created.CreatedAt.Equal(fixed) || !created.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected stamped timestamps, got %+v", created)
	}

	// Mutating the caller's copy must not reach the store.
	rec.Extra["quality"] = "mutated"
	got, ok, err := store.FindByID(context.Background(), "a")
	if err != nil || !ok {
		t.Fatalf("find: %v ok=%v", err, ok)
	}
	if got.Extra["quality"] != "Standard" {
		t.Fatalf("store shares state with caller: %v", got.Extra)
	}

	if _, err := store.Insert(context.Background(), testRecord("a", "Wood")); err == nil {
		t.Fatalf("expected duplicate insert error")
	}
}

func TestListNewestFirst(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time {
		now = now.Add(time.Minute)
		return now
	})
	for _, id := range []string{"first", "second", "third"} {
		if _, err := store.Insert(context.Background(), testRecord(id, "Wood")); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	recs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 || recs[0].ID != "third" || recs[2].ID != "first" {
		t.Fatalf("expected newest-first ordering, got %v", []string{recs[0].ID, recs[1].ID, recs[2].ID})
	}
}

func TestInsertManyAtomic(t *testing.T) {
	store := NewStore()
	if _, err := store.Insert(context.Background(), testRecord("exists", "Wood")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := store.InsertMany(context.Background(), []domain.Record{
		testRecord("new", "Wood"),
		testRecord("exists", "Wood"),
	})
	if err == nil {
		t.Fatalf("expected batch failure")
	}
	if _, ok, _ := store.FindByID(context.Background(), "new"); ok {
		t.Fatalf("failed batch must leave store unchanged")
	}
}

func TestUpdateManyByFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, rec := range []domain.Record{
		testRecord("w1", "Wood"),
		testRecord("w2", "Wood"),
		testRecord("s1", "Steel"),
	} {
		if _, err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	res, err := store.UpdateManyByFilter(ctx, map[string]any{"material": "Wood"}, map[string]any{"finish": "Gloss"})
	if err != nil {
		t.Fatalf("update many: %v", err)
	}
	if res.Matched != 2 || res.Modified != 2 {
		t.Fatalf("expected 2/2, got %+v", res)
	}
	steel, _, _ := store.FindByID(ctx, "s1")
	if steel.Finish != "" {
		t.Fatalf("filter leaked past material group")
	}

	// Re-applying an identical update matches without modifying.
	res, err = store.UpdateManyByFilter(ctx, map[string]any{"material": "Wood"}, map[string]any{"finish": "Gloss"})
	if err != nil {
		t.Fatalf("update many: %v", err)
	}
	if res.Matched != 2 || res.Modified != 0 {
		t.Fatalf("expected matched without modified, got %+v", res)
	}
}

func TestUpdateManyMatchesPreUpdateState(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, id := range []string{"w1", "w2"} {
		if _, err := store.Insert(ctx, testRecord(id, "Wood")); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	// The body rewrites the filtered field itself; both pre-update members
	// must still be written exactly once.
	res, err := store.UpdateManyByFilter(ctx, map[string]any{"material": "Wood"}, map[string]any{"material": "Oak"})
	if err != nil {
		t.Fatalf("update many: %v", err)
	}
	if res.Matched != 2 || res.Modified != 2 {
		t.Fatalf("expected full group write, got %+v", res)
	}
	for _, id := range []string{"w1", "w2"} {
		rec, _, _ := store.FindByID(ctx, id)
		if rec.Material != "Oak" {
			t.Fatalf("record %s not rewritten: %q", id, rec.Material)
		}
	}
}

func TestCountAndDeleteAndEmptyFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if _, err := store.Insert(ctx, testRecord(id, "Wood")); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	n, err := store.CountByFilter(ctx, map[string]any{})
	if err != nil || n != 2 {
		t.Fatalf("empty filter must match all: n=%d err=%v", n, err)
	}
	existed, err := store.DeleteByID(ctx, "a")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = store.DeleteByID(ctx, "a")
	if err != nil || existed {
		t.Fatalf("second delete must report missing")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if _, err := store.Insert(ctx, testRecord("a", "Wood")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	snapshot := store.ExportState()

	store.ImportState(Snapshot{})
	if n, _ := store.CountByFilter(ctx, map[string]any{}); n != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if _, ok, _ := store.FindByID(ctx, "a"); !ok {
		t.Fatalf("expected restored record")
	}
}
