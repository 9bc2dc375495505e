package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"doorcore/internal/infra/blob"
	blobmemory "doorcore/internal/infra/blob/memory"
	"doorcore/pkg/domain"
)

func TestExportSnapshotsCatalog(t *testing.T) {
	store := seedDoors(t)
	blobs := blobmemory.New()
	exporter := NewExporter(store, blobs)
	exporter.SetNowFunc(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	ctx := context.Background()

	info, err := exporter.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.ContentType != "application/json" {
		t.Fatalf("unexpected content type: %+v", info)
	}
	if info.Metadata["count"] != "3" {
		t.Fatalf("expected count metadata, got %+v", info.Metadata)
	}

	got, raw, err := exporter.Fetch(ctx, info.Key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Key != info.Key {
		t.Fatalf("key mismatch: %q vs %q", got.Key, info.Key)
	}
	var env struct {
		ExportedAt time.Time        `json:"exportedAt"`
		Count      int              `json:"count"`
		Doors      []map[string]any `json:"doors"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if env.Count != 3 || len(env.Doors) != 3 {
		t.Fatalf("expected 3 doors, got %+v", env)
	}
	if !env.ExportedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("clock not honored: %v", env.ExportedAt)
	}
}

func TestExportsAreImmutableAndListed(t *testing.T) {
	store := seedDoors(t)
	blobs := blobmemory.New()
	exporter := NewExporter(store, blobs)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	exporter.SetNowFunc(func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	})

	first, err := exporter.Export(ctx)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, err := exporter.Export(ctx)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if first.Key == second.Key {
		t.Fatalf("exports must produce distinct keys, both %q", first.Key)
	}

	infos, err := exporter.ListExports(ctx)
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != first.Key || infos[1].Key != second.Key {
		t.Fatalf("unexpected export listing: %+v", infos)
	}
}

func TestFetchMissingExport(t *testing.T) {
	exporter := NewExporter(seedDoors(t), blobmemory.New())
	_, _, err := exporter.Fetch(context.Background(), "exports/absent.json")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExportSurfacesListFailure(t *testing.T) {
	failing := &failingListStore{RecordStore: seedDoors(t)}
	exporter := NewExporter(failing, blobmemory.New())
	_, err := exporter.Export(context.Background())
	if err == nil {
		t.Fatalf("expected error from failing list")
	}
}

type failingListStore struct {
	domain.RecordStore
}

func (f *failingListStore) List(context.Context) ([]domain.Record, error) {
	return nil, errors.New("list boom")
}
