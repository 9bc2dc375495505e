package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"doorcore/internal/infra/blob"
	blobfs "doorcore/internal/infra/blob/fs"
	blobmemory "doorcore/internal/infra/blob/memory"
	blobs3 "doorcore/internal/infra/blob/s3"
	"doorcore/pkg/domain"
)

// exportKeyPrefix namespaces catalog snapshots inside the blob store.
const exportKeyPrefix = "exports/"

// BlobConfig carries the export backend selection and its parameters.
type BlobConfig struct {
	Driver            blob.Driver
	FSRoot            string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PathStyle       bool
}

// OpenBlobStore constructs the configured export backend. Defaults to the
// filesystem driver when unset.
func OpenBlobStore(ctx context.Context, cfg BlobConfig) (blob.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = blob.DriverFilesystem
	}
	switch driver {
	case blob.DriverMemory:
		return blobmemory.New(), nil
	case blob.DriverFilesystem:
		return blobfs.New(cfg.FSRoot)
	case blob.DriverS3:
		return blobs3.New(ctx, blobs3.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// exportEnvelope is the JSON document written for each snapshot.
type exportEnvelope struct {
	ExportedAt time.Time       `json:"exportedAt"`
	Count      int             `json:"count"`
	Doors      []domain.Record `json:"doors"`
}

// Exporter writes point-in-time catalog snapshots to a blob store. Snapshots
// are immutable; each export produces a new timestamped key.
type Exporter struct {
	store domain.RecordStore
	blobs blob.Store
	nowFn func() time.Time
}

// NewExporter constructs an exporter over the record and blob stores.
func NewExporter(store domain.RecordStore, blobs blob.Store) *Exporter {
	return &Exporter{store: store, blobs: blobs, nowFn: func() time.Time { return time.Now().UTC() }}
}

// SetNowFunc overrides the clock, for tests.
func (e *Exporter) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		e.nowFn = fn
	}
}

// Export snapshots the whole catalog into a new blob object and returns its
// metadata.
func (e *Exporter) Export(ctx context.Context) (blob.ObjectInfo, error) {
	recs, err := e.store.List(ctx)
	if err != nil {
		return blob.ObjectInfo{}, domain.StoreOperationError{Op: "list", Err: err}
	}
	now := e.nowFn()
	env := exportEnvelope{ExportedAt: now, Count: len(recs), Doors: recs}
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return blob.ObjectInfo{}, fmt.Errorf("encode export: %w", err)
	}
	key := exportKeyPrefix + "doors-" + now.Format("20060102T150405.000000000Z") + ".json"
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"count": fmt.Sprintf("%d", len(recs))},
	})
	if err != nil {
		return blob.ObjectInfo{}, fmt.Errorf("write export: %w", err)
	}
	return info, nil
}

// Fetch reads a previously written snapshot by key.
func (e *Exporter) Fetch(ctx context.Context, key string) (blob.ObjectInfo, []byte, error) {
	info, rc, err := e.blobs.Get(ctx, key)
	if err != nil {
		return blob.ObjectInfo{}, nil, err
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return blob.ObjectInfo{}, nil, err
	}
	return info, raw, nil
}

// ListExports returns the stored snapshots ordered by key, which for the
// timestamped naming scheme is chronological.
func (e *Exporter) ListExports(ctx context.Context) ([]blob.ObjectInfo, error) {
	return e.blobs.List(ctx, exportKeyPrefix)
}
