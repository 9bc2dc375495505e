// Package blob defines the object storage abstraction used for catalog
// exports. Semantics follow a minimal subset of S3 so the S3 adapter stays
// close to 1:1 while the filesystem adapter can emulate them.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default, dev)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// PutOptions carries optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"sizeBytes"`
	ContentType  string            `json:"contentType,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"lastModified"`
}

// ErrNotFound is returned when the requested key has no object.
var ErrNotFound = errors.New("blob: object not found")

// ErrExists is returned when Put targets a key that already holds an object.
var ErrExists = errors.New("blob: object already exists")

// Store is a create-once object store. Put must fail on an existing key;
// exports are immutable once written.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (ObjectInfo, io.ReadCloser, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes an object. Returns (false, nil) when the key is absent.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects whose key has the given prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Driver() Driver
}

// CloneMetadata copies a metadata map so stores never share mutable state
// with callers.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
