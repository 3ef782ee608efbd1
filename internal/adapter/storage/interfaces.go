package storage

import (
	"context"
	"errors"
)

//go:generate mockgen -source=interfaces.go -destination=../../mocks/storage_mocks.go -package=mocks

// ErrObjectNotFound reports a key with no object behind it.
var ErrObjectNotFound = errors.New("object not found")

// BlobStorage is the binary-object store. Objects are keyed by opaque ids;
// the mime type rides along as object metadata, not as a key extension.
type BlobStorage interface {
	// EnsureBucket idempotently creates the bucket. Called once at startup,
	// never as a constructor side effect.
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
}
