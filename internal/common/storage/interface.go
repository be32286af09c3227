package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound marks a missing object or bucket. Implementations
// translate their backend's not-found responses into this error so
// callers can test with errors.Is instead of parsing messages.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is what the archive fetcher needs from an object store:
// metadata first, then a streaming download. Kept small so S3-compatible
// backends are interchangeable.
type ObjectStorage interface {
	// StatObject returns metadata without downloading. The fetcher uses
	// it to enforce the archive size cap before pulling bytes.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)

	// GetObject opens a reader over the object body. The caller owns
	// closing it.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)
}

// ObjectStat is the subset of object metadata the fetcher inspects.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
