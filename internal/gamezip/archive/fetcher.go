package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gamezipserver/internal/common/storage"
	pkgerrors "gamezipserver/pkg/errors"
	"gamezipserver/pkg/utils/logger"

	"go.uber.org/zap"
)

// Fetcher downloads archives from object storage into the games directory so
// they can be mounted like any locally provisioned zip.
type Fetcher struct {
	storage  storage.ObjectStorage
	bucket   string
	gamesDir string
	maxBytes int64
}

// NewFetcher creates a fetcher writing into gamesDir. maxBytes caps the
// download size; zero means unlimited.
func NewFetcher(storageClient storage.ObjectStorage, bucket, gamesDir string, maxBytes int64) *Fetcher {
	return &Fetcher{storage: storageClient, bucket: bucket, gamesDir: gamesDir, maxBytes: maxBytes}
}

// Fetch downloads "<id>.zip" from the bucket and returns the local path. An
// archive that already exists locally is reused without a download. The
// download goes through a temp file and a rename so a crashed fetch never
// leaves a half-written zip behind.
func (f *Fetcher) Fetch(ctx context.Context, id string) (string, error) {
	if f.storage == nil {
		return "", pkgerrors.New(pkgerrors.StorageUnavailable)
	}

	objectKey := id + ".zip"
	localPath := filepath.Join(f.gamesDir, objectKey)
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	stat, err := f.storage.StatObject(ctx, f.bucket, objectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", pkgerrors.Wrapf(err, pkgerrors.ObjectNotFound, "archive %s not found in bucket %s", objectKey, f.bucket)
		}
		return "", pkgerrors.Wrapf(err, pkgerrors.ObjectFetchFailed, "stat archive %s failed", objectKey)
	}
	if f.maxBytes > 0 && stat.SizeBytes > f.maxBytes {
		return "", pkgerrors.Newf(pkgerrors.PayloadTooLarge, "archive %s is %d bytes, limit is %d", objectKey, stat.SizeBytes, f.maxBytes)
	}

	obj, err := f.storage.GetObject(ctx, f.bucket, objectKey)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.ObjectFetchFailed, "fetch archive %s failed", objectKey)
	}
	defer func() { _ = obj.Close() }()

	if err := os.MkdirAll(f.gamesDir, 0o755); err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.ObjectFetchFailed)
	}

	tmp, err := os.CreateTemp(f.gamesDir, fmt.Sprintf(".%s-*.tmp", id))
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.ObjectFetchFailed)
	}
	tmpPath := tmp.Name()
	written, err := io.Copy(tmp, obj)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrapf(err, pkgerrors.ObjectFetchFailed, "download archive %s failed", objectKey)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, pkgerrors.ObjectFetchFailed)
	}

	logger.Info(ctx, "archive fetched from remote storage",
		zap.String("id", id),
		zap.String("bucket", f.bucket),
		zap.Int64("bytes", written),
	)
	return localPath, nil
}
