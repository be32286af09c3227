package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"gamezipserver/internal/common/storage"
	pkgerrors "gamezipserver/pkg/errors"
)

type fakeStorage struct {
	objects  map[string][]byte
	getCalls int
}

func (s *fakeStorage) GetObject(_ context.Context, _, objectKey string) (io.ReadCloser, error) {
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", objectKey, storage.ErrObjectNotFound)
	}
	s.getCalls++
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) StatObject(_ context.Context, _, objectKey string) (storage.ObjectStat, error) {
	data, ok := s.objects[objectKey]
	if !ok {
		return storage.ObjectStat{}, fmt.Errorf("stat %s: %w", objectKey, storage.ErrObjectNotFound)
	}
	return storage.ObjectStat{SizeBytes: int64(len(data)), ContentType: "application/zip"}, nil
}

func TestFetchDownloadsArchive(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStorage{objects: map[string][]byte{"pinball.zip": []byte("zip-bytes")}}
	fetcher := NewFetcher(store, "games", dir, 0)

	path, err := fetcher.Fetch(t.Context(), "pinball")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if path != filepath.Join(dir, "pinball.zip") {
		t.Fatalf("unexpected path: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fetched file failed: %v", err)
	}
	if string(data) != "zip-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}

	// No stray temp files after a successful fetch.
	matches, _ := filepath.Glob(filepath.Join(dir, ".*tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestFetchReusesLocalCopy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pinball.zip"), []byte("local"), 0o644); err != nil {
		t.Fatalf("seed local file failed: %v", err)
	}
	store := &fakeStorage{objects: map[string][]byte{"pinball.zip": []byte("remote")}}
	fetcher := NewFetcher(store, "games", dir, 0)

	path, err := fetcher.Fetch(t.Context(), "pinball")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "local" {
		t.Fatalf("local copy was overwritten: %q", data)
	}
	if store.getCalls != 0 {
		t.Fatalf("expected no download, got %d", store.getCalls)
	}
}

func TestFetchObjectNotFound(t *testing.T) {
	fetcher := NewFetcher(&fakeStorage{objects: map[string][]byte{}}, "games", t.TempDir(), 0)

	_, err := fetcher.Fetch(t.Context(), "ghost")
	if err == nil {
		t.Fatalf("expected error")
	}
	if pkgerrors.GetCode(err) != pkgerrors.ObjectNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

type failingStorage struct {
	err error
}

func (s *failingStorage) GetObject(context.Context, string, string) (io.ReadCloser, error) {
	return nil, s.err
}

func (s *failingStorage) StatObject(context.Context, string, string) (storage.ObjectStat, error) {
	return storage.ObjectStat{}, s.err
}

func TestFetchClassifiesByTypedErrorOnly(t *testing.T) {
	// A backend failure whose message merely mentions "not found" is a
	// fetch failure; only storage.ErrObjectNotFound means the object is
	// absent.
	store := &failingStorage{err: errors.New("config not found on backend host")}
	fetcher := NewFetcher(store, "games", t.TempDir(), 0)

	_, err := fetcher.Fetch(t.Context(), "pinball")
	if pkgerrors.GetCode(err) != pkgerrors.ObjectFetchFailed {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestFetchSizeCap(t *testing.T) {
	store := &fakeStorage{objects: map[string][]byte{"big.zip": make([]byte, 1024)}}
	fetcher := NewFetcher(store, "games", t.TempDir(), 512)

	_, err := fetcher.Fetch(t.Context(), "big")
	if err == nil {
		t.Fatalf("expected error")
	}
	if pkgerrors.GetCode(err) != pkgerrors.PayloadTooLarge {
		t.Fatalf("unexpected error code: %v", err)
	}
	if store.getCalls != 0 {
		t.Fatalf("oversized object must not be downloaded")
	}
}

func TestFetchNoStorageConfigured(t *testing.T) {
	fetcher := NewFetcher(nil, "games", t.TempDir(), 0)
	_, err := fetcher.Fetch(t.Context(), "any")
	if pkgerrors.GetCode(err) != pkgerrors.StorageUnavailable {
		t.Fatalf("unexpected error: %v", err)
	}
}
