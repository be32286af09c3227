// Package archive presents mounted ZIP archives as one logical filesystem.
// Archived sites were packaged under different historical directory layouts,
// so lookups probe a fixed list of prefixes across every mount.
package archive

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"

	pkgerrors "gamezipserver/pkg/errors"
)

// Ordered lookup prefixes. First hit wins; keep this a flat list so new
// layouts are one line, not another branch.
var pathPrefixes = []func(string) string{
	func(p string) string { return "content/" + p },
	func(p string) string { return "htdocs/" + p },
	func(p string) string { return p },
	func(p string) string { return "Legacy/htdocs/" + p },
}

// MountedArchive is one open ZIP registered under a logical id.
type MountedArchive struct {
	ID         string
	SourcePath string
	MountedAt  time.Time

	reader *zip.ReadCloser
	// entry name (slash-form, no leading "./") -> file
	index map[string]*zip.File
}

// MountInfo is the externally visible description of a mount.
type MountInfo struct {
	ID        string    `json:"id"`
	ZipPath   string    `json:"zipPath"`
	MountTime time.Time `json:"mountTime"`
	FileCount int       `json:"fileCount"`
}

// FileResult is a successful lookup.
type FileResult struct {
	MountID string
	Path    string // entry name inside the archive that matched
	Data    []byte
}

// Manager owns the registry of mounted archives.
//
// Lookups run concurrently under a read lock; mount and unmount take the
// write lock, which serializes them per id as a side effect. Entry reads
// happen under the read lock so an unmount can never close a handle out from
// under an in-flight read.
type Manager struct {
	mu     sync.RWMutex
	mounts map[string]*MountedArchive
	order  []string // registration order, drives lookup precedence
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{mounts: make(map[string]*MountedArchive)}
}

// Mount opens zipPath and registers it under id. Mounting an id that is
// already mounted is a no-op success; the existing handle is kept.
func (m *Manager) Mount(id, zipPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mounts[id]; ok {
		return nil
	}

	if _, err := os.Stat(zipPath); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.ArchiveSourceMissing, "archive %s is not readable", zipPath)
	}

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.ArchiveOpenFailed, "open archive %s failed", zipPath)
	}

	index := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		index[normalizeEntryName(f.Name)] = f
	}

	m.mounts[id] = &MountedArchive{
		ID:         id,
		SourcePath: zipPath,
		MountedAt:  time.Now(),
		reader:     reader,
		index:      index,
	}
	m.order = append(m.order, id)
	return nil
}

// Unmount closes the archive and removes it from the registry. Returns false
// when id was not mounted; that is not an error.
func (m *Manager) Unmount(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	mounted, ok := m.mounts[id]
	if !ok {
		return false
	}
	_ = mounted.reader.Close()
	delete(m.mounts, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// IsMounted reports whether id has an active mount.
func (m *Manager) IsMounted(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.mounts[id]
	return ok
}

// Mounts lists active mounts in registration order.
func (m *Manager) Mounts() []MountInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]MountInfo, 0, len(m.order))
	for _, id := range m.order {
		mounted := m.mounts[id]
		infos = append(infos, MountInfo{
			ID:        mounted.ID,
			ZipPath:   mounted.SourcePath,
			MountTime: mounted.MountedAt,
			FileCount: len(mounted.index),
		})
	}
	return infos
}

// FindFile resolves relPath against every mount in registration order,
// probing each historical layout prefix in turn. The first hit wins.
func (m *Manager) FindFile(relPath string) (FileResult, error) {
	relPath = normalizeEntryName(relPath)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order {
		mounted := m.mounts[id]
		for _, prefix := range pathPrefixes {
			candidate := prefix(relPath)
			f, ok := mounted.index[candidate]
			if !ok {
				continue
			}
			data, err := readEntry(f)
			if err != nil {
				return FileResult{}, pkgerrors.Wrapf(err, pkgerrors.ArchiveReadFailed,
					"read %s from archive %s failed", candidate, id)
			}
			return FileResult{MountID: id, Path: candidate, Data: data}, nil
		}
	}

	return FileResult{}, pkgerrors.Newf(pkgerrors.ArchiveFileNotFound, "%s not found in any mounted archive", relPath)
}

// UnmountAll closes every handle. Used at shutdown.
func (m *Manager) UnmountAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mounted := range m.mounts {
		_ = mounted.reader.Close()
	}
	m.mounts = make(map[string]*MountedArchive)
	m.order = nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func normalizeEntryName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimPrefix(name, "./")
	return strings.TrimPrefix(name, "/")
}
