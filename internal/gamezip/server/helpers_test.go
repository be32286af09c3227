package server_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"

	"gamezipserver/internal/gamezip/archive"
	"gamezipserver/internal/gamezip/cgi"
	"gamezipserver/internal/gamezip/polyfill"
	"gamezipserver/internal/gamezip/server"
)

type serverFixture struct {
	gamesDir string
	manager  *archive.Manager
	router   http.Handler
}

type fixtureOptions struct {
	executor *cgi.Executor
	fetcher  *archive.Fetcher
	injector *polyfill.Injector
	cacheAge time.Duration
	maxBody  int64
}

func newServerFixture(t *testing.T, opts fixtureOptions) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gamesDir := t.TempDir()
	manager := archive.NewManager()
	t.Cleanup(manager.UnmountAll)

	cacheAge := opts.cacheAge
	if cacheAge == 0 {
		cacheAge = 24 * time.Hour
	}
	srv, err := server.New(server.Config{
		ServiceName:  "gamezipserver-test",
		GamesDir:     gamesDir,
		CacheMaxAge:  cacheAge,
		MaxBodyBytes: opts.maxBody,
	}, manager, opts.executor, opts.fetcher, nil, opts.injector)
	if err != nil {
		t.Fatalf("new server failed: %v", err)
	}

	return &serverFixture{
		gamesDir: gamesDir,
		manager:  manager,
		router:   srv.Router(),
	}
}

func (f *serverFixture) writeZip(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(f.gamesDir, name)
	zf, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip failed: %v", err)
	}
	w := zip.NewWriter(zf)
	for entryName, content := range entries {
		entry, err := w.Create(entryName)
		if err != nil {
			t.Fatalf("create entry failed: %v", err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("write entry failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer failed: %v", err)
	}
	if err := zf.Close(); err != nil {
		t.Fatalf("close zip file failed: %v", err)
	}
	return path
}

func (f *serverFixture) do(t *testing.T, method, target, host string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if host != "" {
		req.Host = host
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) mount(t *testing.T, id, zipPath string) {
	t.Helper()
	body := []byte(`{"zipPath":"` + zipPath + `"}`)
	rec := f.do(t, http.MethodPost, "/mount/"+id, "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("mount %s failed: %d %s", id, rec.Code, rec.Body.String())
	}
}
