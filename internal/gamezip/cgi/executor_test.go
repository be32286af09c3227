//go:build linux

package cgi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgerrors "gamezipserver/pkg/errors"
)

// writeScript drops an executable shell script into dir. The scripts stand in
// for the real interpreter binary; the executor only cares about the CGI
// output contract.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	// The executor passes no PATH to the child, so the scripts set their own.
	prologue := "#!/bin/sh\nPATH=/bin:/usr/bin:/usr/local/bin\nexport PATH\n"
	if err := os.WriteFile(path, []byte(prologue+body), 0o755); err != nil {
		t.Fatalf("write script failed: %v", err)
	}
	return path
}

func newTestExecutor(t *testing.T, interpreter, docRoot string, cfg Config) *Executor {
	t.Helper()
	cfg.Interpreter = interpreter
	cfg.DocumentRoot = docRoot
	exec, err := NewExecutor(cfg)
	if err != nil {
		t.Fatalf("new executor failed: %v", err)
	}
	return exec
}

func TestExecuteParsesScriptOutput(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeScript(t, dir, "fake-cgi",
		`printf 'Content-Type: text/html\r\nX-Powered-By: test\r\n\r\n<html>%s</html>' "$QUERY_STRING"`)
	script := writeScript(t, dir, "page.php", "")
	exec := newTestExecutor(t, interpreter, dir, Config{Timeout: 5 * time.Second})

	req := Request{Method: "GET", Host: "example.com", Path: "/page.php", Query: "v=1"}
	resp, err := exec.Execute(t.Context(), script, req)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Headers["X-Powered-By"] != "test" {
		t.Fatalf("missing script header: %v", resp.Headers)
	}
	if string(resp.Body) != "<html>v=1</html>" {
		t.Fatalf("body = %q", resp.Body)
	}
}

func TestExecuteStatusHeader(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeScript(t, dir, "fake-cgi",
		`printf 'Status: 404 Not Found\r\nContent-Type: text/html\r\n\r\nmissing'`)
	script := writeScript(t, dir, "gone.php", "")
	exec := newTestExecutor(t, interpreter, dir, Config{Timeout: 5 * time.Second})

	resp, err := exec.Execute(t.Context(), script, Request{Method: "GET", Path: "/gone.php"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestExecutePassesBodyOnStdin(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeScript(t, dir, "fake-cgi",
		`printf 'Content-Type: text/plain\r\n\r\n'; cat`)
	script := writeScript(t, dir, "echo.php", "")
	exec := newTestExecutor(t, interpreter, dir, Config{Timeout: 5 * time.Second})

	req := Request{Method: "POST", Path: "/echo.php", Body: []byte("name=highscore")}
	resp, err := exec.Execute(t.Context(), script, req)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if string(resp.Body) != "name=highscore" {
		t.Fatalf("body = %q", resp.Body)
	}
}

func TestExecuteTimeout(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeScript(t, dir, "fake-cgi",
		`printf 'Content-Type: text/html\r\n\r\npartial'; sleep 30`)
	script := writeScript(t, dir, "slow.php", "")
	exec := newTestExecutor(t, interpreter, dir, Config{Timeout: 200 * time.Millisecond})

	start := time.Now()
	_, err := exec.Execute(t.Context(), script, Request{Method: "GET", Path: "/slow.php"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if pkgerrors.GetCode(err) != pkgerrors.CgiTimeout {
		t.Fatalf("unexpected error code: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
}

func TestExecuteOutputLimit(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeScript(t, dir, "fake-cgi",
		`printf 'Content-Type: text/html\r\n\r\n'; dd if=/dev/zero bs=1024 count=64 2>/dev/null`)
	script := writeScript(t, dir, "huge.php", "")
	exec := newTestExecutor(t, interpreter, dir, Config{
		Timeout:         5 * time.Second,
		MaxResponseSize: 4 * 1024,
	})

	_, err := exec.Execute(t.Context(), script, Request{Method: "GET", Path: "/huge.php"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if pkgerrors.GetCode(err) != pkgerrors.CgiResponseTooLarge {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestExecuteNonzeroExitWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeScript(t, dir, "fake-cgi",
		`echo "fatal: parse error" >&2; exit 255`)
	script := writeScript(t, dir, "broken.php", "")
	exec := newTestExecutor(t, interpreter, dir, Config{Timeout: 5 * time.Second})

	_, err := exec.Execute(t.Context(), script, Request{Method: "GET", Path: "/broken.php"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if pkgerrors.GetCode(err) != pkgerrors.CgiExitError {
		t.Fatalf("unexpected error code: %v", err)
	}
	if !strings.Contains(err.Error(), "broken.php") {
		t.Fatalf("error does not name the script: %v", err)
	}
}

func TestExecuteNonzeroExitWithParseableOutput(t *testing.T) {
	// PHP exits nonzero on some fatals after printing a usable error page;
	// the page is served anyway.
	dir := t.TempDir()
	interpreter := writeScript(t, dir, "fake-cgi",
		`printf 'Status: 500 Internal Server Error\r\nContent-Type: text/html\r\n\r\nFatal error'; exit 255`)
	script := writeScript(t, dir, "fatal.php", "")
	exec := newTestExecutor(t, interpreter, dir, Config{Timeout: 5 * time.Second})

	resp, err := exec.Execute(t.Context(), script, Request{Method: "GET", Path: "/fatal.php"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != "Fatal error" {
		t.Fatalf("body = %q", resp.Body)
	}
}

func TestExecuteRejectsScriptOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeScript(t, dir, "fake-cgi", "true")
	outside := writeScript(t, t.TempDir(), "evil.php", "")
	exec := newTestExecutor(t, interpreter, dir, Config{Timeout: 5 * time.Second})

	_, err := exec.Execute(t.Context(), outside, Request{Method: "GET", Path: "/evil.php"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if pkgerrors.GetCode(err) != pkgerrors.ScriptOutsideRoot {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestExecuteAllowsCgiBinScripts(t *testing.T) {
	docRoot := t.TempDir()
	cgiBin := t.TempDir()
	interpreter := writeScript(t, docRoot, "fake-cgi",
		`printf 'Content-Type: text/html\r\n\r\nok'`)
	script := writeScript(t, cgiBin, "tool.php", "")
	exec := newTestExecutor(t, interpreter, docRoot, Config{
		Timeout:    5 * time.Second,
		CgiBinPath: cgiBin,
	})

	resp, err := exec.Execute(t.Context(), script, Request{Method: "GET", Path: "/tool.php"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("body = %q", resp.Body)
	}
}
