package cgi

import (
	"net/http"
	"os"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Interpreter:  "php-cgi",
		DocumentRoot: "/srv/htdocs",
		ServerPort:   "8080",
	}
}

func testRequest() Request {
	return Request{
		Method:     "GET",
		Host:       "example.com",
		Path:       "/scripts/counter.php",
		Query:      "page=index",
		Headers:    http.Header{},
		RemoteAddr: "192.0.2.10",
	}
}

func TestBuildEnvCoreVariables(t *testing.T) {
	env := BuildEnv(testConfig(), "/srv/htdocs/scripts/counter.php", testRequest())

	want := map[string]string{
		"GATEWAY_INTERFACE": "CGI/1.1",
		"SERVER_PROTOCOL":   "HTTP/1.1",
		"REQUEST_METHOD":    "GET",
		"QUERY_STRING":      "page=index",
		"SCRIPT_FILENAME":   "/srv/htdocs/scripts/counter.php",
		"SCRIPT_NAME":       "/scripts/counter.php",
		"REQUEST_URI":       "/scripts/counter.php?page=index",
		"DOCUMENT_ROOT":     "/srv/htdocs",
		"SERVER_NAME":       "example.com",
		"SERVER_PORT":       "8080",
		"REMOTE_ADDR":       "192.0.2.10",
		"REDIRECT_STATUS":   "200",
	}
	for key, value := range want {
		if env[key] != value {
			t.Fatalf("env[%s] = %q, want %q", key, env[key], value)
		}
	}
}

func TestBuildEnvDoesNotInheritHostEnvironment(t *testing.T) {
	t.Setenv("SUPER_SECRET_TOKEN", "do-not-leak")

	env := BuildEnv(testConfig(), "/srv/htdocs/x.php", testRequest())
	if _, found := env["SUPER_SECRET_TOKEN"]; found {
		t.Fatalf("host environment leaked into cgi env")
	}
	for _, kv := range envSlice(env) {
		if strings.Contains(kv, "do-not-leak") {
			t.Fatalf("host secret leaked: %s", kv)
		}
	}
	// PATH from the host must not reach the interpreter either.
	if hostPath := os.Getenv("PATH"); hostPath != "" {
		if env["PATH"] == hostPath {
			t.Fatalf("host PATH leaked into cgi env")
		}
	}
}

func TestBuildEnvHeaderMapping(t *testing.T) {
	req := testRequest()
	req.Headers = http.Header{
		"User-Agent":      []string{"Mozilla/4.0"},
		"Accept-Language": []string{"en"},
		"Cookie":          []string{"session=abc"},
		"Content-Length":  []string{"999"},
		"Content-Type":    []string{"text/plain"},
	}

	env := BuildEnv(testConfig(), "/srv/htdocs/x.php", req)
	if env["HTTP_USER_AGENT"] != "Mozilla/4.0" {
		t.Fatalf("HTTP_USER_AGENT = %q", env["HTTP_USER_AGENT"])
	}
	if env["HTTP_ACCEPT_LANGUAGE"] != "en" {
		t.Fatalf("HTTP_ACCEPT_LANGUAGE = %q", env["HTTP_ACCEPT_LANGUAGE"])
	}
	if env["HTTP_COOKIE"] != "session=abc" {
		t.Fatalf("HTTP_COOKIE = %q", env["HTTP_COOKIE"])
	}
	// Content headers never appear in HTTP_ form.
	if _, found := env["HTTP_CONTENT_LENGTH"]; found {
		t.Fatalf("HTTP_CONTENT_LENGTH must not be set")
	}
	if _, found := env["HTTP_CONTENT_TYPE"]; found {
		t.Fatalf("HTTP_CONTENT_TYPE must not be set")
	}
	// Without a body there is no CONTENT_LENGTH.
	if _, found := env["CONTENT_LENGTH"]; found {
		t.Fatalf("CONTENT_LENGTH must not be set without a body")
	}
}

func TestBuildEnvWithBody(t *testing.T) {
	req := testRequest()
	req.Method = "POST"
	req.Body = []byte("name=highscore&value=42")
	req.Headers = http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}}

	env := BuildEnv(testConfig(), "/srv/htdocs/x.php", req)
	if env["CONTENT_LENGTH"] != "23" {
		t.Fatalf("CONTENT_LENGTH = %q", env["CONTENT_LENGTH"])
	}
	if env["CONTENT_TYPE"] != "application/x-www-form-urlencoded" {
		t.Fatalf("CONTENT_TYPE = %q", env["CONTENT_TYPE"])
	}
}

func TestInsideRoot(t *testing.T) {
	cases := []struct {
		path string
		root string
		want bool
	}{
		{"/srv/htdocs/a.php", "/srv/htdocs", true},
		{"/srv/htdocs", "/srv/htdocs", true},
		{"/srv/htdocs/sub/deep.php", "/srv/htdocs", true},
		{"/srv/other/a.php", "/srv/htdocs", false},
		{"/srv/htdocs-evil/a.php", "/srv/htdocs", false},
		{"/etc/passwd", "/srv/htdocs", false},
		{"/srv/htdocs/a.php", "", false},
	}
	for _, tc := range cases {
		if got := insideRoot(tc.path, tc.root); got != tc.want {
			t.Fatalf("insideRoot(%q, %q) = %v, want %v", tc.path, tc.root, got, tc.want)
		}
	}
}
