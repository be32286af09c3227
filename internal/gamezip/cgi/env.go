package cgi

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Request carries the inbound HTTP request data a script needs. Immutable
// once constructed.
type Request struct {
	Method     string
	Host       string
	Path       string
	Query      string
	Headers    http.Header
	Body       []byte
	RemoteAddr string
}

// Response is the structured result of one executor invocation.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Config controls interpreter execution.
type Config struct {
	// Interpreter is the full command line for the CGI binary, e.g.
	// "php-cgi" or "php-cgi -d display_errors=0". Split with shell rules.
	Interpreter string `yaml:"interpreter"`

	DocumentRoot string `yaml:"documentRoot"`
	CgiBinPath   string `yaml:"cgiBin"`

	ServerName string `yaml:"serverName"`
	ServerPort string `yaml:"serverPort"`

	Timeout         time.Duration `yaml:"timeout"`
	MaxResponseSize int64         `yaml:"maxResponseSize"`
	StderrMaxBytes  int64         `yaml:"stderrMaxBytes"`
}

// BuildEnv produces the complete CGI/1.1 environment for one invocation.
//
// The host process environment is deliberately not inherited: whatever
// secrets this process holds must never be visible to the interpreter. Only
// the keys built here reach the subprocess.
func BuildEnv(cfg Config, scriptPath string, req Request) map[string]string {
	serverName := req.Host
	if serverName == "" {
		serverName = cfg.ServerName
	}
	serverPort := cfg.ServerPort
	if serverPort == "" {
		serverPort = "80"
	}

	env := map[string]string{
		"GATEWAY_INTERFACE": "CGI/1.1",
		"SERVER_PROTOCOL":   "HTTP/1.1",
		"SERVER_SOFTWARE":   "gamezipserver",
		"REQUEST_METHOD":    req.Method,
		"QUERY_STRING":      req.Query,
		"SCRIPT_FILENAME":   scriptPath,
		"SCRIPT_NAME":       req.Path,
		"REQUEST_URI":       requestURI(req),
		"DOCUMENT_ROOT":     cfg.DocumentRoot,
		"SERVER_NAME":       serverName,
		"SERVER_PORT":       serverPort,
		"REMOTE_ADDR":       req.RemoteAddr,
		// php-cgi refuses to run without this when force-cgi-redirect is
		// compiled in.
		"REDIRECT_STATUS": "200",
	}

	for name, values := range req.Headers {
		if len(values) == 0 {
			continue
		}
		key := "HTTP_" + strings.ReplaceAll(strings.ToUpper(name), "-", "_")
		if key == "HTTP_CONTENT_LENGTH" || key == "HTTP_CONTENT_TYPE" {
			continue
		}
		env[key] = values[len(values)-1]
	}

	if len(req.Body) > 0 {
		env["CONTENT_LENGTH"] = fmt.Sprintf("%d", len(req.Body))
		if ct := req.Headers.Get("Content-Type"); ct != "" {
			env["CONTENT_TYPE"] = ct
		} else {
			env["CONTENT_TYPE"] = "application/x-www-form-urlencoded"
		}
	}

	return env
}

func requestURI(req Request) string {
	if req.Query == "" {
		return req.Path
	}
	return req.Path + "?" + req.Query
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// insideRoot reports whether abs path p lives under root (itself absolute).
func insideRoot(p, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
