package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gamezipserver/internal/gamezip/cgi"
	"gamezipserver/internal/gamezip/mimetype"
	"gamezipserver/internal/gamezip/security"
	pkgerrors "gamezipserver/pkg/errors"

	"github.com/gin-gonic/gin"
)

// handleFile is the catch-all serving route. It understands three historical
// URL conventions:
//
//	GET http://example.com/game.swf HTTP/1.1   (absolute-URI request line)
//	GET /http://example.com/game.swf           (path-prefixed absolute URL)
//	GET /game.swf  Host: example.com           (plain path + Host header)
//
// The archived hostname becomes the first segment of the lookup path so
// multiple captured sites coexist in one archive.
func (s *Server) handleFile(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		abortPlain(c, pkgerrors.NotFoundError("route"))
		return
	}

	host, relPath, query, err := parseLegacyURL(c.Request)
	if err != nil {
		abortPlain(c, err)
		return
	}

	if err := security.ValidateHostname(host); err != nil {
		abortPlain(c, err)
		return
	}
	if err := security.SanitizeURLPath(relPath); err != nil {
		abortPlain(c, err)
		return
	}

	// Legacy PHP runs from disk, not from archives.
	if s.executor != nil && strings.HasSuffix(strings.ToLower(relPath), ".php") {
		if script, ok := s.findScript(host, relPath); ok {
			s.serveCGI(c, script, host, relPath, query)
			return
		}
	}

	lookup := host + "/" + strings.TrimPrefix(relPath, "/")
	result, err := s.manager.FindFile(lookup)
	if err != nil {
		abortPlain(c, err)
		return
	}

	contentType := mimetype.ByExtension(result.Path)
	data := result.Data
	if mimetype.IsHTML(contentType) && s.injector.Enabled() {
		data = s.injector.Inject(data)
	}

	header := c.Writer.Header()
	header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cfg.CacheMaxAge.Seconds())))
	header.Set("X-Source", "gamezipserver:"+result.MountID)
	header.Set("Content-Length", fmt.Sprintf("%d", len(data)))
	c.Data(http.StatusOK, contentType, data)
}

// parseLegacyURL extracts the archived hostname and path. The query string is
// returned separately; archived files never carry one, but CGI scripts do.
func parseLegacyURL(r *http.Request) (host, path, query string, err error) {
	rawPath := r.URL.Path

	// Absolute-URI request line: net/http fills URL.Host.
	if r.URL.IsAbs() {
		return stripPort(r.URL.Host), ensureLeadingSlash(r.URL.Path), r.URL.RawQuery, nil
	}

	// Proxy-style prefix: /http://host/path
	trimmed := strings.TrimPrefix(rawPath, "/")
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		parsed, parseErr := url.Parse(trimmed)
		if parseErr != nil || parsed.Host == "" {
			return "", "", "", pkgerrors.BadRequest("malformed proxy-style URL")
		}
		query = parsed.RawQuery
		if query == "" {
			query = r.URL.RawQuery
		}
		return stripPort(parsed.Host), ensureLeadingSlash(parsed.Path), query, nil
	}

	// Plain path: the archived hostname rides in the Host header.
	return stripPort(r.Host), ensureLeadingSlash(rawPath), r.URL.RawQuery, nil
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}

func ensureLeadingSlash(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// findScript locates an on-disk PHP script for the request, trying the
// host-qualified location first.
func (s *Server) findScript(host, relPath string) (string, bool) {
	root := s.executor.DocumentRoot()
	candidates := []string{
		filepath.Join(root, host, filepath.FromSlash(strings.TrimPrefix(relPath, "/"))),
		filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(relPath, "/"))),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

func (s *Server) serveCGI(c *gin.Context, script, host, relPath, query string) {
	var body []byte
	if c.Request.Body != nil {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			if _, tooLarge := err.(*http.MaxBytesError); tooLarge {
				abortPlain(c, pkgerrors.Wrap(err, pkgerrors.PayloadTooLarge))
				return
			}
			abortPlain(c, pkgerrors.InternalError(err))
			return
		}
		body = data
	}

	req := cgi.Request{
		Method:     c.Request.Method,
		Host:       host,
		Path:       relPath,
		Query:      query,
		Headers:    c.Request.Header,
		Body:       body,
		RemoteAddr: c.ClientIP(),
	}

	resp, err := s.executor.Execute(c.Request.Context(), script, req)
	if err != nil {
		abortPlain(c, err)
		return
	}

	header := c.Writer.Header()
	contentType := resp.Headers["Content-Type"]
	for name, value := range resp.Headers {
		if skipCGIHeader(name) {
			continue
		}
		header.Set(name, value)
	}

	data := resp.Body
	if mimetype.IsHTML(contentType) && s.injector.Enabled() {
		data = s.injector.Inject(data)
	}
	c.Data(resp.StatusCode, contentType, data)
}

// skipCGIHeader reports whether a script-emitted header must not be
// forwarded. Content-Type travels through c.Data, Content-Length is
// recomputed after polyfill injection, and hop-by-hop headers belong to
// our connection with the client, not the script's.
func skipCGIHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Content-Type", "Content-Length", "Connection", "Transfer-Encoding", "Keep-Alive":
		return true
	}
	return false
}
