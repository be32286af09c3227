// Package mimetype maps file extensions to content types for archived web
// content. Legacy plugin formats (Flash, Shockwave, Unity) predate the
// platform mime database, so they are pinned here explicitly.
package mimetype

import (
	"mime"
	"path/filepath"
	"strings"
)

const defaultType = "application/octet-stream"

var legacyTypes = map[string]string{
	".swf":     "application/x-shockwave-flash",
	".spl":     "application/futuresplash",
	".dcr":     "application/x-director",
	".dir":     "application/x-director",
	".dxr":     "application/x-director",
	".unity3d": "application/vnd.unity",
	".jar":     "application/java-archive",
	".class":   "application/java-vm",
	".wrl":     "model/vrml",
	".x3d":     "model/x3d+xml",
	".php":     "text/html",
	".htm":     "text/html",
	".html":    "text/html",
	".xml":     "text/xml",
	".ico":     "image/x-icon",
	".mid":     "audio/midi",
	".midi":    "audio/midi",
}

// ByExtension returns the content type for a file path based on its
// extension. Unknown extensions fall back to application/octet-stream.
func ByExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return defaultType
	}
	if ct, ok := legacyTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return defaultType
}

// IsHTML reports whether the content type is served as HTML.
func IsHTML(contentType string) bool {
	return strings.HasPrefix(contentType, "text/html")
}
