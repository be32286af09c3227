// Package security validates externally supplied identifiers before they
// reach the archive registry or a spawned interpreter. Every id, hostname,
// and URL path coming off the wire passes through here first.
package security

import (
	"regexp"
	"strings"

	pkgerrors "gamezipserver/pkg/errors"
)

const (
	maxGameIDLength   = 255
	maxHostnameLength = 253
)

// Game id: letters, digits, underscore, hyphen only.
var gameIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Hostname labels: alnum, hyphen, underscore, separated by dots.
var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9_]([A-Za-z0-9_-]*[A-Za-z0-9_])?(\.[A-Za-z0-9_]([A-Za-z0-9_-]*[A-Za-z0-9_])?)*$`)

// ValidateGameID checks a mount/game identifier.
func ValidateGameID(id string) error {
	if id == "" || len(id) > maxGameIDLength {
		return pkgerrors.New(pkgerrors.InvalidGameID)
	}
	if !gameIDPattern.MatchString(id) {
		return pkgerrors.New(pkgerrors.InvalidGameID).WithDetail("id", id)
	}
	return nil
}

// ValidateHostname checks an archived hostname extracted from a request URL.
func ValidateHostname(host string) error {
	if host == "" || len(host) > maxHostnameLength {
		return pkgerrors.New(pkgerrors.InvalidHostname)
	}
	if strings.HasPrefix(host, "-") || strings.HasPrefix(host, ".") ||
		strings.HasSuffix(host, "-") || strings.HasSuffix(host, ".") {
		return pkgerrors.New(pkgerrors.InvalidHostname).WithDetail("host", host)
	}
	if !hostnamePattern.MatchString(host) {
		return pkgerrors.New(pkgerrors.InvalidHostname).WithDetail("host", host)
	}
	return nil
}

// SanitizeURLPath rejects paths carrying NUL bytes, backslashes, or
// URL-encoded traversal sequences. The decoded form is checked separately by
// the archive layer; this gate catches what URL decoding would hide.
func SanitizeURLPath(path string) error {
	if strings.ContainsRune(path, 0) {
		return pkgerrors.New(pkgerrors.InvalidURLPath).WithDetail("reason", "nul byte")
	}
	if strings.Contains(path, `\`) {
		return pkgerrors.New(pkgerrors.InvalidURLPath).WithDetail("reason", "backslash")
	}
	lower := strings.ToLower(path)
	if strings.Contains(lower, "%2e%2e%2f") || strings.Contains(lower, "%2e%2e%5c") ||
		strings.Contains(lower, "%2e%2e/") || strings.Contains(lower, "..%2f") {
		return pkgerrors.New(pkgerrors.InvalidURLPath).WithDetail("reason", "encoded traversal")
	}
	if strings.Contains(path, "..") {
		return pkgerrors.New(pkgerrors.InvalidURLPath).WithDetail("reason", "traversal")
	}
	return nil
}
