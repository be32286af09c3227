// Package polyfill rewrites served HTML to load compatibility shims that
// archived pages expect from long-gone browser plugins.
package polyfill

import (
	"bytes"
	"fmt"
	"strings"
)

// Injector inserts script tags into HTML documents.
type Injector struct {
	scripts []string
	tagBlob []byte
}

// NewInjector creates an injector for the given script URLs. A nil or empty
// list yields a pass-through injector.
func NewInjector(scriptURLs []string) *Injector {
	var b strings.Builder
	for _, src := range scriptURLs {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		fmt.Fprintf(&b, "<script src=%q></script>", src)
	}
	return &Injector{scripts: scriptURLs, tagBlob: []byte(b.String())}
}

// Enabled reports whether the injector has anything to inject.
func (i *Injector) Enabled() bool {
	return len(i.tagBlob) > 0
}

// Inject returns the document with the script tags inserted right after the
// opening <head> tag. Documents without a head tag get the tags prepended.
// The input slice is never modified.
func (i *Injector) Inject(doc []byte) []byte {
	if !i.Enabled() || len(doc) == 0 {
		return doc
	}

	insertAt := headInsertOffset(doc)
	out := make([]byte, 0, len(doc)+len(i.tagBlob))
	out = append(out, doc[:insertAt]...)
	out = append(out, i.tagBlob...)
	out = append(out, doc[insertAt:]...)
	return out
}

// headInsertOffset finds the position right after "<head...>",
// case-insensitive. Returns 0 when no head tag exists.
func headInsertOffset(doc []byte) int {
	lower := bytes.ToLower(doc)
	idx := bytes.Index(lower, []byte("<head"))
	if idx < 0 {
		return 0
	}
	end := bytes.IndexByte(lower[idx:], '>')
	if end < 0 {
		return 0
	}
	return idx + end + 1
}
