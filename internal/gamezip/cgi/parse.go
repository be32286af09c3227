package cgi

import (
	"bytes"
	"strconv"
	"strings"
)

const defaultContentType = "text/html"

// ParseOutput converts the interpreter's raw stdout into a Response per the
// CGI/1.1 contract: a header block, a blank line, then the body. A "Status:"
// header sets the response code; duplicate header names keep the last
// occurrence. Output with no recognizable header block is treated as a bare
// body with a default content type, so malformed scripts still render.
func ParseOutput(raw []byte) Response {
	headerBlock, body, found := splitHeadersBody(raw)
	if !found {
		return bareBody(raw)
	}

	headers, status, ok := parseHeaderBlock(headerBlock)
	if !ok {
		return bareBody(raw)
	}
	if _, exists := headers["Content-Type"]; !exists {
		headers["Content-Type"] = defaultContentType
	}

	return Response{StatusCode: status, Headers: headers, Body: body}
}

func bareBody(raw []byte) Response {
	return Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": defaultContentType},
		Body:       raw,
	}
}

// splitHeadersBody cuts raw at the first blank line, accepting both CRLF and
// bare-LF conventions.
func splitHeadersBody(raw []byte) (header, body []byte, found bool) {
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))

	switch {
	case crlf >= 0 && (lf < 0 || crlf <= lf):
		return raw[:crlf], raw[crlf+4:], true
	case lf >= 0:
		return raw[:lf], raw[lf+2:], true
	default:
		return nil, nil, false
	}
}

// parseHeaderBlock parses "Name: Value" lines. Returns ok=false when any
// nonempty line is not a header, which sends the whole output down the
// bare-body path.
func parseHeaderBlock(block []byte) (headers map[string]string, status int, ok bool) {
	headers = make(map[string]string)
	status = 200

	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, split := strings.Cut(line, ":")
		if !split || name == "" || strings.ContainsAny(name, " \t") {
			return nil, 0, false
		}
		value = strings.TrimSpace(value)

		if strings.EqualFold(name, "Status") {
			if code := parseStatusValue(value); code > 0 {
				status = code
			}
			continue
		}
		headers[canonicalHeaderName(name)] = value
	}

	return headers, status, true
}

// parseStatusValue extracts the numeric code from "404 Not Found".
func parseStatusValue(value string) int {
	codePart, _, _ := strings.Cut(value, " ")
	code, err := strconv.Atoi(codePart)
	if err != nil || code < 100 || code > 599 {
		return 0
	}
	return code
}

func canonicalHeaderName(name string) string {
	parts := strings.Split(strings.ToLower(name), "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "-")
}
