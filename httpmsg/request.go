// Package httpmsg implements the external-collaborator boundary named in
// spec.md §4.I and §1: given a completed request's raw bytes, produce a
// Request the response builder and CGI launcher can query. It is a pure
// function of a byte buffer — it holds no connection state and performs no
// I/O.
package httpmsg

import (
	"strings"
)

// Request is parsed from a connection's request-buffer once the server has
// determined (via the in-core header/body walk in spec.md §4.D) that a full
// message — header region plus identity or dechunked body — is present.
type Request struct {
	Method  string
	Path    string // includes query string
	Version string
	headers map[string]string // lowercased keys
	Body    []byte
}

// Parse builds a Request from raw bytes laid out as
// "request-line CRLF header-lines CRLF CRLF body" (invariant I5: chunked
// bodies have already been spliced back into this shape by the ingest
// state machine before Parse is ever called).
func Parse(raw []byte) *Request {
	req := &Request{headers: map[string]string{}}

	headerEnd := indexHeaderEnd(raw)
	var headerPart []byte
	if headerEnd >= 0 {
		headerPart = raw[:headerEnd]
		req.Body = raw[headerEnd+4:]
	} else {
		headerPart = raw
	}

	lines := strings.Split(string(headerPart), "\r\n")
	if len(lines) > 0 {
		parseRequestLine(req, lines[0])
		for _, line := range lines[1:] {
			if line == "" {
				continue
			}
			name, value, ok := splitHeaderLine(line)
			if !ok {
				continue
			}
			req.headers[strings.ToLower(name)] = value
		}
	}

	return req
}

func indexHeaderEnd(raw []byte) int {
	return strings.Index(string(raw), "\r\n\r\n")
}

func parseRequestLine(req *Request, line string) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) >= 1 {
		req.Method = parts[0]
	}
	if len(parts) >= 2 {
		req.Path = parts[1]
	}
	if len(parts) >= 3 {
		req.Version = strings.TrimSuffix(parts[2], "\r")
	}
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	line = strings.TrimSuffix(line, "\r")
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	name = line[:idx]
	value = strings.TrimLeft(line[idx+1:], " ")
	return name, value, true
}

// Header performs a case-insensitive lookup, per spec.md §9's guidance for
// any header access outside the in-core Content-Length/Transfer-Encoding
// comparison (which stays case-sensitive, directly against the raw buffer,
// inside the connection state machine — see conntab.walkHeaders).
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// PathOnly strips the query string, if any.
func (r *Request) PathOnly() string {
	if idx := strings.IndexByte(r.Path, '?'); idx >= 0 {
		return r.Path[:idx]
	}
	return r.Path
}

// Query returns the text after the first '?', or "" if there is none.
func (r *Request) Query() string {
	if idx := strings.IndexByte(r.Path, '?'); idx >= 0 {
		return r.Path[idx+1:]
	}
	return ""
}

