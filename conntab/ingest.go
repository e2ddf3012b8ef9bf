package conntab

import (
	"strconv"
	"strings"

	"github.com/coreserv/webserv/respbuild"
	"github.com/coreserv/webserv/route"
	"golang.org/x/sys/unix"
)

// ReadResult tells the caller what Read did, since a completed request and
// a synthesized error response both leave the connection in a state the
// event loop needs to react to differently (stop reading vs. keep reading).
type ReadResult int

const (
	ReadPending ReadResult = iota
	ReadRequestComplete
	ReadConnectionClosed
)

// Read services read-readiness on c's client socket (spec.md §4.D). It
// performs at most one 4096-byte recv, then drives however much of the
// header/body state machine that single read unlocks.
func (c *Connection) Read(rt *route.Table) ReadResult {
	buf := make([]byte, readChunk)
	n, err := unix.Read(c.FD, buf)
	if n == 0 {
		c.State = Done
		return ReadConnectionClosed
	}
	if n < 0 {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return ReadPending
		}
		c.State = Error
		return ReadConnectionClosed
	}

	c.RequestBuffer = append(c.RequestBuffer, buf[:n]...)
	c.touch()

	if !c.HeaderParsed {
		if !c.tryParseHeaders(rt) {
			return ReadPending
		}
		if c.State == WritingResponse {
			// 413 synthesized during header parsing (oversized Content-Length).
			return ReadRequestComplete
		}
	}

	return c.advanceBody()
}

// tryParseHeaders looks for the header terminator and, once found, resolves
// config/route and extracts Content-Length / Transfer-Encoding (spec.md
// §4.D steps 1-4). Returns false if the terminator hasn't arrived yet.
func (c *Connection) tryParseHeaders(rt *route.Table) bool {
	idx := indexOf(c.RequestBuffer, headerTerminator)
	if idx < 0 {
		return false
	}

	c.HeaderEnd = idx + len(headerTerminator)
	c.HeaderParsed = true

	c.resolveConfig(rt)

	contentLength, chunked := walkHeaders(c.RequestBuffer[:idx])
	c.ContentLength = contentLength
	c.Chunked = chunked

	if contentLength > 0 && contentLength > c.MaxBodySize {
		c.SynthesizeResponse(respbuild.BuildSimpleStatus(413, "Payload Too Large"))
	}

	return true
}

// resolveConfig performs §4.E's virtual-host and route resolution from
// whatever is known once headers are complete, then freezes max-body-size
// onto the connection (spec.md §3's config-resolved flag).
func (c *Connection) resolveConfig(rt *route.Table) {
	req := parseRequestLineAndHost(c.RequestBuffer[:c.HeaderEnd])
	resolved := rt.ResolveRoute(c.ListenPort, req.host, req.path)
	c.Resolved = resolved
	c.MaxBodySize = resolved.Route.MaxBodySize
	c.ConfigResolved = true
}

type requestLineAndHost struct {
	path string
	host string
}

// parseRequestLineAndHost extracts just enough from the raw header bytes to
// resolve config: the request path and a case-insensitive Host lookup. This
// duplicates a sliver of httpmsg.Parse deliberately — full Request
// construction happens once the body is also complete (spec.md §4.I).
func parseRequestLineAndHost(headerBytes []byte) requestLineAndHost {
	lines := strings.Split(string(headerBytes), "\r\n")
	var out requestLineAndHost
	if len(lines) > 0 {
		parts := strings.SplitN(lines[0], " ", 3)
		if len(parts) >= 2 {
			out.path = pathOnly(parts[1])
		}
	}
	for _, line := range lines[1:] {
		name, value, ok := splitHeaderLine(line)
		if ok && strings.EqualFold(name, "Host") {
			out.host = hostWithoutPort(value)
			break
		}
	}
	return out
}

func pathOnly(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

func hostWithoutPort(h string) string {
	if i := strings.IndexByte(h, ':'); i >= 0 {
		return h[:i]
	}
	return h
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	line = strings.TrimSuffix(line, "\r")
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], strings.TrimLeft(line[idx+1:], " "), true
}

// walkHeaders extracts Content-Length and the chunked flag from the header
// region, matching header names case-sensitively per spec.md §4.D and §9's
// open-question decision (only Request.Header, used after this point, is
// case-insensitive).
func walkHeaders(headerBytes []byte) (contentLength int64, chunked bool) {
	contentLength = -1
	lines := strings.Split(string(headerBytes), "\r\n")
	for _, line := range lines[1:] { // skip the request line
		line = strings.TrimSuffix(line, "\r")
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		name := line[:idx]
		value := strings.TrimLeft(line[idx+1:], " ")

		switch name {
		case "Content-Length":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				contentLength = n
			}
		case "Transfer-Encoding":
			if strings.Contains(value, "chunked") {
				chunked = true
			}
		}
	}
	return contentLength, chunked
}

// advanceBody runs the body-accumulation state machine (spec.md §4.D) on
// whatever bytes are currently in the request buffer, possibly across
// several calls as more data arrives.
func (c *Connection) advanceBody() ReadResult {
	switch {
	case c.Chunked:
		return c.advanceChunked()
	case c.ContentLength > 0:
		need := c.HeaderEnd + int(c.ContentLength)
		if len(c.RequestBuffer) >= need {
			c.State = Processing
			return ReadRequestComplete
		}
		return ReadPending
	default:
		// No body expected: headers parsed, no Content-Length, not chunked.
		c.State = Processing
		return ReadRequestComplete
	}
}

// advanceChunked implements spec.md §4.D's chunked-body iteration. It walks
// as many complete chunks as are currently buffered, stopping to await more
// bytes when a chunk is only partially present.
func (c *Connection) advanceChunked() ReadResult {
	for {
		if c.ChunkParsePos == 0 {
			c.ChunkParsePos = c.HeaderEnd
		}

		lineEnd := indexOf(c.RequestBuffer[c.ChunkParsePos:], "\r\n")
		if lineEnd < 0 {
			return ReadPending
		}
		sizeLine := string(c.RequestBuffer[c.ChunkParsePos : c.ChunkParsePos+lineEnd])
		if semi := strings.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseUint(strings.TrimSpace(sizeLine), 16, 32)
		if err != nil {
			// Malformed hex size terminates the body (spec.md §4.D edge case).
			size = 0
		}

		dataStart := c.ChunkParsePos + lineEnd + 2
		if size == 0 {
			c.spliceDecodedBody()
			c.State = Processing
			return ReadRequestComplete
		}

		needed := dataStart + int(size) + 2
		if len(c.RequestBuffer) < needed {
			return ReadPending
		}

		c.DecodedBody = append(c.DecodedBody, c.RequestBuffer[dataStart:dataStart+int(size)]...)
		c.ChunkParsePos = needed

		if int64(len(c.DecodedBody)) > c.MaxBodySize {
			c.SynthesizeResponse(respbuild.BuildSimpleStatus(413, "Payload Too Large"))
			return ReadRequestComplete
		}
	}
}

// spliceDecodedBody implements invariant I5: once dechunking completes, the
// request buffer is rewritten as header bytes followed by the decoded body
// so the downstream parser sees a standard message.
func (c *Connection) spliceDecodedBody() {
	header := c.RequestBuffer[:c.HeaderEnd]
	rebuilt := make([]byte, 0, len(header)+len(c.DecodedBody))
	rebuilt = append(rebuilt, header...)
	rebuilt = append(rebuilt, c.DecodedBody...)
	c.RequestBuffer = rebuilt
}

func indexOf(haystack []byte, needle string) int {
	n := len(needle)
	if n == 0 || len(haystack) < n {
		return -1
	}
	for i := 0; i+n <= len(haystack); i++ {
		if string(haystack[i:i+n]) == needle {
			return i
		}
	}
	return -1
}
