// Package conntab implements spec.md §3's Connection data model and §4.B's
// Connection Table, plus the ingest (§4.D) and writer (§4.G) state-machine
// logic that mutates a Connection in response to readiness events. Grounded
// on original_source/src/Server/Server.cpp's handle_client_read and
// handle_client_write, and on the descriptor-ownership style of
// scon/agent/server.go.
package conntab

import (
	"time"

	"github.com/coreserv/webserv/route"
	"github.com/coreserv/webserv/wslog"
)

var log = wslog.For("conntab")

// State is one of the six points in a Connection's lifecycle (spec.md §3).
type State int

const (
	ReadingRequest State = iota
	Processing
	WaitingForCGI
	WritingResponse
	Done
	Error
)

func (s State) String() string {
	switch s {
	case ReadingRequest:
		return "READING_REQUEST"
	case Processing:
		return "PROCESSING"
	case WaitingForCGI:
		return "WAITING_FOR_CGI"
	case WritingResponse:
		return "WRITING_RESPONSE"
	case Done:
		return "DONE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	readChunk        = 4096
	idleTimeout      = 30 * time.Second
	headerTerminator = "\r\n\r\n"
)

// Connection is the central per-client entity named in spec.md §3. It is
// touched only by the event-loop goroutine; no field needs synchronization.
type Connection struct {
	FD         int
	ListenPort int
	State      State

	RequestBuffer []byte

	HeaderParsed bool
	HeaderEnd    int // offset of the first body byte; -1 until known

	ContentLength int64
	Chunked       bool
	ChunkParsePos int
	DecodedBody   []byte

	ConfigResolved bool
	MaxBodySize    int64
	Resolved       route.Resolved

	ResponseBuffer []byte

	CGIPipeFD     int
	CGIChildPID   int
	cgiRegistered bool // authoritative "pipe currently held" flag (I1)

	LastActivity time.Time
}

// NewConnection builds a freshly accepted connection, per spec.md §4.B's
// "insertion on accept".
func NewConnection(fd, listenPort int) *Connection {
	return &Connection{
		FD:            fd,
		ListenPort:    listenPort,
		State:         ReadingRequest,
		HeaderEnd:     -1,
		ContentLength: -1,
		LastActivity:  time.Now(),
	}
}

// IsTerminal reports whether c has reached DONE or ERROR (spec.md I3): once
// true, the Table deletes c on the same loop iteration.
func (c *Connection) IsTerminal() bool {
	return c.State == Done || c.State == Error
}

// WantsWrite reports whether c should be polled for write-readiness
// (spec.md §4.C): a non-empty response buffer, or the WRITING_RESPONSE
// state itself (covers the instant the buffer is emptied but the
// transition to DONE hasn't been observed yet). A connection still in
// WAITING_FOR_CGI is never write-interested, even once the pipe has
// started filling ResponseBuffer: invariant I2 requires POLLOUT only
// after the pipe has closed, so the client socket isn't written to
// mid-script and torn down before the CGI output is complete.
func (c *Connection) WantsWrite() bool {
	if c.State == WaitingForCGI {
		return false
	}
	return len(c.ResponseBuffer) > 0 || c.State == WritingResponse
}

// HasCGIPipe reports whether c currently owns a registered CGI pipe
// descriptor (invariant I1: at most one at a time).
func (c *Connection) HasCGIPipe() bool {
	return c.cgiRegistered
}

// AttachCGI records a freshly launched CGI invocation's descriptors and
// moves c into WAITING_FOR_CGI (spec.md §4.F step 4).
func (c *Connection) AttachCGI(pipeFD, pid int) {
	c.CGIPipeFD = pipeFD
	c.CGIChildPID = pid
	c.cgiRegistered = true
	c.State = WaitingForCGI
}

// DetachCGI clears the pipe back-reference once the pipe has been closed
// (spec.md §4.F's EOF handling); the child pid is left for the reaper.
func (c *Connection) DetachCGI() {
	c.CGIPipeFD = 0
	c.cgiRegistered = false
}

// SynthesizeResponse loads body as the entire outbound buffer and moves c
// into WRITING_RESPONSE, used for every core-synthesized status (413, 405,
// 408, and the CGI fallback path).
func (c *Connection) SynthesizeResponse(body []byte) {
	c.ResponseBuffer = body
	c.State = WritingResponse
}

// touch records forward progress, resetting the idle-timeout clock
// (spec.md §3's last-activity field).
func (c *Connection) touch() {
	c.LastActivity = time.Now()
}

// IdleFor reports how long c has gone without forward progress.
func (c *Connection) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastActivity)
}
