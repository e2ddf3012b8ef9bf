package conntab

import (
	"time"

	"golang.org/x/sys/unix"
)

// Table is spec.md §4.B's connection table: descriptor → Connection, plus a
// non-owning CGI pipe-fd → Connection back-reference for event dispatch
// (spec.md §9's "index into the connection table, not a second owning
// reference").
type Table struct {
	byFD    map[int]*Connection
	byCGIFD map[int]*Connection
}

// NewTable returns an empty connection table.
func NewTable() *Table {
	return &Table{
		byFD:    map[int]*Connection{},
		byCGIFD: map[int]*Connection{},
	}
}

// Add registers a freshly accepted connection.
func (t *Table) Add(c *Connection) {
	t.byFD[c.FD] = c
}

// Get looks up a connection by its client-socket descriptor.
func (t *Table) Get(fd int) (*Connection, bool) {
	c, ok := t.byFD[fd]
	return c, ok
}

// All returns every live connection, for the timeout sweep (spec.md §4.H).
// The returned slice is a snapshot; mutating the table while iterating it
// is safe.
func (t *Table) All() []*Connection {
	out := make([]*Connection, 0, len(t.byFD))
	for _, c := range t.byFD {
		out = append(out, c)
	}
	return out
}

// RegisterCGIPipe records the non-owning pipe-fd → connection mapping once
// a CGI child has been launched for c (spec.md §4.F step 4).
func (t *Table) RegisterCGIPipe(pipeFD int, c *Connection) {
	t.byCGIFD[pipeFD] = c
}

// GetByCGIPipe looks up the connection owning a CGI pipe descriptor, for
// dispatching its read-readiness events.
func (t *Table) GetByCGIPipe(fd int) (*Connection, bool) {
	c, ok := t.byCGIFD[fd]
	return c, ok
}

// UnregisterCGIPipe drops the pipe-fd → connection mapping once the pipe
// has been closed (spec.md §4.F's EOF/error handling).
func (t *Table) UnregisterCGIPipe(pipeFD int) {
	delete(t.byCGIFD, pipeFD)
}

// Remove closes c's client descriptor and deletes it from the table. Called
// exactly once, on the same loop iteration that observes a terminal state
// (invariant I3).
func (t *Table) Remove(c *Connection) {
	if c.HasCGIPipe() {
		unix.Close(c.CGIPipeFD)
		t.UnregisterCGIPipe(c.CGIPipeFD)
		c.DetachCGI()
	}
	unix.Close(c.FD)
	delete(t.byFD, c.FD)
}

// SweepTimeouts converts any non-terminal, non-writing connection idle past
// 30 seconds into a 408 response (spec.md §4.H), returning those it
// touched so the caller can log or test against them.
func (t *Table) SweepTimeouts(now time.Time, synthesize func(*Connection)) []*Connection {
	var touched []*Connection
	for _, c := range t.byFD {
		if c.State == Done || c.State == Error || c.State == WritingResponse {
			continue
		}
		if c.IdleFor(now) >= idleTimeout {
			synthesize(c)
			touched = append(touched, c)
		}
	}
	return touched
}

// Len reports how many connections are currently tracked.
func (t *Table) Len() int {
	return len(t.byFD)
}
