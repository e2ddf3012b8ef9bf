// Package idgen mints short correlation ids for CGI invocations so a
// single lifecycle can be grepped out of interleaved
// event-loop log output.
package idgen

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a new lexicographically-sortable id. Safe for concurrent use,
// though the server itself only ever calls this from the single event-loop
// thread.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Short returns the low 8 characters of a fresh id, enough to disambiguate
// connections in one server run without cluttering log lines.
func Short() string {
	id := New()
	return id[len(id)-8:]
}
