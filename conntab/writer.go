package conntab

import (
	"golang.org/x/sys/unix"
)

// WriteResult tells the caller what Write did this call.
type WriteResult int

const (
	WritePending WriteResult = iota
	WriteDrained
	WriteFailed
)

// Write services write-readiness on c's client socket (spec.md §4.G): a
// single send attempt, tolerant of a partial accept. It never loops trying
// to drain the whole buffer in one call — the kernel's own readiness
// notification drives further attempts.
func (c *Connection) Write() WriteResult {
	if len(c.ResponseBuffer) == 0 {
		c.State = Done
		return WriteDrained
	}

	n, err := unix.Write(c.FD, c.ResponseBuffer)
	if n < 0 {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return WritePending
		}
		c.State = Error
		return WriteFailed
	}

	c.ResponseBuffer = c.ResponseBuffer[n:]
	c.touch()

	if len(c.ResponseBuffer) == 0 {
		c.State = Done
		return WriteDrained
	}
	return WritePending
}
