package conntab

import (
	"golang.org/x/sys/unix"
)

// CGIReadResult tells the caller what ReadCGI did, so the event loop knows
// whether to keep the pipe registered or tear it down.
type CGIReadResult int

const (
	CGIReadPending CGIReadResult = iota
	CGIReadEOF
	CGIReadFailed
)

// ReadCGI services read-readiness on c's CGI pipe (spec.md §4.F's final
// paragraph): read up to 4096 bytes into the outbound buffer. On EOF or a
// real error the connection moves to WRITING_RESPONSE and the pipe is
// closed; the caller is responsible for dropping the pipe-fd → connection
// mapping, since that index lives in the connection table, not here.
func (c *Connection) ReadCGI() CGIReadResult {
	buf := make([]byte, readChunk)
	n, err := unix.Read(c.CGIPipeFD, buf)

	if n > 0 {
		c.ResponseBuffer = append(c.ResponseBuffer, buf[:n]...)
		c.touch()
	}

	if n == 0 || (n < 0 && err != unix.EAGAIN && err != unix.EWOULDBLOCK) {
		unix.Close(c.CGIPipeFD)
		c.DetachCGI()
		c.State = WritingResponse
		if n == 0 {
			return CGIReadEOF
		}
		return CGIReadFailed
	}

	return CGIReadPending
}
