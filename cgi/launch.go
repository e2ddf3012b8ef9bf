// Package cgi implements spec.md §4.F: launching a CGI/1.1 script with a
// pipe fan-in, using raw fork/exec rather than os/exec so the server's own
// best-effort WNOHANG reaper (spec.md §4.H) is the only thing that ever
// waits on these children. Grounded on original_source/src/CGIHandler and
// on scon/util/sysx.go's direct golang.org/x/sys/unix usage.
package cgi

import (
	"fmt"
	"os"
	"syscall"

	"github.com/coreserv/webserv/idgen"
	"github.com/coreserv/webserv/wslog"
	"golang.org/x/sys/unix"
)

var log = wslog.For("cgi")

// Invocation is the parent-side handle to a launched CGI script: the
// non-blocking read end of its output pipe, and its pid for bookkeeping
// (the server does not wait on this pid directly — spec.md §4.H's reaper
// is pid-agnostic).
type Invocation struct {
	PipeFD int
	Pid    int
	ID     string
}

// Launch forks scriptPath with env and a fresh pipe wired to its stdout,
// stdin pointed at /dev/null (spec.md's CGI request body is not piped to
// the child, per the open question in §9), and stderr inherited from the
// parent for diagnostics. On any fork/pipe failure it returns an error so
// the caller can fall back to the static-response pipeline, per spec.md §7.
func Launch(scriptPath string, env []string) (*Invocation, error) {
	id := idgen.Short()
	entry := log.WithFields(map[string]interface{}{"cgi": id, "script": scriptPath})

	// Raw unix.Pipe2 rather than os.Pipe: os.File carries a GC finalizer
	// that closes its fd on collection, which would race the bare int fd
	// this function hands back to the caller. Every other fd in this
	// package is a raw int for the same reason.
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		entry.WithError(err).Warn("pipe failed")
		return nil, fmt.Errorf("cgi: pipe: %w", err)
	}
	readFD, writeFD := fds[0], fds[1]

	if err := unix.SetNonblock(readFD, true); err != nil {
		unix.Close(readFD)
		unix.Close(writeFD)
		entry.WithError(err).Warn("failed to set pipe non-blocking")
		return nil, fmt.Errorf("cgi: set nonblock: %w", err)
	}

	devNullFD, err := unix.Open(os.DevNull, unix.O_RDONLY, 0)
	if err != nil {
		unix.Close(readFD)
		unix.Close(writeFD)
		return nil, fmt.Errorf("cgi: open %s: %w", os.DevNull, err)
	}
	defer unix.Close(devNullFD)

	attr := &syscall.ProcAttr{
		Env: env,
		Files: []uintptr{
			uintptr(devNullFD),
			uintptr(writeFD),
			os.Stderr.Fd(),
		},
	}

	pid, err := syscall.ForkExec(scriptPath, []string{scriptPath}, attr)
	// The write end is only needed in the child; close our copy either way.
	unix.Close(writeFD)
	if err != nil {
		unix.Close(readFD)
		entry.WithError(err).Warn("fork/exec failed")
		return nil, fmt.Errorf("cgi: fork/exec: %w", err)
	}

	entry.WithField("pid", pid).Debug("launched CGI child")
	return &Invocation{PipeFD: readFD, Pid: pid, ID: id}, nil
}
