// Package listen implements spec.md §4.A: one non-blocking listening
// socket per distinct configured port, with a descriptor → port lookup so
// accepted connections can record their ingress port for virtual-host
// resolution.
package listen

import (
	"fmt"

	"github.com/coreserv/webserv/wslog"
	"golang.org/x/sys/unix"
)

const backlog = 128

var log = wslog.For("listen")

// Listener is one bound, listening, non-blocking stream socket.
type Listener struct {
	FD   int
	Port int
}

// Set owns every listener the server binds, keyed by descriptor.
type Set struct {
	byFD map[int]*Listener
}

// NewSet binds one listener per distinct port in ports. Ports that repeat
// (shared by multiple virtual hosts, per spec.md §4.A) are only bound once.
func NewSet(ports []int) (*Set, error) {
	s := &Set{byFD: map[int]*Listener{}}

	seen := map[int]bool{}
	for _, port := range ports {
		if seen[port] {
			continue
		}
		seen[port] = true

		l, err := bind(port)
		if err != nil {
			s.CloseAll()
			return nil, fmt.Errorf("listen: bind port %d: %w", port, err)
		}
		s.byFD[l.FD] = l
		log.WithFields(map[string]interface{}{"port": port, "fd": l.FD}).Info("listening")
	}

	return s, nil
}

func bind(port int) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Listener{FD: fd, Port: port}, nil
}

// PortOf returns the port a listener fd is bound to.
func (s *Set) PortOf(fd int) int {
	if l, ok := s.byFD[fd]; ok {
		return l.Port
	}
	return 0
}

// FDs returns every listener descriptor, for registering read-readiness.
func (s *Set) FDs() []int {
	fds := make([]int, 0, len(s.byFD))
	for fd := range s.byFD {
		fds = append(fds, fd)
	}
	return fds
}

// Accept accepts one pending connection on listenFD and sets it
// non-blocking. Returns (fd, port, ok).
func (s *Set) Accept(listenFD int) (int, int, bool) {
	connFD, _, err := unix.Accept(listenFD)
	if err != nil {
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			log.WithError(err).WithField("listenFD", listenFD).Warn("accept failed")
		}
		return 0, 0, false
	}

	if err := unix.SetNonblock(connFD, true); err != nil {
		log.WithError(err).Warn("failed to set accepted conn non-blocking")
		unix.Close(connFD)
		return 0, 0, false
	}

	return connFD, s.PortOf(listenFD), true
}

// CloseAll closes every listener descriptor, for shutdown (spec.md §5).
func (s *Set) CloseAll() {
	for fd := range s.byFD {
		unix.Close(fd)
	}
	s.byFD = map[int]*Listener{}
}
