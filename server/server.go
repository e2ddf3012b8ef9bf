// Package server implements spec.md §4.C's readiness multiplexer and the
// overall event loop wiring listen.Set, conntab.Table, route.Table,
// respbuild, and cgi together. Grounded on
// original_source/src/Server/Server.cpp's run loop and on the direct
// unix.Poll usage in scon/util/sysx.PollFd.
package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/coreserv/webserv/cgi"
	"github.com/coreserv/webserv/conf"
	"github.com/coreserv/webserv/conntab"
	"github.com/coreserv/webserv/httpmsg"
	"github.com/coreserv/webserv/listen"
	"github.com/coreserv/webserv/respbuild"
	"github.com/coreserv/webserv/route"
	"github.com/coreserv/webserv/wslog"
	"golang.org/x/sys/unix"
)

var log = wslog.For("server")

// pollTimeoutMillis bounds the readiness wait so timeout sweeps and child
// reaping run even when the server is quiescent (spec.md §4.C).
const pollTimeoutMillis = 1000

// Server owns every descriptor the process holds: the listener set and the
// connection table. It is not safe for concurrent use — Run is meant to be
// called from a single goroutine, matching spec.md §5's single-threaded
// cooperative model.
type Server struct {
	listeners *listen.Set
	conns     *conntab.Table
	routes    *route.Table

	// shutdown is set from a signal-handling goroutine and read from the
	// loop goroutine every iteration; spec.md §9 calls for an atomic flag
	// over a bare bool precisely for this cross-goroutine read/write.
	shutdown atomic.Bool
}

// New builds a Server bound to every port named in configs.
func New(configs []conf.ServerConfig) (*Server, error) {
	ports := make([]int, 0, len(configs))
	for _, c := range configs {
		ports = append(ports, c.Port)
	}

	ls, err := listen.NewSet(ports)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	return &Server{
		listeners: ls,
		conns:     conntab.NewTable(),
		routes:    route.NewTable(configs),
	}, nil
}

// Shutdown requests that Run stop after its current batch (spec.md §5's
// global shutdown flag). Safe to call from a signal handler goroutine since
// it only sets a bool the loop polls once per iteration; there is no
// concurrent mutation of anything else the loop touches.
func (s *Server) Shutdown() {
	s.shutdown.Store(true)
}

// Run blocks, servicing readiness events until Shutdown is called. On
// return every listener and client descriptor has been closed.
func (s *Server) Run() {
	defer s.closeEverything()

	for !s.shutdown.Load() {
		fds, fdKinds := s.buildPollSet()
		if len(fds) == 0 {
			time.Sleep(pollTimeoutMillis * time.Millisecond)
			continue
		}

		n, err := unix.Poll(fds, pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.WithError(err).Error("poll failed, shutting down")
			return
		}

		if n > 0 {
			s.dispatch(fds, fdKinds)
		}

		conntab.ReapChildren()
		s.sweepTimeouts()
	}
}

type fdKind int

const (
	kindListener fdKind = iota
	kindClient
	kindCGIPipe
)

// buildPollSet assembles this iteration's poll array: listeners first,
// then connections, each polled for read always and for write when the
// connection wants it, and each followed directly by its CGI pipe if it
// holds one. Listeners and connections are taken from maps, so their
// order within the array is not registration order and is not defined.
func (s *Server) buildPollSet() ([]unix.PollFd, []fdKind) {
	var fds []unix.PollFd
	var kinds []fdKind

	for _, fd := range s.listeners.FDs() {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		kinds = append(kinds, kindListener)
	}

	for _, c := range s.conns.All() {
		if c.IsTerminal() {
			continue
		}
		var events int16 = unix.POLLIN
		if c.WantsWrite() {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(c.FD), Events: events})
		kinds = append(kinds, kindClient)

		if c.HasCGIPipe() {
			fds = append(fds, unix.PollFd{Fd: int32(c.CGIPipeFD), Events: unix.POLLIN})
			kinds = append(kinds, kindCGIPipe)
		}
	}

	return fds, kinds
}

func (s *Server) dispatch(fds []unix.PollFd, kinds []fdKind) {
	for i, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := int(pfd.Fd)

		switch kinds[i] {
		case kindListener:
			s.handleAccept(fd)
		case kindClient:
			s.handleClientEvent(fd, pfd.Revents)
		case kindCGIPipe:
			s.handleCGIPipeEvent(fd)
		}
	}
}

func (s *Server) handleAccept(listenFD int) {
	connFD, port, ok := s.listeners.Accept(listenFD)
	if !ok {
		return
	}
	conn := conntab.NewConnection(connFD, port)
	s.conns.Add(conn)
}

func (s *Server) handleClientEvent(fd int, revents int16) {
	c, ok := s.conns.Get(fd)
	if !ok {
		return
	}

	if revents&(unix.POLLIN) != 0 && c.State == conntab.ReadingRequest {
		c.Read(s.routes)
		if c.State == conntab.Processing {
			s.process(c)
		}
	}

	if revents&unix.POLLOUT != 0 && c.WantsWrite() {
		c.Write()
	}

	if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 && c.State == conntab.ReadingRequest {
		c.State = conntab.Error
	}

	if c.IsTerminal() {
		s.conns.Remove(c)
	}
}

func (s *Server) handleCGIPipeEvent(pipeFD int) {
	c, ok := s.conns.GetByCGIPipe(pipeFD)
	if !ok {
		return
	}

	res := c.ReadCGI()
	if res == conntab.CGIReadEOF || res == conntab.CGIReadFailed {
		// ReadCGI already closed the pipe and detached it from c; the
		// pipe-fd -> connection index lives in the table, not on
		// Connection, so dropping it is the caller's job (spec.md §4.F).
		s.conns.UnregisterCGIPipe(pipeFD)
	}

	if c.IsTerminal() {
		s.conns.Remove(c)
	}
}

// process runs spec.md §4.I: build the Request, decide CGI vs. upload vs.
// static response, and load the connection's outbound buffer accordingly.
func (s *Server) process(c *conntab.Connection) {
	req := httpmsg.Parse(c.RequestBuffer)
	resolved := c.Resolved

	if !route.IsMethodAllowed(req.Method, resolved.Route) {
		c.SynthesizeResponse(respbuild.BuildError(405, "Method Not Allowed", resolved.Server))
		return
	}

	if route.IsCGIRequest(req.PathOnly(), resolved.Route) {
		s.launchCGI(c, req, resolved)
		return
	}

	if req.Method == "POST" {
		s.handleUpload(c, req, resolved)
		return
	}

	c.SynthesizeResponse(respbuild.Build(req, resolved))
}

func (s *Server) launchCGI(c *conntab.Connection, req *httpmsg.Request, resolved route.Resolved) {
	scriptPath := filepath.Join(resolved.Route.Root, req.PathOnly())
	env := cgi.BuildEnv(req, resolved.Route, scriptPath)

	inv, err := cgi.Launch(scriptPath, env)
	if err != nil {
		log.WithError(err).Warn("cgi launch failed, falling back to static response")
		c.SynthesizeResponse(respbuild.Build(req, resolved))
		return
	}

	c.AttachCGI(inv.PipeFD, inv.Pid)
	s.conns.RegisterCGIPipe(inv.PipeFD, c)
}

func (s *Server) handleUpload(c *conntab.Connection, req *httpmsg.Request, resolved route.Resolved) {
	if resolved.Route.UploadDir == "" {
		c.SynthesizeResponse(respbuild.BuildError(403, "Forbidden", resolved.Server))
		return
	}

	name := "upload_" + strconv.Itoa(c.FD) + "_" + strconv.FormatInt(time.Now().Unix(), 10) + ".bin"
	path := filepath.Join(resolved.Route.UploadDir, name)

	if err := os.WriteFile(path, req.Body, 0o644); err != nil {
		log.WithError(err).WithField("path", path).Warn("upload write failed")
		c.SynthesizeResponse(respbuild.BuildError(500, "Internal Server Error", resolved.Server))
		return
	}

	c.SynthesizeResponse(respbuild.BuildUploadCreated())
}

func (s *Server) sweepTimeouts() {
	now := time.Now()
	touched := s.conns.SweepTimeouts(now, func(c *conntab.Connection) {
		c.SynthesizeResponse(respbuild.BuildSimpleStatus(408, "Request Timeout"))
	})
	for _, c := range touched {
		log.WithField("fd", c.FD).Debug("connection idle-timed-out")
	}
}

func (s *Server) closeEverything() {
	for _, c := range s.conns.All() {
		s.conns.Remove(c)
	}
	s.listeners.CloseAll()
}
