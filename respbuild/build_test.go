package respbuild

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coreserv/webserv/conf"
	"github.com/coreserv/webserv/httpmsg"
	"github.com/coreserv/webserv/route"
	"github.com/stretchr/testify/require"
)

func TestBuildStaticIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello"), 0o644))

	server := &conf.ServerConfig{Root: dir, Index: "index.html", ErrorPages: map[int]string{}}
	r := conf.RouteConfig{Root: dir, Index: "index.html", Methods: conf.DefaultMethods()}
	req := httpmsg.Parse([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))

	resp := Build(req, route.Resolved{Server: server, Route: r})
	s := string(resp)

	require.True(t, strings.HasPrefix(s, "HTTP/1.1 200 OK\r\n"))
	require.Contains(t, s, "Content-Type: text/html\r\n")
	require.Contains(t, s, "Content-Length: 5\r\n")
	require.True(t, strings.HasSuffix(s, "hello"))
}

func TestBuildNotFound(t *testing.T) {
	dir := t.TempDir()
	server := &conf.ServerConfig{Root: dir, Index: "index.html", ErrorPages: map[int]string{}}
	r := conf.RouteConfig{Root: dir, Index: "index.html", Methods: conf.DefaultMethods()}
	req := httpmsg.Parse([]byte("GET /missing.html HTTP/1.1\r\nHost: x\r\n\r\n"))

	resp := Build(req, route.Resolved{Server: server, Route: r})
	require.Contains(t, string(resp), "HTTP/1.1 404 Not Found")
}

func TestBuildAutoindexWhenNoIndexFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	server := &conf.ServerConfig{Root: dir, Index: "index.html", ErrorPages: map[int]string{}}
	r := conf.RouteConfig{Root: dir, Index: "index.html", Autoindex: true, Methods: conf.DefaultMethods()}
	req := httpmsg.Parse([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))

	resp := Build(req, route.Resolved{Server: server, Route: r})
	s := string(resp)
	require.Contains(t, s, "HTTP/1.1 200 OK")
	require.Contains(t, s, "a.txt")
	require.Contains(t, s, "b.txt")
}

func TestBuildDeleteSuccessAndFailure(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "doomed.txt")
	require.NoError(t, os.WriteFile(fname, []byte("x"), 0o644))

	server := &conf.ServerConfig{Root: dir, ErrorPages: map[int]string{}}
	r := conf.RouteConfig{Root: dir, Methods: conf.DefaultMethods()}

	req := httpmsg.Parse([]byte("DELETE /doomed.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	resp := Build(req, route.Resolved{Server: server, Route: r})
	require.Contains(t, string(resp), "HTTP/1.1 204 No Content")
	require.NoFileExists(t, fname)

	resp = Build(req, route.Resolved{Server: server, Route: r})
	require.Contains(t, string(resp), "HTTP/1.1 404 Not Found")
}

func TestBuildRedirect(t *testing.T) {
	server := &conf.ServerConfig{ErrorPages: map[int]string{}}
	r := conf.RouteConfig{RedirectCode: 301, RedirectTarget: "/new", Methods: conf.DefaultMethods()}
	req := httpmsg.Parse([]byte("GET /old HTTP/1.1\r\nHost: x\r\n\r\n"))

	resp := Build(req, route.Resolved{Server: server, Route: r})
	s := string(resp)
	require.Contains(t, s, "HTTP/1.1 301 Redirect")
	require.Contains(t, s, "Location: /new")
}

func TestBuildErrorUsesConfiguredPage(t *testing.T) {
	dir := t.TempDir()
	errPage := filepath.Join(dir, "404.html")
	require.NoError(t, os.WriteFile(errPage, []byte("<p>nope</p>"), 0o644))

	server := &conf.ServerConfig{ErrorPages: map[int]string{404: errPage}}
	resp := BuildError(404, "Not Found", server)
	s := string(resp)
	require.Contains(t, s, "HTTP/1.1 404 Not Found")
	require.Contains(t, s, "<p>nope</p>")
}

func TestBuildErrorFallsBackToTemplate(t *testing.T) {
	resp := BuildError(500, "Internal Server Error", &conf.ServerConfig{ErrorPages: map[int]string{}})
	s := string(resp)
	require.Contains(t, s, "HTTP/1.1 500 Internal Server Error")
	require.Contains(t, s, "<h1>500 Internal Server Error</h1>")
}

func TestBuildMethodNotAllowedFallsThroughToError(t *testing.T) {
	server := &conf.ServerConfig{ErrorPages: map[int]string{}}
	r := conf.RouteConfig{Methods: []string{"GET"}}
	req := httpmsg.Parse([]byte("PUT / HTTP/1.1\r\nHost: x\r\n\r\n"))
	resp := Build(req, route.Resolved{Server: server, Route: r})
	require.Contains(t, string(resp), "HTTP/1.1 405 Method Not Allowed")
}
