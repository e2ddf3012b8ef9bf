package server

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coreserv/webserv/conf"
	"github.com/stretchr/testify/require"
)

func waitForResponseLine(t *testing.T, conn net.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestServeStaticGet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello"), 0o644))

	configs := []conf.ServerConfig{{
		Port:        18734,
		ServerName:  "x",
		Root:        dir,
		Index:       "index.html",
		Methods:     conf.DefaultMethods(),
		MaxBodySize: 1 << 20,
		ErrorPages:  map[int]string{},
	}}

	srv, err := New(configs)
	require.NoError(t, err)
	go srv.Run()
	defer srv.Shutdown()

	conn, err := net.Dial("tcp", "127.0.0.1:18734")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	line := waitForResponseLine(t, conn)
	require.True(t, strings.HasPrefix(line, "HTTP/1.1 200 OK"))
}

func TestServeMethodNotAllowed(t *testing.T) {
	dir := t.TempDir()
	configs := []conf.ServerConfig{{
		Port:        18735,
		ServerName:  "x",
		Root:        dir,
		Index:       "index.html",
		Methods:     []string{"GET"},
		MaxBodySize: 1 << 20,
		ErrorPages:  map[int]string{},
	}}

	srv, err := New(configs)
	require.NoError(t, err)
	go srv.Run()
	defer srv.Shutdown()

	conn, err := net.Dial("tcp", "127.0.0.1:18735")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("PUT / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	line := waitForResponseLine(t, conn)
	require.True(t, strings.HasPrefix(line, "HTTP/1.1 405"))
}

func TestServeChunkedUpload(t *testing.T) {
	dir := t.TempDir()
	uploadDir := t.TempDir()
	configs := []conf.ServerConfig{{
		Port:        18736,
		ServerName:  "x",
		Root:        dir,
		Index:       "index.html",
		UploadDir:   uploadDir,
		Methods:     conf.DefaultMethods(),
		MaxBodySize: 1 << 20,
		ErrorPages:  map[int]string{},
	}}

	srv, err := New(configs)
	require.NoError(t, err)
	go srv.Run()
	defer srv.Shutdown()

	conn, err := net.Dial("tcp", "127.0.0.1:18736")
	require.NoError(t, err)
	defer conn.Close()

	req := "POST /up HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)

	line := waitForResponseLine(t, conn)
	require.True(t, strings.HasPrefix(line, "HTTP/1.1 201 Created"))

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "upload_"))

	body, err := os.ReadFile(filepath.Join(uploadDir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}
