// Package respbuild implements the response-builder half of spec.md §4.I's
// external-collaborator boundary: given a request, resolved server and
// resolved route, produce a complete HTTP response byte sequence. It never
// touches sockets or connection state — only the filesystem named by the
// resolved root.
package respbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coreserv/webserv/conf"
	"github.com/coreserv/webserv/httpmsg"
	"github.com/coreserv/webserv/route"
)

// Build renders the response for a non-CGI, non-upload request: GET (static
// file, directory index, or autoindex), DELETE, or a configured redirect.
// CGI dispatch, the POST-upload path, and core-synthesized statuses (405,
// 408, 413) are handled by the caller before Build is ever reached, except
// that 405 for a method Build itself doesn't support (anything but GET or
// DELETE) is built here too, matching original_source's Response
// constructor.
func Build(req *httpmsg.Request, resolved route.Resolved) []byte {
	r := resolved.Route

	if r.HasRedirect() {
		return buildRedirect(r)
	}

	switch req.Method {
	case "DELETE":
		return buildDelete(r, req.PathOnly())
	case "GET":
		return buildGet(resolved.Server, r, req.PathOnly())
	default:
		return BuildError(405, "Method Not Allowed", resolved.Server)
	}
}

func buildRedirect(r conf.RouteConfig) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d Redirect\r\n", r.RedirectCode)
	fmt.Fprintf(&b, "Location: %s\r\n", r.RedirectTarget)
	b.WriteString("Content-Type: text/plain\r\n")
	b.WriteString("Content-Length: 0\r\n")
	b.WriteString("Connection: close\r\n\r\n")
	return []byte(b.String())
}

func buildDelete(r conf.RouteConfig, requestPath string) []byte {
	fullPath := filepath.Join(r.Root, requestPath)
	if err := os.Remove(fullPath); err != nil {
		return buildErrorBody(404, "Not Found", nil)
	}
	var b strings.Builder
	b.WriteString("HTTP/1.1 204 No Content\r\n")
	b.WriteString("Content-Type: text/plain\r\n")
	b.WriteString("Content-Length: 0\r\n")
	b.WriteString("Connection: close\r\n\r\n")
	return []byte(b.String())
}

func buildGet(server *conf.ServerConfig, r conf.RouteConfig, requestPath string) []byte {
	if requestPath == "" {
		requestPath = "/"
	}
	fullPath := filepath.Join(r.Root, requestPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return buildErrorBody(404, "Not Found", server)
	}

	if info.IsDir() {
		if !strings.HasSuffix(requestPath, "/") {
			requestPath += "/"
		}
		indexPath := filepath.Join(fullPath, r.Index)
		if body, err := os.ReadFile(indexPath); err == nil {
			return assembleOK(body, detectContentType(indexPath))
		}
		if r.Autoindex {
			return buildAutoindexResponse(fullPath, requestPath, server)
		}
		return buildErrorBody(403, "Forbidden", server)
	}

	body, err := os.ReadFile(fullPath)
	if err != nil {
		return buildErrorBody(404, "Not Found", server)
	}
	return assembleOK(body, detectContentType(fullPath))
}

func buildAutoindexResponse(fullPath, requestPath string, server *conf.ServerConfig) []byte {
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return buildErrorBody(404, "Not Found", server)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	body := []byte(renderAutoindex(requestPath, names))
	return assembleOK(body, "text/html")
}

func assembleOK(body []byte, contentType string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: close\r\n\r\n")
	return append([]byte(b.String()), body...)
}

// BuildError builds a complete error-page response for code/message,
// consulting server's error-page map (if server is non-nil) and falling
// back to the inline pongo2 template otherwise.
func BuildError(code int, message string, server *conf.ServerConfig) []byte {
	return buildErrorBody(code, message, server)
}

func buildErrorBody(code int, message string, server *conf.ServerConfig) []byte {
	body, contentType := tryLoadConfiguredErrorPage(code, server)
	if body == nil {
		body = []byte(renderErrorPage(code, message))
		contentType = "text/html"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", code, message)
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: close\r\n\r\n")
	return append([]byte(b.String()), body...)
}

func tryLoadConfiguredErrorPage(code int, server *conf.ServerConfig) ([]byte, string) {
	if server == nil || server.ErrorPages == nil {
		return nil, ""
	}
	path, ok := server.ErrorPages[code]
	if !ok {
		return nil, ""
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, ""
	}
	return body, detectContentType(path)
}

// BuildUploadCreated builds the fixed 201 response for a successful POST
// upload (spec.md §4.I). It carries no body, so it needs neither the
// filesystem nor the error-page machinery above.
func BuildUploadCreated() []byte {
	return []byte("HTTP/1.1 201 Created\r\nContent-Type: text/plain\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
}

// BuildSimpleStatus builds a bodyless response for the fixed core-level
// statuses (408, 413) that don't use config-driven error pages,
// e.g. ones synthesized before route resolution has completed.
func BuildSimpleStatus(code int, message string) []byte {
	return []byte(fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Type: text/plain\r\nContent-Length: 0\r\nConnection: close\r\n\r\n",
		code, message,
	))
}
