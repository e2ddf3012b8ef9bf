package cgi

import (
	"testing"

	"github.com/coreserv/webserv/conf"
	"github.com/coreserv/webserv/httpmsg"
	"github.com/stretchr/testify/require"
)

func TestBuildEnvBasics(t *testing.T) {
	req := httpmsg.Parse([]byte("GET /cgi/echo.sh?x=1 HTTP/1.1\r\nHost: x\r\n\r\n"))
	route := conf.RouteConfig{Root: "/var/www"}

	env := BuildEnv(req, route, "/var/www/cgi/echo.sh")

	require.Contains(t, env, "GATEWAY_INTERFACE=CGI/1.1")
	require.Contains(t, env, "REQUEST_METHOD=GET")
	require.Contains(t, env, "SCRIPT_FILENAME=/var/www/cgi/echo.sh")
	require.Contains(t, env, "SCRIPT_NAME=/cgi/echo.sh")
	require.Contains(t, env, "QUERY_STRING=x=1")
	require.Contains(t, env, "SERVER_PROTOCOL=HTTP/1.1")
	require.Contains(t, env, "REDIRECT_STATUS=200")
}

func TestBuildEnvOmitsAbsentContentHeaders(t *testing.T) {
	req := httpmsg.Parse([]byte("GET /cgi/echo.sh HTTP/1.1\r\nHost: x\r\n\r\n"))
	env := BuildEnv(req, conf.RouteConfig{}, "/var/www/cgi/echo.sh")

	for _, e := range env {
		require.NotContains(t, e, "CONTENT_LENGTH=")
		require.NotContains(t, e, "CONTENT_TYPE=")
	}
}

func TestBuildEnvIncludesContentHeadersWhenPresent(t *testing.T) {
	req := httpmsg.Parse([]byte(
		"POST /cgi/upload.sh HTTP/1.1\r\nHost: x\r\nContent-Length: 12\r\nContent-Type: text/plain\r\n\r\nhello world!",
	))
	env := BuildEnv(req, conf.RouteConfig{}, "/var/www/cgi/upload.sh")

	require.Contains(t, env, "CONTENT_LENGTH=12")
	require.Contains(t, env, "CONTENT_TYPE=text/plain")
}
