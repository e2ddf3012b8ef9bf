package cgi

import (
	"fmt"

	"github.com/coreserv/webserv/conf"
	"github.com/coreserv/webserv/httpmsg"
)

// BuildEnv assembles the CGI/1.1 environment per spec.md §4.F, grounded on
// original_source's CgiHandler::_init_env.
func BuildEnv(req *httpmsg.Request, route conf.RouteConfig, scriptFilename string) []string {
	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"REQUEST_METHOD=" + req.Method,
		"SCRIPT_FILENAME=" + scriptFilename,
		"SCRIPT_NAME=" + req.PathOnly(),
		"QUERY_STRING=" + req.Query(),
		"SERVER_PROTOCOL=HTTP/1.1",
		"REDIRECT_STATUS=200",
	}

	if v, ok := req.Header("Content-Length"); ok && v != "" {
		env = append(env, fmt.Sprintf("CONTENT_LENGTH=%s", v))
	}
	if v, ok := req.Header("Content-Type"); ok && v != "" {
		env = append(env, fmt.Sprintf("CONTENT_TYPE=%s", v))
	}

	return env
}
