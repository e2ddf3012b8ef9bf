package respbuild

import (
	"github.com/flosch/pongo2/v6"
)

// errorPageTemplate is the inline fallback rendered when the server's
// error-page map has no file for a given status code (spec.md §4.I).
var errorPageTemplate = pongo2.Must(pongo2.FromString(
	`<html><body><h1>{{ code }} {{ message }}</h1></body></html>`,
))

// autoindexTemplate renders a directory listing, grounded on
// original_source's Response::_build_autoindex.
var autoindexTemplate = pongo2.Must(pongo2.FromString(
	`<html><body><h1>Index of {{ request_path }}</h1><ul>` +
		`{% for entry in entries %}<li><a href="{{ request_path }}{{ entry }}">{{ entry }}</a></li>{% endfor %}` +
		`</ul></body></html>`,
))

func renderErrorPage(code int, message string) string {
	out, err := errorPageTemplate.Execute(pongo2.Context{
		"code":    code,
		"message": message,
	})
	if err != nil {
		// pongo2 only fails here on a template bug, never on input data;
		// fall back to a minimal body rather than drop the response.
		return "<html><body><h1>" + message + "</h1></body></html>"
	}
	return out
}

func renderAutoindex(requestPath string, entries []string) string {
	out, err := autoindexTemplate.Execute(pongo2.Context{
		"request_path": requestPath,
		"entries":      entries,
	})
	if err != nil {
		return "<html><body><h1>Index of " + requestPath + "</h1></body></html>"
	}
	return out
}
