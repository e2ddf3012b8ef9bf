// Package route implements spec.md §4.E: virtual-host selection by
// listen-port + Host header, and longest-prefix route selection within the
// chosen host, with every route field inheriting from the server when not
// explicitly overridden.
package route

import (
	"github.com/armon/go-radix"
	"github.com/coreserv/webserv/conf"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coreserv/webserv/wslog"
)

var log = wslog.For("route")

// Resolved is a route after inheriting every unset field from its server,
// per spec.md §4.E's final paragraph.
type Resolved struct {
	Server *conf.ServerConfig
	Route  conf.RouteConfig
}

// vhost is one server config with its per-route radix index prebuilt at
// startup, since ServerConfig is immutable for the server's lifetime
// (spec.md §3).
type vhost struct {
	cfg   *conf.ServerConfig
	radix *radix.Tree
}

// Table resolves virtual hosts and routes. Its per-port index is built once
// from the parsed configuration and never mutated afterward; only the
// lookup caches fill as requests are resolved.
type Table struct {
	byPort       map[int][]*vhost
	vhostCache   *lru.Cache[vhostKey, *vhost]
	routeCache   *lru.Cache[routeKey, conf.RouteConfig]
	defaultVHost *vhost
}

type vhostKey struct {
	port int
	host string
}

type routeKey struct {
	vhost *vhost
	path  string
}

const cacheSize = 1024

// NewTable indexes every parsed ServerConfig for lookup. The first config
// seen for a given port is that port's fallback (spec.md §4.E).
func NewTable(configs []conf.ServerConfig) *Table {
	t := &Table{byPort: map[int][]*vhost{}}

	vcache, _ := lru.New[vhostKey, *vhost](cacheSize)
	rcache, _ := lru.New[routeKey, conf.RouteConfig](cacheSize)
	t.vhostCache = vcache
	t.routeCache = rcache

	for i := range configs {
		cfg := &configs[i]
		vh := &vhost{cfg: cfg, radix: buildRadix(cfg)}
		t.byPort[cfg.Port] = append(t.byPort[cfg.Port], vh)
	}

	// Hard-coded default for a port with no configured server at all,
	// which spec.md calls "impossible in a correctly initialized server"
	// but still requires a fallback for.
	def := newDefaultServerConfig()
	t.defaultVHost = &vhost{cfg: def, radix: buildRadix(def)}

	return t
}

func newDefaultServerConfig() *conf.ServerConfig {
	return &conf.ServerConfig{
		Port:        conf.DefaultPort,
		Root:        conf.DefaultRoot,
		Index:       conf.DefaultIndex,
		Autoindex:   true,
		Methods:     conf.DefaultMethods(),
		MaxBodySize: conf.DefaultMaxBodySize,
		ErrorPages:  map[int]string{},
	}
}

func buildRadix(cfg *conf.ServerConfig) *radix.Tree {
	t := radix.New()
	// Insert in declaration order so a later route with an identical
	// prefix overwrites the earlier one's leaf: spec.md §9's "later
	// wins" tie-break.
	for i := range cfg.Routes {
		t.Insert(cfg.Routes[i].Path, cfg.Routes[i])
	}
	return t
}

// ResolveHost picks the virtual host for a connection's ingress port and
// Host header (already stripped of any ":port" suffix by the caller).
func (t *Table) ResolveHost(port int, host string) *conf.ServerConfig {
	return t.resolveVHost(port, host).cfg
}

// resolveVHost is the cached vhost lookup shared by ResolveHost and
// ResolveRoute, so the per-request hot path exercises the same LRU that
// ResolveHost does.
func (t *Table) resolveVHost(port int, host string) *vhost {
	key := vhostKey{port: port, host: host}
	if vh, ok := t.vhostCache.Get(key); ok {
		return vh
	}

	vh := t.resolveHostUncached(port, host)
	t.vhostCache.Add(key, vh)
	return vh
}

func (t *Table) resolveHostUncached(port int, host string) *vhost {
	candidates := t.byPort[port]
	if len(candidates) == 0 {
		log.WithField("port", port).Warn("no server configured for port; using hard-coded default")
		return t.defaultVHost
	}

	fallback := candidates[0]
	if host == "" {
		return fallback
	}
	for _, vh := range candidates {
		if vh.cfg.ServerName == host {
			return vh
		}
	}
	return fallback
}

// ResolveRoute picks the longest-prefix route under the server identified
// by (port, host) for requestPath, then returns it with every unset field
// filled in from the server config.
func (t *Table) ResolveRoute(port int, host string, requestPath string) Resolved {
	vh := t.resolveVHost(port, host)
	key := routeKey{vhost: vh, path: requestPath}
	if r, ok := t.routeCache.Get(key); ok {
		return Resolved{Server: vh.cfg, Route: r}
	}

	route := resolveLongestPrefix(vh, requestPath)
	inherited := inherit(vh.cfg, route)
	t.routeCache.Add(key, inherited)
	return Resolved{Server: vh.cfg, Route: inherited}
}

func resolveLongestPrefix(vh *vhost, requestPath string) conf.RouteConfig {
	if vh.radix != nil {
		if _, v, ok := vh.radix.LongestPrefix(requestPath); ok {
			return v.(conf.RouteConfig)
		}
	}
	// No route matches: synthesize one rooted at "/" per spec.md §4.E.
	return conf.RouteConfig{Path: "/"}
}

func inherit(server *conf.ServerConfig, route conf.RouteConfig) conf.RouteConfig {
	out := route

	if !route.RootSet {
		out.Root = server.Root
	}
	if !route.IndexSet {
		out.Index = server.Index
	}
	if route.AutoindexSet {
		out.Autoindex = route.Autoindex
	} else {
		out.Autoindex = server.Autoindex
	}
	if !route.UploadDirSet {
		out.UploadDir = server.UploadDir
	}
	if !route.MethodsSet || len(route.Methods) == 0 {
		out.Methods = server.Methods
	}
	if !route.CGIExtSet || len(route.CGIExtensions) == 0 {
		out.CGIExtensions = server.CGIExtensions
	}
	if !route.MaxBodySizeSet {
		out.MaxBodySize = server.MaxBodySize
	}

	return out
}

// IsMethodAllowed reports whether method is in route's (already-inherited)
// method list.
func IsMethodAllowed(method string, route conf.RouteConfig) bool {
	for _, m := range route.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// IsCGIRequest reports whether requestPath's final extension is one of
// route's CGI extensions (spec.md §4.F).
func IsCGIRequest(requestPath string, route conf.RouteConfig) bool {
	ext := extensionOf(requestPath)
	if ext == "" {
		return false
	}
	for _, e := range route.CGIExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func extensionOf(p string) string {
	if q := indexByte(p, '?'); q >= 0 {
		p = p[:q]
	}
	dot := -1
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			break
		}
		if p[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return ""
	}
	return p[dot:]
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
