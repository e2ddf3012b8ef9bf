package route

import (
	"testing"

	"github.com/coreserv/webserv/conf"
	"github.com/stretchr/testify/require"
)

func TestResolveHostFallsBackToFirst(t *testing.T) {
	configs := []conf.ServerConfig{
		{Port: 9100, ServerName: "a", Root: "./www-a", Methods: conf.DefaultMethods(), ErrorPages: map[int]string{}},
		{Port: 9100, ServerName: "b", Root: "./www-b", Methods: conf.DefaultMethods(), ErrorPages: map[int]string{}},
	}
	table := NewTable(configs)

	require.Equal(t, "a", table.ResolveHost(9100, "b_typo").ServerName)
	require.Equal(t, "b", table.ResolveHost(9100, "b").ServerName)
	require.Equal(t, "a", table.ResolveHost(9100, "").ServerName)
}

func TestResolveHostUnknownPortUsesHardDefault(t *testing.T) {
	table := NewTable([]conf.ServerConfig{{Port: 9100, ErrorPages: map[int]string{}}})
	cfg := table.ResolveHost(1234, "whatever")
	require.Equal(t, conf.DefaultRoot, cfg.Root)
}

func TestLongestPrefixRouteWins(t *testing.T) {
	cfg := conf.ServerConfig{
		Port:       9100,
		Root:       "./www",
		Methods:    conf.DefaultMethods(),
		ErrorPages: map[int]string{},
		Routes: []conf.RouteConfig{
			{Path: "/", RootSet: true, Root: "./root-www"},
			{Path: "/api", RootSet: true, Root: "./root-api"},
			{Path: "/api/v2", RootSet: true, Root: "./root-api-v2"},
		},
	}
	table := NewTable([]conf.ServerConfig{cfg})

	r := table.ResolveRoute(9100, "", "/api/v2/widgets")
	require.Equal(t, "./root-api-v2", r.Route.Root)

	r = table.ResolveRoute(9100, "", "/api/v1/widgets")
	require.Equal(t, "./root-api", r.Route.Root)

	r = table.ResolveRoute(9100, "", "/nope")
	require.Equal(t, "./root-www", r.Route.Root)
}

func TestShorterPrefixAddedLaterDoesNotChangeExistingMatch(t *testing.T) {
	cfg := conf.ServerConfig{
		Port:       9100,
		Root:       "./www",
		Methods:    conf.DefaultMethods(),
		ErrorPages: map[int]string{},
		Routes: []conf.RouteConfig{
			{Path: "/api/v2", RootSet: true, Root: "./v2"},
		},
	}
	table := NewTable([]conf.ServerConfig{cfg})
	before := table.ResolveRoute(9100, "", "/api/v2/x").Route.Root

	cfg.Routes = append([]conf.RouteConfig{{Path: "/api", RootSet: true, Root: "./api"}}, cfg.Routes...)
	table2 := NewTable([]conf.ServerConfig{cfg})
	after := table2.ResolveRoute(9100, "", "/api/v2/x").Route.Root

	require.Equal(t, before, after)
}

func TestRouteInheritsFromServerWhenUnset(t *testing.T) {
	cfg := conf.ServerConfig{
		Port:        9100,
		Root:        "./www",
		Index:       "index.html",
		Autoindex:   true,
		Methods:     conf.DefaultMethods(),
		MaxBodySize: 2048,
		ErrorPages:  map[int]string{},
		Routes: []conf.RouteConfig{
			{Path: "/up", UploadDirSet: true, UploadDir: "./up"},
		},
	}
	table := NewTable([]conf.ServerConfig{cfg})
	r := table.ResolveRoute(9100, "", "/up/file")

	require.Equal(t, "./www", r.Route.Root)
	require.Equal(t, "index.html", r.Route.Index)
	require.True(t, r.Route.Autoindex)
	require.EqualValues(t, 2048, r.Route.MaxBodySize)
	require.Equal(t, "./up", r.Route.UploadDir)
}

func TestIsCGIRequest(t *testing.T) {
	route := conf.RouteConfig{CGIExtensions: []string{".sh", ".py"}}
	require.True(t, IsCGIRequest("/cgi/echo.sh", route))
	require.True(t, IsCGIRequest("/cgi/echo.sh?x=1", route))
	require.False(t, IsCGIRequest("/cgi/echo.rb", route))
	require.False(t, IsCGIRequest("/noext", route))
}

func TestIsMethodAllowed(t *testing.T) {
	route := conf.RouteConfig{Methods: []string{"GET", "POST"}}
	require.True(t, IsMethodAllowed("GET", route))
	require.False(t, IsMethodAllowed("DELETE", route))
}
