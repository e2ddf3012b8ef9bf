package conf

import (
	"fmt"
	"os"
	"strconv"
)

// Parse reads and parses a config file per spec.md §6's grammar:
// `server { ... }` blocks, optional nested `location <prefix> { ... }`
// blocks, `;`-terminated directives, `#` line comments.
func Parse(path string) ([]ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conf: read %s: %w", path, err)
	}

	tokens := tokenize(string(raw))

	var configs []ServerConfig
	i := 0
	for i < len(tokens) {
		if tokens[i] == "server" {
			i++
			cfg, next, err := parseServerBlock(tokens, i)
			if err != nil {
				return nil, err
			}
			configs = append(configs, cfg)
			i = next
		} else {
			i++
		}
	}

	if len(configs) == 0 {
		configs = append(configs, *newServerConfig())
	}
	return configs, nil
}

func expect(tokens []string, i int, want string) error {
	if i >= len(tokens) || tokens[i] != want {
		return fmt.Errorf("conf: expected %q at token %d", want, i)
	}
	return nil
}

func parseServerBlock(tokens []string, i int) (ServerConfig, int, error) {
	cfg := *newServerConfig()

	if err := expect(tokens, i, "{"); err != nil {
		return cfg, i, err
	}
	i++

	for i < len(tokens) && tokens[i] != "}" {
		key := tokens[i]
		i++

		switch key {
		case "listen":
			if i >= len(tokens) {
				return cfg, i, fmt.Errorf("conf: listen missing port")
			}
			port, err := strconv.Atoi(tokens[i])
			if err != nil {
				return cfg, i, fmt.Errorf("conf: bad listen port %q: %w", tokens[i], err)
			}
			cfg.Port = port
			i++
		case "server_name":
			cfg.ServerName = tokens[i]
			i++
		case "root":
			cfg.Root = tokens[i]
			i++
		case "index":
			cfg.Index = tokens[i]
			i++
		case "autoindex":
			cfg.Autoindex = tokens[i] == "on"
			i++
		case "upload_dir":
			cfg.UploadDir = tokens[i]
			i++
		case "methods":
			cfg.Methods = nil
			for i < len(tokens) && tokens[i] != ";" {
				cfg.Methods = append(cfg.Methods, tokens[i])
				i++
			}
		case "cgi_ext":
			cfg.CGIExtensions = nil
			for i < len(tokens) && tokens[i] != ";" {
				cfg.CGIExtensions = append(cfg.CGIExtensions, tokens[i])
				i++
			}
		case "client_max_body_size":
			n, err := strconv.ParseInt(tokens[i], 10, 64)
			if err != nil {
				return cfg, i, fmt.Errorf("conf: bad client_max_body_size %q: %w", tokens[i], err)
			}
			cfg.MaxBodySize = n
			i++
		case "error_page":
			code, err := strconv.Atoi(tokens[i])
			if err != nil {
				return cfg, i, fmt.Errorf("conf: bad error_page code %q: %w", tokens[i], err)
			}
			i++
			cfg.ErrorPages[code] = tokens[i]
			i++
		case "location":
			route, next, err := parseLocationBlock(tokens, i)
			if err != nil {
				return cfg, i, err
			}
			cfg.Routes = append(cfg.Routes, route)
			i = next
			continue
		default:
			// unknown directive: skip its value tokens up to ';'
		}

		if i < len(tokens) && tokens[i] == ";" {
			i++
		}
	}

	if i < len(tokens) && tokens[i] == "}" {
		i++
	}
	return cfg, i, nil
}

func parseLocationBlock(tokens []string, i int) (RouteConfig, int, error) {
	var route RouteConfig
	if i >= len(tokens) {
		return route, i, fmt.Errorf("conf: location missing path")
	}
	route.Path = tokens[i]
	i++

	if err := expect(tokens, i, "{"); err != nil {
		return route, i, fmt.Errorf("conf: location %s: %w", route.Path, err)
	}
	i++

	for i < len(tokens) && tokens[i] != "}" {
		key := tokens[i]
		i++

		switch key {
		case "root":
			route.Root = tokens[i]
			route.RootSet = true
			i++
		case "index":
			route.Index = tokens[i]
			route.IndexSet = true
			i++
		case "autoindex":
			route.Autoindex = tokens[i] == "on"
			route.AutoindexSet = true
			i++
		case "upload_dir":
			route.UploadDir = tokens[i]
			route.UploadDirSet = true
			i++
		case "methods":
			route.Methods = nil
			for i < len(tokens) && tokens[i] != ";" {
				route.Methods = append(route.Methods, tokens[i])
				i++
			}
			route.MethodsSet = true
		case "cgi_ext":
			route.CGIExtensions = nil
			for i < len(tokens) && tokens[i] != ";" {
				route.CGIExtensions = append(route.CGIExtensions, tokens[i])
				i++
			}
			route.CGIExtSet = true
		case "return":
			code, err := strconv.Atoi(tokens[i])
			if err != nil {
				return route, i, fmt.Errorf("conf: bad return code %q: %w", tokens[i], err)
			}
			route.RedirectCode = code
			i++
			route.RedirectTarget = tokens[i]
			i++
		case "client_max_body_size":
			n, err := strconv.ParseInt(tokens[i], 10, 64)
			if err != nil {
				return route, i, fmt.Errorf("conf: bad client_max_body_size %q: %w", tokens[i], err)
			}
			route.MaxBodySize = n
			route.MaxBodySizeSet = true
			i++
		default:
			// unknown directive: skip
		}

		if i < len(tokens) && tokens[i] == ";" {
			i++
		}
	}

	if i < len(tokens) && tokens[i] == "}" {
		i++
	}
	return route, i, nil
}
