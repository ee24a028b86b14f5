package config

import (
	"net"
	"strings"

	"jequi/internal/plugin"
)

// GetConfigForRequest implements spec.md §4.1's request-time lookup:
// host match (exact, port stripped, no wildcard) selects a HostConfig if
// present, then the longest path-prefix match within that scope's path map
// (or the top-level one) wins, falling back to the scope's default
// ConfigList when there is no path, no path map, or no match at all.
func (cm *ConfigMap) GetConfigForRequest(host string, path string) plugin.ConfigList {
	list := cm.Config
	pathMap := cm.Path

	if host != "" {
		if h := hostWithoutPort(host); h != "" {
			if hc, ok := cm.Host[h]; ok {
				list = hc.Config
				pathMap = hc.Path
			}
		}
	}

	if path == "" || len(pathMap) == 0 {
		return list
	}

	segs := segments(path)
	for {
		key := canonicalKey(segs)
		if match, ok := pathMap[key]; ok {
			return match
		}
		if len(segs) == 0 {
			return list
		}
		segs = segs[:len(segs)-1]
	}
}

func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSpace(host)
}
