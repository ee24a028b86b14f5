package config

import "strings"

// segments splits a rooted absolute path into its canonical sequence of
// non-empty components, per spec.md §3: "a path-prefix key is a rooted
// absolute path... stored as a canonical sequence of path segments."
func segments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// canonicalKey renders segs back into the key form of ConfigMap.Path and
// HostConfig.Path,
// e.g. ["app", "v1"] -> "/app/v1", [] -> "/".
func canonicalKey(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}
