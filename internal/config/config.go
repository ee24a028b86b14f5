// Package config implements the hierarchical configuration resolver:
// parsing the YAML document into per-(host, path-prefix) scopes, running
// the plugin loader over each to build a ConfigList, and composing the
// result into a ConfigMap, grounded on jequi/src/config.rs's load_config
// plus the ConfigMap/HostConfig types in jequi/src/lib.rs, realized the way
// air.Serve decodes its own config file (YAML via gopkg.in/yaml.v3,
// per-field via mapstructure) in air.go/config.go.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jequi/internal/plugin"
)

// HostConfig is the resolved per-host scope: its own default ConfigList plus
// an optional path-prefix map, mirroring jequi/src/lib.rs's HostConfig.
type HostConfig struct {
	Config plugin.ConfigList
	Path   map[string]plugin.ConfigList
}

// ConfigMap is the fully resolved, request-time routing table. It is
// immutable once built; reloads replace it atomically by pointer swap
// (spec.md §5).
type ConfigMap struct {
	Config plugin.ConfigList
	Host   map[string]*HostConfig
	Path   map[string]plugin.ConfigList
}

// rawDoc is the shape a YAML scope document decodes into prior to plugin
// loading: a generic map, inspected for the reserved "host"/"path" keys.
type rawDoc = map[string]interface{}

// Load reads and parses the YAML configuration document at filename and
// builds a fully resolved ConfigMap. Load is fatal-on-error by contract
// (spec.md §7): callers at process bootstrap should treat a non-nil error
// as reason to abort with a diagnostic naming filename.
func Load(filename string) (*ConfigMap, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("jequi: reading config %q: %w", filename, err)
	}

	var doc rawDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("jequi: parsing config %q: %w", filename, err)
	}

	return build(doc)
}

// build implements spec.md §4.1's construction algorithm over an
// already-parsed document tree.
func build(doc rawDoc) (*ConfigMap, error) {
	hostRaw, _ := doc["host"].(rawDoc)
	pathRaw, _ := doc["path"].(rawDoc)

	topScope := scopeWithout(doc, "host", "path")
	topList, err := plugin.Build(topScope)
	if err != nil {
		return nil, fmt.Errorf("jequi: building top-level scope: %w", err)
	}

	cm := &ConfigMap{Config: topList}

	if len(pathRaw) > 0 {
		cm.Path, err = buildPathMap(pathRaw)
		if err != nil {
			return nil, err
		}
	}

	if len(hostRaw) > 0 {
		cm.Host = map[string]*HostConfig{}
		for name, v := range hostRaw {
			hostScope, _ := v.(rawDoc)
			hc, err := buildHostConfig(name, hostScope)
			if err != nil {
				return nil, fmt.Errorf("jequi: building host %q: %w", name, err)
			}
			cm.Host[name] = hc
		}
	}

	return cm, nil
}

func buildHostConfig(name string, raw rawDoc) (*HostConfig, error) {
	pathRaw, _ := raw["path"].(rawDoc)
	scope := scopeWithout(raw, "path")
	scope["config_host"] = name

	list, err := plugin.Build(scope)
	if err != nil {
		return nil, err
	}

	hc := &HostConfig{Config: list}
	if len(pathRaw) > 0 {
		hc.Path, err = buildPathMap(pathRaw)
		if err != nil {
			return nil, err
		}
	}
	return hc, nil
}

// buildPathMap builds a path-prefix map. Per spec.md §4.1, each scope is
// parsed standalone (no merging of parent keys); a synthetic config_path key
// is added so plugins may branch on it. A path scope may itself nest a
// further "path" map (spec.md §3), which is flattened into this same map
// keyed by the concatenation of prefixes.
func buildPathMap(raw rawDoc) (map[string]plugin.ConfigList, error) {
	out := map[string]plugin.ConfigList{}
	for prefix, v := range raw {
		scope, _ := v.(rawDoc)
		if err := addPathScope(out, prefix, scope); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func addPathScope(out map[string]plugin.ConfigList, prefix string, raw rawDoc) error {
	nestedRaw, _ := raw["path"].(rawDoc)
	scope := scopeWithout(raw, "path")
	scope["config_path"] = prefix

	list, err := plugin.Build(scope)
	if err != nil {
		return fmt.Errorf("jequi: building path %q: %w", prefix, err)
	}
	out[canonicalKey(segments(prefix))] = list

	for nestedPrefix, v := range nestedRaw {
		nestedScope, _ := v.(rawDoc)
		combined := joinPrefix(prefix, nestedPrefix)
		if err := addPathScope(out, combined, nestedScope); err != nil {
			return err
		}
	}
	return nil
}

func joinPrefix(parent, child string) string {
	return canonicalKey(append(segments(parent), segments(child)...))
}

func scopeWithout(raw rawDoc, keys ...string) rawDoc {
	out := make(rawDoc, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
