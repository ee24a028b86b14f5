// Package mainplugin implements jequi's always-present ordinal-0 plugin:
// server-wide settings decoded from the scope's top-level keys (ip, port,
// tls_active, http2, chunk_size, ssl_key, ssl_certificate,
// static_files_path, proxy_address, ...), grounded on spec.md §3's "main
// plugin is always present" invariant and on air.go's Air struct +
// mapstructure-decode pattern (air_test.go/config_test.go exercise the same
// shape of struct-tag-driven decode this plugin relies on).
package mainplugin

import (
	"net"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"jequi/internal/plugin"
)

// Config is the decoded shape of a scope's main-plugin settings. Every
// field is optional in YAML; zero values are sensible server-wide
// defaults (spec.md §6's configuration reference table).
type Config struct {
	IP   string `mapstructure:"ip"`
	Port int    `mapstructure:"port"`

	TLSActiveFlag  bool   `mapstructure:"tls_active"`
	HTTP2Flag      bool   `mapstructure:"http2"`
	SSLKey         string `mapstructure:"ssl_key"`
	SSLCertificate string `mapstructure:"ssl_certificate"`
	ChunkSizeBytes int    `mapstructure:"chunk_size"`

	StaticFilesPath string `mapstructure:"static_files_path"`

	ProxyAddress interface{} `mapstructure:"proxy_address"` // string or []string, spec.md §4.6

	PROXYProtocolEnabled bool     `mapstructure:"proxy_protocol_enabled"`
	PROXYRelayerIPs      []string `mapstructure:"proxy_relayer_whitelist"`

	ConfigHost string `mapstructure:"config_host"` // synthetic, set by internal/config
	ConfigPath string `mapstructure:"config_path"` // synthetic, set by internal/config
}

func (c *Config) ChunkSize() int {
	if c.ChunkSizeBytes > 0 {
		return c.ChunkSizeBytes
	}
	return 16384
}

func (c *Config) TLSActive() bool            { return c.TLSActiveFlag }
func (c *Config) HTTP2Enabled() bool         { return c.HTTP2Flag }
func (c *Config) SSLKeyPath() string         { return c.SSLKey }
func (c *Config) SSLCertificatePath() string { return c.SSLCertificate }

// defaultIP and defaultPort are spec.md §6's documented defaults for the
// ip/port configuration keys.
const (
	defaultIP   = "127.0.0.1"
	defaultPort = 7878
)

func (c *Config) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

func (c *Config) PROXYEnabled() bool              { return c.PROXYProtocolEnabled }
func (c *Config) PROXYRelayerWhitelist() []string { return c.PROXYRelayerIPs }

// ProxyAddresses normalizes ProxyAddress into a slice, supporting both the
// single-string and list-of-strings forms spec.md §4.6 allows ("a list
// from which one is chosen uniformly at random").
func (c *Config) ProxyAddresses() []string {
	switch v := c.ProxyAddress.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func init() {
	plugin.Register(plugin.Loader{
		Ordinal:  plugin.OrdinalMain,
		Name:     "main",
		Requires: plugin.NoRequirement,
		Load:     load,
	})
}

// load always produces a Plugin: the main plugin is mandatory in every
// scope (spec.md §3), so unlike every other plugin's LoadFunc it never
// returns a nil *Plugin.
func load(scope map[string]interface{}, soFar plugin.ConfigList) (*plugin.Plugin, error) {
	cfg := &Config{}
	if err := mapstructure.Decode(scope, cfg); err != nil {
		return nil, err
	}
	if cfg.IP == "" {
		cfg.IP = defaultIP
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	return &plugin.Plugin{Config: cfg}, nil
}
