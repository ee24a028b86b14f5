package plugin

// MainConfig is the subset of the main plugin's decoded configuration that
// the HTTP engines need directly (spec.md §4.2/§4.3's chunk_size and
// protocol-selection fields), expressed as an interface so internal/http1
// and internal/http2 can depend on it without importing plugins/mainplugin
// (which itself depends on this package for registration).
type MainConfig interface {
	// ChunkSize is the maximum size, in bytes, of one outbound body chunk:
	// an HTTP/1.1 chunked-transfer chunk, or one HTTP/2 DATA frame payload
	// after clamping to the peer's SETTINGS_MAX_FRAME_SIZE.
	ChunkSize() int

	// TLSActive reports whether this host's scope wants TLS termination
	// at all (spec.md §4.2's tls_active).
	TLSActive() bool

	// HTTP2Enabled reports whether ALPN may select "h2" for this host
	// (spec.md §4.2's http2 flag).
	HTTP2Enabled() bool

	// SSLKeyPath/SSLCertificatePath are the PEM private key and
	// certificate chain paths the TLS terminator loads on SNI match.
	SSLKeyPath() string
	SSLCertificatePath() string

	// Address is "ip:port", the socket the dispatcher binds (spec.md
	// §4.7: "bind the server socket to (main.ip, main.port)").
	Address() string

	// PROXYEnabled/PROXYRelayerWhitelist gate the dispatcher's optional
	// PROXY protocol v1/v2 peeling (SPEC_FULL.md §C's supplemented
	// feature), off by default.
	PROXYEnabled() bool
	PROXYRelayerWhitelist() []string
}

// GetMainConfig is a convenience wrapper over Get[MainConfig] for the
// OrdinalMain slot, falling back to defaultChunkSize when main's config
// does not implement MainConfig (or is absent, which Build already
// prevents for any successfully-built ConfigList).
func GetMainConfig(list ConfigList) MainConfig {
	if cfg, ok := Get[MainConfig](list, OrdinalMain); ok {
		return cfg
	}
	return defaultMainConfig{}
}

const defaultChunkSize = 16384

type defaultMainConfig struct{}

func (defaultMainConfig) ChunkSize() int             { return defaultChunkSize }
func (defaultMainConfig) TLSActive() bool            { return false }
func (defaultMainConfig) HTTP2Enabled() bool         { return false }
func (defaultMainConfig) SSLKeyPath() string         { return "" }
func (defaultMainConfig) SSLCertificatePath() string { return "" }
func (defaultMainConfig) Address() string            { return "" }
func (defaultMainConfig) PROXYEnabled() bool          { return false }
func (defaultMainConfig) PROXYRelayerWhitelist() []string { return nil }
