package mainplugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDecodesFlatScope(t *testing.T) {
	scope := map[string]interface{}{
		"ip":                "127.0.0.1",
		"port":              8080,
		"tls_active":        true,
		"http2":             true,
		"chunk_size":        4096,
		"ssl_key":           "/etc/jequi/key.pem",
		"ssl_certificate":   "/etc/jequi/cert.pem",
		"static_files_path": "/var/www",
	}

	p, err := load(scope, nil)
	require.NoError(t, err)
	require.NotNil(t, p)

	cfg := p.Config.(*Config)
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
	assert.True(t, cfg.TLSActive())
	assert.True(t, cfg.HTTP2Enabled())
	assert.Equal(t, 4096, cfg.ChunkSize())
	assert.Equal(t, "/etc/jequi/key.pem", cfg.SSLKeyPath())
	assert.Equal(t, "/etc/jequi/cert.pem", cfg.SSLCertificatePath())
}

func TestChunkSizeDefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 16384, cfg.ChunkSize())
}

func TestLoadDefaultsIPAndPortWhenUnset(t *testing.T) {
	p, err := load(map[string]interface{}{}, nil)
	require.NoError(t, err)

	cfg := p.Config.(*Config)
	assert.Equal(t, "127.0.0.1:7878", cfg.Address())
}

func TestProxyAddressesNormalization(t *testing.T) {
	cfg := &Config{ProxyAddress: []interface{}{"a:1", "b:2"}}
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.ProxyAddresses())
}
