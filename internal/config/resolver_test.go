package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jequi/internal/config"
	"jequi/internal/plugin"
	"jequi/plugins/mainplugin"
)

// yamlDoc is the scenario 1 fixture from spec.md §8: a top-level ip, one
// host with its own default ip plus two path overrides, and two top-level
// path overrides.
const yamlDoc = `
ip: 1.1.1.1
host:
  jequi.com:
    ip: 1.1.2.1
    path:
      /app:
        ip: 1.1.2.2
      /api:
        ip: 1.1.2.3
path:
  /app:
    ip: 1.2.1.1
  /test:
    ip: 1.2.1.2
`

func loadFixture(t *testing.T) *config.ConfigMap {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	cm, err := config.Load(path)
	require.NoError(t, err)
	return cm
}

func mainIP(t *testing.T, list plugin.ConfigList) string {
	t.Helper()
	cfg, ok := plugin.Get[*mainplugin.Config](list, plugin.OrdinalMain)
	require.True(t, ok)
	return cfg.IP
}

func TestGetConfigForRequest(t *testing.T) {
	cm := loadFixture(t)

	tests := []struct {
		name     string
		host     string
		path     string
		expectIP string
	}{
		{"no host root path", "", "/", "1.1.1.1"},
		{"jequi.com default", "jequi.com", "/test", "1.1.2.1"},
		{"jequi.com app prefix", "jequi.com", "/app/hello", "1.1.2.2"},
		{"jequi.com api prefix", "jequi.com", "/api/", "1.1.2.3"},
		{"unknown host falls back to top-level test path", "www.jequi.com", "/test", "1.2.1.2"},
		{"no host app prefix", "", "/app/hey", "1.2.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := cm.GetConfigForRequest(tt.host, tt.path)
			assert.Equal(t, tt.expectIP, mainIP(t, list))
		})
	}
}
