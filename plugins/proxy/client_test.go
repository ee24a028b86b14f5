package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		address    string
		wantScheme string
		wantHost   string
		wantPort   string
		wantAuth   string
	}{
		{"backend.internal", "https", "backend.internal", "443", "backend.internal"},
		{"backend.internal:8080", "https", "backend.internal", "8080", "backend.internal:8080"},
		{"http://backend.internal", "http", "backend.internal", "80", "backend.internal"},
		{"http://backend.internal:9000", "http", "backend.internal", "9000", "backend.internal:9000"},
		{"https://backend.internal:443", "https", "backend.internal", "443", "backend.internal"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			tgt, err := parseTarget(tt.address)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, tgt.scheme)
			assert.Equal(t, tt.wantHost, tgt.host)
			assert.Equal(t, tt.wantPort, tgt.port)
			assert.Equal(t, tt.wantAuth, tgt.authority())
		})
	}
}
