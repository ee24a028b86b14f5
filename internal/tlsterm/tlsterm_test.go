package tlsterm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"jequi/internal/jqhttp"
)

// TestSelectALPN covers spec.md §4.2's selection table exactly, plus the
// "peer offers nothing at all" edge case treated the same as "http/1.1
// offered" when http2 is disabled (a non-ALPN client behaves like one that
// only offered http/1.1).
func TestSelectALPN(t *testing.T) {
	tests := []struct {
		name         string
		http2        bool
		offers       []string
		want         string
		wantNoAccept bool
	}{
		{"http2 off, http1 offered", false, []string{"http/1.1"}, "http/1.1", false},
		{"http2 off, nothing offered", false, nil, "http/1.1", false},
		{"http2 off, only h2 offered", false, []string{"h2"}, "", true},
		{"http2 on, both offered", true, []string{"http/1.1", "h2"}, "h2", false},
		{"http2 on, only h2 offered", true, []string{"h2"}, "h2", false},
		{"http2 on, only http1 offered", true, []string{"http/1.1"}, "http/1.1", false},
		{"http2 on, neither offered", true, []string{"spdy/1"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectALPN(tt.http2, tt.offers)
			if tt.wantNoAccept {
				assert.True(t, errors.Is(err, jqhttp.ErrUnsupported))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
