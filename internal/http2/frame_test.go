package http2

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2/hpack"
)

// TestFrameHeaderRoundTrip covers spec.md §8's "Parse then re-serialise"
// round-trip law as applied to the frame header codec: writeFrameHeader
// then readFrameHeader recovers the original fields, and the reserved
// high bit of the stream id is masked on both sides.
func TestFrameHeaderRoundTrip(t *testing.T) {
	tests := []frameHeaderT{
		{Length: 0, Type: frameSettings, Flags: 0, StreamID: 0},
		{Length: 16384, Type: frameData, Flags: flagEndStream, StreamID: 1},
		{Length: 42, Type: frameHeaders, Flags: flagEndHeaders | flagPadded, StreamID: 1<<31 | 3},
	}

	for _, h := range tests {
		var buf bytes.Buffer
		require.NoError(t, writeFrameHeader(&buf, h))

		got, err := readFrameHeader(&buf)
		require.NoError(t, err)

		want := h
		want.StreamID &^= 1 << 31
		assert.Equal(t, want, got)
	}
}

// TestHPACKRoundTrip covers spec.md §8's HPACK round-trip law directly:
// encode then decode the outbound response headers and recover the same
// name/value pairs.
func TestHPACKRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)

	fields := []hpack.HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "server", Value: "jequi"},
		{Name: "content-type", Value: "text/html"},
	}
	for _, f := range fields {
		require.NoError(t, enc.WriteField(f))
	}

	dec := hpack.NewDecoder(4096, nil)
	got, err := dec.DecodeFull(buf.Bytes())
	require.NoError(t, err)

	require.Len(t, got, len(fields))
	for i, f := range fields {
		assert.Equal(t, f.Name, got[i].Name)
		assert.Equal(t, f.Value, got[i].Value)
	}
}
