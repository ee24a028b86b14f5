package http2

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2/hpack"

	"jequi/internal/jqhttp"
)

// TestWriteResponseNonEmptyBody covers spec.md §8 scenario 5's server-side
// write properties for a non-empty body: exactly one HEADERS frame precedes
// the DATA frame(s), exactly one frame carries END_STREAM, the
// reconstructed body equals the input, and hop-by-hop headers never reach
// the wire.
func TestWriteResponseNonEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	e := &Engine{
		bw:               bufio.NewWriter(&buf),
		peerMaxFrameSize: defaultMaxFrameSize,
	}
	e.henc = hpack.NewEncoder(&e.encBuf)

	resp := jqhttp.NewResponse()
	resp.Status = 200
	resp.SetHeader("content-type", "text/plain")
	resp.SetHeader("transfer-encoding", "chunked")
	resp.SetHeader("connection", "keep-alive")
	body := []byte("static file content")
	resp.WriteBody(body)

	s := &stream{id: 1, resp: resp, chunkSize: defaultMaxFrameSize}
	require.NoError(t, e.writeResponse(s))

	frames := readAllFrames(t, buf.Bytes())
	require.GreaterOrEqual(t, len(frames), 2)
	assert.Equal(t, frameHeaders, frames[0].header.Type)

	endStreamCount := 0
	var reconstructed bytes.Buffer
	for i, f := range frames {
		if f.header.Flags&flagEndStream != 0 {
			endStreamCount++
		}
		if f.header.Type == frameData {
			reconstructed.Write(f.payload)
		}
		if i > 0 {
			assert.NotEqual(t, frameHeaders, f.header.Type, "only the first frame may be HEADERS")
		}
	}
	assert.Equal(t, 1, endStreamCount)
	assert.Equal(t, body, reconstructed.Bytes())

	dec := hpack.NewDecoder(4096, nil)
	fields, err := dec.DecodeFull(frames[0].payload)
	require.NoError(t, err)

	names := map[string]string{}
	for _, f := range fields {
		names[f.Name] = f.Value
	}
	assert.Equal(t, "200", names[":status"])
	assert.Equal(t, "text/plain", names["content-type"])
	_, hasTE := names["transfer-encoding"]
	_, hasConn := names["connection"]
	assert.False(t, hasTE, "transfer-encoding must not be forwarded over HTTP/2")
	assert.False(t, hasConn, "connection must not be forwarded over HTTP/2")
}

// TestWriteResponseEmptyBody covers the empty-body case: exactly one frame
// carries END_STREAM. For an empty body that's the HEADERS frame itself, and
// no DATA frame follows it (a DATA frame on a stream already half-closed by
// END_STREAM on HEADERS would be a STREAM_CLOSED error).
func TestWriteResponseEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	e := &Engine{
		bw:               bufio.NewWriter(&buf),
		peerMaxFrameSize: defaultMaxFrameSize,
	}
	e.henc = hpack.NewEncoder(&e.encBuf)

	resp := jqhttp.NewResponse()
	resp.Status = 204
	s := &stream{id: 3, resp: resp, chunkSize: defaultMaxFrameSize}
	require.NoError(t, e.writeResponse(s))

	frames := readAllFrames(t, buf.Bytes())
	require.Len(t, frames, 1)
	assert.Equal(t, frameHeaders, frames[0].header.Type)
	assert.NotZero(t, frames[0].header.Flags&flagEndStream)
}

type wireFrame struct {
	header  frameHeaderT
	payload []byte
}

func readAllFrames(t *testing.T, wire []byte) []wireFrame {
	t.Helper()
	r := bytes.NewReader(wire)
	var out []wireFrame
	for r.Len() > 0 {
		h, err := readFrameHeader(r)
		require.NoError(t, err)
		payload := make([]byte, h.Length)
		_, err = r.Read(payload)
		require.NoError(t, err)
		out = append(out, wireFrame{header: h, payload: payload})
	}
	return out
}
