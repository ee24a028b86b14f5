package http1

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jequi/internal/jqhttp"
)

// TestReadRequestLine covers spec.md §8 scenario 2's first case: a bare
// request-line, read and split by the request-line parser alone.
func TestReadRequestLine(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("GET /abcd HTTP/1.1\n"))
	line, err := readLine(br)
	require.NoError(t, err)
	method, target, version, err := parseRequestLine(line)
	require.NoError(t, err)

	assert.Equal(t, "GET", method)
	assert.Equal(t, "/abcd", target)
	assert.Equal(t, "HTTP/1.1", version)
}

// TestReadRequestHeaders covers scenario 2's second case: mixed LF/CRLF
// line terminators and a header set.
func TestReadRequestHeaders(t *testing.T) {
	br := bufio.NewReader(strings.NewReader(
		"POST /bla HTTP/2.0\nUser-Agent: Mozilla\r\nAccept-Encoding: gzip\r\n\r\n"))
	req, err := readRequest(br)
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/bla", req.URI.Raw())
	assert.Equal(t, "HTTP/2.0", req.Version)
	assert.Equal(t, "Mozilla", req.Headers.First("user-agent"))
	assert.Equal(t, "gzip", req.Headers.First("accept-encoding"))
}

// TestWriteResponseSized covers scenario 3's first case: a body shorter
// than chunk_size gets a Content-Length and no Transfer-Encoding.
func TestWriteResponseSized(t *testing.T) {
	resp := jqhttp.NewResponse()
	resp.Status = 200
	resp.WriteBody(bytes.Repeat([]byte("a"), 11))

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	require.NoError(t, writeResponse(bw, resp, 20, false))
	require.NoError(t, bw.Flush())

	out := buf.String()
	assert.Contains(t, out, "content-length: 11\n")
	assert.NotContains(t, out, "transfer-encoding")
}

// TestWriteResponseChunked covers scenario 3's second case: a body longer
// than chunk_size is sent as 20/20/20/20/6-byte chunks plus terminator.
func TestWriteResponseChunked(t *testing.T) {
	resp := jqhttp.NewResponse()
	resp.Status = 200
	body := strings.Repeat("a", 85) + "\n"
	require.Len(t, body, 86)
	resp.WriteBody([]byte(body))

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	require.NoError(t, writeResponse(bw, resp, 20, false))
	require.NoError(t, bw.Flush())

	out := buf.String()
	assert.Contains(t, out, "transfer-encoding: chunked\n")
	assert.NotContains(t, out, "content-length")

	headerEnd := strings.Index(out, "\n\n")
	require.GreaterOrEqual(t, headerEnd, 0)
	wire := out[headerEnd+2:]

	sizes, reconstructed := parseChunkedWire(t, wire)
	assert.Equal(t, []int{20, 20, 20, 20, 6}, sizes)
	assert.Equal(t, body, reconstructed)
}

// parseChunkedWire decodes a chunked-transfer wire body (as written by
// writeResponse) into the sequence of chunk sizes and the reconstructed
// payload, so scenario 3's "chunks of 20/20/20/20/6 bytes plus terminator"
// property can be checked without hand-encoding the expected bytes.
func parseChunkedWire(t *testing.T, wire string) ([]int, string) {
	t.Helper()
	var sizes []int
	var body strings.Builder

	for {
		nl := strings.Index(wire, "\r\n")
		require.GreaterOrEqual(t, nl, 0)
		sizeLine := wire[:nl]
		wire = wire[nl+2:]

		n := 0
		for i := 0; i < len(sizeLine); i++ {
			n = n*16 + hexDigit(t, sizeLine[i])
		}
		if n == 0 {
			require.True(t, strings.HasPrefix(wire, "\r\n"))
			break
		}
		sizes = append(sizes, n)
		body.WriteString(wire[:n])
		wire = wire[n:]
		require.True(t, strings.HasPrefix(wire, "\r\n"))
		wire = wire[2:]
	}

	return sizes, body.String()
}

func hexDigit(t *testing.T, c byte) int {
	t.Helper()
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		t.Fatalf("invalid hex digit %q", c)
		return 0
	}
}
