// Package http1 implements the HTTP/1.1 engine: a hand-rolled request-line
// and header parser, a content-length body reader, a chunked-or-sized
// response writer, and the keep-alive serving loop, grounded on
// jequi/src/http1/mod.rs, read.rs, and write.rs. It does not use net/http's
// server at all (spec.md's distinguishing complexity is this wire engine
// itself), the way aofei-air avoids reimplementing net/http's Handler model
// only at the routing layer; here the wire layer itself is bespoke.
package http1

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"jequi/internal/config"
	"jequi/internal/jqhttp"
	"jequi/internal/jqlog"
	"jequi/internal/plugin"
)

const maxLineLength = 8192

// Serve runs the HTTP/1.1 keep-alive loop over raw until the peer closes
// the connection, a non-keep-alive request completes, or a plugin hijacks
// the connection. cm is called once per request for the config snapshot;
// the dispatcher passes one that always returns the snapshot captured when
// the connection was accepted, so a reload does not affect a connection
// already in flight.
func Serve(ctx context.Context, raw net.Conn, cm func() *config.ConfigMap, log *jqlog.Logger) error {
	br := bufio.NewReaderSize(raw, maxLineLength)
	bw := bufio.NewWriter(raw)

	for {
		req, err := readRequest(br)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		resp := jqhttp.NewResponse()
		list := cm().GetConfigForRequest(req.Host, req.URI.Path())
		main := plugin.GetMainConfig(list)

		bodyErrCh := make(chan error, 1)
		go func() { bodyErrCh <- readBody(req, br) }()

		disposition, err := plugin.Run(ctx, list, req, resp)
		if err != nil {
			if log != nil {
				log.Errorf("http1: plugin pipeline: %v", err)
			}
			return err
		}

		if disposition.Action == plugin.HijackConnection {
			bw.Flush()
			disposition.Hijack(raw)
			return nil
		}

		if bodyErr := <-bodyErrCh; bodyErr != nil && log != nil {
			log.Debugf("http1: reading request body: %v", bodyErr)
		}

		keepAlive := req.KeepAlive()
		if err := writeResponse(bw, resp, main.ChunkSize(), keepAlive); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}

		if !keepAlive {
			return nil
		}
	}
}

// readRequest parses the request-line and headers, byte-by-byte via
// readLine, per jequi/src/http1/read.rs.
func readRequest(br *bufio.Reader) (*jqhttp.Request, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if line == "" {
		// Tolerate a leading blank line before the request-line, as
		// some clients send one after a prior response (RFC 7230
		// §3.5); read the real request-line next.
		line, err = readLine(br)
		if err != nil {
			return nil, err
		}
	}

	method, target, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	req := jqhttp.NewRequest()
	req.Method = method
	req.URI = jqhttp.NewURI(target)
	req.Version = version

	for {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		name, value, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		req.Headers.Append(name, value)
		if equalFold(name, "host") {
			req.Host = value
		}
	}

	return req, nil
}

// readLine reads one line terminated by LF, accepting an optional preceding
// CR (spec.md §6's wire-protocol note: "LF or CRLF terminators accepted on
// input").
func readLine(br *bufio.Reader) (string, error) {
	s, err := br.ReadString('\n')
	if err != nil {
		if s == "" {
			return "", err
		}
		return "", jqhttp.ErrUnexpectedEOF
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	if len(s) > maxLineLength {
		return "", jqhttp.ErrInvalidData
	}
	return s, nil
}

func parseRequestLine(line string) (method, target, version string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", jqhttp.ErrInvalidData
	}
	return parts[0], parts[1], parts[2], nil
}

func parseHeaderLine(line string) (name, value string, err error) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", jqhttp.ErrInvalidData
	}
	name = strings.TrimSpace(line[:i])
	value = strings.TrimSpace(line[i+1:])
	if name == "" {
		return "", "", jqhttp.ErrInvalidData
	}
	return name, value, nil
}

// readBody reads exactly Content-Length bytes (no chunked request bodies:
// spec.md §4.3 scopes request-body framing to content-length) and completes
// req.Body exactly once, waking every concurrent GetBody caller.
func readBody(req *jqhttp.Request, br *bufio.Reader) error {
	n, ok := req.ContentLength()
	if !ok || n == 0 {
		req.Body.WriteBody(nil)
		return nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		req.Body.WriteBody(nil)
		return jqhttp.ErrUnexpectedEOF
	}
	req.Body.WriteBody(buf)
	return nil
}

// writeResponse writes the status line, headers, and body, per
// jequi/src/http1/write.rs's two write modes. A body longer than chunkSize
// is sent with Transfer-Encoding: chunked (any Content-Length removed) in
// chunks of at most chunkSize bytes, framed as <hex-length>\r\n<data>\r\n
// and terminated by 0\r\n\r\n; any other body is sent verbatim with
// Content-Length set to its length (any Transfer-Encoding removed). The
// status line and header block use bare-LF line endings. The body is
// always fully buffered in jqhttp.Response before this runs.
func writeResponse(bw *bufio.Writer, resp *jqhttp.Response, chunkSize int, keepAlive bool) error {
	status := resp.EffectiveStatus()
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\n", status, statusText(status)); err != nil {
		return err
	}

	body := resp.Body.Bytes()
	useChunked := chunkSize > 0 && len(body) > chunkSize

	if useChunked {
		resp.RemoveHeader("content-length")
		resp.SetHeader("transfer-encoding", "chunked")
	} else {
		resp.RemoveHeader("transfer-encoding")
		resp.SetHeader("content-length", strconv.Itoa(len(body)))
	}
	if keepAlive {
		resp.SetHeader("connection", "keep-alive")
	} else {
		resp.SetHeader("connection", "close")
	}

	var writeErr error
	resp.Headers.Each(func(name, value string) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintf(bw, "%s: %s\n", name, value)
	})
	if writeErr != nil {
		return writeErr
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}

	if !useChunked {
		_, err := bw.Write(body)
		return err
	}

	for len(body) > 0 {
		n := chunkSize
		if n > len(body) {
			n = len(body)
		}
		if _, err := fmt.Fprintf(bw, "%x\r\n", n); err != nil {
			return err
		}
		if _, err := bw.Write(body[:n]); err != nil {
			return err
		}
		if _, err := bw.WriteString("\r\n"); err != nil {
			return err
		}
		body = body[n:]
	}
	_, err := bw.WriteString("0\r\n\r\n")
	return err
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

var statusTexts = map[int]string{
	200: "OK",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

func statusText(status int) string {
	if t, ok := statusTexts[status]; ok {
		return t
	}
	return "Unknown"
}
