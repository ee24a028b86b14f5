package proxy

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"jequi/internal/jqhttp"
)

// target is a resolved upstream address, grounded on
// original_source/plugins/jequi_proxy/src/client.rs's Client::connect
// scheme/host/port split.
type target struct {
	scheme string // "http" or "https"
	host   string
	port   string
}

// parseTarget splits "scheme://host[:port]" or "host[:port]" (defaulting
// scheme to https) per spec.md §4.6.
func parseTarget(address string) (target, error) {
	scheme := "https"
	rest := address
	if i := strings.Index(address, "://"); i >= 0 {
		scheme = address[:i]
		rest = address[i+3:]
	}

	host, port, err := net.SplitHostPort(rest)
	if err != nil {
		host = rest
		if scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return target{scheme: scheme, host: host, port: port}, nil
}

func (t target) authority() string {
	if (t.scheme == "https" && t.port == "443") || (t.scheme == "http" && t.port == "80") {
		return t.host
	}
	return net.JoinHostPort(t.host, t.port)
}

// client is a live connection to one upstream, speaking HTTP/1.1, grounded
// on client.rs's Client<T>: send_request/get_response (parse_headers +
// parse_body's chunked/content-length branch).
type client struct {
	conn net.Conn
	br   *bufio.Reader
}

func dial(t target) (*client, error) {
	raw, err := net.Dial("tcp", net.JoinHostPort(t.host, t.port))
	if err != nil {
		return nil, fmt.Errorf("jequi: dialing upstream %s: %w", t.authority(), err)
	}

	var conn net.Conn = raw
	if t.scheme == "https" {
		conn = tls.Client(raw, &tls.Config{ServerName: t.host})
	}
	return &client{conn: conn, br: bufio.NewReader(conn)}, nil
}

func (c *client) Close() error { return c.conn.Close() }

// sendRequest forwards method/target/headers, replacing Host with the
// upstream authority, then the request body, per client.rs's send_request.
func (c *client) sendRequest(req *jqhttp.Request, authority string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, req.URI.Raw())
	fmt.Fprintf(&b, "host: %s\r\n", authority)

	req.Headers.Each(func(name, value string) {
		if strings.EqualFold(name, "host") {
			return
		}
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	})
	b.WriteString("\r\n")

	if _, err := io.WriteString(c.conn, b.String()); err != nil {
		return err
	}

	body, _ := req.Body.GetBody()
	if len(body) > 0 {
		if _, err := c.conn.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// getResponse parses the status line, headers, and body (content-length or
// chunked) into resp, per client.rs's get_response/parse_headers/
// parse_body.
func (c *client) getResponse(resp *jqhttp.Response) error {
	line, err := c.br.ReadString('\n')
	if err != nil {
		return jqhttp.ErrUnexpectedEOF
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return jqhttp.ErrInvalidData
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return jqhttp.ErrInvalidData
	}
	resp.Status = status

	for {
		hl, err := c.br.ReadString('\n')
		if err != nil {
			return jqhttp.ErrUnexpectedEOF
		}
		hl = strings.TrimRight(hl, "\r\n")
		if hl == "" {
			break
		}
		i := strings.IndexByte(hl, ':')
		if i < 0 {
			return jqhttp.ErrInvalidData
		}
		name := strings.TrimSpace(hl[:i])
		value := strings.TrimSpace(hl[i+1:])
		resp.SetHeader(name, value)
	}

	return c.parseBody(resp)
}

func (c *client) parseBody(resp *jqhttp.Response) error {
	te := resp.GetHeader("transfer-encoding")
	cl := resp.GetHeader("content-length")

	switch {
	case te != "":
		if !strings.EqualFold(te, "chunked") {
			return jqhttp.ErrUnsupported
		}
		return c.parseChunkedBody(resp)
	case cl != "":
		n, err := strconv.Atoi(cl)
		if err != nil {
			return jqhttp.ErrInvalidData
		}
		if n == 0 {
			return nil
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(c.br, buf); err != nil {
			return jqhttp.ErrUnexpectedEOF
		}
		resp.WriteBody(buf)
		return nil
	default:
		return nil
	}
}

func (c *client) parseChunkedBody(resp *jqhttp.Response) error {
	for {
		sizeLine, err := c.br.ReadString('\n')
		if err != nil {
			return jqhttp.ErrUnexpectedEOF
		}
		sizeLine = strings.TrimRight(sizeLine, "\r\n")
		size, err := strconv.ParseInt(sizeLine, 16, 64)
		if err != nil {
			return jqhttp.ErrInvalidData
		}

		if size > 0 {
			buf := make([]byte, size)
			if _, err := io.ReadFull(c.br, buf); err != nil {
				return jqhttp.ErrUnexpectedEOF
			}
			resp.WriteBody(buf)
		}

		var crlf [2]byte
		if _, err := io.ReadFull(c.br, crlf[:]); err != nil {
			return jqhttp.ErrUnexpectedEOF
		}
		if crlf != [2]byte{'\r', '\n'} {
			return jqhttp.ErrInvalidData
		}
		if size == 0 {
			return nil
		}
	}
}
