package jqhttp

// Request is the parsed, engine-agnostic view of an incoming request shared
// between the HTTP/1.1 and HTTP/2 engines, grounded on the Request struct in
// jequi/src/lib.rs and the fields the original HEADERS/request-line parsers
// (jequi/src/http1/read.rs, jequi/src/http2/frame.rs) populate.
type Request struct {
	Method  string
	URI     URI
	Version string
	Headers *Headers
	Host    string
	Body    *RequestBody
}

// NewRequest returns an empty Request ready to be populated by an engine's
// parser, with a fresh, unwritten body.
func NewRequest() *Request {
	return &Request{
		Headers: NewHeaders(),
		Body:    NewRequestBody(),
	}
}

// ContentLength returns the parsed Content-Length header value and whether
// it was present and well-formed.
func (r *Request) ContentLength() (int, bool) {
	v := r.Headers.First("content-length")
	if v == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, false
		}
		n = n*10 + int(v[i]-'0')
	}
	return n, true
}

// KeepAlive reports whether the request's Connection header requests
// keep-alive, case-insensitively, as used by the HTTP/1.1 engine's loop.
func (r *Request) KeepAlive() bool {
	v := r.Headers.First("connection")
	return len(v) == len("keep-alive") && equalFold(v, "keep-alive")
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
