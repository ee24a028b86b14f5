package jqhttp

import "strings"

// URI holds the raw request target and exposes an allocation-free split
// between its path and query components, grounded on air's URI/URL pair
// (uri.go, url.go) but operating on the raw request-target string instead of
// a fasthttp.URI, since the engine here owns wire parsing itself.
type URI struct {
	raw string
}

// NewURI returns a URI wrapping raw, the exact request-target bytes taken
// from the request line.
func NewURI(raw string) URI { return URI{raw: raw} }

// Raw returns the original, unmodified request-target.
func (u URI) Raw() string { return u.raw }

// Path returns everything in the raw request-target before the first '?',
// or the entire raw form if there is none.
func (u URI) Path() string {
	if i := strings.IndexByte(u.raw, '?'); i >= 0 {
		return u.raw[:i]
	}
	return u.raw
}

// Query returns everything after the first '?', or "" if there is none.
func (u URI) Query() string {
	if i := strings.IndexByte(u.raw, '?'); i >= 0 {
		return u.raw[i+1:]
	}
	return ""
}
