package jqhttp

import "bytes"

// Response is built incrementally by the handler pipeline and written once
// by whichever engine owns the connection, grounded on the Response struct
// in jequi/src/lib.rs and jequi/src/response.rs. Status 0 is the sentinel
// for "no handler assigned a status"; the engine substitutes 200 for it
// after the pipeline runs (spec.md §4.6).
type Response struct {
	Status  int
	Headers *Headers
	Body    bytes.Buffer
}

// NewResponse returns an empty Response with status 0 (unassigned).
func NewResponse() *Response {
	return &Response{Headers: NewHeaders()}
}

// SetHeader sets header to value, replacing any prior value(s).
func (r *Response) SetHeader(header, value string) { r.Headers.Set(header, value) }

// GetHeader returns the first value of header, or "".
func (r *Response) GetHeader(header string) string { return r.Headers.First(header) }

// RemoveHeader deletes header entirely.
func (r *Response) RemoveHeader(header string) { r.Headers.Delete(header) }

// WriteBody appends bytes to the response body buffer and always returns
// len(b), nil: unlike the Rust original's fixed-size buffer, the Go body is
// a growable bytes.Buffer, so a truncated write can never happen here.
func (r *Response) WriteBody(b []byte) (int, error) { return r.Body.Write(b) }

// BodyLen returns the number of bytes written to the body so far.
func (r *Response) BodyLen() int { return r.Body.Len() }

// EffectiveStatus returns Status, substituting 200 for the "unassigned"
// sentinel value 0.
func (r *Response) EffectiveStatus() int {
	if r.Status == 0 {
		return 200
	}
	return r.Status
}
