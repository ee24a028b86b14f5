package jqhttp

import "errors"

// Sentinel error kinds, compared with errors.Is: UnexpectedEof, InvalidData,
// NotFound, PermissionDenied, Unsupported and ConnectionAborted.
var (
	ErrUnexpectedEOF     = errors.New("jequi: unexpected eof")
	ErrInvalidData       = errors.New("jequi: invalid data")
	ErrNoContentLength   = errors.New("jequi: no content-length header")
	ErrPermissionDenied  = errors.New("jequi: permission denied")
	ErrUnsupported       = errors.New("jequi: unsupported transfer encoding")
	ErrConnectionAborted = errors.New("jequi: connection aborted")
)
