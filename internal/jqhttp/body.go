package jqhttp

import "sync"

// RequestBody is a single-writer, multi-reader, one-shot value holder for a
// request's body bytes, grounded on jequi/src/body.rs's GetBody/WriteBody
// future pair. The Rust original stores a single waker slot, which the
// spec's Design Notes call out as a known bug if more than one reader polls
// before the write completes. This implementation instead closes a channel
// on WriteBody, which is Go's idiomatic one-shot broadcast: every goroutine
// blocked on GetBody unblocks the instant WriteBody runs, not just one.
type RequestBody struct {
	mu      sync.Mutex
	written bool
	bytes   []byte
	present bool
	done    chan struct{}
}

// NewRequestBody returns an unwritten RequestBody.
func NewRequestBody() *RequestBody {
	return &RequestBody{done: make(chan struct{})}
}

// GetBody blocks until WriteBody has been called, then returns the written
// bytes (nil, false if WriteBody was called with "no body"). It may be
// called concurrently by any number of goroutines, any number of times.
func (b *RequestBody) GetBody() ([]byte, bool) {
	<-b.done
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes, b.present
}

// TryGetBody returns the body immediately if already written, without
// blocking; ok reports whether the write has happened yet.
func (b *RequestBody) TryGetBody() (bytes []byte, present bool, ok bool) {
	select {
	case <-b.done:
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.bytes, b.present, true
	default:
		return nil, false, false
	}
}

// WriteBody stores bytes (nil to mean "no body") and wakes every pending and
// future GetBody caller exactly once. Calling WriteBody a second time is a
// bug in the caller; write_body is idempotent only under a genuine single
// writer, so a second call panics rather than silently losing data.
func (b *RequestBody) WriteBody(bytes []byte) {
	b.mu.Lock()
	if b.written {
		b.mu.Unlock()
		panic("jequi: RequestBody.WriteBody called more than once")
	}
	b.written = true
	b.bytes = bytes
	b.present = bytes != nil
	b.mu.Unlock()
	close(b.done)
}
