package jqhttp

import "strings"

// Header is one named entry of a Headers multimap, grounded on air's
// Header/Headers pair (header.go, headers.go) but extended to preserve the
// order header names were first inserted in, as required by the request/
// response header-map invariant: a case-insensitive multimap preserving
// insertion order.
type Header struct {
	Name   string
	Values []string
}

// FirstValue returns the first value of h, or "" if there is none.
func (h *Header) FirstValue() string {
	if h == nil || len(h.Values) == 0 {
		return ""
	}
	return h.Values[0]
}

// Headers is a case-insensitive, order-preserving HTTP header multimap.
// Lookups lower-case the key; the canonical (first-seen) casing of the name
// is kept for serialization.
type Headers struct {
	entries []*Header
	index   map[string]int
}

// NewHeaders returns an empty Headers.
func NewHeaders() *Headers {
	return &Headers{index: map[string]int{}}
}

func (hs *Headers) ensure() {
	if hs.index == nil {
		hs.index = map[string]int{}
	}
}

// Get returns the values associated with key, or nil if absent.
func (hs *Headers) Get(key string) []string {
	hs.ensure()
	if i, ok := hs.index[strings.ToLower(key)]; ok {
		return hs.entries[i].Values
	}
	return nil
}

// First returns the first value associated with key, or "".
func (hs *Headers) First(key string) string {
	if vs := hs.Get(key); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether key has at least one value.
func (hs *Headers) Has(key string) bool {
	hs.ensure()
	_, ok := hs.index[strings.ToLower(key)]
	return ok
}

// Set replaces all values for key, appending a new entry if key is unseen.
func (hs *Headers) Set(key, value string) {
	hs.ensure()
	lk := strings.ToLower(key)
	if i, ok := hs.index[lk]; ok {
		hs.entries[i].Values = []string{value}
		return
	}
	hs.index[lk] = len(hs.entries)
	hs.entries = append(hs.entries, &Header{Name: key, Values: []string{value}})
}

// Append appends value to key's entry, creating it (at the end of the
// insertion order) if key is unseen.
func (hs *Headers) Append(key, value string) {
	hs.ensure()
	lk := strings.ToLower(key)
	if i, ok := hs.index[lk]; ok {
		hs.entries[i].Values = append(hs.entries[i].Values, value)
		return
	}
	hs.index[lk] = len(hs.entries)
	hs.entries = append(hs.entries, &Header{Name: key, Values: []string{value}})
}

// Delete removes key entirely.
func (hs *Headers) Delete(key string) {
	hs.ensure()
	lk := strings.ToLower(key)
	i, ok := hs.index[lk]
	if !ok {
		return
	}
	hs.entries = append(hs.entries[:i], hs.entries[i+1:]...)
	delete(hs.index, lk)
	for k, idx := range hs.index {
		if idx > i {
			hs.index[k] = idx - 1
		}
	}
}

// Each calls f once per (name, value) pair in insertion order; a header
// with multiple values calls f once per value rather than joining them.
func (hs *Headers) Each(f func(name, value string)) {
	for _, h := range hs.entries {
		for _, v := range h.Values {
			f(h.Name, v)
		}
	}
}

// Len returns the number of distinct header names.
func (hs *Headers) Len() int { return len(hs.entries) }
