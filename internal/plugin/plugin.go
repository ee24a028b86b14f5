// Package plugin defines the handler-pipeline and plugin contract shared by
// the config resolver and both HTTP engines, grounded on the Plugin/
// RequestHandler/PostRequestHandler types in jequi/src/lib.rs and
// jequi/src/hijack.rs, and on air's Gas chain (gases/gases.go) for the
// general shape of "ordered, short-circuiting request middleware" in Go.
package plugin

import (
	"context"
	"time"

	"jequi/internal/jqhttp"
)

// rfc1123GMT mirrors the original's "%a, %e %b %Y %T GMT" chrono format
// (space-padded day, literal GMT) for the default Date response header.
const rfc1123GMT = "Mon, _2 Jan 2006 15:04:05 GMT"

// Action is the terminal disposition a Handler returns after processing a
// request, mirroring the Rust PostRequestHandler enum.
type Action uint8

const (
	// Continue advances the pipeline to the next plugin.
	Continue Action = iota
	// Exit terminates the pipeline; the response is written as-is.
	Exit
	// HijackConnection terminates the pipeline and transfers the raw
	// connection to the accompanying HijackFunc.
	HijackConnection
)

// HijackedConn is the type-erased capability set an engine hands to a
// HijackFunc: a plain byte stream plus the ability to close it. It stands in
// for the Rust "async-read + async-write + send" erased type.
type HijackedConn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// HijackFunc takes ownership of a HijackedConn, typically to pipe bytes
// bidirectionally to an upstream (WebSocket upgrades in the proxy plugin).
type HijackFunc func(conn HijackedConn)

// Disposition is what a Handler returns: an Action plus, for
// HijackConnection, the function the engine must call with the raw
// connection.
type Disposition struct {
	Action Action
	Hijack HijackFunc
}

// Result is a ready-made Continue disposition.
func Result() Disposition { return Disposition{Action: Continue} }

// ResultExit is a ready-made Exit disposition.
func ResultExit() Disposition { return Disposition{Action: Exit} }

// ResultHijack builds a HijackConnection disposition.
func ResultHijack(f HijackFunc) Disposition {
	return Disposition{Action: HijackConnection, Hijack: f}
}

// Handler processes one request. It is invoked per request, per plugin,
// in ConfigList order.
type Handler func(ctx context.Context, req *jqhttp.Request, resp *jqhttp.Response) (Disposition, error)

// Plugin pairs a typed configuration value with an optional request
// Handler, identified by a stable, compile-time ordinal (its declaration
// order), mirroring jequi/src/lib.rs's Plugin struct.
type Plugin struct {
	Ordinal int
	Name    string
	Config  interface{}
	Handler Handler // nil if this plugin is inactive in this scope
}

// ConfigList is the ordered sequence of active plugins for one (host,
// path-prefix) scope; it is the unit of dispatch for a request.
type ConfigList []*Plugin

// Get returns the typed configuration of the plugin with the given ordinal
// in list, avoiding a runtime string lookup the way the Rust get_plugin!
// macro does (a compile-time constant-index dereference there; here, a
// scan over the short, per-scope plugin list matched by the compile-time
// ordinal constant the caller supplies).
func Get[T any](list ConfigList, ordinal int) (T, bool) {
	for _, p := range list {
		if p.Ordinal == ordinal {
			if cfg, ok := p.Config.(T); ok {
				return cfg, true
			}
		}
	}
	var zero T
	return zero, false
}

// Run executes list in order against req/resp, returning the first
// non-Continue disposition, or Continue if every handler (or every plugin
// lacking one) ran to completion. Per spec.md §4.6, it stamps the default
// server/date headers before the first plugin runs, and substitutes the
// default status after the last one does, so both engines get this for
// free instead of reimplementing it.
func Run(ctx context.Context, list ConfigList, req *jqhttp.Request, resp *jqhttp.Response) (Disposition, error) {
	resp.SetHeader("server", "jequi")
	resp.SetHeader("date", time.Now().UTC().Format(rfc1123GMT))

	for _, p := range list {
		if p.Handler == nil {
			continue
		}
		d, err := p.Handler(ctx, req, resp)
		if err != nil {
			return Disposition{}, err
		}
		if d.Action != Continue {
			return d, nil
		}
	}
	resp.Status = resp.EffectiveStatus()
	return Result(), nil
}
