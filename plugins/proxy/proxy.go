// Package proxy implements jequi_proxy: resolves an upstream target
// (sibling-registered proxy-handlers, else the configured proxy_address),
// forwards the request, parses the upstream response, and hijacks the
// connection for a bidirectional relay when the upstream upgrades to a
// WebSocket. Grounded on
// original_source/plugins/jequi_proxy/src/lib.rs's Config::handle_request
// for the resolution/forwarding order.
package proxy

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"jequi/internal/jqhttp"
	"jequi/internal/plugin"
)

// ProxyHandlerFunc lets a sibling plugin, registered through
// AddProxyHandler, override the upstream target for one request. A ""
// return means "no opinion"; the first non-empty wins. No plugin in this
// tree registers one: the external-handler adaptor (plugins/goadaptor)
// runs as its own pipeline handler and does not call AddProxyHandler.
type ProxyHandlerFunc func(ctx context.Context, req *jqhttp.Request, resp *jqhttp.Response) string

// Config is jequi_proxy's decoded configuration plus the sibling-registered
// proxy-handler list.
type Config struct {
	ProxyAddress interface{} `mapstructure:"proxy_address"`

	mu       sync.Mutex
	handlers []ProxyHandlerFunc
}

func init() {
	plugin.Register(plugin.Loader{
		Ordinal:  plugin.OrdinalProxy,
		Name:     "jequi_proxy",
		Requires: plugin.NoRequirement,
		Load:     load,
	})
}

func load(scope map[string]interface{}, soFar plugin.ConfigList) (*plugin.Plugin, error) {
	cfg := &Config{}
	if err := mapstructure.Decode(scope, cfg); err != nil {
		return nil, err
	}
	if len(cfg.addresses()) == 0 {
		return nil, nil
	}
	return &plugin.Plugin{Config: cfg, Handler: cfg.handle}, nil
}

// AddProxyHandler registers a sibling's ProxyHandlerFunc, per spec.md
// §4.6's "later plugins may reach back into earlier plugins' typed
// configs to register proxy-handlers."
func (c *Config) AddProxyHandler(f ProxyHandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, f)
}

func (c *Config) addresses() []string {
	switch v := c.ProxyAddress.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// resolveAddress implements spec.md §4.6 step-by-step resolution: sibling
// handlers first, then the static address (random choice across a list).
func (c *Config) resolveAddress(ctx context.Context, req *jqhttp.Request, resp *jqhttp.Response) string {
	c.mu.Lock()
	handlers := append([]ProxyHandlerFunc(nil), c.handlers...)
	c.mu.Unlock()

	for _, h := range handlers {
		if addr := h(ctx, req, resp); addr != "" {
			return addr
		}
	}

	addrs := c.addresses()
	if len(addrs) == 0 {
		return ""
	}
	if len(addrs) == 1 {
		return addrs[0]
	}
	return addrs[rand.Intn(len(addrs))]
}

func (c *Config) handle(ctx context.Context, req *jqhttp.Request, resp *jqhttp.Response) (plugin.Disposition, error) {
	address := c.resolveAddress(ctx, req, resp)
	if address == "" {
		resp.Status = 502
		return plugin.ResultExit(), nil
	}

	t, err := parseTarget(address)
	if err != nil {
		resp.Status = 502
		return plugin.ResultExit(), nil
	}

	cl, err := dial(t)
	if err != nil {
		resp.Status = 502
		return plugin.ResultExit(), nil
	}

	if err := cl.sendRequest(req, t.authority()); err != nil {
		cl.Close()
		resp.Status = 502
		return plugin.ResultExit(), nil
	}

	if err := cl.getResponse(resp); err != nil {
		cl.Close()
		resp.Status = 502
		return plugin.ResultExit(), nil
	}

	if strings.EqualFold(resp.GetHeader("upgrade"), "websocket") {
		return plugin.ResultHijack(func(conn plugin.HijackedConn) {
			relay(conn, cl.conn, resp)
		}), nil
	}

	cl.Close()
	return plugin.ResultExit(), nil
}

// relay writes the already-parsed upgrade response to the hijacked client
// connection (per spec.md §4.6's "engine writes no further bytes for this
// request," the hijack closure itself owns writing it), then bidirectionally
// copies raw bytes between the client connection and the captured upstream
// connection. A transparent relay forwards WebSocket frames unmodified
// rather than decoding and re-encoding them: masking is direction-symmetric
// through a pass-through proxy (the client's already-masked frames are
// exactly what a masked client-to-server frame looks like to the upstream,
// and vice versa for the server-to-client direction), so re-framing at the
// message level would add risk (mishandling fragmented frames) without
// adding correctness.
func relay(client plugin.HijackedConn, upstream net.Conn, resp *jqhttp.Response) {
	defer upstream.Close()
	defer client.Close()

	if err := writeUpgradeResponse(client, resp); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() { io.Copy(upstream, client); done <- struct{}{} }()
	go func() { io.Copy(client, upstream); done <- struct{}{} }()
	<-done
}

// writeUpgradeResponse serializes resp's status line and headers (the
// upstream's 101 Switching Protocols response, already parsed by
// client.getResponse) onto conn, since no engine writes it for a hijacked
// request.
func writeUpgradeResponse(conn io.Writer, resp *jqhttp.Response) error {
	if _, err := fmt.Fprintf(conn, "HTTP/1.1 %d Switching Protocols\r\n", resp.EffectiveStatus()); err != nil {
		return err
	}
	var writeErr error
	resp.Headers.Each(func(name, value string) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintf(conn, "%s: %s\r\n", name, value)
	})
	if writeErr != nil {
		return writeErr
	}
	_, err := io.WriteString(conn, "\r\n")
	return err
}
