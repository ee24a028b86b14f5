package dispatcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"jequi/internal/config"
	"jequi/internal/http1"
	"jequi/internal/http2"
	"jequi/internal/jqlog"
	"jequi/internal/plugin"
	"jequi/internal/tlsterm"
)

// Dispatcher binds the server socket, accepts connections, and spawns one
// goroutine per connection running (TLS terminator if active) -> ALPN
// engine selection -> the engine's serve loop, per spec.md §4.7's control
// flow and §5's per-connection ConfigMap snapshot.
type Dispatcher struct {
	snapshot atomic.Pointer[config.ConfigMap]

	configPath string
	log        *jqlog.Logger

	listener  *Listener
	tlsActive bool
}

// New builds a Dispatcher that will serve configPath's resolved
// configuration. Call Reload once before Serve to populate the initial
// snapshot.
func New(configPath string, log *jqlog.Logger) *Dispatcher {
	return &Dispatcher{configPath: configPath, log: log}
}

// Reload re-parses configPath and atomically swaps the active ConfigMap
// snapshot, per spec.md §5 ("a reload task ... replaces it atomically").
// In-flight connections keep using whatever snapshot they captured at
// accept time; only new connections (and new TLS handshakes, via
// tlsterm.Terminator reading through Current) see the swap.
func (d *Dispatcher) Reload() error {
	cm, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("jequi: loading config %q: %w", d.configPath, err)
	}
	d.snapshot.Store(cm)
	return nil
}

// Current returns the active ConfigMap snapshot.
func (d *Dispatcher) Current() *config.ConfigMap {
	return d.snapshot.Load()
}

// Serve binds (main.ip, main.port) from the initial snapshot's top-level
// main plugin and runs the accept loop until ctx is cancelled or Accept
// returns a fatal error.
func (d *Dispatcher) Serve(ctx context.Context) error {
	cm := d.Current()
	if cm == nil {
		return fmt.Errorf("jequi: dispatcher has no config snapshot; call Reload first")
	}
	main := plugin.GetMainConfig(cm.Config)

	addr := main.Address()
	if addr == "" {
		return fmt.Errorf("jequi: main plugin missing ip/port")
	}

	d.listener = NewListener(main.PROXYEnabled(), main.PROXYRelayerWhitelist(), 0)
	if err := d.listener.Listen(addr); err != nil {
		return fmt.Errorf("jequi: binding %q: %w", addr, err)
	}
	defer d.listener.Close()
	go func() {
		<-ctx.Done()
		d.listener.Close()
	}()

	d.tlsActive = main.TLSActive()

	var netListener net.Listener = d.listener
	if d.tlsActive {
		term := tlsterm.NewTerminator(d.Current)
		netListener = tls.NewListener(d.listener, term.TLSConfig())
	}

	for {
		conn, err := netListener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("jequi: accept: %w", err)
			}
			if d.log != nil {
				d.log.Errorf("dispatcher: accept: %v", err)
			}
			continue
		}
		go d.handleConnection(ctx, conn)
	}
}

// handleConnection branches on the negotiated ALPN protocol (or lack of
// TLS) into the HTTP/2 or HTTP/1.1 engine, per spec.md §4.2's closing
// sentence: "h2 -> HTTP/2 engine; anything else -> HTTP/1.1 engine."
func (d *Dispatcher) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	snapshot := d.Current()
	current := func() *config.ConfigMap { return snapshot }

	useHTTP2 := false
	if tc, ok := conn.(*tls.Conn); ok {
		if err := tc.HandshakeContext(ctx); err != nil {
			if d.log != nil {
				d.log.Debugf("dispatcher: tls handshake: %v", err)
			}
			return
		}
		useHTTP2 = tc.ConnectionState().NegotiatedProtocol == "h2"
	}

	var err error
	if useHTTP2 {
		err = http2.Serve(ctx, conn, current, d.log)
	} else {
		err = http1.Serve(ctx, conn, current, d.log)
	}
	if err != nil && d.log != nil {
		d.log.Debugf("dispatcher: connection: %v", err)
	}
}
