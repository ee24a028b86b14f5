// Package tlsterm implements the TLS terminator: SNI-driven certificate
// selection and ALPN negotiation, grounded on air.go's Serve (tlsConfig
// assembly, Certificates/NextProtos wiring) and on crypto/tls's
// GetConfigForClient hook, the idiomatic Go analogue of the OpenSSL SNI
// callback jequi/src/ssl.rs installs.
package tlsterm

import (
	"crypto/tls"
	"fmt"
	"sync"

	"jequi/internal/config"
	"jequi/internal/jqhttp"
	"jequi/internal/plugin"
)

// alpnHTTP2 and alpnHTTP1 are the two protocol strings the terminator ever
// negotiates (spec.md §4.2).
const (
	alpnHTTP2 = "h2"
	alpnHTTP1 = "http/1.1"
)

// Terminator builds a *tls.Config whose GetConfigForClient hook re-resolves
// the active ConfigMap on every ClientHello, so a config reload (spec.md
// §5's atomic pointer swap) takes effect on the very next handshake without
// restarting the listener.
type Terminator struct {
	// ConfigMap returns the currently active configuration snapshot; set
	// to something backed by sync/atomic.Pointer[config.ConfigMap] by the
	// dispatcher (internal/dispatcher).
	ConfigMap func() *config.ConfigMap

	mu    sync.Mutex
	certs map[string]*tls.Certificate // cache: "keyPath|certPath" -> parsed cert
}

// NewTerminator returns a Terminator reading ConfigMap snapshots from cm.
func NewTerminator(cm func() *config.ConfigMap) *Terminator {
	return &Terminator{ConfigMap: cm, certs: map[string]*tls.Certificate{}}
}

// TLSConfig returns the base *tls.Config to wrap a net.Listener with
// (tls.NewListener); all the actual per-connection work happens in
// GetConfigForClient.
func (t *Terminator) TLSConfig() *tls.Config {
	return &tls.Config{GetConfigForClient: t.getConfigForClient}
}

// getConfigForClient implements spec.md §4.2: resolve the host's main-plugin
// config via ClientHello's ServerName, load its certificate/key pair, and
// build an ALPN-aware *tls.Config for this one connection.
func (t *Terminator) getConfigForClient(chi *tls.ClientHelloInfo) (*tls.Config, error) {
	cm := t.ConfigMap()
	if cm == nil {
		return nil, fmt.Errorf("jequi: tls terminator has no active config")
	}

	list := cm.GetConfigForRequest(chi.ServerName, "")
	main := plugin.GetMainConfig(list)

	if !main.TLSActive() {
		return nil, fmt.Errorf("jequi: tls not active for host %q", chi.ServerName)
	}

	cert, err := t.loadCertificate(main.SSLKeyPath(), main.SSLCertificatePath())
	if err != nil {
		return nil, err
	}

	selected, err := selectALPN(main.HTTP2Enabled(), chi.SupportedProtos)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		NextProtos:   []string{selected},
	}, nil
}

// selectALPN implements spec.md §4.2's selection table exactly.
func selectALPN(http2Enabled bool, peerOffers []string) (string, error) {
	offersH2 := containsFold(peerOffers, alpnHTTP2)
	offersH1 := containsFold(peerOffers, alpnHTTP1)

	if !http2Enabled {
		if offersH1 || len(peerOffers) == 0 {
			return alpnHTTP1, nil
		}
		return "", jqhttp.ErrUnsupported
	}

	switch {
	case offersH2:
		return alpnHTTP2, nil
	case offersH1:
		return alpnHTTP1, nil
	default:
		return "", jqhttp.ErrUnsupported
	}
}

func containsFold(ss []string, target string) bool {
	for _, s := range ss {
		if len(s) == len(target) && equalFold(s, target) {
			return true
		}
	}
	return false
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

// loadCertificate loads and caches an X.509 key pair by path, mirroring
// air.go's Serve doing tls.LoadX509KeyPair once per configured pair; here
// it is once per distinct (key, cert) path pair across all hosts, since
// multiple hosts may share the same certificate.
func (t *Terminator) loadCertificate(keyPath, certPath string) (*tls.Certificate, error) {
	if keyPath == "" || certPath == "" {
		return nil, fmt.Errorf("jequi: tls active but ssl_key/ssl_certificate not set")
	}

	cacheKey := keyPath + "|" + certPath

	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.certs[cacheKey]; ok {
		return c, nil
	}

	c, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("jequi: loading certificate %q/%q: %w", certPath, keyPath, err)
	}
	t.certs[cacheKey] = &c
	return &c, nil
}
