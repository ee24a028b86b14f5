// Package dispatcher implements the connection dispatcher: a TCP listener
// with keep-alive and optional PROXY protocol v1/v2 peeling, an accept loop
// spawning one goroutine per connection against a ConfigMap snapshot, TLS
// termination when active, and ALPN-based branching into the HTTP/1.1 or
// HTTP/2 engine. Grounded on air's listener.go (listener/proxyConn) for the
// keep-alive/PROXY-protocol listener, adapted so the PROXY relayer
// whitelist and protocol toggle are read from jequi's main plugin config
// instead of air's top-level fields (SPEC_FULL.md §C: PROXY protocol is a
// supplemented feature, off by default).
package dispatcher

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// proxyProtocolV2Sign is the 12-byte signature of PROXY protocol v2.
var proxyProtocolV2Sign = []byte{
	0x0d, 0x0a, 0x0d, 0x0a,
	0x00, 0x0d, 0x0a, 0x51,
	0x55, 0x49, 0x54, 0x0a,
}

// Listener wraps a *net.TCPListener with keep-alive and, when enabled,
// PROXY protocol peeling restricted to a relayer IP whitelist.
type Listener struct {
	*net.TCPListener

	proxyEnabled       bool
	allowedRelayerNets []*net.IPNet
	proxyReadTimeout   time.Duration
}

// NewListener builds a Listener. relayerCIDRsOrIPs may be bare IPs (widened
// to a host /32 or /128) or CIDRs; an empty list with proxyEnabled true
// trusts any peer to speak the PROXY protocol.
func NewListener(proxyEnabled bool, relayerCIDRsOrIPs []string, proxyReadTimeout time.Duration) *Listener {
	var nets []*net.IPNet
	for _, s := range relayerCIDRsOrIPs {
		if ip := net.ParseIP(s); ip != nil {
			switch {
			case ip.IsUnspecified():
				s = ip.String() + "/0"
			case ip.To4() != nil:
				s = ip.String() + "/32"
			default:
				s = ip.String() + "/128"
			}
		}
		if _, ipNet, _ := net.ParseCIDR(s); ipNet != nil {
			nets = append(nets, ipNet)
		}
	}
	return &Listener{
		proxyEnabled:       proxyEnabled,
		allowedRelayerNets: nets,
		proxyReadTimeout:   proxyReadTimeout,
	}
}

// Listen binds address ("ip:port") and records the bound *net.TCPListener.
func (l *Listener) Listen(address string) error {
	nl, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	l.TCPListener = nl.(*net.TCPListener)
	return nil
}

// Accept implements net.Listener, applying keep-alive and optional PROXY
// protocol peeling to each accepted connection.
func (l *Listener) Accept() (net.Conn, error) {
	tc, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)

	if !l.proxyEnabled {
		return tc, nil
	}

	proxyable := len(l.allowedRelayerNets) == 0
	if !proxyable {
		host, _, _ := net.SplitHostPort(tc.RemoteAddr().String())
		ip := net.ParseIP(host)
		for _, n := range l.allowedRelayerNets {
			if n.Contains(ip) {
				proxyable = true
				break
			}
		}
	}
	if !proxyable {
		return tc, nil
	}

	return &proxyConn{
		Conn:           tc,
		bufReader:      bufio.NewReader(tc),
		readHeaderOnce: &sync.Once{},
		readTimeout:    l.proxyReadTimeout,
	}, nil
}

// proxyConn is a net.Conn that may be prefixed with a PROXY protocol v1 or
// v2 header; the header, if present, is consumed on first Read/LocalAddr/
// RemoteAddr call and used to substitute the real peer addresses.
type proxyConn struct {
	net.Conn

	bufReader      *bufio.Reader
	srcAddr        *net.TCPAddr
	dstAddr        *net.TCPAddr
	readHeaderOnce *sync.Once
	readHeaderErr  error
	readTimeout    time.Duration
}

func (pc *proxyConn) Read(b []byte) (int, error) {
	pc.readHeaderOnce.Do(pc.readHeader)
	if pc.readHeaderErr != nil {
		return 0, pc.readHeaderErr
	}
	return pc.bufReader.Read(b)
}

func (pc *proxyConn) LocalAddr() net.Addr {
	pc.readHeaderOnce.Do(pc.readHeader)
	if pc.dstAddr != nil {
		return pc.dstAddr
	}
	return pc.Conn.LocalAddr()
}

func (pc *proxyConn) RemoteAddr() net.Addr {
	pc.readHeaderOnce.Do(pc.readHeader)
	if pc.srcAddr != nil {
		return pc.srcAddr
	}
	return pc.Conn.RemoteAddr()
}

func (pc *proxyConn) readHeader() {
	if pc.readTimeout != 0 {
		pc.SetReadDeadline(time.Now().Add(pc.readTimeout))
		defer pc.SetReadDeadline(time.Time{})
	}

	defer func() {
		if pc.readHeaderErr != nil && pc.readHeaderErr != io.EOF {
			pc.Close()
			pc.bufReader = bufio.NewReader(pc.Conn)
		}
	}()

	isV1 := true
	for i := 0; i < len("PROXY "); i++ {
		b, err := pc.bufReader.Peek(i + 1)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return
			}
			pc.readHeaderErr = err
			return
		}
		if b[i] != "PROXY "[i] {
			isV1 = false
			break
		}
	}

	if isV1 {
		pc.readHeaderV1()
		return
	}
	pc.readHeaderV2()
}

func (pc *proxyConn) readHeaderV1() {
	header, err := pc.bufReader.ReadString('\n')
	if err != nil {
		pc.readHeaderErr = err
		return
	}
	header = strings.TrimRight(header, "\r\n")

	parts := strings.Split(header, " ")
	if len(parts) != 6 {
		pc.readHeaderErr = fmt.Errorf("jequi: malformed proxy header line: %s", header)
		return
	}
	switch parts[1] {
	case "TCP4", "TCP6":
	default:
		pc.readHeaderErr = fmt.Errorf("jequi: unsupported proxy transport protocol: %s", parts[1])
		return
	}

	srcIP := net.ParseIP(parts[2])
	dstIP := net.ParseIP(parts[3])
	if srcIP == nil || dstIP == nil {
		pc.readHeaderErr = fmt.Errorf("jequi: invalid proxy address in header: %s", header)
		return
	}
	srcPort, err1 := strconv.Atoi(parts[4])
	dstPort, err2 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil {
		pc.readHeaderErr = fmt.Errorf("jequi: invalid proxy port in header: %s", header)
		return
	}

	pc.srcAddr = &net.TCPAddr{IP: srcIP, Port: srcPort}
	pc.dstAddr = &net.TCPAddr{IP: dstIP, Port: dstPort}
}

func (pc *proxyConn) readHeaderV2() {
	for i := 0; i < len(proxyProtocolV2Sign); i++ {
		b, err := pc.bufReader.Peek(i + 1)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return
			}
			pc.readHeaderErr = err
			return
		}
		if b[i] != proxyProtocolV2Sign[i] {
			return // not PROXY protocol at all; leave bytes for the caller
		}
	}
	if _, err := pc.bufReader.Discard(len(proxyProtocolV2Sign)); err != nil {
		pc.readHeaderErr = err
		return
	}

	b, err := pc.bufReader.ReadByte()
	if err != nil {
		pc.readHeaderErr = err
		return
	}
	if b&0xf0 != 0x20 {
		pc.readHeaderErr = errors.New("jequi: unsupported proxy protocol version")
		return
	}
	if b&0x0f != 0x01 {
		pc.readHeaderErr = errors.New("jequi: unsupported proxy command")
		return
	}

	b, err = pc.bufReader.ReadByte()
	if err != nil {
		pc.readHeaderErr = err
		return
	}
	switch b & 0xf0 {
	case 0x10, 0x20:
	default:
		pc.readHeaderErr = errors.New("jequi: unsupported proxy address family")
		return
	}
	if b&0x0f != 0x01 {
		pc.readHeaderErr = errors.New("jequi: unsupported proxy transport protocol")
		return
	}

	var expected uint16
	switch b {
	case 0x11:
		expected = 12
	case 0x21:
		expected = 36
	default:
		pc.readHeaderErr = errors.New("jequi: unsupported proxy family/protocol combination")
		return
	}

	var addrLen uint16
	if err := binary.Read(io.LimitReader(pc.bufReader, 2), binary.BigEndian, &addrLen); err != nil {
		pc.readHeaderErr = fmt.Errorf("jequi: reading proxy address length: %w", err)
		return
	}
	if addrLen != expected {
		pc.readHeaderErr = fmt.Errorf("jequi: invalid proxy address length: %d", addrLen)
		return
	}

	var ipLen int
	switch addrLen {
	case 12:
		ipLen = 4
	case 36:
		ipLen = 16
	}

	combined := make([]byte, addrLen)
	if _, err := io.ReadFull(pc.bufReader, combined); err != nil {
		pc.readHeaderErr = fmt.Errorf("jequi: reading proxy addresses: %w", err)
		return
	}

	srcIP := net.IP(combined[0:ipLen])
	dstIP := net.IP(combined[ipLen : 2*ipLen])
	srcPort := combined[2*ipLen : 2*ipLen+2]
	dstPort := combined[2*ipLen+2 : 2*ipLen+4]

	pc.srcAddr = &net.TCPAddr{IP: srcIP, Port: int(binary.BigEndian.Uint16(srcPort))}
	pc.dstAddr = &net.TCPAddr{IP: dstIP, Port: int(binary.BigEndian.Uint16(dstPort))}
}
