// Package http2 implements the HTTP/2 engine: preface handshake, the 9-byte
// frame header (frame.go), SETTINGS, and HEADERS/DATA processing with HPACK
// via golang.org/x/net/http2/hpack, grounded on jequi/src/http2/mod.rs and
// conn.rs. CONTINUATION is not implemented and multi-frame request bodies
// are not reassembled (only a stream's first DATA frame becomes its body;
// later ones are ignored), both documented limitations.
package http2

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"sync"

	"golang.org/x/net/http2/hpack"

	"jequi/internal/config"
	"jequi/internal/jqhttp"
	"jequi/internal/jqlog"
	"jequi/internal/plugin"
)

// completionQueueCapacity is the handler-task completion channel's
// capacity, per spec.md §4.4/§5 ("bounded MPSC channel, capacity 100").
const completionQueueCapacity = 100

type stream struct {
	id        uint32
	req       *jqhttp.Request
	resp      *jqhttp.Response
	chunkSize int
}

// Engine owns one HTTP/2 connection: the frame reader/writer, the HPACK
// codec (stream-ordered, one encoder and one decoder per connection per
// RFC 7541), the live stream table, and the completion channel handler
// tasks report back on.
type Engine struct {
	raw net.Conn
	br  *bufio.Reader
	bw  *bufio.Writer

	hdec *hpack.Decoder
	henc *hpack.Encoder
	encBuf bytes.Buffer

	cm  func() *config.ConfigMap
	log *jqlog.Logger

	mu               sync.Mutex
	streams          map[uint32]*stream
	peerMaxFrameSize uint32

	completions chan uint32
}

// Serve runs the HTTP/2 connection loop over raw until the peer disconnects.
func Serve(ctx context.Context, raw net.Conn, cm func() *config.ConfigMap, log *jqlog.Logger) error {
	e := &Engine{
		raw:              raw,
		br:               bufio.NewReaderSize(raw, 32*1024),
		bw:               bufio.NewWriter(raw),
		cm:               cm,
		log:              log,
		streams:          map[uint32]*stream{},
		peerMaxFrameSize: defaultMaxFrameSize,
		completions:      make(chan uint32, completionQueueCapacity),
	}
	e.henc = hpack.NewEncoder(&e.encBuf)
	e.hdec = hpack.NewDecoder(4096, nil)

	if err := e.readPreface(); err != nil {
		return err
	}
	if err := e.writeInitialSettings(); err != nil {
		return err
	}

	return e.loop(ctx)
}

func (e *Engine) readPreface() error {
	buf := make([]byte, len(connectionPreface))
	if _, err := io.ReadFull(e.br, buf); err != nil {
		return jqhttp.ErrUnexpectedEOF
	}
	if string(buf) != connectionPreface {
		return jqhttp.ErrInvalidData
	}
	return nil
}

func (e *Engine) writeInitialSettings() error {
	if err := writeFrameHeader(e.bw, frameHeaderT{Length: 0, Type: frameSettings}); err != nil {
		return err
	}
	if err := writeFrameHeader(e.bw, frameHeaderT{Length: 0, Type: frameSettings, Flags: flagAck}); err != nil {
		return err
	}
	return e.bw.Flush()
}

type inboundFrame struct {
	header  frameHeaderT
	payload []byte
	err     error
}

// loop is the single task that owns the connection, selecting between the
// next inbound frame and the next handler-task completion signal, per
// spec.md §4.4's "Main loop" description.
func (e *Engine) loop(ctx context.Context) error {
	frames := make(chan inboundFrame)
	go e.readFrames(frames)

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if f.err != nil {
				if f.err == io.EOF {
					return nil
				}
				return f.err
			}
			if err := e.handleFrame(ctx, f.header, f.payload); err != nil {
				return err
			}
		case id := <-e.completions:
			e.mu.Lock()
			s := e.streams[id]
			delete(e.streams, id)
			e.mu.Unlock()
			if s == nil {
				continue
			}
			if err := e.writeResponse(s); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) readFrames(out chan<- inboundFrame) {
	defer close(out)
	for {
		h, err := readFrameHeader(e.br)
		if err != nil {
			out <- inboundFrame{err: err}
			return
		}
		payload := make([]byte, h.Length)
		if h.Length > 0 {
			if _, err := io.ReadFull(e.br, payload); err != nil {
				out <- inboundFrame{err: jqhttp.ErrUnexpectedEOF}
				return
			}
		}
		out <- inboundFrame{header: h, payload: payload}
	}
}

func (e *Engine) handleFrame(ctx context.Context, h frameHeaderT, payload []byte) error {
	switch h.Type {
	case frameHeaders:
		return e.handleHeaders(ctx, h, payload)
	case frameData:
		return e.handleData(h, payload)
	case frameSettings:
		return e.handleSettings(h, payload)
	default:
		// PRIORITY, RST_STREAM, PUSH_PROMISE, PING, GOAWAY,
		// WINDOW_UPDATE, CONTINUATION: type tag decoded, payload
		// discarded, per spec.md §4.4.
		return nil
	}
}

func (e *Engine) handleSettings(h frameHeaderT, payload []byte) error {
	if h.Flags&flagAck != 0 {
		return nil
	}
	for i := 0; i+6 <= len(payload); i += 6 {
		id := uint16(payload[i])<<8 | uint16(payload[i+1])
		value := uint32(payload[i+2])<<24 | uint32(payload[i+3])<<16 | uint32(payload[i+4])<<8 | uint32(payload[i+5])
		if id == settingMaxFrameSize {
			e.mu.Lock()
			e.peerMaxFrameSize = value
			e.mu.Unlock()
		}
	}
	if err := writeFrameHeader(e.bw, frameHeaderT{Type: frameSettings, Flags: flagAck}); err != nil {
		return err
	}
	return e.bw.Flush()
}

func (e *Engine) handleHeaders(ctx context.Context, h frameHeaderT, payload []byte) error {
	if h.Flags&flagPadded != 0 {
		if len(payload) < 1 {
			return jqhttp.ErrInvalidData
		}
		padLen := int(payload[0])
		payload = payload[1:]
		if padLen > len(payload) {
			return jqhttp.ErrInvalidData
		}
		payload = payload[:len(payload)-padLen]
	}
	if h.Flags&flagPriority != 0 {
		if len(payload) < 5 {
			return jqhttp.ErrInvalidData
		}
		payload = payload[5:]
	}

	req := jqhttp.NewRequest()
	req.Version = "HTTP/2.0"
	var path string
	fields, err := e.hdec.DecodeFull(payload)
	if err != nil {
		return jqhttp.ErrInvalidData
	}
	for _, f := range fields {
		switch f.Name {
		case ":method":
			req.Method = f.Value
		case ":path":
			path = f.Value
		case ":authority":
			req.Host = f.Value
		default:
			if len(f.Name) > 0 && f.Name[0] == ':' {
				continue
			}
			req.Headers.Append(f.Name, f.Value)
		}
	}
	req.URI = jqhttp.NewURI(path)
	if req.Host == "" {
		req.Host = req.Headers.First("host")
	}

	resp := jqhttp.NewResponse()
	list := e.cm().GetConfigForRequest(req.Host, req.URI.Path())
	main := plugin.GetMainConfig(list)

	s := &stream{id: h.StreamID, req: req, resp: resp, chunkSize: main.ChunkSize()}
	e.mu.Lock()
	e.streams[h.StreamID] = s
	e.mu.Unlock()

	if h.Flags&flagEndStream != 0 {
		req.Body.WriteBody(nil)
	}

	go e.runStream(ctx, s, list)
	return nil
}

func (e *Engine) handleData(h frameHeaderT, payload []byte) error {
	e.mu.Lock()
	s := e.streams[h.StreamID]
	e.mu.Unlock()
	if s == nil {
		return nil
	}
	if _, _, written := s.req.Body.TryGetBody(); written {
		return nil
	}
	s.req.Body.WriteBody(payload)
	return nil
}

// runStream runs the request pipeline for s, then reports completion over
// e.completions, per spec.md §4.4's handler-task description.
func (e *Engine) runStream(ctx context.Context, s *stream, list plugin.ConfigList) {
	if _, err := plugin.Run(ctx, list, s.req, s.resp); err != nil {
		if e.log != nil {
			e.log.Errorf("http2: stream %d: plugin pipeline: %v", s.id, err)
		}
		s.resp.Status = 502
	}
	e.completions <- s.id
}

// hopByHopHeaders are HTTP/1-only and MUST NOT be forwarded over HTTP/2,
// per spec.md §4.4 step 1.
var hopByHopHeaders = map[string]bool{
	"transfer-encoding": true,
	"connection":        true,
	"keep-alive":        true,
}

// writeResponse implements spec.md §4.4's four response-write steps.
func (e *Engine) writeResponse(s *stream) error {
	e.encBuf.Reset()

	if err := e.henc.WriteField(hpack.HeaderField{Name: ":status", Value: strconv.Itoa(s.resp.EffectiveStatus())}); err != nil {
		return err
	}
	var encErr error
	s.resp.Headers.Each(func(name, value string) {
		if encErr != nil {
			return
		}
		if hopByHopHeaders[lower(name)] {
			return
		}
		encErr = e.henc.WriteField(hpack.HeaderField{Name: lower(name), Value: value})
	})
	if encErr != nil {
		return encErr
	}

	headerBlock := append([]byte(nil), e.encBuf.Bytes()...)
	body := s.resp.Body.Bytes()

	if len(body) == 0 {
		if err := writeFrameHeader(e.bw, frameHeaderT{
			Length:   uint32(len(headerBlock)),
			Type:     frameHeaders,
			Flags:    flagEndHeaders | flagEndStream,
			StreamID: s.id,
		}); err != nil {
			return err
		}
		if _, err := e.bw.Write(headerBlock); err != nil {
			return err
		}
		return e.bw.Flush()
	}

	if err := writeFrameHeader(e.bw, frameHeaderT{
		Length:   uint32(len(headerBlock)),
		Type:     frameHeaders,
		Flags:    flagEndHeaders,
		StreamID: s.id,
	}); err != nil {
		return err
	}
	if _, err := e.bw.Write(headerBlock); err != nil {
		return err
	}

	chunkSize := s.chunkSize
	e.mu.Lock()
	if int(e.peerMaxFrameSize) < chunkSize || chunkSize <= 0 {
		chunkSize = int(e.peerMaxFrameSize)
	}
	e.mu.Unlock()
	if chunkSize <= 0 {
		chunkSize = defaultMaxFrameSize
	}

	for len(body) > 0 {
		n := chunkSize
		if n > len(body) {
			n = len(body)
		}
		flags := uint8(0)
		if n == len(body) {
			flags = flagEndStream
		}
		if err := writeFrameHeader(e.bw, frameHeaderT{
			Length:   uint32(n),
			Type:     frameData,
			Flags:    flags,
			StreamID: s.id,
		}); err != nil {
			return err
		}
		if _, err := e.bw.Write(body[:n]); err != nil {
			return err
		}
		body = body[n:]
	}
	return e.bw.Flush()
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
