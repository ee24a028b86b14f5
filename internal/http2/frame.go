package http2

import (
	"encoding/binary"
	"io"
)

// Frame types handled per spec.md §4.4; the rest are parsed (their type
// tag decoded) but ignored by the core.
const (
	frameData         uint8 = 0x0
	frameHeaders      uint8 = 0x1
	framePriority     uint8 = 0x2
	frameRSTStream    uint8 = 0x3
	frameSettings     uint8 = 0x4
	framePushPromise  uint8 = 0x5
	framePing         uint8 = 0x6
	frameGoAway       uint8 = 0x7
	frameWindowUpdate uint8 = 0x8
	frameContinuation uint8 = 0x9
)

// Frame flags used by this engine.
const (
	flagEndStream  uint8 = 0x1
	flagAck        uint8 = 0x1 // SETTINGS/PING ack, same bit as END_STREAM on other types
	flagEndHeaders uint8 = 0x4
	flagPadded     uint8 = 0x8
	flagPriority   uint8 = 0x20
)

const frameHeaderLen = 9

// connectionPreface is the fixed 24-byte client preface (RFC 7540 §3.5).
const connectionPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// settingMaxFrameSize is the SETTINGS parameter id this engine tracks
// (RFC 7540 §6.5.2); all others are read and discarded.
const settingMaxFrameSize uint16 = 0x5

const defaultMaxFrameSize = 16384

// frameHeaderT is the 9-byte frame header: 3-byte length, 1-byte type,
// 1-byte flags, 4-byte stream id with the reserved high bit masked to
// zero, per spec.md §4.4's frame layout.
type frameHeaderT struct {
	Length   uint32
	Type     uint8
	Flags    uint8
	StreamID uint32
}

func readFrameHeader(r io.Reader) (frameHeaderT, error) {
	var b [frameHeaderLen]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return frameHeaderT{}, err
	}
	length := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	streamID := binary.BigEndian.Uint32(b[5:9]) &^ (1 << 31)
	return frameHeaderT{
		Length:   length,
		Type:     b[3],
		Flags:    b[4],
		StreamID: streamID,
	}, nil
}

func writeFrameHeader(w io.Writer, h frameHeaderT) error {
	var b [frameHeaderLen]byte
	b[0] = byte(h.Length >> 16)
	b[1] = byte(h.Length >> 8)
	b[2] = byte(h.Length)
	b[3] = h.Type
	b[4] = h.Flags
	binary.BigEndian.PutUint32(b[5:9], h.StreamID&^(1<<31))
	_, err := w.Write(b[:])
	return err
}
