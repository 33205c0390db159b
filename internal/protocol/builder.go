package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zlib"
)

// PacketWriter accumulates the payload of one outbound packet. The first
// byte is always the packet type. Writers are single-use and not safe for
// concurrent use.
type PacketWriter struct {
	typ PacketType
	buf bytes.Buffer
}

// NewPacketWriter creates a writer whose payload starts with typ.
func NewPacketWriter(typ PacketType) *PacketWriter {
	w := &PacketWriter{typ: typ}
	w.buf.WriteByte(byte(typ))
	return w
}

// Type returns the packet type the writer was created with.
func (w *PacketWriter) Type() PacketType {
	return w.typ
}

// WriteUInt8 appends one byte.
func (w *PacketWriter) WriteUInt8(v uint8) *PacketWriter {
	w.buf.WriteByte(v)
	return w
}

// WriteBool appends 1 for true and 0 for false.
func (w *PacketWriter) WriteBool(v bool) *PacketWriter {
	if v {
		return w.WriteUInt8(1)
	}
	return w.WriteUInt8(0)
}

// WriteUInt32 appends a little-endian uint32.
func (w *PacketWriter) WriteUInt32(v uint32) *PacketWriter {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

// WriteInt32 appends a little-endian two's complement int32.
func (w *PacketWriter) WriteInt32(v int32) *PacketWriter {
	return w.WriteUInt32(uint32(v))
}

// WriteFloat appends a little-endian IEEE-754 float32.
func (w *PacketWriter) WriteFloat(v float32) *PacketWriter {
	return w.WriteUInt32(math.Float32bits(v))
}

// WriteString appends the bytes of s followed by a zero byte.
func (w *PacketWriter) WriteString(s string) *PacketWriter {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
	return w
}

// WriteBytes appends raw bytes.
func (w *PacketWriter) WriteBytes(data []byte) *PacketWriter {
	w.buf.Write(data)
	return w
}

// Payload returns the uncompressed payload written so far.
func (w *PacketWriter) Payload() []byte {
	return w.buf.Bytes()
}

// Len returns the current payload size.
func (w *PacketWriter) Len() int {
	return w.buf.Len()
}

// ToFrame returns the wire frame for the packet: a length prefix followed by
// the payload. With compress set the payload is zlib-deflated first and the
// prefix carries the compressed length. Payloads longer than MaxFrameLength
// cannot be framed and cause a panic.
func (w *PacketWriter) ToFrame(compress bool) []byte {
	payload := w.buf.Bytes()
	if compress {
		payload = Deflate(payload)
	}
	if len(payload) > MaxFrameLength {
		panic(fmt.Sprintf("protocol: payload of %d bytes exceeds frame limit", len(payload)))
	}
	prefix := EncodeLength(uint32(len(payload)))
	frame := make([]byte, 0, len(prefix)+len(payload))
	frame = append(frame, prefix...)
	return append(frame, payload...)
}

// Deflate compresses data with zlib.
func Deflate(data []byte) []byte {
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	// Writes into a bytes.Buffer cannot fail.
	zw.Write(data)
	zw.Close()
	return out.Bytes()
}

// String returns a hex dump of the payload for debugging.
func (w *PacketWriter) String() string {
	data := w.buf.Bytes()
	return fmt.Sprintf("PacketWriter[%d bytes]: %x", len(data), data)
}
