package protocol

import (
	"bytes"
	"encoding/binary"
	"math"
)

// PacketReader walks the body of an inbound packet. Every read either
// consumes exactly the bytes it decoded or fails with an UnderrunError and
// leaves the cursor untouched.
type PacketReader struct {
	data []byte
	pos  int
}

// NewPacketReader returns a reader positioned at the start of data.
func NewPacketReader(data []byte) *PacketReader {
	return &PacketReader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *PacketReader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *PacketReader) need(op string, n int) error {
	if r.Remaining() < n {
		return &UnderrunError{Op: op, Need: n, Have: r.Remaining()}
	}
	return nil
}

// ReadUInt8 reads one byte.
func (r *PacketReader) ReadUInt8() (uint8, error) {
	if err := r.need("uint8", 1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

// ReadUInt32 reads a little-endian uint32.
func (r *PacketReader) ReadUInt32() (uint32, error) {
	if err := r.need("uint32", 4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadInt32 reads a little-endian int32.
func (r *PacketReader) ReadInt32() (int32, error) {
	v, err := r.ReadUInt32()
	return int32(v), err
}

// ReadFloatLE reads a little-endian float32.
func (r *PacketReader) ReadFloatLE() (float32, error) {
	if err := r.need("float", 4); err != nil {
		return 0, err
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	return v, nil
}

// ReadStringNT reads bytes up to the next zero byte and consumes the
// terminator. A string without a terminator is an underrun.
func (r *PacketReader) ReadStringNT() (string, error) {
	i := bytes.IndexByte(r.data[r.pos:], 0)
	if i < 0 {
		return "", &UnderrunError{Op: "string", Need: r.Remaining() + 1, Have: r.Remaining()}
	}
	s := string(r.data[r.pos : r.pos+i])
	r.pos += i + 1
	return s, nil
}
