package protocol

import (
	"encoding/binary"
	"fmt"
)

// Tier boundaries of the length prefix. Each wider tier starts where the
// narrower one ends, so every value has exactly one minimal encoding.
const (
	tier1 = 0x80
	tier2 = 0x4080
	tier3 = 0x204080
)

// EncodeLength encodes n with the smallest width that can carry it.
//
//	n < 0x80       1 byte   (n << 1) | 1
//	n < 0x4080     2 bytes  ((n - 0x80) << 2) | 2
//	n < 0x204080   3 bytes  ((n - 0x4080) << 3) | 4
//	otherwise      4 bytes  (n - 0x204080) << 3
func EncodeLength(n uint32) []byte {
	switch {
	case n < tier1:
		return []byte{byte(n<<1 | 1)}
	case n < tier2:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16((n-tier1)<<2|2))
		return buf
	case n < tier3:
		v := (n-tier2)<<3 | 4
		buf := make([]byte, 3)
		buf[0] = byte(v)
		binary.LittleEndian.PutUint16(buf[1:], uint16(v>>8))
		return buf
	default:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, (n-tier3)<<3)
		return buf
	}
}

// LengthWidth returns the number of bytes EncodeLength(n) produces.
func LengthWidth(n uint32) int {
	switch {
	case n < tier1:
		return 1
	case n < tier2:
		return 2
	case n < tier3:
		return 3
	default:
		return 4
	}
}

// DecodeLength decodes the length prefix at the start of buf and returns the
// value together with the number of bytes it occupied. The buffer is never
// consumed on failure.
func DecodeLength(buf []byte) (uint32, int, error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("%w: empty length prefix", ErrFraming)
	}
	tag := buf[0]
	switch {
	case tag&1 != 0:
		return uint32(tag >> 1), 1, nil
	case tag&2 != 0:
		if len(buf) < 2 {
			return 0, 0, fmt.Errorf("%w: need 2 bytes for length prefix, have %d", ErrFraming, len(buf))
		}
		return uint32(binary.LittleEndian.Uint16(buf)>>2) + tier1, 2, nil
	case tag&4 != 0:
		if len(buf) < 3 {
			return 0, 0, fmt.Errorf("%w: need 3 bytes for length prefix, have %d", ErrFraming, len(buf))
		}
		v := uint32(buf[2])<<13 + uint32(buf[1])<<5 + uint32(buf[0]>>3)
		return v + tier2, 3, nil
	default:
		if len(buf) < 4 {
			return 0, 0, fmt.Errorf("%w: need 4 bytes for length prefix, have %d", ErrFraming, len(buf))
		}
		return binary.LittleEndian.Uint32(buf)>>3 + tier3, 4, nil
	}
}
