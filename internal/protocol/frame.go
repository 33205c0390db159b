package protocol

import (
	"bytes"
	"errors"
	"io"
	"iter"

	"github.com/klauspost/compress/zlib"
)

// MaxInflatedSize bounds the output of a single compressed payload. Larger
// results are treated as a failed inflate and the raw bytes are used.
const MaxInflatedSize = 8 << 20

var errInflateLimit = errors.New("inflated payload exceeds limit")

// Frames yields the payloads of the frames concatenated in chunk, in order.
// Iteration stops at the first prefix that cannot be decoded or whose frame
// extends past the end of the chunk; that trailing data is dropped. Each
// payload is inflated when it is valid zlib data and yielded raw otherwise.
func Frames(chunk []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for len(chunk) > 0 {
			payload, n, ok := nextFrame(chunk)
			if !ok {
				return
			}
			chunk = chunk[n:]
			if !yield(Inflate(payload)) {
				return
			}
		}
	}
}

// Split collects every payload Frames yields for chunk.
func Split(chunk []byte) [][]byte {
	var out [][]byte
	for p := range Frames(chunk) {
		out = append(out, p)
	}
	return out
}

// nextFrame returns the raw payload of the first frame in buf and the total
// number of bytes the frame occupies.
func nextFrame(buf []byte) ([]byte, int, bool) {
	size, width, err := DecodeLength(buf)
	if err != nil {
		return nil, 0, false
	}
	end := width + int(size)
	if end > len(buf) {
		return nil, 0, false
	}
	return buf[width:end], end, true
}

// Inflate returns the zlib-decompressed form of payload, or payload itself
// when it is not a complete zlib stream.
func Inflate(payload []byte) []byte {
	out, err := inflate(payload)
	if err != nil {
		return payload
	}
	return out
}

func inflate(payload []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, MaxInflatedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxInflatedSize {
		return nil, errInflateLimit
	}
	return out, nil
}

// Demuxer splits a byte stream into frame payloads across reads. Unlike
// Split it keeps an incomplete trailing frame and completes it with the next
// chunk. When the held-back data grows past the limit it is discarded.
type Demuxer struct {
	pending []byte
	limit   int
}

// NewDemuxer creates a Demuxer that holds back at most limit bytes.
func NewDemuxer(limit int) *Demuxer {
	return &Demuxer{limit: limit}
}

// Feed appends chunk to the held-back bytes and yields every complete
// payload. The returned count is the number of bytes discarded because the
// held-back data exceeded the limit.
func (d *Demuxer) Feed(chunk []byte) ([][]byte, int) {
	// Payloads must not alias chunk, which the caller reuses between reads.
	buf := append(d.pending, chunk...)
	d.pending = nil

	var out [][]byte
	for len(buf) > 0 {
		payload, n, ok := nextFrame(buf)
		if !ok {
			break
		}
		out = append(out, Inflate(payload))
		buf = buf[n:]
	}

	if len(buf) > d.limit {
		return out, len(buf)
	}
	if len(buf) > 0 {
		d.pending = buf
	}
	return out, 0
}

// Pending returns the number of held-back bytes.
func (d *Demuxer) Pending() int {
	return len(d.pending)
}
