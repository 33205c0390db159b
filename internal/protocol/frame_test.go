package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestSplitConcatenatedFrames(t *testing.T) {
	first := []byte{0x02, 0x01, 0x02, 0x03, 0x04}
	second := bytes.Repeat([]byte{0x03}, 200)

	var chunk []byte
	chunk = append(chunk, EncodeLength(uint32(len(first)))...)
	chunk = append(chunk, first...)
	chunk = append(chunk, EncodeLength(uint32(len(second)))...)
	chunk = append(chunk, second...)

	if chunk[0] != 0x0B {
		t.Fatalf("first prefix = %#x, want 0x0B", chunk[0])
	}

	got := Split(chunk)
	if len(got) != 2 {
		t.Fatalf("got %d payloads, want 2", len(got))
	}
	if !bytes.Equal(got[0], first) || !bytes.Equal(got[1], second) {
		t.Fatalf("payloads not returned in order: %x / %d bytes", got[0], len(got[1]))
	}
}

func TestWriterFrameLayout(t *testing.T) {
	frame := NewPacketWriter(OutSendPlayers).WriteUInt32(42).WriteString("hi").ToFrame(false)
	want := []byte{0x11, 0x03, 0x2A, 0x00, 0x00, 0x00, 0x68, 0x69, 0x00}
	if !bytes.Equal(frame, want) {
		t.Fatalf("frame = % x, want % x", frame, want)
	}
}

func TestSplitReproducesWriterPayloads(t *testing.T) {
	writers := []*PacketWriter{
		NewPacketWriter(OutChat).WriteString("hello"),
		NewPacketWriter(OutKill).WriteFloat(3).WriteBool(true),
		NewPacketWriter(OutDeleteBrick).WriteUInt32(2).WriteUInt32(7).WriteUInt32(9),
		NewPacketWriter(OutBrick).WriteBytes(bytes.Repeat([]byte{0x55}, 300)),
	}
	var chunk []byte
	for _, w := range writers {
		chunk = append(chunk, w.ToFrame(false)...)
	}
	got := Split(chunk)
	if len(got) != len(writers) {
		t.Fatalf("got %d payloads, want %d", len(got), len(writers))
	}
	for i, w := range writers {
		if !bytes.Equal(got[i], w.Payload()) {
			t.Fatalf("payload %d = % x, want % x", i, got[i], w.Payload())
		}
	}
}

func TestCompressedFramesAreTransparent(t *testing.T) {
	w := NewPacketWriter(OutSendBrick).WriteUInt32(3)
	for i := 0; i < 3; i++ {
		w.WriteUInt32(uint32(i)).WriteFloat(1).WriteFloat(2).WriteFloat(3).WriteString("")
	}
	plain := Split(w.ToFrame(false))
	packed := Split(w.ToFrame(true))
	if len(plain) != 1 || len(packed) != 1 {
		t.Fatalf("expected one payload each, got %d and %d", len(plain), len(packed))
	}
	if !bytes.Equal(plain[0], packed[0]) {
		t.Fatalf("compressed payload decoded to % x, want % x", packed[0], plain[0])
	}
	if !bytes.Equal(packed[0], w.Payload()) {
		t.Fatalf("payload mismatch after inflate")
	}
}

func TestShortTrailingFrameIsDropped(t *testing.T) {
	chunk := NewPacketWriter(OutChat).WriteString("ok").ToFrame(false)
	chunk = append(chunk, EncodeLength(50)...)
	chunk = append(chunk, 0x06, 0x61)

	got := Split(chunk)
	if len(got) != 1 {
		t.Fatalf("got %d payloads, want 1", len(got))
	}
}

func TestFramesStopsEarly(t *testing.T) {
	var chunk []byte
	for i := 0; i < 5; i++ {
		chunk = append(chunk, NewPacketWriter(OutChat).WriteString("x").ToFrame(false)...)
	}
	n := 0
	for range Frames(chunk) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("iterated %d frames, want 2", n)
	}
}

func TestDemuxerReassemblesAcrossChunks(t *testing.T) {
	frame := NewPacketWriter(OutChat).WriteString("across reads").ToFrame(false)
	d := NewDemuxer(1024)

	got, dropped := d.Feed(frame[:4])
	if len(got) != 0 || dropped != 0 {
		t.Fatalf("partial chunk yielded %d payloads, dropped %d", len(got), dropped)
	}
	if d.Pending() != 4 {
		t.Fatalf("pending = %d, want 4", d.Pending())
	}

	rest := append(append([]byte(nil), frame[4:]...), frame...)
	got, dropped = d.Feed(rest)
	if len(got) != 2 || dropped != 0 {
		t.Fatalf("got %d payloads (dropped %d), want 2", len(got), dropped)
	}
	if d.Pending() != 0 {
		t.Fatalf("pending = %d after complete frames", d.Pending())
	}
}

func TestDemuxerDiscardsOversizedRemainder(t *testing.T) {
	d := NewDemuxer(8)
	chunk := append(EncodeLength(1000), bytes.Repeat([]byte{1}, 20)...)
	got, dropped := d.Feed(chunk)
	if len(got) != 0 || dropped != len(chunk) {
		t.Fatalf("got %d payloads, dropped %d, want 0 and %d", len(got), dropped, len(chunk))
	}
	if d.Pending() != 0 {
		t.Fatalf("oversized remainder kept")
	}
}

func TestReaderUnderrunLeavesCursor(t *testing.T) {
	r := NewPacketReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.ReadUInt32(); !IsUnderrun(err) {
		t.Fatalf("ReadUInt32 on 3 bytes: err = %v, want underrun", err)
	}
	if r.Remaining() != 3 {
		t.Fatalf("cursor moved on failed read: remaining %d", r.Remaining())
	}
	if _, err := r.ReadStringNT(); !IsUnderrun(err) {
		t.Fatalf("unterminated string: err = %v, want underrun", err)
	}
	v, err := r.ReadUInt8()
	if err != nil || v != 1 {
		t.Fatalf("ReadUInt8 = (%d, %v)", v, err)
	}
}

func TestReaderReadsWriterFields(t *testing.T) {
	w := NewPacketWriter(OutFigure).
		WriteUInt32(0xDEADBEEF).
		WriteInt32(-12).
		WriteFloat(1.5).
		WriteString("name").
		WriteBool(true)

	pkt, err := ParsePacket(w.Payload())
	if err != nil || pkt.Type != OutFigure {
		t.Fatalf("ParsePacket = (%v, %v)", pkt.Type, err)
	}
	r := NewPacketReader(pkt.Payload)
	u, _ := r.ReadUInt32()
	i, _ := r.ReadInt32()
	f, _ := r.ReadFloatLE()
	s, _ := r.ReadStringNT()
	b, err := r.ReadUInt8()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if u != 0xDEADBEEF || i != -12 || f != 1.5 || s != "name" || b != 1 {
		t.Fatalf("decoded (%#x, %d, %v, %q, %d)", u, i, f, s, b)
	}
	if r.Remaining() != 0 {
		t.Fatalf("%d bytes left over", r.Remaining())
	}
}

func TestParsePacketEmpty(t *testing.T) {
	_, err := ParsePacket(nil)
	var u *UnderrunError
	if !errors.As(err, &u) {
		t.Fatalf("err = %v, want UnderrunError", err)
	}
}
