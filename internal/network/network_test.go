package network

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/protocol"
)

type fakeSocket struct {
	mu     sync.Mutex
	closed bool
	frames [][]byte
}

func (s *fakeSocket) Send(frame []byte) <-chan struct{} {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (s *fakeSocket) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestBroadcastSkipsClosedSockets(t *testing.T) {
	sockets := make([]*fakeSocket, 100)
	targets := make([]Socket, 100)
	for i := range sockets {
		sockets[i] = &fakeSocket{closed: i == 10 || i == 50 || i == 99}
		targets[i] = sockets[i]
	}

	frame := protocol.BuildChat("hello").ToFrame(false)
	d := Broadcast(frame, targets)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if d.Sent != 97 || d.Skipped != 3 {
		t.Fatalf("Sent=%d Skipped=%d, want 97 and 3", d.Sent, d.Skipped)
	}
	for i, s := range sockets {
		want := 1
		if s.closed {
			want = 0
		}
		if s.count() != want {
			t.Fatalf("socket %d received %d frames, want %d", i, s.count(), want)
		}
	}
}

func TestSendSkipsNilSocket(t *testing.T) {
	d := Send([]byte{1}, nil)
	if d.Sent != 0 || d.Skipped != 1 {
		t.Fatalf("Sent=%d Skipped=%d", d.Sent, d.Skipped)
	}
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatalf("empty delivery never completed")
	}
}

func TestConnectionPreservesOrder(t *testing.T) {
	server, client := net.Pipe()
	conn := NewConnection(1, server, nil)
	defer conn.Close()

	var want bytes.Buffer
	for i := 0; i < 50; i++ {
		frame := protocol.NewPacketWriter(protocol.OutChat).WriteUInt32(uint32(i)).ToFrame(false)
		want.Write(frame)
		conn.Send(frame)
	}
	done := conn.CloseAfterFlush()

	got, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want.Bytes()) {
		t.Fatalf("received %d bytes out of order or incomplete, want %d", len(got), want.Len())
	}
	<-done
	if !conn.IsClosed() {
		t.Fatalf("connection not closed after flush")
	}
	if conn.BytesSent() != uint64(want.Len()) {
		t.Fatalf("BytesSent = %d, want %d", conn.BytesSent(), want.Len())
	}
}

func TestSendAfterCloseCompletesImmediately(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewConnection(2, server, nil)
	conn.Close()

	select {
	case <-conn.Send([]byte{0x01}):
	case <-time.After(time.Second):
		t.Fatalf("send on closed connection blocked")
	}
	d := Send([]byte{0x01}, conn)
	if d.Skipped != 1 {
		t.Fatalf("closed connection not skipped")
	}
}

func TestMaskIP(t *testing.T) {
	cases := map[string]string{
		"192.168.4.20:5000": "192.168.x.x",
		"10.0.0.1":          "10.0.x.x",
		"[::1]:42480":       "::1",
	}
	for in, want := range cases {
		if got := MaskIP(in); got != want {
			t.Fatalf("MaskIP(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegistryListSortedByID(t *testing.T) {
	reg := NewConnectionRegistry()
	for _, id := range []uint64{7, 3, 5} {
		server, client := net.Pipe()
		defer client.Close()
		reg.Register(NewConnection(id, server, nil))
	}

	list := reg.List()
	if len(list) != 3 || reg.Count() != 3 {
		t.Fatalf("List = %+v", list)
	}
	for i, want := range []uint64{3, 5, 7} {
		if list[i].ID != want {
			t.Fatalf("list[%d].ID = %d, want %d", i, list[i].ID, want)
		}
		if list[i].ConnectedAt.IsZero() {
			t.Fatalf("list[%d] has no connect time", i)
		}
	}

	reg.Unregister(5)
	if got := reg.List(); len(got) != 2 || got[1].ID != 7 {
		t.Fatalf("after Unregister List = %+v", got)
	}
	for _, c := range reg.GetAll() {
		reg.Unregister(c.ID())
	}
}

type recordingSession struct {
	payloads chan []byte
	closed   chan struct{}
}

func (s *recordingSession) HandlePayloads(payloads [][]byte) {
	for _, p := range payloads {
		s.payloads <- p
	}
}

func (s *recordingSession) Closed() {
	close(s.closed)
}

type recordingHandler struct {
	session *recordingSession
}

func (h *recordingHandler) Open(conn *Connection) Session {
	return h.session
}

func TestListenerDeliversPayloadsAcrossReads(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GameData.ListenAddress = "127.0.0.1"
	cfg.GameData.Port = 0

	session := &recordingSession{payloads: make(chan []byte, 4), closed: make(chan struct{})}
	l := NewTCPListener(cfg, &recordingHandler{session: session}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Listen(ctx); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go l.Serve(ctx)

	client, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	first := protocol.NewPacketWriter(protocol.InCommand).WriteString("chat").WriteString("hi").ToFrame(false)
	second := protocol.NewPacketWriter(protocol.InInputEvent).WriteUInt8(1).WriteString("a").ToFrame(true)
	stream := append(append([]byte(nil), first...), second...)

	client.Write(stream[:3])
	time.Sleep(20 * time.Millisecond)
	client.Write(stream[3:])

	for i, want := range [][]byte{
		protocol.Split(first)[0],
		protocol.Split(second)[0],
	} {
		select {
		case got := <-session.payloads:
			if !bytes.Equal(got, want) {
				t.Fatalf("payload %d = % x, want % x", i, got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("payload %d not delivered", i)
		}
	}

	client.Close()
	select {
	case <-session.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("session not closed after client hung up")
	}
	if l.Registry().Count() != 0 {
		t.Fatalf("registry still holds %d connections", l.Registry().Count())
	}
}

func TestListenerClosesWhenReassemblyLimitExceeded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GameData.ListenAddress = "127.0.0.1"
	cfg.GameData.Port = 0
	cfg.ApplicationData.Network.ReassemblyLimitBytes = 16

	session := &recordingSession{payloads: make(chan []byte, 4), closed: make(chan struct{})}
	l := NewTCPListener(cfg, &recordingHandler{session: session}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Listen(ctx); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go l.Serve(ctx)

	client, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	small := protocol.NewPacketWriter(protocol.InCommand).WriteString("chat").WriteString("hi").ToFrame(false)
	large := protocol.NewPacketWriter(protocol.InCommand).WriteString("chat").
		WriteString(strings.Repeat("x", 64)).ToFrame(false)
	client.Write(append(append([]byte(nil), small...), large[:len(large)/2]...))

	select {
	case got := <-session.payloads:
		if !bytes.Equal(got, protocol.Split(small)[0]) {
			t.Fatalf("payload = % x", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("complete frame before the overflow not delivered")
	}
	select {
	case <-session.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("connection not closed after the reassembly limit was exceeded")
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Read(make([]byte, 1)); err == nil {
		t.Fatalf("client socket still open")
	}
	select {
	case p := <-session.payloads:
		t.Fatalf("unexpected payload % x", p)
	default:
	}
}
