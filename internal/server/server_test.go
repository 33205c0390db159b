package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/db"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/protocol"
	"github.com/brickd-project/brickd/internal/world"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) Send(frame []byte) <-chan struct{} {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
	return closedChan()
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) CloseAfterFlush() <-chan struct{} {
	c.Close()
	return closedChan()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Remote() string { return "10.0.0.7:4000" }

// kickReason returns the reason of the last kick packet sent, if any.
func (c *fakeConn) kickReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		for _, payload := range protocol.Split(c.frames[i]) {
			pkt, err := protocol.ParsePacket(payload)
			if err != nil || pkt.Type != protocol.OutPlayerModification {
				continue
			}
			r := protocol.NewPacketReader(pkt.Payload)
			if kind, _ := r.ReadStringNT(); kind != "kick" {
				continue
			}
			reason, _ := r.ReadStringNT()
			return strings.TrimPrefix(reason, protocol.KickPrefix)
		}
	}
	return ""
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fixture struct {
	t     *testing.T
	w     *world.World
	bus   *events.EventBus
	store *db.Store
	m     *Manager
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	opts := world.DefaultOptions()
	opts.SystemMessages = false
	w := world.New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	bus := events.NewEventBus()
	var store *db.Store
	if withStore {
		var err error
		store, err = db.Open(":memory:")
		if err != nil {
			t.Fatalf("db.Open: %v", err)
		}
	}
	t.Cleanup(func() {
		cancel()
		<-done
		bus.Stop()
		if store != nil {
			store.Close()
		}
	})

	return &fixture{
		t:     t,
		w:     w,
		bus:   bus,
		store: store,
		m:     NewManager(config.DefaultConfig(), bus, w, nil, store),
	}
}

func (f *fixture) join(userID uint32, name string) (*world.Player, *fakeConn) {
	f.t.Helper()
	conn := &fakeConn{}
	var p *world.Player
	err := f.w.Call(context.Background(), func() {
		p = f.w.NewPlayer(conn, world.Identity{UserID: userID, Username: name})
		f.w.Join(p)
	})
	if err != nil {
		f.t.Fatalf("join: %v", err)
	}
	return p, conn
}

func (f *fixture) kicks() <-chan events.KickPayload {
	ch := make(chan events.KickPayload, 4)
	f.bus.Subscribe(events.EventPlayerKicked, "test", func(_ context.Context, ev events.Event) error {
		ch <- ev.Payload.(events.KickPayload)
		return nil
	})
	return ch
}

func TestStatusCountsWorld(t *testing.T) {
	f := newFixture(t, false)
	f.join(1, "alice")
	f.join(2, "bob")

	status, err := f.m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Players != 2 || status.Connections != 0 {
		t.Fatalf("status = %+v", status)
	}
}

func TestFindPlayer(t *testing.T) {
	f := newFixture(t, false)
	p, _ := f.join(1, "Alice")
	f.join(2, "bob")

	tests := []struct {
		query string
		want  string
	}{
		{"Alice", "Alice"},
		{"ali", "Alice"},
		{"bo", "bob"},
	}
	for _, tt := range tests {
		info, err := f.m.FindPlayer(context.Background(), tt.query)
		if err != nil || info.Username != tt.want {
			t.Fatalf("FindPlayer(%q) = %+v, %v", tt.query, info, err)
		}
	}

	var netID uint32
	f.w.Call(context.Background(), func() { netID = p.NetID })
	info, err := f.m.FindPlayer(context.Background(), "1")
	if err != nil || info.NetID != netID {
		t.Fatalf("FindPlayer by id = %+v, %v", info, err)
	}

	if _, err := f.m.FindPlayer(context.Background(), "zed"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("FindPlayer(zed) err = %v", err)
	}
}

func TestKickSendsReasonAndPublishes(t *testing.T) {
	f := newFixture(t, false)
	kicks := f.kicks()
	p, conn := f.join(9, "mallory")

	var netID uint32
	f.w.Call(context.Background(), func() { netID = p.NetID })

	info, err := f.m.Kick(context.Background(), netID, "", "console")
	if err != nil {
		t.Fatalf("Kick: %v", err)
	}
	if info.Username != "mallory" {
		t.Fatalf("kicked %q", info.Username)
	}
	if got := conn.kickReason(); got != DefaultKickReason {
		t.Fatalf("kick reason = %q", got)
	}
	if !conn.IsClosed() {
		t.Fatalf("connection not closed after kick")
	}

	select {
	case k := <-kicks:
		if k.By != "console" || k.UserID != 9 {
			t.Fatalf("kick event = %+v", k)
		}
	case <-time.After(time.Second):
		t.Fatalf("no kick event")
	}

	if _, err := f.m.Kick(context.Background(), 999, "x", "console"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("Kick(unknown) err = %v", err)
	}
}

func TestBanKicksOnlinePlayer(t *testing.T) {
	f := newFixture(t, true)
	_, conn := f.join(5, "griefer")

	if err := f.m.Ban(context.Background(), 5, "griefing", "api"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if got := conn.kickReason(); got != "You are banned from this server: griefing" {
		t.Fatalf("kick reason = %q", got)
	}

	bans, err := f.m.Bans(context.Background())
	if err != nil || len(bans) != 1 || bans[0].UserID != 5 {
		t.Fatalf("Bans = %+v, %v", bans, err)
	}

	ok, err := f.m.Unban(context.Background(), 5)
	if err != nil || !ok {
		t.Fatalf("Unban = %v, %v", ok, err)
	}
}

func TestBansWithoutDatabase(t *testing.T) {
	f := newFixture(t, false)
	if err := f.m.Ban(context.Background(), 1, "x", "api"); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("Ban err = %v", err)
	}
	if _, err := f.m.Bans(context.Background()); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("Bans err = %v", err)
	}
}

func TestSayRejectsEmpty(t *testing.T) {
	f := newFixture(t, false)
	if err := f.m.Say(context.Background(), "  "); err == nil {
		t.Fatalf("Say accepted an empty message")
	}
	if err := f.m.Say(context.Background(), "hello"); err != nil {
		t.Fatalf("Say: %v", err)
	}
}

func TestLagMonitor(t *testing.T) {
	f := newFixture(t, false)
	lm := NewLagMonitor(f.w, f.bus)

	if lm.CheckThresholds() != nil {
		t.Fatalf("alert without samples")
	}
	if _, err := lm.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if stats := lm.Stats(); stats.Samples != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	lm.record(LagSample{Timestamp: time.Now(), Latency: 2 * time.Second})
	alert := lm.CheckThresholds()
	if alert == nil || alert.Level != "critical" || alert.Slow != 1 {
		t.Fatalf("alert = %+v", alert)
	}
}
