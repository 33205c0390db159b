package world

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brickd-project/brickd/internal/protocol"
)

type fakeConn struct {
	mu      sync.Mutex
	remote  string
	frames  [][]byte
	closed  bool
	flushed bool
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
	c.mu.Lock()
	c.flushed = true
	c.closed = true
	c.mu.Unlock()
	return closedChan()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Remote() string { return c.remote }

// packets decodes every frame received so far and clears the buffer.
func (c *fakeConn) packets(t *testing.T) []protocol.Packet {
	t.Helper()
	c.mu.Lock()
	frames := c.frames
	c.frames = nil
	c.mu.Unlock()

	var out []protocol.Packet
	for _, f := range frames {
		for _, payload := range protocol.Split(f) {
			pkt, err := protocol.ParsePacket(payload)
			if err != nil {
				t.Fatalf("ParsePacket: %v", err)
			}
			out = append(out, pkt)
		}
	}
	return out
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func newTestWorld(mut func(*Options)) *World {
	opts := DefaultOptions()
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	if mut != nil {
		mut(&opts)
	}
	return New(opts)
}

func addPlayer(w *World, userID uint32, name string) (*Player, *fakeConn) {
	conn := &fakeConn{remote: "127.0.x.x"}
	p := w.NewPlayer(conn, Identity{UserID: userID, Username: name, MembershipType: 1})
	w.Join(p)
	return p, conn
}

// silentPlayer joins a player and discards its join traffic.
func silentPlayer(t *testing.T, w *World, userID uint32, name string) (*Player, *fakeConn) {
	t.Helper()
	p, c := addPlayer(w, userID, name)
	for _, other := range w.players {
		other.conn.(*fakeConn).packets(t)
	}
	return p, c
}

func types(pkts []protocol.Packet) []protocol.PacketType {
	out := make([]protocol.PacketType, len(pkts))
	for i, p := range pkts {
		out[i] = p.Type
	}
	return out
}

func readString(t *testing.T, r *protocol.PacketReader) string {
	t.Helper()
	s, err := r.ReadStringNT()
	if err != nil {
		t.Fatalf("ReadStringNT: %v", err)
	}
	return s
}

func readU32(t *testing.T, r *protocol.PacketReader) uint32 {
	t.Helper()
	v, err := r.ReadUInt32()
	if err != nil {
		t.Fatalf("ReadUInt32: %v", err)
	}
	return v
}

func readFloat(t *testing.T, r *protocol.PacketReader) float32 {
	t.Helper()
	v, err := r.ReadFloatLE()
	if err != nil {
		t.Fatalf("ReadFloatLE: %v", err)
	}
	return v
}

func TestRunExecutesJobsInOrder(t *testing.T) {
	w := newTestWorld(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	var got []int
	for i := 0; i < 10; i++ {
		w.Do(func() { got = append(got, i) })
	}
	if err := w.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job order = %v", got)
		}
	}

	cancel()
	<-done
	if w.Do(func() {}) {
		t.Fatalf("Do accepted work after Run returned")
	}
	if err := w.Call(context.Background(), func() {}); err != ErrStopped {
		t.Fatalf("Call after stop = %v, want ErrStopped", err)
	}
}

func TestRunRecoversFromPanickingJob(t *testing.T) {
	w := newTestWorld(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Do(func() { panic("boom") })
	ran := false
	if err := w.Call(context.Background(), func() { ran = true }); err != nil || !ran {
		t.Fatalf("world stopped processing after a panic: %v", err)
	}
}

func TestSignalSubscribeAndDisconnect(t *testing.T) {
	var s Signal[int]
	var calls []string
	a := s.Subscribe(func(v int) { calls = append(calls, "a") })
	s.Subscribe(func(v int) { calls = append(calls, "b") })

	s.Emit(1)
	a.Disconnect()
	a.Disconnect()
	s.Emit(2)

	if strings.Join(calls, "") != "abb" {
		t.Fatalf("calls = %v", calls)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestSignalDisconnectDuringEmit(t *testing.T) {
	var s Signal[int]
	count := 0
	var sub *Subscription
	sub = s.Subscribe(func(int) {
		count++
		sub.Disconnect()
	})
	s.Emit(1)
	s.Emit(2)
	if count != 1 {
		t.Fatalf("handler ran %d times, want 1", count)
	}
}

func TestJoinSequence(t *testing.T) {
	w := newTestWorld(func(o *Options) { o.AssignRandomTeam = false })
	w.LoadBricks([]*Brick{NewBrick(Vec(0, 0, 0), Vec(4, 4, 1), "")})
	w.NewTeam("red", "#ff0000")
	w.NewBot(NewBot("guard"))

	first, firstConn := silentPlayer(t, w, 10, "alice")
	second, secondConn := addPlayer(w, 20, "bob")

	got := types(secondConn.packets(t))
	want := []protocol.PacketType{
		protocol.OutAuthentication,
		protocol.OutSendPlayers,
		protocol.OutChat, // motd
		protocol.OutChat, // join message
	}
	for i, typ := range want {
		if got[i] != typ {
			t.Fatalf("packet %d = %d, want %d (all: %v)", i, got[i], typ, got)
		}
	}

	counts := map[protocol.PacketType]int{}
	for _, typ := range got {
		counts[typ]++
	}
	if counts[protocol.OutSendBrick] != 1 || counts[protocol.OutTeam] != 1 || counts[protocol.OutBot] != 1 {
		t.Fatalf("world state not sent: %v", got)
	}
	if counts[protocol.OutPlayerModification] != 6 {
		t.Fatalf("environment packets = %d, want 6", counts[protocol.OutPlayerModification])
	}
	if got[len(got)-1] != protocol.OutFigure {
		t.Fatalf("last packet = %d, want the other player's figure", got[len(got)-1])
	}

	firstPkts := firstConn.packets(t)
	if firstPkts[0].Type != protocol.OutSendPlayers {
		t.Fatalf("existing player first saw %d, want SendPlayers", firstPkts[0].Type)
	}
	r := protocol.NewPacketReader(firstPkts[0].Payload)
	if n, _ := r.ReadUInt8(); n != 1 {
		t.Fatalf("SendPlayers count = %d, want 1", n)
	}
	if id := readU32(t, r); id != second.NetID {
		t.Fatalf("SendPlayers net id = %d, want %d", id, second.NetID)
	}

	if !second.Alive || second.Health != 100 {
		t.Fatalf("player not spawned: alive=%v health=%v", second.Alive, second.Health)
	}
	if w.PlayerCount() != 2 || first.Destroyed {
		t.Fatalf("registry out of sync")
	}
}

func TestJoinAuthInfoWithoutBricks(t *testing.T) {
	w := newTestWorld(func(o *Options) { o.SendBricks = false })
	w.LoadBricks([]*Brick{NewBrick(Vec(0, 0, 0), Vec(1, 1, 1), ""), NewBrick(Vec(2, 0, 0), Vec(1, 1, 1), "")})

	_, conn := addPlayer(w, 1, "alice")
	pkts := conn.packets(t)
	r := protocol.NewPacketReader(pkts[0].Payload)
	readU32(t, r)
	if n := readU32(t, r); n != 0 {
		t.Fatalf("brick count = %d, want 0 when bricks are not sent", n)
	}
	for _, p := range pkts {
		if p.Type == protocol.OutSendBrick {
			t.Fatalf("bricks sent although disabled")
		}
	}
}

func TestLeaveAnnouncesAndCleansUp(t *testing.T) {
	w := newTestWorld(nil)
	alice, aliceConn := silentPlayer(t, w, 1, "alice")
	bob, bobConn := silentPlayer(t, w, 2, "bob")

	left := 0
	w.PlayerLeft.Subscribe(func(*Player) { left++ })
	bob.Died.Subscribe(func(*Player) { t.Fatalf("observer survived leave") })

	w.Leave(bob)
	w.Leave(bob)

	if left != 1 || !bob.Destroyed || w.PlayerCount() != 1 {
		t.Fatalf("left=%d destroyed=%v count=%d", left, bob.Destroyed, w.PlayerCount())
	}
	pkts := aliceConn.packets(t)
	if len(pkts) != 2 || pkts[0].Type != protocol.OutRemovePlayer || pkts[1].Type != protocol.OutChat {
		t.Fatalf("alice received %v", types(pkts))
	}
	if len(bobConn.packets(t)) != 0 {
		t.Fatalf("leaving player received packets")
	}
	bob.Died.Emit(bob)
	_ = alice
}

func TestKickSendsReasonAndCloses(t *testing.T) {
	w := newTestWorld(nil)
	p, conn := silentPlayer(t, w, 1, "alice")
	p.Kick("bye")

	pkts := conn.packets(t)
	r := protocol.NewPacketReader(pkts[0].Payload)
	if readString(t, r) != "kick" || readString(t, r) != protocol.KickPrefix+"bye" {
		t.Fatalf("bad kick packet")
	}
	if !conn.flushed {
		t.Fatalf("connection not closed after flush")
	}
}

func TestRespawnResetsState(t *testing.T) {
	w := newTestWorld(func(o *Options) { o.PlayerSpawning = false })
	p, conn := silentPlayer(t, w, 1, "alice")
	spawn := Vec(5, 6, 7)
	p.SpawnPosition = &spawn
	p.CameraFOV = 90
	respawned := false
	p.Respawned.Subscribe(func(*Player) { respawned = true })

	p.Respawn()

	if p.Position != spawn || !p.Alive || p.Health != p.MaxHealth || p.CameraType != CameraOrbit || p.CameraFOV != 60 {
		t.Fatalf("state after respawn: %+v", p.Info())
	}
	if !respawned {
		t.Fatalf("respawn signal not emitted")
	}
	pkts := conn.packets(t)
	last := pkts[len(pkts)-1]
	r := protocol.NewPacketReader(last.Payload)
	readU32(t, r)
	if codes := readString(t, r); codes != figureCodesRespawn {
		t.Fatalf("respawn codes = %q", codes)
	}
}

func TestSetHealthKillsLivingPlayer(t *testing.T) {
	w := newTestWorld(nil)
	p, _ := silentPlayer(t, w, 1, "alice")
	died := 0
	p.Died.Subscribe(func(*Player) { died++ })

	p.SetHealth(250)
	if p.MaxHealth != 250 {
		t.Fatalf("MaxHealth = %v, want 250", p.MaxHealth)
	}
	p.SetHealth(0)
	if p.Alive || p.Health != 0 || died != 1 {
		t.Fatalf("alive=%v health=%v died=%d", p.Alive, p.Health, died)
	}
}

func TestToolEquipCycle(t *testing.T) {
	w := newTestWorld(nil)
	p, conn := silentPlayer(t, w, 1, "alice")
	sword := w.NewTool("sword")
	sword.Model = 77

	var events []string
	sword.Equipped.Subscribe(func(*Player) { events = append(events, "equip") })
	sword.Unequipped.Subscribe(func(*Player) { events = append(events, "unequip") })
	sword.Activated.Subscribe(func(*Player) { events = append(events, "activate") })

	p.EquipTool(sword)
	p.MouseClick.Emit(p)
	p.EquipTool(sword)

	if strings.Join(events, ",") != "equip,activate,unequip" {
		t.Fatalf("events = %v", events)
	}
	if p.ToolEquipped != nil || len(p.Inventory) != 1 {
		t.Fatalf("equipped=%v inventory=%d", p.ToolEquipped, len(p.Inventory))
	}
	if err := p.AddTool(sword); err != ErrToolInInventory {
		t.Fatalf("AddTool twice = %v", err)
	}

	pkts := conn.packets(t)
	if pkts[0].Type != protocol.OutTool {
		t.Fatalf("first packet = %d, want Tool", pkts[0].Type)
	}
	r := protocol.NewPacketReader(pkts[0].Payload)
	if create, _ := r.ReadUInt8(); create != 1 {
		t.Fatalf("tool packet create flag = %d", create)
	}

	w.DestroyTool(sword)
	if len(p.Inventory) != 0 || len(w.Tools()) != 0 {
		t.Fatalf("tool survived destroy")
	}
}

func TestEnvironmentRejectsUnknownWeather(t *testing.T) {
	w := newTestWorld(nil)
	_, conn := silentPlayer(t, w, 1, "alice")
	size := uint32(300)
	bad := Weather("hail")

	err := w.SetEnvironment(EnvironmentPatch{BaseSize: &size, Weather: &bad})
	if err != ErrInvalidWeather {
		t.Fatalf("err = %v, want ErrInvalidWeather", err)
	}
	if w.Environment().BaseSize != 100 || len(conn.packets(t)) != 0 {
		t.Fatalf("invalid patch was partially applied")
	}

	snow := WeatherSnow
	if err := w.SetEnvironment(EnvironmentPatch{Weather: &snow}); err != nil {
		t.Fatalf("SetEnvironment: %v", err)
	}
	pkts := conn.packets(t)
	r := protocol.NewPacketReader(pkts[0].Payload)
	if readString(t, r) != "WeatherSnow" {
		t.Fatalf("weather keyword not sent")
	}
}

func TestPickSpawnUsesSpawnBricks(t *testing.T) {
	w := newTestWorld(nil)
	b := NewBrick(Vec(10, 20, 0), Vec(2, 4, 6), "")
	w.NewBrick(b)
	w.AddSpawn(b)

	if got := w.PickSpawn(); got != Vec(11, 22, 3) {
		t.Fatalf("PickSpawn = %+v", got)
	}

	w.ClearMap()
	for i := 0; i < 50; i++ {
		got := w.PickSpawn()
		if got.X < -50 || got.X > 50 || got.Y < -50 || got.Y > 50 || got.Z != 50 {
			t.Fatalf("random spawn %+v outside the baseplate", got)
		}
	}
}

func TestTickDetectsTouching(t *testing.T) {
	w := newTestWorld(nil)
	p, _ := silentPlayer(t, w, 1, "alice")
	b := NewBrick(Vec(0, 0, 0), Vec(4, 4, 1), "")
	w.NewBrick(b)

	var touched, ended int
	b.Touching.Subscribe(func(*Player) { touched++ })
	b.TouchingEnded.Subscribe(func(*Player) { ended++ })

	p.Position = Vec(2, 2, 1)
	p.Alive = true
	w.tick()
	if touched != 1 || !b.IsTouching(p) {
		t.Fatalf("touch not detected")
	}

	p.Position = Vec(100, 100, 1)
	w.tick()
	if ended != 1 || b.IsTouching(p) {
		t.Fatalf("touch end not detected")
	}
}

func TestBotTouchAndClosestPlayer(t *testing.T) {
	w := newTestWorld(nil)
	near, _ := silentPlayer(t, w, 1, "near")
	far, _ := silentPlayer(t, w, 2, "far")
	near.Position, near.Alive = Vec(1, 0, 0), true
	far.Position, far.Alive = Vec(30, 0, 0), true

	bot := NewBot("zombie")
	w.NewBot(bot)

	if got := bot.FindClosestPlayer(100); got != near {
		t.Fatalf("closest = %v", got)
	}
	if got := bot.FindClosestPlayer(0.5); got != nil {
		t.Fatalf("closest within 0.5 = %v", got)
	}

	var touched []*Player
	bot.Touching.Subscribe(func(p *Player) { touched = append(touched, p) })
	w.tick()
	if len(touched) != 1 || touched[0] != near {
		t.Fatalf("touching = %v", touched)
	}
}

func TestWorldStopsTickOnCancel(t *testing.T) {
	w := newTestWorld(func(o *Options) { o.TickInterval = time.Millisecond })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
