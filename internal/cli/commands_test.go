package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/db"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/server"
	"github.com/brickd-project/brickd/internal/world"
)

type nopConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *nopConn) Send([]byte) <-chan struct{} { return done() }

func (c *nopConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *nopConn) CloseAfterFlush() <-chan struct{} {
	c.Close()
	return done()
}

func (c *nopConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *nopConn) Remote() string { return "127.0.0.1:1" }

func done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type console struct {
	t    *testing.T
	w    *world.World
	cli  *CLI
	out  *bytes.Buffer
	quit chan struct{}
}

func newConsole(t *testing.T) *console {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	gd := cfg.GetGameData()
	gd.Local = true
	cfg.SetGameData(gd)

	opts := world.DefaultOptions()
	opts.SystemMessages = false
	w := world.New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	bus := events.NewEventBus()
	t.Cleanup(func() {
		cancel()
		<-stopped
		bus.Stop()
		store.Close()
	})

	out := &bytes.Buffer{}
	quit := make(chan struct{})
	mgr := server.NewManager(cfg, bus, w, nil, store)
	cli := NewCLI(cfg, mgr, strings.NewReader(""), out, func() { close(quit) })
	return &console{t: t, w: w, cli: cli, out: out, quit: quit}
}

func (c *console) run(line string) string {
	c.t.Helper()
	c.out.Reset()
	c.cli.Exec(context.Background(), line)
	return c.out.String()
}

func (c *console) join(userID uint32, name string) *nopConn {
	c.t.Helper()
	conn := &nopConn{}
	err := c.w.Call(context.Background(), func() {
		c.w.Join(c.w.NewPlayer(conn, world.Identity{UserID: userID, Username: name}))
	})
	if err != nil {
		c.t.Fatalf("join: %v", err)
	}
	return conn
}

func TestPlayersTable(t *testing.T) {
	c := newConsole(t)
	if out := c.run("players"); !strings.Contains(out, "No players") {
		t.Fatalf("output = %q", out)
	}

	c.join(3, "alice")
	out := c.run("players")
	if !strings.Contains(out, "alice") || !strings.Contains(out, "NET ID") {
		t.Fatalf("output = %q", out)
	}
}

func TestKickByName(t *testing.T) {
	c := newConsole(t)
	conn := c.join(3, "alice")

	out := c.run("kick ali being rude")
	if !strings.Contains(out, "Kicked alice") {
		t.Fatalf("output = %q", out)
	}
	if !conn.IsClosed() {
		t.Fatalf("connection left open")
	}

	if out := c.run("kick nobody"); !strings.Contains(out, "player not found") {
		t.Fatalf("output = %q", out)
	}
}

func TestBanAndUnban(t *testing.T) {
	c := newConsole(t)

	if out := c.run("ban 12 spamming"); !strings.Contains(out, "Banned user 12") {
		t.Fatalf("ban output = %q", out)
	}
	if out := c.run("bans"); !strings.Contains(out, "spamming") || !strings.Contains(out, "console") {
		t.Fatalf("bans output = %q", out)
	}
	if out := c.run("unban 12"); !strings.Contains(out, "Unbanned user 12") {
		t.Fatalf("unban output = %q", out)
	}
	if out := c.run("unban 12"); !strings.Contains(out, "not banned") {
		t.Fatalf("second unban output = %q", out)
	}
	if out := c.run("ban abc"); !strings.Contains(out, "invalid user id") {
		t.Fatalf("bad id output = %q", out)
	}
}

func TestSetConfig(t *testing.T) {
	c := newConsole(t)

	if out := c.run("setconfig motd hello there"); !strings.Contains(out, "Config updated") {
		t.Fatalf("output = %q", out)
	}
	if got := c.cli.cfg.GetGameData().MOTD; got != "hello there" {
		t.Fatalf("motd = %q", got)
	}

	if out := c.run("setconfig auth_timeout_sec 0"); !strings.Contains(out, "Error") {
		t.Fatalf("invalid value accepted: %q", out)
	}
	if got := c.cli.cfg.GetGameData().AuthTimeoutSec; got != 20 {
		t.Fatalf("auth timeout = %d", got)
	}
}

func TestStatusAndUnknown(t *testing.T) {
	c := newConsole(t)
	if out := c.run("status"); !strings.Contains(out, "Players:") {
		t.Fatalf("status output = %q", out)
	}
	if out := c.run("frobnicate"); !strings.Contains(out, "Unknown command") {
		t.Fatalf("output = %q", out)
	}
}

func TestQuitAndStart(t *testing.T) {
	c := newConsole(t)
	c.cli.in = strings.NewReader("help\nquit\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished := make(chan struct{})
	go func() {
		c.cli.Start(ctx)
		close(finished)
	}()

	select {
	case <-c.quit:
	case <-time.After(time.Second):
		t.Fatalf("quit was not called")
	}
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("Start did not return at end of input")
	}
}
