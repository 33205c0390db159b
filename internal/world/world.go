// Package world holds the authoritative game state: players, bricks, bots,
// teams, tools and the environment. All state is owned by a single goroutine
// (Run); other goroutines submit work with Do or Call. Every exported method
// of World and of the entity types must run on that goroutine unless its
// documentation says otherwise.
package world

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
	"github.com/brickd-project/brickd/internal/telemetry"
)

// ErrStopped is returned when work is submitted after Run returned.
var ErrStopped = errors.New("world stopped")

// Options configures a World.
type Options struct {
	MOTD             string
	SendBricks       bool
	PlayerSpawning   bool
	SystemMessages   bool
	AssignRandomTeam bool
	Environment      Environment

	ChatRateLimit  time.Duration
	ChatMaxLength  int
	Filter         ProfanityFilter
	TickInterval   time.Duration
	JobQueueLength int

	Metrics *telemetry.Metrics
	Rand    *rand.Rand
}

// DefaultOptions returns the stock game settings.
func DefaultOptions() Options {
	return Options{
		MOTD:             "[#14d8ff][NOTICE]: This server is proudly hosted with brickd.",
		SendBricks:       true,
		PlayerSpawning:   true,
		SystemMessages:   true,
		AssignRandomTeam: true,
		Environment:      DefaultEnvironment(),
		ChatRateLimit:    2 * time.Second,
		ChatMaxLength:    85,
		TickInterval:     100 * time.Millisecond,
		JobQueueLength:   1024,
	}
}

// World is the game state and the goroutine that owns it.
type World struct {
	opts    Options
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	rng     *rand.Rand

	jobs    chan func()
	stopped chan struct{}
	started time.Time

	players []*Player
	bricks  []*Brick
	spawns  []*Brick
	bots    []*Bot
	teams   []*Team
	tools   []*Tool
	env     Environment

	lastPlayerID uint32
	lastBrickID  uint32
	lastBotID    uint32
	lastTeamID   uint32
	lastToolID   uint32

	chatLimits map[uint32]*rate.Limiter

	// PlayerJoined fires when an authenticated player is added, before the
	// join sequence is sent.
	PlayerJoined Signal[*Player]
	// PlayerLeft fires when a player's connection closed.
	PlayerLeft Signal[*Player]
	// InitialSpawn fires after the join sequence completed.
	InitialSpawn Signal[*Player]
	// Chatted fires for every chat message that passed the chat checks.
	Chatted Signal[ChatEvent]
	// ChatOverride, when it has subscribers, receives chat instead of the
	// built-in broadcast.
	ChatOverride Signal[ChatEvent]
	// Commands fires for every client command other than chat.
	Commands Signal[CommandEvent]
}

// New creates a World. Run must be called to start processing work.
func New(opts Options) *World {
	def := DefaultOptions()
	if opts.ChatMaxLength <= 0 {
		opts.ChatMaxLength = def.ChatMaxLength
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.JobQueueLength <= 0 {
		opts.JobQueueLength = def.JobQueueLength
	}
	if opts.Environment == (Environment{}) {
		opts.Environment = def.Environment
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return &World{
		opts:       opts,
		logger:     log.With().Str("component", "world").Logger(),
		metrics:    opts.Metrics,
		rng:        rng,
		jobs:       make(chan func(), opts.JobQueueLength),
		stopped:    make(chan struct{}),
		started:    time.Now(),
		env:        opts.Environment,
		chatLimits: make(map[uint32]*rate.Limiter),
	}
}

// Run executes submitted work and the periodic tick until ctx is done.
func (w *World) Run(ctx context.Context) error {
	defer close(w.stopped)

	ticker := time.NewTicker(w.opts.TickInterval)
	defer ticker.Stop()

	w.logger.Info().Msg("world loop started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("world loop stopping")
			return nil
		case job := <-w.jobs:
			w.run(job)
		case <-ticker.C:
			w.run(w.tick)
		}
	}
}

func (w *World) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("recovered from panic in world job")
		}
	}()
	job()
}

// Do queues fn to run on the world goroutine. It is safe to call from any
// goroutine and returns false when the world has stopped.
func (w *World) Do(fn func()) bool {
	select {
	case w.jobs <- fn:
		return true
	case <-w.stopped:
		return false
	}
}

// Call runs fn on the world goroutine and waits for it to finish. It is safe
// to call from any goroutine except the world goroutine itself.
func (w *World) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !w.Do(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-w.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Uptime returns how long the world has existed. Safe from any goroutine.
func (w *World) Uptime() time.Duration {
	return time.Since(w.started)
}

// Options returns the world's settings.
func (w *World) Options() Options {
	return w.opts
}

// ---- Registry ----

// Players returns the connected players in join order.
func (w *World) Players() []*Player {
	return append([]*Player(nil), w.players...)
}

// PlayerCount returns the number of connected players.
func (w *World) PlayerCount() int {
	return len(w.players)
}

// FindPlayer returns the player with the given net id.
func (w *World) FindPlayer(netID uint32) *Player {
	for _, p := range w.players {
		if p.NetID == netID {
			return p
		}
	}
	return nil
}

// FindPlayerByUserID returns the connected player for an account.
func (w *World) FindPlayerByUserID(userID uint32) *Player {
	for _, p := range w.players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// FindPlayerByName returns the first player with the given username.
func (w *World) FindPlayerByName(name string) *Player {
	for _, p := range w.players {
		if p.Username == name {
			return p
		}
	}
	return nil
}

// Bricks returns the global bricks.
func (w *World) Bricks() []*Brick {
	return append([]*Brick(nil), w.bricks...)
}

// FindBrick returns the global brick with the given net id.
func (w *World) FindBrick(netID uint32) *Brick {
	for _, b := range w.bricks {
		if b.NetID == netID {
			return b
		}
	}
	return nil
}

// Bots returns the bots in the world.
func (w *World) Bots() []*Bot {
	return append([]*Bot(nil), w.bots...)
}

// Teams returns the teams in creation order.
func (w *World) Teams() []*Team {
	return append([]*Team(nil), w.teams...)
}

// Tools returns the registered tools.
func (w *World) Tools() []*Tool {
	return append([]*Tool(nil), w.tools...)
}

// Environment returns the current environment.
func (w *World) Environment() Environment {
	return w.env
}

// ---- Fan-out ----

func (w *World) sockets(except []*Player) []network.Socket {
	out := make([]network.Socket, 0, len(w.players))
	for _, p := range w.players {
		if containsPlayer(except, p) {
			continue
		}
		out = append(out, p.conn)
	}
	return out
}

// Broadcast queues frame on every connected player.
func (w *World) Broadcast(frame []byte) *network.Delivery {
	return network.Broadcast(frame, w.sockets(nil))
}

// BroadcastExcept queues frame on every connected player not in excluded.
func (w *World) BroadcastExcept(frame []byte, excluded []*Player) *network.Delivery {
	return network.Broadcast(frame, w.sockets(excluded))
}

func (w *World) broadcast(pw *protocol.PacketWriter) *network.Delivery {
	return w.Broadcast(pw.ToFrame(false))
}

func (w *World) broadcastExcept(pw *protocol.PacketWriter, excluded ...*Player) *network.Delivery {
	return w.BroadcastExcept(pw.ToFrame(false), excluded)
}

func containsPlayer(list []*Player, p *Player) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

// ---- Messages ----

// MessageAll sends a chat line to every player.
func (w *World) MessageAll(message string) *network.Delivery {
	return w.broadcast(protocol.BuildChat(message))
}

// TopPrintAll shows a timed message at the top of every screen.
func (w *World) TopPrintAll(message string, seconds uint32) *network.Delivery {
	return w.broadcast(protocol.BuildPrint(protocol.TopPrint, message, seconds))
}

// CenterPrintAll shows a timed message in the centre of every screen.
func (w *World) CenterPrintAll(message string, seconds uint32) *network.Delivery {
	return w.broadcast(protocol.BuildPrint(protocol.CenterPrint, message, seconds))
}

// BottomPrintAll shows a timed message at the bottom of every screen.
func (w *World) BottomPrintAll(message string, seconds uint32) *network.Delivery {
	return w.broadcast(protocol.BuildPrint(protocol.BottomPrint, message, seconds))
}

func (w *World) systemMessage(message string) {
	if !w.opts.SystemMessages {
		return
	}
	w.MessageAll(message)
}

// ---- Commands ----

// CommandEvent is a client command other than chat.
type CommandEvent struct {
	Player  *Player
	Command string
	Args    string
}

// Command subscribes fn to one command name.
func (w *World) Command(name string, fn func(p *Player, args string)) *Subscription {
	return w.Commands.Subscribe(func(ev CommandEvent) {
		if ev.Command == name {
			fn(ev.Player, ev.Args)
		}
	})
}

// HandleCommand routes a client command. Chat goes through the chat
// pipeline, everything else to the Commands signal.
func (w *World) HandleCommand(p *Player, command, args string) {
	if command != "chat" {
		w.Commands.Emit(CommandEvent{Player: p, Command: command, Args: args})
		return
	}
	if w.ChatOverride.Len() > 0 {
		w.ChatOverride.Emit(ChatEvent{Player: p, Message: args, Title: w.GenerateTitle(p, args)})
		return
	}
	p.MessageAll(args)
}

// HandleClick fires the clicked signal of the brick with netID. Global
// bricks are searched first, then the player's local bricks.
func (w *World) HandleClick(p *Player, netID uint32) bool {
	if b := w.FindBrick(netID); b != nil && b.Clickable {
		b.emitClicked(p)
		return true
	}
	for _, b := range p.LocalBricks {
		if b.NetID == netID && b.Clickable {
			b.emitClicked(p)
			return true
		}
	}
	return false
}

// HandleInput fires the player's mouse and key signals.
func (w *World) HandleInput(p *Player, click bool, key string) {
	if click {
		p.MouseClick.Emit(p)
	}
	if key != "" && IsWhitelistedKey(key) {
		p.KeyPress.Emit(key)
	}
}

// ---- Ids ----

func (w *World) nextPlayerID() uint32 {
	w.lastPlayerID++
	return w.lastPlayerID
}

func (w *World) nextBrickID() uint32 {
	w.lastBrickID++
	return w.lastBrickID
}

func (w *World) nextBotID() uint32 {
	w.lastBotID++
	return w.lastBotID
}

func (w *World) nextTeamID() uint32 {
	w.lastTeamID++
	return w.lastTeamID
}

func (w *World) nextToolID() uint32 {
	w.lastToolID++
	return w.lastToolID
}

func (w *World) String() string {
	return fmt.Sprintf("World[players=%d bricks=%d bots=%d teams=%d]",
		len(w.players), len(w.bricks), len(w.bots), len(w.teams))
}
