// Package dispatch drives the per-connection protocol state machine. A
// session starts unauthenticated, accepts exactly one login attempt, binds a
// player to the world on success and from then on routes every packet to
// the world's handlers. All session state lives on the world goroutine.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/telemetry"
	"github.com/brickd-project/brickd/internal/world"
)

// ErrProtocolViolation marks a client that broke the login rules. The
// connection is closed without a response.
var ErrProtocolViolation = errors.New("protocol violation")

// AuthenticationFailure is a refused login. Reason is sent to the client in
// a kick packet before the connection is closed.
type AuthenticationFailure struct {
	Reason string
	Err    error
}

func (e *AuthenticationFailure) Error() string {
	if e.Err != nil {
		return "authentication failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationFailure) Unwrap() error {
	return e.Err
}

// Verifier resolves a login token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string, brickplayer bool) (world.Identity, error)
}

// BanChecker reports whether a user may not join.
type BanChecker interface {
	BanReason(ctx context.Context, userID uint32) (reason string, banned bool, err error)
}

// Options configures a Dispatcher.
type Options struct {
	// ClientVersion is the only client version allowed to log in.
	ClientVersion string
	// AuthTimeout closes sessions that did not log in in time.
	AuthTimeout time.Duration

	Verifier Verifier
	Bans     BanChecker
	Bus      *events.EventBus
	Metrics  *telemetry.Metrics
}

// Dispatcher creates sessions for new connections. It implements
// network.SessionHandler.
type Dispatcher struct {
	ctx     context.Context
	world   *world.World
	opts    Options
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

// New creates a Dispatcher for w. ctx bounds the identity lookups. New
// subscribes to world signals and must be called before w.Run starts or on
// the world goroutine.
func New(ctx context.Context, w *world.World, opts Options) *Dispatcher {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 20 * time.Second
	}
	d := &Dispatcher{
		ctx:     ctx,
		world:   w,
		opts:    opts,
		metrics: opts.Metrics,
		logger:  log.With().Str("component", "dispatch").Logger(),
	}

	w.Chatted.Subscribe(func(ev world.ChatEvent) {
		d.publish(events.EventPlayerChat, events.ChatPayload{
			UserID:   ev.Player.UserID,
			Username: ev.Player.Username,
			Message:  ev.Message,
			At:       time.Now(),
		})
	})
	return d
}

// Open implements network.SessionHandler.
func (d *Dispatcher) Open(conn *network.Connection) network.Session {
	return d.NewSession(conn, conn.Logger())
}

// NewSession starts the state machine for conn and arms the login timer.
func (d *Dispatcher) NewSession(conn world.Conn, logger zerolog.Logger) *Session {
	s := &Session{
		d:    d,
		conn: conn,
		log:  logger,
	}
	s.timer = time.AfterFunc(d.opts.AuthTimeout, s.authExpired)
	return s
}

func (d *Dispatcher) publish(eventType events.EventType, payload interface{}) {
	if d.opts.Bus == nil {
		return
	}
	d.opts.Bus.Publish(eventType, "dispatch", payload)
}

func playerPayload(p *world.Player) events.PlayerPayload {
	return events.PlayerPayload{
		NetID:    p.NetID,
		UserID:   p.UserID,
		Username: p.Username,
		Remote:   network.MaskIP(p.Conn().Remote()),
		Admin:    p.Admin,
		At:       time.Now(),
	}
}
