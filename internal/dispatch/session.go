package dispatch

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/brickd-project/brickd/internal/connector"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
	"github.com/brickd-project/brickd/internal/world"
)

// State is a session's position in the connection lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Kick reasons sent during login.
const (
	ReasonOutdatedClient = "Your client is out of date."
	ReasonDuplicateLogin = "You can only join this game once per account."
	ReasonMalformedLogin = "Server error."
	ReasonBannedPrefix   = "You are banned from this server: "
)

// Session is the state machine of one connection. Except for HandlePayloads
// and Closed, its methods run on the world goroutine.
type Session struct {
	d     *Dispatcher
	conn  world.Conn
	log   zerolog.Logger
	timer *time.Timer

	state         State
	authAttempted bool
	player        *world.Player
}

// State returns the current state. World goroutine only.
func (s *Session) State() State {
	return s.state
}

// Player returns the bound player, or nil before login.
func (s *Session) Player() *world.Player {
	return s.player
}

// HandlePayloads queues the payloads for dispatch on the world goroutine,
// in order. Called from the connection's read loop.
func (s *Session) HandlePayloads(payloads [][]byte) {
	s.d.world.Do(func() {
		for _, payload := range payloads {
			if s.state == StateClosed {
				s.d.metrics.PacketDropped("closed")
				continue
			}
			s.handle(payload)
		}
	})
}

// Closed detaches the session once its connection is gone. Called from the
// connection's read loop.
func (s *Session) Closed() {
	if !s.d.world.Do(s.close) {
		s.timer.Stop()
	}
}

func (s *Session) close() {
	s.timer.Stop()
	s.state = StateClosed
	if s.player == nil {
		return
	}
	p := s.player
	s.player = nil
	s.d.world.Leave(p)
	s.d.publish(events.EventPlayerLeave, playerPayload(p))
}

func (s *Session) authExpired() {
	expire := func() {
		if s.state != StateUnauthenticated {
			return
		}
		s.log.Info().Msg("authentication timed out")
		s.d.metrics.AuthResult("timeout")
		s.close()
		s.conn.Close()
	}
	if !s.d.world.Do(expire) {
		s.conn.Close()
	}
}

// handle dispatches one payload. A panicking handler is logged and the
// connection stays open.
func (s *Session) handle(payload []byte) {
	pkt, err := protocol.ParsePacket(payload)
	if err != nil {
		s.d.metrics.PacketDropped("empty")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.d.metrics.PacketDropped("panic")
			s.log.Error().
				Interface("panic", r).
				Str("packet", pkt.Type.String()).
				Msg("recovered from panic in packet handler")
		}
	}()

	if pkt.Type == protocol.InAuthenticate {
		if s.state == StateAuthenticated || s.authAttempted {
			s.violation(errors.New("repeated authentication"))
			return
		}
		s.authenticate(pkt.Payload)
		return
	}

	if s.state != StateAuthenticated {
		s.d.metrics.PacketDropped("unauthenticated")
		return
	}

	if err := s.dispatch(pkt); err != nil {
		s.d.metrics.PacketDropped("malformed")
		s.log.Debug().Err(err).Str("packet", pkt.Type.String()).Msg("dropping malformed packet")
		return
	}
	s.d.metrics.PacketDispatched(pkt.Type.String())
}

// violation closes the connection without a response.
func (s *Session) violation(err error) {
	s.log.Warn().Err(errors.Join(ErrProtocolViolation, err)).Msg("closing connection")
	s.d.metrics.AuthResult("violation")
	s.close()
	s.conn.Close()
}

// authenticate validates the login packet and starts the identity lookup.
// The lookup runs off the world goroutine; its result is posted back.
func (s *Session) authenticate(body []byte) {
	s.authAttempted = true

	r := protocol.NewPacketReader(body)
	token, err := r.ReadStringNT()
	if err != nil {
		s.reject(&AuthenticationFailure{Reason: ReasonMalformedLogin, Err: err})
		return
	}
	version, err := r.ReadStringNT()
	if err != nil {
		s.reject(&AuthenticationFailure{Reason: ReasonMalformedLogin, Err: err})
		return
	}
	brickplayer := false
	if r.Remaining() > 0 {
		flag, _ := r.ReadUInt8()
		brickplayer = flag != 0
	}

	if version != s.d.opts.ClientVersion {
		s.reject(&AuthenticationFailure{Reason: ReasonOutdatedClient})
		return
	}

	s.log.Debug().Bool("brickplayer", brickplayer).Msg("verifying login")
	go s.verify(token, brickplayer)
}

func (s *Session) verify(token string, brickplayer bool) {
	id, err := s.d.opts.Verifier.Verify(s.d.ctx, token, brickplayer)

	var banReason string
	banned := false
	if err == nil && s.d.opts.Bans != nil {
		var banErr error
		banReason, banned, banErr = s.d.opts.Bans.BanReason(s.d.ctx, id.UserID)
		if banErr != nil {
			s.log.Warn().Err(banErr).Uint32("user_id", id.UserID).Msg("ban lookup failed, allowing login")
		}
	}

	s.d.world.Do(func() {
		s.finishLogin(id, err, banned, banReason)
	})
}

func (s *Session) finishLogin(id world.Identity, err error, banned bool, banReason string) {
	if s.state != StateUnauthenticated || s.conn.IsClosed() {
		s.log.Debug().Msg("connection closed during authentication")
		return
	}

	if err != nil {
		reason := connector.ReasonServerError
		if ae, ok := connector.IsAuthError(err); ok {
			reason = ae.Reason
		}
		s.reject(&AuthenticationFailure{Reason: reason, Err: err})
		return
	}
	if banned {
		s.reject(&AuthenticationFailure{Reason: ReasonBannedPrefix + banReason})
		return
	}
	if s.d.world.FindPlayerByUserID(id.UserID) != nil {
		s.reject(&AuthenticationFailure{Reason: ReasonDuplicateLogin})
		return
	}

	s.timer.Stop()
	s.state = StateAuthenticated
	s.player = s.d.world.NewPlayer(s.conn, id)
	s.log = s.log.With().
		Uint32("net_id", s.player.NetID).
		Str("username", s.player.Username).
		Logger()
	s.log.Info().Uint32("user_id", id.UserID).Msg("successfully authenticated")
	s.d.metrics.AuthResult("ok")

	s.d.world.Join(s.player)
	s.d.publish(events.EventPlayerJoin, playerPayload(s.player))
}

// reject sends the failure reason and closes the connection once written.
func (s *Session) reject(f *AuthenticationFailure) {
	s.log.Info().Err(f).Msg("login refused")
	s.d.metrics.AuthResult("rejected")
	s.d.publish(events.EventAuthFailed, events.AuthFailedPayload{
		Remote: network.MaskIP(s.conn.Remote()),
		Reason: f.Reason,
	})

	s.conn.Send(protocol.BuildKick(f.Reason).ToFrame(false))
	s.conn.CloseAfterFlush()
	s.close()
}
