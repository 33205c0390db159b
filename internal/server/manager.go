// Package server ties the running game together for the operator
// surfaces: it owns no state of its own and reaches the world through
// World.Call, the sockets through the connection registry and the bans
// through the store.
package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/db"
	"github.com/brickd-project/brickd/internal/dispatch"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
	"github.com/brickd-project/brickd/internal/util"
	"github.com/brickd-project/brickd/internal/world"
)

var (
	// ErrPlayerNotFound is returned when no connected player matches.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrNoDatabase is returned by ban operations when no store is open.
	ErrNoDatabase = errors.New("database is not configured")
)

// DefaultKickReason is used when an operator gives no reason.
const DefaultKickReason = "No reason specified."

// Manager is the operator facade over a running world.
type Manager struct {
	cfg      *config.Config
	eventBus *events.EventBus
	world    *world.World
	registry *network.ConnectionRegistry
	store    *db.Store
	logger   zerolog.Logger
}

// NewManager creates a manager. store may be nil.
func NewManager(cfg *config.Config, eventBus *events.EventBus, w *world.World, registry *network.ConnectionRegistry, store *db.Store) *Manager {
	return &Manager{
		cfg:      cfg,
		eventBus: eventBus,
		world:    w,
		registry: registry,
		store:    store,
		logger:   util.ComponentLogger("manager"),
	}
}

// World returns the managed world.
func (m *Manager) World() *world.World {
	return m.world
}

// Config returns the server configuration.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Status collects the periodic status snapshot.
func (m *Manager) Status(ctx context.Context) (events.ServerStatusPayload, error) {
	var status events.ServerStatusPayload
	err := m.world.Call(ctx, func() {
		status.Players = m.world.PlayerCount()
		status.Bricks = len(m.world.Bricks())
		status.Bots = len(m.world.Bots())
	})
	if err != nil {
		return status, err
	}

	status.UptimeSec = int64(m.world.Uptime().Seconds())
	if m.registry != nil {
		status.Connections = m.registry.Count()
	}
	if proc, err := util.GetProcessStats(); err == nil {
		status.CPUPercent = proc.CPUPercent
		status.MemoryBytes = proc.MemoryBytes
	} else {
		m.logger.Debug().Err(err).Msg("process stats unavailable")
	}
	return status, nil
}

// Players returns a snapshot of every connected player.
func (m *Manager) Players(ctx context.Context) ([]world.PlayerInfo, error) {
	var players []world.PlayerInfo
	err := m.world.Call(ctx, func() {
		players, _ = m.world.Snapshot()
	})
	return players, err
}

// WorldInfo returns a summary of the world state.
func (m *Manager) WorldInfo(ctx context.Context) (world.Info, error) {
	var info world.Info
	err := m.world.Call(ctx, func() {
		_, info = m.world.Snapshot()
	})
	return info, err
}

// lookup finds a player by network id when query is numeric, otherwise by
// case-insensitive name prefix. Runs on the world goroutine.
func (m *Manager) lookup(query string) *world.Player {
	if id, err := strconv.ParseUint(query, 10, 32); err == nil {
		if p := m.world.FindPlayer(uint32(id)); p != nil {
			return p
		}
	}
	if p := m.world.FindPlayerByName(query); p != nil {
		return p
	}
	lower := strings.ToLower(query)
	for _, p := range m.world.Players() {
		if strings.HasPrefix(strings.ToLower(p.Username), lower) {
			return p
		}
	}
	return nil
}

// Connections lists the open client connections, including those that
// have not authenticated yet.
func (m *Manager) Connections() []network.ConnectionInfo {
	if m.registry == nil {
		return nil
	}
	return m.registry.List()
}

// FindPlayer resolves an operator supplied name or network id.
func (m *Manager) FindPlayer(ctx context.Context, query string) (world.PlayerInfo, error) {
	var (
		info  world.PlayerInfo
		found bool
	)
	err := m.world.Call(ctx, func() {
		if p := m.lookup(query); p != nil {
			info, found = p.Info(), true
		}
	})
	if err != nil {
		return info, err
	}
	if !found {
		return info, fmt.Errorf("%w: %s", ErrPlayerNotFound, query)
	}
	return info, nil
}

// Kick removes the player with netID, showing reason on their screen.
func (m *Manager) Kick(ctx context.Context, netID uint32, reason, by string) (world.PlayerInfo, error) {
	if reason == "" {
		reason = DefaultKickReason
	}

	var (
		info  world.PlayerInfo
		found bool
	)
	err := m.world.Call(ctx, func() {
		p := m.world.FindPlayer(netID)
		if p == nil {
			return
		}
		info, found = p.Info(), true
		p.Kick(reason)
	})
	if err != nil {
		return info, err
	}
	if !found {
		return info, fmt.Errorf("%w: net id %d", ErrPlayerNotFound, netID)
	}

	m.logger.Info().
		Str("player", info.Username).
		Str("by", by).
		Str("reason", reason).
		Msg("player kicked")
	m.eventBus.Publish(events.EventPlayerKicked, by, events.KickPayload{
		UserID:   info.UserID,
		Username: info.Username,
		Reason:   reason,
		By:       by,
	})
	return info, nil
}

// Say sends a chat line to everyone in the world.
func (m *Manager) Say(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message is empty")
	}
	return m.world.Call(ctx, func() {
		m.world.MessageAll(message)
	})
}

// Ban records a ban and kicks the player if they are online.
func (m *Manager) Ban(ctx context.Context, userID uint32, reason, by string) error {
	if m.store == nil {
		return ErrNoDatabase
	}
	if reason == "" {
		reason = DefaultKickReason
	}
	if err := m.store.Ban(ctx, userID, reason, by); err != nil {
		return err
	}

	var kicked *world.PlayerInfo
	err := m.world.Call(ctx, func() {
		if p := m.world.FindPlayerByUserID(userID); p != nil {
			info := p.Info()
			kicked = &info
			p.Kick(dispatch.ReasonBannedPrefix + reason)
		}
	})
	if err != nil {
		return err
	}

	m.logger.Info().Uint32("user_id", userID).Str("by", by).Str("reason", reason).Msg("user banned")
	if kicked != nil {
		m.eventBus.Publish(events.EventPlayerKicked, by, events.KickPayload{
			UserID:   kicked.UserID,
			Username: kicked.Username,
			Reason:   dispatch.ReasonBannedPrefix + reason,
			By:       by,
		})
	}
	return nil
}

// Unban lifts a ban. It reports whether a ban existed.
func (m *Manager) Unban(ctx context.Context, userID uint32) (bool, error) {
	if m.store == nil {
		return false, ErrNoDatabase
	}
	return m.store.Unban(ctx, userID)
}

// Bans lists all bans.
func (m *Manager) Bans(ctx context.Context) ([]db.Ban, error) {
	if m.store == nil {
		return nil, ErrNoDatabase
	}
	return m.store.Bans(ctx)
}

// RecentChat returns the newest chat log lines.
func (m *Manager) RecentChat(ctx context.Context, limit int) ([]db.ChatLine, error) {
	if m.store == nil {
		return nil, ErrNoDatabase
	}
	return m.store.RecentChat(ctx, limit)
}

// RecentSessions returns the newest join records.
func (m *Manager) RecentSessions(ctx context.Context, limit int) ([]db.Session, error) {
	if m.store == nil {
		return nil, ErrNoDatabase
	}
	return m.store.RecentSessions(ctx, limit)
}

// Shutdown kicks every connection with reason and announces the shutdown.
func (m *Manager) Shutdown(reason string) {
	m.logger.Info().Str("reason", reason).Msg("shutting down game server")
	m.eventBus.Publish(events.EventShutdown, "manager", events.ShutdownPayload{Reason: reason})
	if m.registry == nil {
		return
	}
	flush := time.Duration(m.cfg.GetApplicationData().Network.ShutdownFlushSec) * time.Second
	m.registry.ShutdownAll(protocol.BuildKick(reason).ToFrame(false), flush)
}
