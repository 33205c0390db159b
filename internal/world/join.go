package world

import (
	"fmt"
	"slices"

	"github.com/brickd-project/brickd/internal/protocol"
)

// Join adds an authenticated player to the world and brings its client up
// to date: session info, the other players, greeting, environment, bricks,
// teams, bots, spawn and figures.
func (w *World) Join(p *Player) {
	w.players = append(w.players, p)
	w.metrics.SetPlayersOnline(len(w.players))
	w.PlayerJoined.Emit(p)

	w.sendAuthInfo(p)
	w.exchangePlayerLists(p)
	p.log.Info().Str("remote", p.conn.Remote()).Msg("player joined")

	w.greet(p)
	p.SetEnvironment(w.env.Patch())

	if w.opts.SendBricks {
		p.sendBricks(w.bricks)
	}
	for _, t := range w.teams {
		p.send(t.packet())
	}
	for _, b := range w.bots {
		p.send(BuildBotUpdate(b, botCodesFull))
	}

	if w.opts.AssignRandomTeam && len(w.teams) > 0 {
		p.SetTeam(w.teams[w.rng.IntN(len(w.teams))])
	}
	if w.opts.PlayerSpawning {
		p.Respawn()
	}
	w.exchangeFigures(p)

	p.track(p.MouseClick.Subscribe(func(*Player) {
		if t := p.ToolEquipped; t != nil && t.Enabled {
			t.Activated.Emit(p)
		}
	}))

	w.InitialSpawn.Emit(p)
}

func (w *World) sendAuthInfo(p *Player) {
	var count uint32
	if w.opts.SendBricks {
		count = uint32(len(w.bricks))
	}
	p.send(protocol.BuildAuthInfo(protocol.AuthInfo{
		NetID:          p.NetID,
		BrickCount:     count,
		UserID:         p.UserID,
		Username:       p.Username,
		Admin:          p.Admin,
		MembershipType: p.MembershipType,
	}))
}

// exchangePlayerLists tells the others about p and p about the others.
func (w *World) exchangePlayerLists(p *Player) {
	if len(w.players) <= 1 {
		return
	}
	w.broadcastExcept(protocol.BuildSendPlayers([]protocol.PlayerEntry{p.Entry()}), p)

	others := make([]protocol.PlayerEntry, 0, len(w.players)-1)
	for _, other := range w.players {
		if other != p {
			others = append(others, other.Entry())
		}
	}
	p.send(protocol.BuildSendPlayers(others))
}

func (w *World) exchangeFigures(p *Player) {
	w.broadcastExcept(BuildPlayerUpdate(p, figureCodesFull), p)
	for _, other := range w.players {
		if other != p {
			p.send(BuildPlayerUpdate(other, figureCodesFull))
		}
	}
}

func (w *World) greet(p *Player) {
	if !w.opts.SystemMessages {
		return
	}
	if w.opts.MOTD != "" {
		p.Message(w.opts.MOTD)
	}
	w.MessageAll(fmt.Sprintf(`\c6[SERVER]: \c0%s has joined the server!`, p.Username))
}

// Leave removes a player whose connection closed. It is a no-op for
// players that already left.
func (w *World) Leave(p *Player) {
	if p.Destroyed {
		return
	}
	i := slices.Index(w.players, p)
	if i < 0 {
		return
	}
	w.players = slices.Delete(w.players, i, i+1)
	w.metrics.SetPlayersOnline(len(w.players))
	p.log.Info().Msg("player left")

	w.PlayerLeft.Emit(p)
	p.Left.Emit(p)

	w.broadcastExcept(protocol.BuildRemovePlayer(p.NetID), p)
	w.systemMessage(fmt.Sprintf(`\c6[SERVER]: \c0%s has left the server!`, p.Username))

	p.clearObservers()
	p.Destroyed = true
}
