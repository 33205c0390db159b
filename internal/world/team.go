package world

import (
	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
)

// DefaultTeamColor is used when a team is created without a colour.
const DefaultTeamColor = "#ffffff"

// Team groups players under a name and colour.
type Team struct {
	NetID uint32
	Name  string
	Color string
}

func (t *Team) netID() uint32 {
	if t == nil {
		return 0
	}
	return t.NetID
}

func (t *Team) packet() *protocol.PacketWriter {
	return protocol.BuildTeam(t.NetID, t.Name, t.Color)
}

// NewTeam creates a team and announces it.
func (w *World) NewTeam(name, color string) (*Team, *network.Delivery) {
	if color == "" {
		color = DefaultTeamColor
	}
	t := &Team{NetID: w.nextTeamID(), Name: name, Color: color}
	w.teams = append(w.teams, t)
	return t, w.broadcast(t.packet())
}

// FindTeam returns the team with the given name.
func (w *World) FindTeam(name string) *Team {
	for _, t := range w.teams {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// TeamPlayers returns the members of the team.
func (w *World) TeamPlayers(t *Team) []*Player {
	var out []*Player
	for _, p := range w.players {
		if p.Team == t {
			out = append(out, p)
		}
	}
	return out
}
