package world

import "time"

// PlayerInfo is a copy of a player's public state, safe to hand to other
// goroutines.
type PlayerInfo struct {
	NetID          uint32  `json:"net_id"`
	UserID         uint32  `json:"user_id"`
	Username       string  `json:"username"`
	Admin          bool    `json:"admin"`
	MembershipType uint8   `json:"membership_type"`
	Remote         string  `json:"remote"`
	Team           string  `json:"team,omitempty"`
	Score          int32   `json:"score"`
	Health         float32 `json:"health"`
	Alive          bool    `json:"alive"`
	Muted          bool    `json:"muted"`
	Position       Vector3 `json:"position"`
}

// Info returns a snapshot of the player.
func (p *Player) Info() PlayerInfo {
	info := PlayerInfo{
		NetID:          p.NetID,
		UserID:         p.UserID,
		Username:       p.Username,
		Admin:          p.Admin,
		MembershipType: p.MembershipType,
		Remote:         p.conn.Remote(),
		Score:          p.Score,
		Health:         p.Health,
		Alive:          p.Alive,
		Muted:          p.Muted,
		Position:       p.Position,
	}
	if p.Team != nil {
		info.Team = p.Team.Name
	}
	return info
}

// Info is a summary of the world state.
type Info struct {
	Players     int           `json:"players"`
	Bricks      int           `json:"bricks"`
	Spawns      int           `json:"spawns"`
	Bots        int           `json:"bots"`
	Teams       []string      `json:"teams"`
	Tools       int           `json:"tools"`
	Environment Environment   `json:"environment"`
	Uptime      time.Duration `json:"uptime"`
}

// Snapshot returns the player list and a world summary.
func (w *World) Snapshot() ([]PlayerInfo, Info) {
	players := make([]PlayerInfo, 0, len(w.players))
	for _, p := range w.players {
		players = append(players, p.Info())
	}
	teams := make([]string, 0, len(w.teams))
	for _, t := range w.teams {
		teams = append(teams, t.Name)
	}
	return players, Info{
		Players:     len(w.players),
		Bricks:      len(w.bricks),
		Spawns:      len(w.spawns),
		Bots:        len(w.bots),
		Teams:       teams,
		Tools:       len(w.tools),
		Environment: w.env,
		Uptime:      w.Uptime(),
	}
}
