package world

import (
	"errors"
	"slices"

	"github.com/rs/zerolog"

	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
)

// Conn is the socket side of a player.
type Conn interface {
	network.Socket
	CloseAfterFlush() <-chan struct{}
	Close() error
	Remote() string
}

// CameraType is the client camera mode.
type CameraType string

const (
	CameraFixed  CameraType = "fixed"
	CameraOrbit  CameraType = "orbit"
	CameraFree   CameraType = "free"
	CameraFirst  CameraType = "first"
	CameraRotate CameraType = "rotate"
)

// Identity is what the identity service knows about a player.
type Identity struct {
	UserID         uint32
	Username       string
	Admin          bool
	MembershipType uint8
	Brickplayer    bool
}

// MoveEvent is emitted when a player's position or heading changed.
type MoveEvent struct {
	Player   *Player
	Position Vector3
	Rotation float32
}

// Errors returned by player operations.
var (
	ErrToolInInventory = errors.New("player already has this tool")
	ErrToolNotOwned    = errors.New("player does not have this tool")
	ErrPlayerDestroyed = errors.New("player has left the game")
)

// Player is an authenticated client bound to the world.
type Player struct {
	w    *World
	conn Conn
	log  zerolog.Logger

	NetID          uint32
	UserID         uint32
	Username       string
	Admin          bool
	MembershipType uint8
	Brickplayer    bool

	Position Vector3
	Rotation Vector3
	Scale    Vector3
	Colors   BodyColors
	Assets   Assets

	Score     int32
	Team      *Team
	Speed     uint32
	JumpPower uint32

	CameraFOV      uint32
	CameraDistance int32
	CameraPosition Vector3
	CameraRotation Vector3
	CameraType     CameraType
	CameraObject   *Player

	Health    float32
	MaxHealth float32
	Alive     bool
	Speech    string
	Muted     bool
	ChatColor string

	ToolEquipped *Tool
	Inventory    []*Tool
	LocalBricks  []*Brick
	BlockedUsers []uint32

	// SpawnPosition, when set, overrides every other spawn rule.
	SpawnPosition *Vector3
	// SpawnHandler picks the spawn point when SpawnPosition is nil.
	SpawnHandler func(p *Player) Vector3

	Destroyed bool

	Moved      Signal[MoveEvent]
	Died       Signal[*Player]
	Respawned  Signal[*Player]
	Chatted    Signal[string]
	MouseClick Signal[*Player]
	KeyPress   Signal[string]
	Left       Signal[*Player]

	subs []*Subscription
}

// NewPlayer creates a player for an authenticated connection. The player is
// not part of the world until Join is called.
func (w *World) NewPlayer(conn Conn, id Identity) *Player {
	p := &Player{
		w:              w,
		conn:           conn,
		NetID:          w.nextPlayerID(),
		UserID:         id.UserID,
		Username:       id.Username,
		Admin:          id.Admin,
		MembershipType: id.MembershipType,
		Brickplayer:    id.Brickplayer,
		Scale:          Vec(1, 1, 1),
		Colors:         DefaultBodyColors(),
		Speed:          4,
		JumpPower:      5,
		CameraFOV:      60,
		CameraDistance: 5,
		CameraType:     CameraFixed,
		MaxHealth:      100,
	}
	p.CameraObject = p
	p.log = w.logger.With().
		Uint32("net_id", p.NetID).
		Uint32("user_id", p.UserID).
		Str("username", p.Username).
		Logger()
	return p
}

// Conn returns the player's connection.
func (p *Player) Conn() Conn {
	return p.conn
}

// World returns the world the player belongs to.
func (p *Player) World() *World {
	return p.w
}

func (p *Player) netID() uint32 {
	if p == nil {
		return 0
	}
	return p.NetID
}

func (p *Player) send(pw *protocol.PacketWriter) *network.Delivery {
	return network.Send(pw.ToFrame(false), p.conn)
}

func (p *Player) sendCompressed(pw *protocol.PacketWriter) *network.Delivery {
	return network.Send(pw.ToFrame(true), p.conn)
}

func (p *Player) sendCodes(codes string) *network.Delivery {
	return p.send(BuildPlayerUpdate(p, codes))
}

func (p *Player) broadcastCodes(codes string) *network.Delivery {
	return p.w.broadcast(BuildPlayerUpdate(p, codes))
}

// ---- Messages ----

// Message sends a chat line to this player only.
func (p *Player) Message(message string) *network.Delivery {
	return p.send(protocol.BuildChat(message))
}

// TopPrint shows a timed message at the top of the player's screen.
func (p *Player) TopPrint(message string, seconds uint32) *network.Delivery {
	return p.send(protocol.BuildPrint(protocol.TopPrint, message, seconds))
}

// CenterPrint shows a timed message in the centre of the player's screen.
func (p *Player) CenterPrint(message string, seconds uint32) *network.Delivery {
	return p.send(protocol.BuildPrint(protocol.CenterPrint, message, seconds))
}

// BottomPrint shows a timed message at the bottom of the player's screen.
func (p *Player) BottomPrint(message string, seconds uint32) *network.Delivery {
	return p.send(protocol.BuildPrint(protocol.BottomPrint, message, seconds))
}

// Prompt opens a confirm window on the client.
func (p *Player) Prompt(message string) *network.Delivery {
	return p.send(protocol.BuildPrompt(message))
}

// Kick shows reason to the client and closes the connection once it was
// written.
func (p *Player) Kick(reason string) <-chan struct{} {
	p.log.Info().Str("reason", reason).Msg("kicking player")
	p.send(protocol.BuildKick(reason))
	return p.conn.CloseAfterFlush()
}

// SetEnvironment changes the environment for this player only.
func (p *Player) SetEnvironment(patch EnvironmentPatch) error {
	return p.w.applyEnvironment(patch, p)
}

// ---- Figure ----

// SetPosition teleports the player.
func (p *Player) SetPosition(pos Vector3) *network.Delivery {
	p.Position = pos
	p.Moved.Emit(MoveEvent{Player: p, Position: p.Position, Rotation: p.Rotation.Z})
	return p.broadcastCodes(figureCodesPosition)
}

// SetScale resizes the player.
func (p *Player) SetScale(scale Vector3) *network.Delivery {
	p.Scale = scale
	return p.broadcastCodes("GHI")
}

// SetSpeed sets the walk speed.
func (p *Player) SetSpeed(speed uint32) *network.Delivery {
	p.Speed = speed
	return p.sendCodes("1")
}

// SetJumpPower sets the jump power.
func (p *Player) SetJumpPower(power uint32) *network.Delivery {
	p.JumpPower = power
	return p.sendCodes("2")
}

// SetScore sets the leaderboard score.
func (p *Player) SetScore(score int32) *network.Delivery {
	p.Score = score
	return p.broadcastCodes("X")
}

// SetTeam moves the player to team. A nil team clears it.
func (p *Player) SetTeam(team *Team) *network.Delivery {
	p.Team = team
	return p.broadcastCodes("Y")
}

// SetSpeech sets the speech bubble. Players blocking this player do not see
// it.
func (p *Player) SetSpeech(speech string) *network.Delivery {
	p.Speech = speech
	return p.w.broadcastExcept(BuildPlayerUpdate(p, "f"), p.BlockedBy()...)
}

// SetOutfit applies an outfit and announces the changed parts.
func (p *Player) SetOutfit(o *Outfit) *network.Delivery {
	o.apply(&p.Colors, &p.Assets)
	return p.broadcastCodes(o.Codes())
}

// SetHealth changes the health. A non-positive value kills a living
// player; a value above MaxHealth raises MaxHealth.
func (p *Player) SetHealth(health float32) *network.Delivery {
	if health <= 0 && p.Alive {
		return p.Kill()
	}
	if health > p.MaxHealth {
		p.MaxHealth = health
	}
	p.Health = health
	return p.sendCodes("e")
}

// ---- Camera ----

func (p *Player) SetCameraPosition(pos Vector3) *network.Delivery {
	p.CameraPosition = pos
	return p.sendCodes("567")
}

func (p *Player) SetCameraRotation(rot Vector3) *network.Delivery {
	p.CameraRotation = rot
	return p.sendCodes("89a")
}

func (p *Player) SetCameraDistance(distance int32) *network.Delivery {
	p.CameraDistance = distance
	return p.sendCodes("4")
}

func (p *Player) SetCameraFOV(fov uint32) *network.Delivery {
	p.CameraFOV = fov
	return p.sendCodes("3")
}

// SetCameraObject makes the camera follow target.
func (p *Player) SetCameraObject(target *Player) *network.Delivery {
	p.CameraObject = target
	return p.sendCodes("c")
}

func (p *Player) SetCameraType(t CameraType) *network.Delivery {
	p.CameraType = t
	return p.sendCodes("b")
}

// ---- Life cycle ----

// Kill marks the player dead and tells every client.
func (p *Player) Kill() *network.Delivery {
	p.Alive = false
	p.Health = 0
	d := p.w.broadcast(protocol.BuildKill(p.NetID, true))
	p.sendCodes("e")
	p.Died.Emit(p)
	return d
}

// Respawn moves the player to a spawn point and resets health and camera.
func (p *Player) Respawn() *network.Delivery {
	var pos Vector3
	switch {
	case p.SpawnPosition != nil:
		pos = *p.SpawnPosition
	case p.SpawnHandler != nil:
		pos = p.SpawnHandler(p)
	default:
		pos = p.w.PickSpawn()
	}
	p.SetPosition(pos)

	p.w.broadcast(protocol.BuildKill(p.NetID, false))

	p.Alive = true
	p.Health = p.MaxHealth
	p.CameraType = CameraOrbit
	p.CameraObject = p
	p.CameraPosition = Vector3{}
	p.CameraRotation = Vector3{}
	p.CameraFOV = 60
	p.ToolEquipped = nil

	d := p.sendCodes(figureCodesRespawn)
	p.Respawned.Emit(p)
	return d
}

// updatePosition applies a client position report. Only changed axes are
// announced, and never back to the reporting client.
func (p *Player) updatePosition(x, y, z, rotZ float32) {
	var codes []byte
	if p.Position.X != x {
		p.Position.X = x
		codes = append(codes, 'A')
	}
	if p.Position.Y != y {
		p.Position.Y = y
		codes = append(codes, 'B')
	}
	if p.Position.Z != z {
		p.Position.Z = z
		codes = append(codes, 'C')
	}
	if p.Rotation.Z != rotZ {
		p.Rotation.Z = rotZ
		codes = append(codes, 'F')
	}
	if len(codes) == 0 {
		return
	}
	p.Moved.Emit(MoveEvent{Player: p, Position: p.Position, Rotation: p.Rotation.Z})
	p.w.broadcastExcept(BuildPlayerUpdate(p, string(codes)), p)
}

// HandlePosition applies a position report received from the client.
func (w *World) HandlePosition(p *Player, x, y, z, rotZ float32) {
	p.updatePosition(x, y, z, rotZ)
}

// ---- Tools ----

func (p *Player) hasTool(t *Tool) bool {
	return slices.Contains(p.Inventory, t)
}

// AddTool puts t into the inventory.
func (p *Player) AddTool(t *Tool) error {
	if p.hasTool(t) {
		return ErrToolInInventory
	}
	p.Inventory = append(p.Inventory, t)
	p.send(protocol.BuildTool(true, t.SlotID, t.Name, t.Model))
	return nil
}

// DestroyTool removes t from the inventory.
func (p *Player) DestroyTool(t *Tool) error {
	i := slices.Index(p.Inventory, t)
	if i < 0 {
		return ErrToolNotOwned
	}
	p.Inventory = slices.Delete(p.Inventory, i, i+1)
	p.send(protocol.BuildTool(false, t.SlotID, t.Name, t.Model))
	return nil
}

// EquipTool puts t into the player's hand, adding it to the inventory
// first if needed. Equipping the held tool unequips it.
func (p *Player) EquipTool(t *Tool) {
	if !p.hasTool(t) {
		p.AddTool(t)
	}
	if p.ToolEquipped == t {
		p.UnequipTool(t)
		return
	}
	if prev := p.ToolEquipped; prev != nil {
		prev.Unequipped.Emit(p)
	}
	p.ToolEquipped = t
	t.Equipped.Emit(p)
	p.broadcastCodes("g")
}

// UnequipTool empties the player's hand.
func (p *Player) UnequipTool(t *Tool) {
	p.ToolEquipped = nil
	if t != nil {
		t.Unequipped.Emit(p)
	}
	p.broadcastCodes("h")
}

// ---- Local bricks ----

// NewBrick adds a brick only this player can see.
func (p *Player) NewBrick(b *Brick) *network.Delivery {
	b.owner = p
	b.w = p.w
	b.NetID = p.w.nextBrickID()
	p.LocalBricks = append(p.LocalBricks, b)
	return p.send(BuildBrick(b))
}

// LoadBricks adds a batch of local bricks.
func (p *Player) LoadBricks(bricks []*Brick) *network.Delivery {
	for _, b := range bricks {
		b.owner = p
		b.w = p.w
		b.NetID = p.w.nextBrickID()
	}
	p.LocalBricks = append(p.LocalBricks, bricks...)
	return p.sendBricks(bricks)
}

// DeleteBricks removes local bricks.
func (p *Player) DeleteBricks(bricks []*Brick) *network.Delivery {
	ids := make([]uint32, 0, len(bricks))
	for _, b := range bricks {
		if i := slices.Index(p.LocalBricks, b); i >= 0 {
			p.LocalBricks = slices.Delete(p.LocalBricks, i, i+1)
		}
		b.markDestroyed()
		ids = append(ids, b.NetID)
	}
	return p.send(protocol.BuildDeleteBricks(ids))
}

// ClearMap removes every brick from this player's view.
func (p *Player) ClearMap() *network.Delivery {
	return p.send(protocol.BuildClearMap())
}

func (p *Player) sendBricks(bricks []*Brick) *network.Delivery {
	pw := BuildBrickList(bricks)
	if pw == nil {
		return &network.Delivery{}
	}
	if len(bricks) != 1 {
		return p.sendCompressed(pw)
	}
	return p.send(pw)
}

// ---- Blocking ----

// BlockedBy returns the players that have blocked this player.
func (p *Player) BlockedBy() []*Player {
	var out []*Player
	for _, other := range p.w.players {
		if slices.Contains(other.BlockedUsers, p.UserID) {
			out = append(out, other)
		}
	}
	return out
}

// ---- Subscriptions ----

// track ties a subscription to the player's lifetime.
func (p *Player) track(sub *Subscription) *Subscription {
	p.subs = append(p.subs, sub)
	return sub
}

func (p *Player) clearObservers() {
	for _, s := range p.subs {
		s.Disconnect()
	}
	p.subs = nil
	p.Moved.Clear()
	p.Died.Clear()
	p.Respawned.Clear()
	p.Chatted.Clear()
	p.MouseClick.Clear()
	p.KeyPress.Clear()
	p.Left.Clear()
}

// Entry returns the SendPlayers row for this player.
func (p *Player) Entry() protocol.PlayerEntry {
	return protocol.PlayerEntry{
		NetID:          p.NetID,
		Username:       p.Username,
		UserID:         p.UserID,
		Admin:          p.Admin,
		MembershipType: p.MembershipType,
	}
}
