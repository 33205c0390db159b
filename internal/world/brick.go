package world

import (
	"errors"
	"math"
	"slices"

	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
)

// Brick defaults.
const (
	DefaultBrickColor    = "#C0C0C0"
	DefaultLightColor    = "#000000"
	DefaultLightRange    = 5
	DefaultClickDistance = 50
)

var (
	ErrBrickDestroyed = errors.New("brick has already been destroyed")
	ErrLightDisabled  = errors.New("brick light must be enabled first")
)

// Brick is a box in the world. A brick with an owner is local: only the
// owner sees it and only the owner is checked for touches.
type Brick struct {
	w     *World
	owner *Player

	NetID         uint32
	Name          string
	Position      Vector3
	Scale         Vector3
	Color         string
	Visibility    float32
	Rotation      int32
	Shape         string
	Model         uint32
	Collision     bool
	LightEnabled  bool
	LightColor    string
	LightRange    uint32
	Clickable     bool
	ClickDistance uint32
	Destroyed     bool

	clicked       Signal[*Player]
	Touching      Signal[*Player]
	TouchingEnded Signal[*Player]

	touching map[*Player]struct{}
}

// NewBrick creates a detached brick. It becomes visible once added with
// World.NewBrick, World.LoadBricks or Player.NewBrick.
func NewBrick(position, scale Vector3, color string) *Brick {
	if color == "" {
		color = DefaultBrickColor
	}
	return &Brick{
		Position:      position,
		Scale:         scale,
		Color:         color,
		Visibility:    1,
		Collision:     true,
		LightColor:    DefaultLightColor,
		LightRange:    DefaultLightRange,
		ClickDistance: DefaultClickDistance,
		touching:      make(map[*Player]struct{}),
	}
}

// Owner returns the player a local brick belongs to, or nil.
func (b *Brick) Owner() *Player {
	return b.owner
}

// Local reports whether only one player can see the brick.
func (b *Brick) Local() bool {
	return b.owner != nil
}

func (b *Brick) publish(change BrickChange) *network.Delivery {
	if b.w == nil || b.Destroyed {
		return &network.Delivery{}
	}
	pw := BuildBrickUpdate(b, change)
	if b.owner != nil {
		return b.owner.send(pw)
	}
	return b.w.broadcast(pw)
}

func (b *Brick) SetPosition(pos Vector3) *network.Delivery {
	b.Position = pos
	return b.publish(BrickPosition)
}

func (b *Brick) SetScale(scale Vector3) *network.Delivery {
	b.Scale = scale
	return b.publish(BrickScale)
}

func (b *Brick) SetRotation(rot int32) *network.Delivery {
	b.Rotation = rot
	return b.publish(BrickRotation)
}

func (b *Brick) SetModel(model uint32) *network.Delivery {
	b.Model = model
	return b.publish(BrickModel)
}

func (b *Brick) SetColor(color string) *network.Delivery {
	b.Color = color
	return b.publish(BrickColor)
}

func (b *Brick) SetVisibility(alpha float32) *network.Delivery {
	b.Visibility = alpha
	return b.publish(BrickAlpha)
}

func (b *Brick) SetCollision(collision bool) *network.Delivery {
	b.Collision = collision
	return b.publish(BrickCollide)
}

// SetLightColor changes the light colour. The light must be enabled.
func (b *Brick) SetLightColor(color string) (*network.Delivery, error) {
	if !b.LightEnabled {
		return nil, ErrLightDisabled
	}
	b.LightColor = color
	return b.publish(BrickLightColor), nil
}

// SetLightRange changes the light range. The light must be enabled.
func (b *Brick) SetLightRange(r uint32) (*network.Delivery, error) {
	if !b.LightEnabled {
		return nil, ErrLightDisabled
	}
	b.LightRange = r
	return b.publish(BrickLightRange), nil
}

// SetClickable toggles click detection. A zero distance keeps the
// default of 50.
func (b *Brick) SetClickable(clickable bool, distance uint32) *network.Delivery {
	if distance == 0 {
		distance = DefaultClickDistance
	}
	b.Clickable = clickable
	b.ClickDistance = distance
	return b.publish(BrickClickable)
}

// Kill plays the brick's destruction effect without removing it.
func (b *Brick) Kill() *network.Delivery {
	return b.publish(BrickKill)
}

// Destroy removes the brick from the world or from its owner.
func (b *Brick) Destroy() error {
	if b.Destroyed {
		return ErrBrickDestroyed
	}
	if b.w != nil {
		if b.owner != nil {
			if i := slices.Index(b.owner.LocalBricks, b); i >= 0 {
				b.owner.LocalBricks = slices.Delete(b.owner.LocalBricks, i, i+1)
			}
		} else {
			b.w.removeBrick(b)
		}
		b.publish(BrickDestroy)
	}
	b.markDestroyed()
	return nil
}

func (b *Brick) markDestroyed() {
	b.Destroyed = true
	b.owner = nil
	b.clicked.Clear()
	b.Touching.Clear()
	b.TouchingEnded.Clear()
	clear(b.touching)
}

// Clone copies the brick's properties into a new detached brick.
func (b *Brick) Clone() *Brick {
	c := NewBrick(b.Position, b.Scale, b.Color)
	c.Name = b.Name
	c.LightColor = b.LightColor
	c.LightRange = b.LightRange
	c.Clickable = b.Clickable
	c.ClickDistance = b.ClickDistance
	c.Visibility = b.Visibility
	c.Collision = b.Collision
	c.Rotation = b.Rotation
	c.LightEnabled = b.LightEnabled
	c.Model = b.Model
	c.Shape = b.Shape
	return c
}

// Center returns the centre of the brick's footprint.
func (b *Brick) Center() Vector3 {
	return Vec(b.Position.X+b.Scale.X/2, b.Position.Y+b.Scale.Y/2, b.Scale.Z)
}

// Intersects reports whether the two bricks' boxes overlap or touch.
func (b *Brick) Intersects(o *Brick) bool {
	overlap := func(p, s, op, os float32) bool {
		return p <= op+os && p+s >= op
	}
	return overlap(b.Position.X, b.Scale.X, o.Position.X, o.Scale.X) &&
		overlap(b.Position.Y, b.Scale.Y, o.Position.Y, o.Scale.Y) &&
		overlap(b.Position.Z, b.Scale.Z, o.Position.Z, o.Scale.Z)
}

// Clicked subscribes fn to clicks on the brick, making it clickable if it
// is not. secure is true when the player stood within ClickDistance.
// Disconnecting makes the brick unclickable again.
func (b *Brick) Clicked(fn func(p *Player, secure bool)) *Subscription {
	if !b.Clickable {
		b.SetClickable(true, b.ClickDistance)
	}
	sub := b.clicked.Subscribe(func(p *Player) {
		limit := float64(b.ClickDistance)
		fn(p, b.Position.distanceSq(p.Position) <= limit*limit)
	})
	return &Subscription{disconnect: func() {
		sub.Disconnect()
		b.SetClickable(false, b.ClickDistance)
	}}
}

func (b *Brick) emitClicked(p *Player) {
	b.clicked.Emit(p)
}

func (b *Brick) watchesTouch() bool {
	return b.Touching.Len() > 0 || b.TouchingEnded.Len() > 0
}

// detectTouch runs one touch check against the candidate players.
func (b *Brick) detectTouch(players []*Player) {
	for p := range b.touching {
		if p.Destroyed {
			delete(b.touching, p)
		}
	}
	if b.owner != nil {
		players = []*Player{b.owner}
	}

	half := Vec(b.Scale.X/2, b.Scale.Y/2, b.Scale.Z/2)
	origin := Vec(b.Position.X+half.X, b.Position.Y+half.Y, b.Position.Z+half.Z)

	for _, p := range players {
		size := Vec(p.Scale.X, p.Scale.Y, 5*p.Scale.Z/2)
		center := Vec(p.Position.X, p.Position.Y, p.Position.Z+size.Z)

		touched := axisClose(origin.X, center.X, size.X+half.X) &&
			axisClose(origin.Y, center.Y, size.Y+half.Y) &&
			axisClose(origin.Z, center.Z, size.Z+half.Z)

		if touched && p.Alive {
			b.touching[p] = struct{}{}
			b.Touching.Emit(p)
		}
		if _, was := b.touching[p]; was && (!touched || !p.Alive) {
			delete(b.touching, p)
			b.TouchingEnded.Emit(p)
		}
	}
}

func axisClose(a, b, close float32) bool {
	return math.Abs(float64(a-b)) < float64(close)+0.4
}

// IsTouching reports whether p was touching the brick at the last check.
func (b *Brick) IsTouching(p *Player) bool {
	_, ok := b.touching[p]
	return ok
}

// ---- World ----

func (w *World) attachBrick(b *Brick) {
	b.w = w
	b.owner = nil
	b.NetID = w.nextBrickID()
	if b.touching == nil {
		b.touching = make(map[*Player]struct{})
	}
	w.bricks = append(w.bricks, b)
}

func (w *World) removeBrick(b *Brick) {
	if i := slices.Index(w.bricks, b); i >= 0 {
		w.bricks = slices.Delete(w.bricks, i, i+1)
	}
	if i := slices.Index(w.spawns, b); i >= 0 {
		w.spawns = slices.Delete(w.spawns, i, i+1)
	}
}

// NewBrick adds a brick to the world and sends it to everyone.
func (w *World) NewBrick(b *Brick) *network.Delivery {
	w.attachBrick(b)
	return w.broadcast(BuildBrick(b))
}

// LoadBricks adds a batch of bricks and sends them to everyone.
func (w *World) LoadBricks(bricks []*Brick) *network.Delivery {
	for _, b := range bricks {
		w.attachBrick(b)
	}
	pw := BuildBrickList(bricks)
	if pw == nil {
		return &network.Delivery{}
	}
	return w.Broadcast(pw.ToFrame(len(bricks) != 1))
}

// AddSpawn registers a brick as a spawn point. The brick is not sent.
func (w *World) AddSpawn(b *Brick) {
	if !slices.Contains(w.spawns, b) {
		w.spawns = append(w.spawns, b)
	}
}

// Spawns returns the registered spawn bricks.
func (w *World) Spawns() []*Brick {
	return append([]*Brick(nil), w.spawns...)
}

// DeleteBricks removes the given bricks and tells every client.
func (w *World) DeleteBricks(bricks []*Brick) *network.Delivery {
	ids := make([]uint32, 0, len(bricks))
	for _, b := range bricks {
		w.removeBrick(b)
		ids = append(ids, b.NetID)
		b.markDestroyed()
	}
	return w.broadcast(protocol.BuildDeleteBricks(ids))
}

// ClearMap removes every brick and spawn.
func (w *World) ClearMap() *network.Delivery {
	for _, b := range w.bricks {
		b.markDestroyed()
	}
	w.bricks = nil
	w.spawns = nil
	return w.broadcast(protocol.BuildClearMap())
}
