package world

import (
	"errors"
	"math"
	"slices"

	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
)

// botTouchDistance is how close a player must be to touch a bot.
const botTouchDistance = 2

var ErrBotDestroyed = errors.New("bot has already been destroyed")

// Bot is a server-controlled figure.
type Bot struct {
	w *World

	NetID     uint32
	Name      string
	Speech    string
	Position  Vector3
	Rotation  Vector3
	Scale     Vector3
	Colors    BodyColors
	Assets    Assets
	Destroyed bool

	// Touching fires every tick for each living player within reach.
	Touching Signal[*Player]
}

// NewBot creates a detached bot. Add it with World.NewBot.
func NewBot(name string) *Bot {
	return &Bot{
		Name:   name,
		Scale:  Vec(1, 1, 1),
		Colors: DefaultBodyColors(),
	}
}

func (b *Bot) publish(codes string) *network.Delivery {
	if b.w == nil || b.Destroyed {
		return &network.Delivery{}
	}
	return b.w.broadcast(BuildBotUpdate(b, codes))
}

func (b *Bot) SetPosition(pos Vector3) *network.Delivery {
	b.Position = pos
	return b.publish("BCDG")
}

func (b *Bot) SetRotation(rot Vector3) *network.Delivery {
	b.Rotation = rot
	return b.publish("EFG")
}

func (b *Bot) SetScale(scale Vector3) *network.Delivery {
	b.Scale = scale
	return b.publish("HIJ")
}

func (b *Bot) SetSpeech(speech string) *network.Delivery {
	b.Speech = speech
	return b.publish("X")
}

// SetOutfit applies an outfit and announces the changed parts.
func (b *Bot) SetOutfit(o *Outfit) *network.Delivery {
	o.apply(&b.Colors, &b.Assets)
	return b.publish(o.Codes())
}

// headingTo returns the atan2 angle towards pos and the matching z
// rotation in client degrees.
func (b *Bot) headingTo(pos Vector3) (angle float64, rotZ float32) {
	angle = math.Atan2(float64(pos.Y-b.Position.Y), float64(pos.X-b.Position.X))
	return angle, float32(-(angle * 180 / math.Pi) + 270)
}

// LookAtPoint turns the bot to face pos and returns the new z rotation.
func (b *Bot) LookAtPoint(pos Vector3) float32 {
	_, rot := b.headingTo(pos)
	b.Rotation.Z = rot
	b.publish("G")
	return rot
}

// LookAtPlayer turns the bot to face p.
func (b *Bot) LookAtPlayer(p *Player) float32 {
	return b.LookAtPoint(p.Position)
}

// MoveTowardsPoint steps the bot towards pos. speed is in hundredths of a
// stud per call; zero means 5.
func (b *Bot) MoveTowardsPoint(pos Vector3, speed float64) *network.Delivery {
	if speed == 0 {
		speed = 5
	}
	speed *= 0.01
	angle, rot := b.headingTo(pos)
	b.Position.X += float32(math.Cos(angle) * speed)
	b.Position.Y += float32(math.Sin(angle) * speed)
	b.Rotation.Z = rot
	return b.publish("BCDG")
}

// MoveTowardsPlayer steps the bot towards p.
func (b *Bot) MoveTowardsPlayer(p *Player, speed float64) *network.Delivery {
	return b.MoveTowardsPoint(p.Position, speed)
}

// FindClosestPlayer returns the nearest living player within maxDist, or
// nil.
func (b *Bot) FindClosestPlayer(maxDist float64) *Player {
	if b.w == nil {
		return nil
	}
	var target *Player
	for _, p := range b.w.players {
		if p.Destroyed || !p.Alive {
			continue
		}
		if d := p.Position.Distance(b.Position); d <= maxDist {
			maxDist = d
			target = p
		}
	}
	return target
}

// Destroy removes the bot from the world.
func (b *Bot) Destroy() error {
	if b.Destroyed {
		return ErrBotDestroyed
	}
	if b.w != nil {
		if i := slices.Index(b.w.bots, b); i >= 0 {
			b.w.bots = slices.Delete(b.w.bots, i, i+1)
		}
		b.w.broadcast(protocol.BuildDestroyBot(b.NetID))
	}
	b.Touching.Clear()
	b.Destroyed = true
	return nil
}

func (b *Bot) detectTouch(players []*Player) {
	for _, p := range players {
		if p.Destroyed || !p.Alive {
			continue
		}
		if p.Position.Distance(b.Position) <= botTouchDistance {
			b.Touching.Emit(p)
		}
	}
}

// NewBot adds a bot to the world and sends it to everyone.
func (w *World) NewBot(b *Bot) *network.Delivery {
	b.w = w
	b.NetID = w.nextBotID()
	w.bots = append(w.bots, b)
	return w.broadcast(BuildBotUpdate(b, botCodesFull))
}
