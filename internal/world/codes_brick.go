package world

import "github.com/brickd-project/brickd/internal/protocol"

// BrickChange names a single-property update in a Brick packet.
type BrickChange string

const (
	BrickPosition   BrickChange = "pos"
	BrickRotation   BrickChange = "rot"
	BrickScale      BrickChange = "scale"
	BrickKill       BrickChange = "kill"
	BrickDestroy    BrickChange = "destroy"
	BrickColor      BrickChange = "col"
	BrickModel      BrickChange = "model"
	BrickAlpha      BrickChange = "alpha"
	BrickCollide    BrickChange = "collide"
	BrickLightColor BrickChange = "lightcol"
	BrickLightRange BrickChange = "lightrange"
	BrickClickable  BrickChange = "clickable"
)

// brickAttributes returns the optional attribute codes that apply to b.
func brickAttributes(b *Brick) string {
	attrs := make([]byte, 0, 6)
	if b.Rotation != 0 {
		attrs = append(attrs, 'A')
	}
	if b.Shape != "" {
		attrs = append(attrs, 'B')
	}
	if b.Model != 0 {
		attrs = append(attrs, 'C')
	}
	if b.LightEnabled {
		attrs = append(attrs, 'D')
	}
	if !b.Collision {
		attrs = append(attrs, 'F')
	}
	if b.Clickable {
		attrs = append(attrs, 'G')
	}
	return string(attrs)
}

// writeBrickProperties appends the full description of b to a SendBrick
// packet.
// Format: [uint32 netId][3 float pos][3 float scale][uint32 colour][float alpha][string attrs]{attr fields}
func writeBrickProperties(w *protocol.PacketWriter, b *Brick) {
	w.WriteUInt32(b.NetID).
		WriteFloat(b.Position.X).
		WriteFloat(b.Position.Y).
		WriteFloat(b.Position.Z).
		WriteFloat(b.Scale.X).
		WriteFloat(b.Scale.Y).
		WriteFloat(b.Scale.Z).
		WriteUInt32(protocol.HexToDec(b.Color, false)).
		WriteFloat(b.Visibility)

	attrs := brickAttributes(b)
	w.WriteString(attrs)
	for i := 0; i < len(attrs); i++ {
		switch attrs[i] {
		case 'A':
			w.WriteInt32(b.Rotation)
		case 'B':
			w.WriteString(b.Shape)
		case 'C':
			w.WriteUInt32(b.Model)
		case 'D':
			w.WriteUInt32(protocol.HexToDec(b.LightColor, false))
			w.WriteUInt32(b.LightRange)
		case 'G':
			w.WriteUInt32(b.ClickDistance)
		}
	}
}

// BuildBrick encodes a SendBrick packet carrying one brick without a count.
func BuildBrick(b *Brick) *protocol.PacketWriter {
	w := protocol.NewPacketWriter(protocol.OutSendBrick)
	writeBrickProperties(w, b)
	return w
}

// BuildBrickList encodes a SendBrick packet with a count followed by every
// brick. It returns nil for an empty list.
func BuildBrickList(bricks []*Brick) *protocol.PacketWriter {
	if len(bricks) == 0 {
		return nil
	}
	w := protocol.NewPacketWriter(protocol.OutSendBrick).WriteUInt32(uint32(len(bricks)))
	for _, b := range bricks {
		writeBrickProperties(w, b)
	}
	return w
}

// BuildBrickUpdate encodes a Brick packet carrying one changed property.
// Unknown changes produce a packet with no data after the keyword.
func BuildBrickUpdate(b *Brick, change BrickChange) *protocol.PacketWriter {
	w := protocol.NewPacketWriter(protocol.OutBrick).
		WriteUInt32(b.NetID).
		WriteString(string(change))

	switch change {
	case BrickPosition:
		w.WriteFloat(b.Position.X).WriteFloat(b.Position.Y).WriteFloat(b.Position.Z)
	case BrickRotation:
		w.WriteUInt32(uint32(b.Rotation))
	case BrickScale:
		w.WriteFloat(b.Scale.X).WriteFloat(b.Scale.Y).WriteFloat(b.Scale.Z)
	case BrickColor:
		w.WriteUInt32(protocol.HexToDec(b.Color, false))
	case BrickModel:
		w.WriteUInt32(b.Model)
	case BrickAlpha:
		w.WriteFloat(b.Visibility)
	case BrickCollide:
		w.WriteBool(b.Collision)
	case BrickLightColor:
		w.WriteUInt32(protocol.HexToDec(b.LightColor, false))
	case BrickLightRange:
		w.WriteUInt32(b.LightRange)
	case BrickClickable:
		w.WriteBool(b.Clickable).WriteUInt32(b.ClickDistance)
	}
	return w
}
