package world

import "github.com/brickd-project/brickd/internal/protocol"

// botCodesFull describes a bot completely; it is sent when a bot is
// created and to joining players.
const botCodesFull = "ABCDEFGHIJKLMNOPQUVWX"

// BuildBotUpdate encodes the Bot packet for b: the net id, the code
// string and one field per code, in code order.
func BuildBotUpdate(b *Bot, codes string) *protocol.PacketWriter {
	w := protocol.NewPacketWriter(protocol.OutBot).
		WriteUInt32(b.NetID).
		WriteString(codes)

	for i := 0; i < len(codes); i++ {
		code := codes[i]
		switch code {
		case 'A':
			w.WriteString(b.Name)
		case 'B':
			w.WriteFloat(b.Position.X)
		case 'C':
			w.WriteFloat(b.Position.Y)
		case 'D':
			w.WriteFloat(b.Position.Z)
		case 'E':
			w.WriteFloat(b.Rotation.X)
		case 'F':
			w.WriteFloat(b.Rotation.Y)
		case 'G':
			w.WriteFloat(b.Rotation.Z)
		case 'H':
			w.WriteFloat(b.Scale.X)
		case 'I':
			w.WriteFloat(b.Scale.Y)
		case 'J':
			w.WriteFloat(b.Scale.Z)
		case 'K', 'L', 'M', 'N', 'O', 'P':
			c, _ := b.Colors.byCode(code)
			w.WriteUInt32(protocol.HexToDec(*c, false))
		case 'Q', 'U', 'V', 'W':
			a, _ := b.Assets.byCode(code)
			w.WriteUInt32(*a)
		case 'R':
			w.WriteUInt32(b.Assets.Shirt)
		case 'S':
			w.WriteUInt32(b.Assets.Pants)
		case 'T':
			w.WriteUInt32(b.Assets.TShirt)
		case 'X':
			w.WriteString(protocol.FormatHex(b.Speech))
		}
	}
	return w
}
