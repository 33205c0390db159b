package world

import "github.com/brickd-project/brickd/internal/protocol"

// Figure codes used by the server itself.
const (
	figureCodesFull     = "ABCDEFGHIKLMNOPQUVWXYfg"
	figureCodesRespawn  = "ebc56789a3h"
	figureCodesPosition = "ABCF"
)

// BuildPlayerUpdate encodes the Figure packet for p: the net id, the code
// string and one field per code, in code order. Values are read at call
// time; codes without a field are skipped in the body.
func BuildPlayerUpdate(p *Player, codes string) *protocol.PacketWriter {
	w := protocol.NewPacketWriter(protocol.OutFigure).
		WriteUInt32(p.NetID).
		WriteString(codes)

	for i := 0; i < len(codes); i++ {
		code := codes[i]
		switch code {
		case 'A':
			w.WriteFloat(p.Position.X)
		case 'B':
			w.WriteFloat(p.Position.Y)
		case 'C':
			w.WriteFloat(p.Position.Z)
		case 'D':
			w.WriteFloat(p.Rotation.X)
		case 'E':
			w.WriteFloat(p.Rotation.Y)
		case 'F':
			w.WriteFloat(p.Rotation.Z)
		case 'G':
			w.WriteFloat(p.Scale.X)
		case 'H':
			w.WriteFloat(p.Scale.Y)
		case 'I':
			w.WriteFloat(p.Scale.Z)
		case 'K', 'L', 'M', 'N', 'O', 'P':
			c, _ := p.Colors.byCode(code)
			w.WriteUInt32(protocol.HexToDec(*c, false))
		case 'Q', 'U', 'V', 'W':
			a, _ := p.Assets.byCode(code)
			w.WriteUInt32(*a)
		case 'X':
			w.WriteInt32(p.Score)
		case 'Y':
			w.WriteUInt32(p.Team.netID())
		case '1':
			w.WriteUInt32(p.Speed)
		case '2':
			w.WriteUInt32(p.JumpPower)
		case '3':
			w.WriteUInt32(p.CameraFOV)
		case '4':
			w.WriteInt32(p.CameraDistance)
		case '5':
			w.WriteFloat(p.CameraPosition.X)
		case '6':
			w.WriteFloat(p.CameraPosition.Y)
		case '7':
			w.WriteFloat(p.CameraPosition.Z)
		case '8':
			w.WriteFloat(p.CameraRotation.X)
		case '9':
			w.WriteFloat(p.CameraRotation.Y)
		case 'a':
			w.WriteFloat(p.CameraRotation.Z)
		case 'b':
			w.WriteString(string(p.CameraType))
		case 'c':
			w.WriteUInt32(p.CameraObject.netID())
		case 'e':
			w.WriteFloat(p.Health)
		case 'f':
			w.WriteString(protocol.FormatHex(p.Speech))
		case 'g':
			w.WriteUInt32(p.ToolEquipped.model())
		}
	}
	return w
}
