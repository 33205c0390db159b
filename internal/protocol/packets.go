// Package protocol implements the binary wire format spoken by the legacy
// Brick Hill client. Every message on the socket is a frame: a variable-width
// length prefix followed by a payload that may be zlib-deflated. A decoded
// payload starts with a one-byte packet type. Multi-byte integers and floats
// are little-endian and strings are null-terminated.
package protocol

// PacketType identifies a packet by its leading byte.
type PacketType uint8

// Packets received from the client.
const (
	InAuthenticate   PacketType = 1 // token, client version, optional variant flag
	InPositionUpdate PacketType = 2 // x, y, z, rotation z
	InCommand        PacketType = 3 // command name, arguments
	InProjectile     PacketType = 4 // reserved, ignored
	InClickDetection PacketType = 5 // brick net id
	InInputEvent     PacketType = 6 // click flag, key name
)

// Packets sent to the client.
const (
	OutAuthentication     PacketType = 1  // session info after a successful login
	OutSendBrick          PacketType = 2  // brick batch
	OutSendPlayers        PacketType = 3  // player list
	OutFigure             PacketType = 4  // attribute-coded player update
	OutRemovePlayer       PacketType = 5  // player left
	OutChat               PacketType = 6  // chat line
	OutPlayerModification PacketType = 7  // keyword-driven client modification
	OutKill               PacketType = 8  // death state
	OutBrick              PacketType = 9  // keyword-driven brick update
	OutTeam               PacketType = 10 // team definition
	OutTool               PacketType = 11 // inventory change
	OutBot                PacketType = 12 // attribute-coded bot update
	OutClearMap           PacketType = 14 // remove every brick
	OutDestroyBot         PacketType = 15 // bot removed
	OutDeleteBrick        PacketType = 16 // brick batch removal
)

// MaxFrameLength is the largest payload length the prefix can carry.
const MaxFrameLength = 0x10204080 - 1

// Packet is a decoded frame payload split into its type and body.
type Packet struct {
	Type    PacketType
	Payload []byte
}

// ParsePacket splits a frame payload into its type byte and body.
func ParsePacket(payload []byte) (Packet, error) {
	if len(payload) == 0 {
		return Packet{}, &UnderrunError{Op: "packet type", Need: 1, Have: 0}
	}
	return Packet{Type: PacketType(payload[0]), Payload: payload[1:]}, nil
}

// String returns a human readable name for an inbound packet type.
func (t PacketType) String() string {
	switch t {
	case InAuthenticate:
		return "authenticate"
	case InPositionUpdate:
		return "position"
	case InCommand:
		return "command"
	case InProjectile:
		return "projectile"
	case InClickDetection:
		return "click"
	case InInputEvent:
		return "input"
	default:
		return "unknown"
	}
}
