package dispatch

import (
	"fmt"

	"github.com/brickd-project/brickd/internal/protocol"
)

// dispatch routes a packet of an authenticated session. A read error means
// the packet was too short and nothing was applied.
func (s *Session) dispatch(pkt protocol.Packet) error {
	r := protocol.NewPacketReader(pkt.Payload)

	switch pkt.Type {
	case protocol.InPositionUpdate:
		return s.handlePosition(r)
	case protocol.InCommand:
		return s.handleCommand(r)
	case protocol.InProjectile:
		return nil
	case protocol.InClickDetection:
		return s.handleClick(r)
	case protocol.InInputEvent:
		return s.handleInput(r)
	default:
		return fmt.Errorf("unknown packet type %d", pkt.Type)
	}
}

func (s *Session) handlePosition(r *protocol.PacketReader) error {
	var v [4]float32
	for i := range v {
		f, err := r.ReadFloatLE()
		if err != nil {
			return err
		}
		v[i] = f
	}
	s.d.world.HandlePosition(s.player, v[0], v[1], v[2], v[3])
	return nil
}

func (s *Session) handleCommand(r *protocol.PacketReader) error {
	command, err := r.ReadStringNT()
	if err != nil {
		return err
	}
	args, err := r.ReadStringNT()
	if err != nil {
		return err
	}
	s.d.world.HandleCommand(s.player, command, args)
	return nil
}

func (s *Session) handleClick(r *protocol.PacketReader) error {
	netID, err := r.ReadUInt32()
	if err != nil {
		return err
	}
	s.d.world.HandleClick(s.player, netID)
	return nil
}

func (s *Session) handleInput(r *protocol.PacketReader) error {
	click, err := r.ReadUInt8()
	if err != nil {
		return err
	}
	key, err := r.ReadStringNT()
	if err != nil {
		return err
	}
	s.d.world.HandleInput(s.player, click != 0, key)
	return nil
}
