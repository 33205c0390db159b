package world

import (
	"slices"

	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
)

// Tool is an inventory item.
type Tool struct {
	SlotID  uint32
	Name    string
	Model   uint32
	Enabled bool

	// Activated fires when the holder clicks.
	Activated  Signal[*Player]
	Equipped   Signal[*Player]
	Unequipped Signal[*Player]
}

func (t *Tool) model() uint32 {
	if t == nil {
		return 0
	}
	return t.Model
}

// NewTool creates and registers a tool with its own inventory slot.
func (w *World) NewTool(name string) *Tool {
	t := &Tool{SlotID: w.nextToolID(), Name: name, Enabled: true}
	w.tools = append(w.tools, t)
	return t
}

// DestroyTool takes the tool away from every player and forgets it.
func (w *World) DestroyTool(t *Tool) *network.Delivery {
	for _, p := range w.players {
		if p.ToolEquipped == t {
			p.ToolEquipped = nil
			t.Unequipped.Emit(p)
		}
		p.DestroyTool(t)
	}
	i := slices.Index(w.tools, t)
	if i < 0 {
		return &network.Delivery{}
	}
	w.tools = slices.Delete(w.tools, i, i+1)
	t.Activated.Clear()
	t.Equipped.Clear()
	t.Unequipped.Clear()
	return w.broadcast(protocol.BuildTool(false, t.SlotID, t.Name, t.Model))
}
