package db

import (
	"context"
	"fmt"

	"github.com/brickd-project/brickd/internal/events"
)

// Subscribe records player sessions and chat from the event bus.
func (s *Store) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventPlayerJoin, "audit", func(ctx context.Context, ev events.Event) error {
		p, ok := ev.Payload.(events.PlayerPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", ev.Payload)
		}
		return s.RecordJoin(ctx, p.UserID, p.Username, p.NetID, p.Remote, p.At)
	})

	bus.Subscribe(events.EventPlayerLeave, "audit", func(ctx context.Context, ev events.Event) error {
		p, ok := ev.Payload.(events.PlayerPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", ev.Payload)
		}
		return s.RecordLeave(ctx, p.UserID, p.NetID, p.At)
	})

	bus.Subscribe(events.EventPlayerChat, "audit", func(ctx context.Context, ev events.Event) error {
		c, ok := ev.Payload.(events.ChatPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", ev.Payload)
		}
		return s.LogChat(ctx, c.UserID, c.Username, c.Message, c.At)
	})
}
