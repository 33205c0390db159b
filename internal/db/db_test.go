package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brickd-project/brickd/internal/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "brickd.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBans(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, banned, err := s.BanReason(ctx, 7); err != nil || banned {
		t.Fatalf("BanReason before ban = %v, %v", banned, err)
	}

	if err := s.Ban(ctx, 7, "spam", "console"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if err := s.Ban(ctx, 7, "griefing", "api"); err != nil {
		t.Fatalf("second Ban: %v", err)
	}
	reason, banned, err := s.BanReason(ctx, 7)
	if err != nil || !banned || reason != "griefing" {
		t.Fatalf("BanReason = %q, %v, %v", reason, banned, err)
	}

	bans, err := s.Bans(ctx)
	if err != nil || len(bans) != 1 || bans[0].BannedBy != "api" {
		t.Fatalf("Bans = %+v, %v", bans, err)
	}

	if ok, err := s.Unban(ctx, 7); err != nil || !ok {
		t.Fatalf("Unban = %v, %v", ok, err)
	}
	if ok, _ := s.Unban(ctx, 7); ok {
		t.Fatalf("second Unban reported a ban")
	}
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	joined := time.Unix(1_700_000_000, 0)

	if err := s.RecordJoin(ctx, 1, "alice", 3, "10.0.x.x", joined); err != nil {
		t.Fatalf("RecordJoin: %v", err)
	}
	if err := s.RecordJoin(ctx, 2, "bob", 4, "10.0.x.x", joined); err != nil {
		t.Fatalf("RecordJoin: %v", err)
	}
	if err := s.RecordLeave(ctx, 1, 3, joined.Add(time.Minute)); err != nil {
		t.Fatalf("RecordLeave: %v", err)
	}

	sessions, err := s.RecentSessions(ctx, 10)
	if err != nil || len(sessions) != 2 {
		t.Fatalf("RecentSessions = %+v, %v", sessions, err)
	}
	if sessions[0].Username != "bob" || sessions[0].LeftAt != nil {
		t.Fatalf("bob's session = %+v", sessions[0])
	}
	if sessions[1].LeftAt == nil || sessions[1].LeftAt.Sub(sessions[1].JoinedAt) != time.Minute {
		t.Fatalf("alice's session = %+v", sessions[1])
	}

	n, err := s.CloseOpenSessions(ctx, joined.Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("CloseOpenSessions = %d, %v", n, err)
	}
}

func TestChatLogPruning(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.LogChat(ctx, 1, "alice", "old news", time.Now().AddDate(0, 0, -40)); err != nil {
		t.Fatalf("LogChat: %v", err)
	}
	if err := s.LogChat(ctx, 1, "alice", "hello", time.Now()); err != nil {
		t.Fatalf("LogChat: %v", err)
	}

	n, err := s.PruneChat(ctx, 30)
	if err != nil || n != 1 {
		t.Fatalf("PruneChat = %d, %v", n, err)
	}
	lines, err := s.RecentChat(ctx, 10)
	if err != nil || len(lines) != 1 || lines[0].Message != "hello" {
		t.Fatalf("RecentChat = %+v, %v", lines, err)
	}
}

func TestSubscribeRecordsEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	bus := events.NewEventBus()
	s.Subscribe(bus)

	at := time.Now()
	err := bus.EmitSync(ctx, events.Event{
		Type:    events.EventPlayerJoin,
		Payload: events.PlayerPayload{NetID: 1, UserID: 9, Username: "carol", At: at},
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	err = bus.EmitSync(ctx, events.Event{
		Type:    events.EventPlayerChat,
		Payload: events.ChatPayload{UserID: 9, Username: "carol", Message: "hi", At: at},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if err := bus.EmitSync(ctx, events.Event{Type: events.EventPlayerChat, Payload: "bad"}); err == nil {
		t.Fatalf("expected error for unexpected payload")
	}

	sessions, _ := s.RecentSessions(ctx, 10)
	lines, _ := s.RecentChat(ctx, 10)
	if len(sessions) != 1 || sessions[0].Username != "carol" || len(lines) != 1 {
		t.Fatalf("sessions=%+v chat=%+v", sessions, lines)
	}
}
