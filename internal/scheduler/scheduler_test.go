package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/events"
)

type fixedStatus events.ServerStatusPayload

func (f fixedStatus) Status(context.Context) (events.ServerStatusPayload, error) {
	return events.ServerStatusPayload(f), nil
}

type recordingPruner struct {
	days []int
}

func (p *recordingPruner) PruneChat(_ context.Context, days int) (int64, error) {
	p.days = append(p.days, days)
	return 3, nil
}

func TestPublishStatus(t *testing.T) {
	bus := events.NewEventBus()
	got := make(chan events.ServerStatusPayload, 1)
	bus.Subscribe(events.EventServerStatus, "test", func(_ context.Context, ev events.Event) error {
		got <- ev.Payload.(events.ServerStatusPayload)
		return nil
	})

	s := NewScheduler(config.DefaultConfig(), bus, fixedStatus{Players: 4, UptimeSec: 90}, nil)
	s.publishStatus(context.Background())

	select {
	case status := <-got:
		if status.Players != 4 || status.UptimeSec != 90 {
			t.Fatalf("status = %+v", status)
		}
	case <-time.After(time.Second):
		t.Fatalf("no status event published")
	}
}

func TestPruneChatUsesRetention(t *testing.T) {
	cfg := config.DefaultConfig()
	app := cfg.GetApplicationData()
	app.Database.ChatRetentionDays = 7
	cfg.SetApplicationData(app)

	p := &recordingPruner{}
	s := NewScheduler(cfg, events.NewEventBus(), fixedStatus{}, p)
	s.pruneChat(context.Background())

	app.Database.ChatRetentionDays = 0
	cfg.SetApplicationData(app)
	s.pruneChat(context.Background())

	if len(p.days) != 1 || p.days[0] != 7 {
		t.Fatalf("prune calls = %v", p.days)
	}
}

func TestStartStopsWithContext(t *testing.T) {
	p := &recordingPruner{}
	s := NewScheduler(config.DefaultConfig(), events.NewEventBus(), fixedStatus{}, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Start did not return after cancel")
	}
}
