package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/events"
)

type webhookBody struct {
	Embeds []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Color       int    `json:"color"`
	} `json:"embeds"`
}

func testNotifier(t *testing.T, status int) (*DiscordNotifier, <-chan webhookBody) {
	t.Helper()
	bodies := make(chan webhookBody, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		bodies <- body
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.ApplicationData.Discord.WebhookURL = srv.URL
	return NewDiscordNotifier(cfg, "test"), bodies
}

func TestNotifySendsEmbed(t *testing.T) {
	dn, bodies := testNotifier(t, http.StatusNoContent)
	if err := dn.Notify(context.Background(), "Disk", "almost full", "critical"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	body := <-bodies
	if len(body.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(body.Embeds))
	}
	e := body.Embeds[0]
	if e.Title != "Disk" || e.Description != "almost full" || e.Color != colorCritical {
		t.Fatalf("embed = %+v", e)
	}
}

func TestNotifyReportsHTTPError(t *testing.T) {
	dn, _ := testNotifier(t, http.StatusTooManyRequests)
	if err := dn.Notify(context.Background(), "t", "m", "info"); err == nil {
		t.Fatalf("expected an error for a 429 response")
	}
}

func TestNotifyWithoutWebhook(t *testing.T) {
	dn := NewDiscordNotifier(config.DefaultConfig(), "test")
	if dn.Enabled() {
		t.Fatalf("Enabled() = true without a webhook URL")
	}
	if err := dn.Notify(context.Background(), "t", "m", "info"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestSubscribeForwardsKicks(t *testing.T) {
	dn, bodies := testNotifier(t, http.StatusNoContent)
	bus := events.NewEventBus()
	defer bus.Stop()
	dn.Subscribe(bus)

	bus.Publish(events.EventPlayerKicked, "test", events.KickPayload{
		UserID:   9,
		Username: "mallory",
		Reason:   "spam",
		By:       "console",
	})

	select {
	case body := <-bodies:
		want := "mallory (user 9) was kicked by console: spam"
		if body.Embeds[0].Description != want {
			t.Fatalf("description = %q, want %q", body.Embeds[0].Description, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("kick was not forwarded")
	}
}
