package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/events"
)

// Embed colors by level.
const (
	colorInfo     = 0x00FF00
	colorWarning  = 0xFFAA00
	colorCritical = 0xFF0000
)

// Discord allows 30 webhook calls a minute.
const webhookBurst = 5

// DiscordNotifier posts admin notifications to a Discord webhook.
type DiscordNotifier struct {
	cfg     *config.Config
	client  *http.Client
	limiter *rate.Limiter
	footer  string
}

// NewDiscordNotifier creates a notifier for the configured webhook.
func NewDiscordNotifier(cfg *config.Config, version string) *DiscordNotifier {
	return &DiscordNotifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), webhookBurst),
		footer:  fmt.Sprintf(userAgent, version),
	}
}

// Enabled reports whether a webhook is configured.
func (dn *DiscordNotifier) Enabled() bool {
	return dn.cfg.GetApplicationData().Discord.WebhookURL != ""
}

// Subscribe registers the notifier for the event types enabled in the
// configuration.
func (dn *DiscordNotifier) Subscribe(bus *events.EventBus) {
	discord := dn.cfg.GetApplicationData().Discord
	if discord.NotifyHealth {
		bus.Subscribe(events.EventHealthAlert, "discord.health", dn.onHealthAlert)
	}
	if discord.NotifyKicks {
		bus.Subscribe(events.EventPlayerKicked, "discord.kick", dn.onKick)
	}
	if discord.NotifyStartup {
		bus.Subscribe(events.EventShutdown, "discord.shutdown", dn.onShutdown)
	}
}

// Notify sends one embed to the webhook. level is "info", "warning" or
// "critical".
func (dn *DiscordNotifier) Notify(ctx context.Context, title, message, level string) error {
	webhookURL := dn.cfg.GetApplicationData().Discord.WebhookURL
	if webhookURL == "" {
		return nil
	}
	if err := dn.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	color := colorInfo
	switch level {
	case "critical", "error":
		color = colorCritical
	case "warning":
		color = colorWarning
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
				"footer": map[string]string{
					"text": dn.footer,
				},
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dn.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	log.Debug().Str("title", title).Msg("Discord webhook notification sent")
	return nil
}

func (dn *DiscordNotifier) onHealthAlert(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.HealthPayload)
	if !ok {
		return nil
	}
	title := fmt.Sprintf("Health check %s: %s", payload.Check, payload.Status)
	level := payload.Status
	if level == "ok" {
		level = "info"
	}
	return dn.Notify(ctx, title, payload.Message, level)
}

func (dn *DiscordNotifier) onKick(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.KickPayload)
	if !ok {
		return nil
	}
	message := fmt.Sprintf("%s (user %d) was kicked by %s", payload.Username, payload.UserID, payload.By)
	if payload.Reason != "" {
		message += ": " + payload.Reason
	}
	return dn.Notify(ctx, "Player kicked", message, "warning")
}

func (dn *DiscordNotifier) onShutdown(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ShutdownPayload)
	if !ok {
		return nil
	}
	return dn.Notify(ctx, "Server stopping", payload.Reason, "warning")
}
