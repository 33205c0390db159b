package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/events"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ConnectionOpened()
	m.PacketDispatched("position")
	m.PacketDropped("malformed")
	m.AuthResult("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		"brickd_connections_active 1",
		`brickd_packets_dispatched_total{type="position"} 1`,
		`brickd_packets_dropped_total{reason="malformed"} 1`,
		`brickd_auth_results_total{result="ok"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("exposition missing %q", want)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.SetPlayersOnline(3)
	m.FramesReceived(1)
	m.BytesDiscarded(1)
	m.PacketDispatched("x")
	m.PacketDropped("x")
	m.AuthResult("x")
	m.BytesSent(1)
	m.ChatMessage()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("nil handler status = %d", rec.Code)
	}
}

func TestMQTTDisabled(t *testing.T) {
	if _, err := NewMQTTPublisher(config.DefaultConfig(), events.NewEventBus(), "test"); err == nil {
		t.Fatalf("expected error when MQTT is disabled")
	}
}

func TestMQTTMessageShape(t *testing.T) {
	cfg := config.DefaultConfig()
	app := cfg.GetApplicationData()
	app.MQTT.Enabled = true
	app.MQTT.UseTLS = false
	app.MQTT.BrokerURL = "127.0.0.1"
	app.MQTT.Port = 1883
	cfg.SetApplicationData(app)

	h, err := NewMQTTPublisher(cfg, events.NewEventBus(), "1.2.3")
	if err != nil {
		t.Fatalf("NewMQTTPublisher: %v", err)
	}
	if got := h.topic(TopicChat); got != "brickd/server/chat" {
		t.Fatalf("topic = %q", got)
	}
	msg := h.buildMessage("payload")
	if msg["app_version"] != "1.2.3" || msg["payload"] != "payload" || msg["timestamp"] == "" {
		t.Fatalf("message = %v", msg)
	}

	// Not connected: forwarding is a silent no-op.
	if err := h.forward(TopicPlayers, "join")(context.Background(), events.Event{Payload: 1}); err != nil {
		t.Fatalf("forward: %v", err)
	}
}

func TestMQTTTLSConfigErrors(t *testing.T) {
	_, err := mqttTLSConfig(config.MQTTConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")})
	if err == nil {
		t.Fatalf("expected error for missing CA file")
	}
	tlsCfg, err := mqttTLSConfig(config.MQTTConfig{})
	if err != nil || tlsCfg.RootCAs != nil || len(tlsCfg.Certificates) != 0 {
		t.Fatalf("plain TLS config = %+v, %v", tlsCfg, err)
	}
}
