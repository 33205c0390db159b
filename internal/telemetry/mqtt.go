package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/util"
)

// MQTT topics below the configured prefix.
const (
	TopicStatus  = "server/status"
	TopicPlayers = "server/players"
	TopicChat    = "server/chat"
	TopicAdmin   = "server/admin"
)

// MQTTPublisher forwards event bus traffic to an MQTT broker.
type MQTTPublisher struct {
	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client
	logger   zerolog.Logger

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTPublisher creates a publisher from the MQTT settings.
func NewMQTTPublisher(cfg *config.Config, eventBus *events.EventBus, version string) (*MQTTPublisher, error) {
	mqttCfg := cfg.GetApplicationData().MQTT
	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}
	gd := cfg.GetGameData()

	sysInfo := util.GetSystemInfo()
	h := &MQTTPublisher{
		cfg:      mqttCfg,
		eventBus: eventBus,
		logger:   util.ComponentLogger("mqtt"),
		metadata: map[string]interface{}{
			"hostname":    sysInfo.Hostname,
			"server_name": gd.ServerName,
			"game_id":     gd.GameID,
			"app_version": version,
		},
	}

	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("brickd-%s-%d", sysInfo.Hostname, gd.GameID))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if mqttCfg.UseTLS {
		tlsConfig, err := mqttTLSConfig(mqttCfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		h.logger.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		h.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	h.client = mqtt.NewClient(opts)
	return h, nil
}

// mqttTLSConfig builds the client TLS settings, with an optional client
// certificate and private CA.
func mqttTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// Start connects to the broker and forwards events until ctx is done.
func (h *MQTTPublisher) Start(ctx context.Context) error {
	h.logger.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.PublishShutdown()
	h.client.Disconnect(5000)
	h.logger.Info().Msg("MQTT disconnected")
	return nil
}

func (h *MQTTPublisher) subscribeEvents() {
	h.eventBus.Subscribe(events.EventServerStatus, "mqtt.status", h.forward(TopicStatus, ""))
	h.eventBus.Subscribe(events.EventPlayerJoin, "mqtt.join", h.forward(TopicPlayers, "join"))
	h.eventBus.Subscribe(events.EventPlayerLeave, "mqtt.leave", h.forward(TopicPlayers, "leave"))
	h.eventBus.Subscribe(events.EventPlayerKicked, "mqtt.kick", h.forward(TopicPlayers, "kick"))
	h.eventBus.Subscribe(events.EventAuthFailed, "mqtt.authFailed", h.forward(TopicPlayers, "auth_failed"))
	h.eventBus.Subscribe(events.EventPlayerChat, "mqtt.chat", h.forward(TopicChat, ""))
	h.eventBus.Subscribe(events.EventWorldLag, "mqtt.lag", h.forward(TopicAdmin, "world_lag"))
	h.eventBus.Subscribe(events.EventHealthAlert, "mqtt.health", h.forward(TopicAdmin, "health"))
}

// forward returns a bus handler that publishes the event payload to topic,
// tagged with name when it is set.
func (h *MQTTPublisher) forward(topic, name string) events.HandlerFunc {
	return func(_ context.Context, event events.Event) error {
		payload := event.Payload
		if name != "" {
			payload = map[string]interface{}{
				"event":   name,
				"payload": event.Payload,
			}
		}
		h.publish(topic, payload)
		return nil
	}
}

// topic prefixes name with the configured topic prefix.
func (h *MQTTPublisher) topic(name string) string {
	if h.cfg.TopicPrefix == "" {
		return name
	}
	return h.cfg.TopicPrefix + "/" + name
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTPublisher) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	data, err := json.Marshal(h.buildMessage(payload))
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	full := h.topic(topic)
	token := h.client.Publish(full, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", full).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTPublisher) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

// PublishShutdown announces that the server is going down.
func (h *MQTTPublisher) PublishShutdown() {
	h.publish(TopicAdmin, map[string]interface{}{
		"event": "shutdown",
	})
}
