// Package events defines the event types published on the brickd event bus.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Player events
	EventPlayerJoin   EventType = "player_join"
	EventPlayerLeave  EventType = "player_leave"
	EventPlayerChat   EventType = "player_chat"
	EventPlayerKicked EventType = "player_kicked"
	EventAuthFailed   EventType = "auth_failed"

	// Server events
	EventServerStatus EventType = "server_status"
	EventWorldLag     EventType = "world_lag"
	EventHealthAlert  EventType = "health_alert"
	EventShutdown     EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// PlayerPayload describes a player joining or leaving.
type PlayerPayload struct {
	NetID    uint32    `json:"net_id"`
	UserID   uint32    `json:"user_id"`
	Username string    `json:"username"`
	Remote   string    `json:"remote"`
	Admin    bool      `json:"admin"`
	At       time.Time `json:"at"`
}

// ChatPayload is a chat line that passed the chat checks.
type ChatPayload struct {
	UserID   uint32    `json:"user_id"`
	Username string    `json:"username"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// KickPayload records why a player was removed.
type KickPayload struct {
	UserID   uint32 `json:"user_id"`
	Username string `json:"username"`
	Reason   string `json:"reason"`
	By       string `json:"by"`
}

// AuthFailedPayload records a rejected login.
type AuthFailedPayload struct {
	Remote string `json:"remote"`
	Reason string `json:"reason"`
}

// ServerStatusPayload is the periodic status snapshot.
type ServerStatusPayload struct {
	Players     int     `json:"players"`
	Connections int     `json:"connections"`
	Bricks      int     `json:"bricks"`
	Bots        int     `json:"bots"`
	UptimeSec   int64   `json:"uptime_sec"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
}

// LagPayload reports a slow world round trip.
type LagPayload struct {
	Level     string  `json:"level"`
	LatencyMS float64 `json:"latency_ms"`
	Slow      int     `json:"slow_samples"`
}

// ShutdownPayload announces a server shutdown.
type ShutdownPayload struct {
	Reason string `json:"reason"`
}

// HealthPayload reports a health check that changed state.
type HealthPayload struct {
	Check   string `json:"check"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
