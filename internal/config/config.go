// Package config handles configuration loading, validation, and persistence
// for the brickd game server.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir     = "config"
	DefaultConfigFile    = "config.json"
	DefaultAPIPort       = 5000
	DefaultGamePort      = 42480
	DefaultClientVersion = "0.3.0.3"
	DefaultAuthAPI       = "https://api.brick-hill.com/v1/auth/verifyToken"
	DefaultMOTD          = "[#14d8ff][NOTICE]: This server is proudly hosted with brickd."

	// LocalListenAddress and LocalPort are forced in local mode.
	LocalListenAddress = "127.0.0.1"
	LocalPort          = 42480
)

// Config is the root configuration structure for brickd.
type Config struct {
	mu   sync.RWMutex
	path string

	GameData        GameData        `json:"game_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// GameData contains the settings that shape the game itself.
type GameData struct {
	// Identity
	GameID     int    `json:"game_id"`
	ServerName string `json:"server_name"`

	// Listener
	ListenAddress string `json:"listen_address"`
	Port          int    `json:"port"`
	Local         bool   `json:"local"`

	// Authentication
	ClientVersion         string `json:"client_version"`
	AuthAPIURL            string `json:"auth_api_url"`
	AuthTimeoutSec        int    `json:"auth_timeout_sec"`
	AuthRequestTimeoutSec int    `json:"auth_request_timeout_sec"`

	// Join behaviour
	MOTD             string `json:"motd"`
	SendBricks       bool   `json:"send_bricks"`
	PlayerSpawning   bool   `json:"player_spawning"`
	SystemMessages   bool   `json:"system_messages"`
	AssignRandomTeam bool   `json:"assign_random_team"`

	// World
	Environment EnvironmentConfig `json:"environment"`
	Teams       []TeamConfig      `json:"teams"`
}

// EnvironmentConfig is the initial world environment.
type EnvironmentConfig struct {
	Ambient      string `json:"ambient"`
	SkyColor     string `json:"sky_color"`
	BaseColor    string `json:"base_color"`
	BaseSize     int    `json:"base_size"`
	SunIntensity int    `json:"sun_intensity"`
	Weather      string `json:"weather"`
}

// TeamConfig declares a team created at startup.
type TeamConfig struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ApplicationData contains server application configuration.
type ApplicationData struct {
	Timers   TimerConfig    `json:"timers"`
	Network  NetworkConfig  `json:"network"`
	Chat     ChatConfig     `json:"chat"`
	Database DatabaseConfig `json:"database"`
	API      APIConfig      `json:"api"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Security SecurityConfig `json:"security"`
	Discord  DiscordConfig  `json:"discord"`
	Logging  LoggingConfig  `json:"logging"`
}

// TimerConfig holds periodic task intervals.
type TimerConfig struct {
	StatusInterval    int `json:"status_interval_sec"`
	ChatPruneInterval int `json:"chat_prune_interval_sec"`
	WorldTickMillis   int `json:"world_tick_ms"`
	HealthInterval    int `json:"health_check_interval_sec"`
}

// NetworkConfig holds socket tuning.
type NetworkConfig struct {
	ReadBufferBytes      int `json:"read_buffer_bytes"`
	ReassemblyLimitBytes int `json:"reassembly_limit_bytes"`
	WriteTimeoutSec      int `json:"write_timeout_sec"`
	KeepAliveSec         int `json:"keepalive_sec"`
	ShutdownFlushSec     int `json:"shutdown_flush_sec"`
}

// ChatConfig holds chat pipeline settings.
type ChatConfig struct {
	RateLimitSec     int    `json:"rate_limit_sec"`
	MaxMessageLength int    `json:"max_message_length"`
	FilterFile       string `json:"filter_file"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path              string `json:"path"`
	ChatRetentionDays int    `json:"chat_retention_days"`
}

// APIConfig holds admin REST API settings.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Token   string `json:"token"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// SecurityConfig holds API security settings.
type SecurityConfig struct {
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	IPWhitelist    []string `json:"ip_whitelist"`
	AuthDisabled   bool     `json:"auth_disabled"`
}

// DiscordConfig holds the Discord webhook used for admin notifications.
type DiscordConfig struct {
	WebhookURL    string `json:"webhook_url"`
	NotifyHealth  bool   `json:"notify_health"`
	NotifyKicks   bool   `json:"notify_kicks"`
	NotifyStartup bool   `json:"notify_startup"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GameData: GameData{
			ServerName:            "brickd server",
			ListenAddress:         "0.0.0.0",
			Port:                  DefaultGamePort,
			ClientVersion:         DefaultClientVersion,
			AuthAPIURL:            DefaultAuthAPI,
			AuthTimeoutSec:        20,
			AuthRequestTimeoutSec: 12,
			MOTD:                  DefaultMOTD,
			SendBricks:            true,
			PlayerSpawning:        true,
			SystemMessages:        true,
			AssignRandomTeam:      true,
			Environment: EnvironmentConfig{
				Ambient:      "#000000",
				SkyColor:     "#71b1e6",
				BaseColor:    "#248233",
				BaseSize:     100,
				SunIntensity: 400,
				Weather:      "sun",
			},
		},
		ApplicationData: ApplicationData{
			Timers: TimerConfig{
				StatusInterval:    60,
				ChatPruneInterval: 86400,
				WorldTickMillis:   100,
				HealthInterval:    30,
			},
			Network: NetworkConfig{
				ReadBufferBytes:      16 * 1024,
				ReassemblyLimitBytes: 1 << 20,
				WriteTimeoutSec:      10,
				KeepAliveSec:         10,
				ShutdownFlushSec:     5,
			},
			Chat: ChatConfig{
				RateLimitSec:     2,
				MaxMessageLength: 85,
			},
			Database: DatabaseConfig{
				Path:              "data/brickd.db",
				ChatRetentionDays: 30,
			},
			API: APIConfig{
				Enabled: false,
				Port:    DefaultAPIPort,
			},
			MQTT: MQTTConfig{
				Enabled:     false,
				Port:        8883,
				UseTLS:      true,
				TopicPrefix: "brickd",
			},
			Security: SecurityConfig{
				RateLimitRPS: 20,
			},
			Discord: DiscordConfig{
				NotifyHealth:  true,
				NotifyKicks:   true,
				NotifyStartup: true,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	// This ensures config.json always reflects the complete set of options.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Ensure config directory exists
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetGameData returns a copy of the game configuration.
func (c *Config) GetGameData() GameData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.GameData
}

// SetGameData updates the game configuration.
func (c *Config) SetGameData(data GameData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GameData = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application data configuration.
func (c *Config) SetApplicationData(data ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = data
}

// UpdateGameField updates a specific field in game data by its JSON key.
func (c *Config) UpdateGameField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, _ := json.Marshal(c.GameData)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	m[key] = value

	updated, _ := json.Marshal(m)
	if err := json.Unmarshal(updated, &c.GameData); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}

	return nil
}

// ListenAddr returns the TCP address the game listener binds. Local mode
// always binds the loopback interface on the local port.
func (c *Config) ListenAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.GameData.Local {
		return net.JoinHostPort(LocalListenAddress, strconv.Itoa(LocalPort))
	}
	return net.JoinHostPort(c.GameData.ListenAddress, strconv.Itoa(c.GameData.Port))
}

// AuthTimeout returns how long a connection may stay unauthenticated.
func (c *Config) AuthTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.GameData.AuthTimeoutSec) * time.Second
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.GameData.GameID == 0 && !c.GameData.Local
}
