package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateGameData(&cfg.GameData, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

var weatherNames = map[string]bool{"sun": true, "rain": true, "snow": true}

func validateGameData(data *GameData, result *ValidationResult) {
	if !data.Local {
		if data.GameID <= 0 {
			result.AddError("game_data.game_id", "game id is required unless running in local mode")
		}
		validatePort(data.Port, "game_data.port", result)
		if net.ParseIP(data.ListenAddress) == nil {
			result.AddError("game_data.listen_address",
				fmt.Sprintf("invalid listen address: %q", data.ListenAddress))
		}
		if _, err := url.ParseRequestURI(data.AuthAPIURL); err != nil {
			result.AddError("game_data.auth_api_url", "authentication API URL is invalid")
		}
	}

	if strings.TrimSpace(data.ClientVersion) == "" {
		result.AddError("game_data.client_version", "client version is required")
	}

	if data.AuthTimeoutSec < 1 {
		result.AddError("game_data.auth_timeout_sec", "authentication timeout must be at least 1 second")
	}
	if data.AuthRequestTimeoutSec < 1 {
		result.AddError("game_data.auth_request_timeout_sec", "authentication request timeout must be at least 1 second")
	} else if data.AuthRequestTimeoutSec >= data.AuthTimeoutSec {
		result.AddWarning("game_data.auth_request_timeout_sec",
			"request timeout is not shorter than the authentication deadline, slow logins will be dropped")
	}

	env := data.Environment
	validateColor(env.Ambient, "game_data.environment.ambient", result)
	validateColor(env.SkyColor, "game_data.environment.sky_color", result)
	validateColor(env.BaseColor, "game_data.environment.base_color", result)
	if env.BaseSize < 0 {
		result.AddError("game_data.environment.base_size", "base size cannot be negative")
	}
	if !weatherNames[env.Weather] {
		result.AddError("game_data.environment.weather",
			fmt.Sprintf("invalid weather %q (options: sun, rain, snow)", env.Weather))
	}

	seen := make(map[string]bool)
	for i, team := range data.Teams {
		field := fmt.Sprintf("game_data.teams[%d]", i)
		if strings.TrimSpace(team.Name) == "" {
			result.AddError(field+".name", "team name is required")
		}
		if seen[team.Name] {
			result.AddWarning(field+".name", fmt.Sprintf("duplicate team name %q", team.Name))
		}
		seen[team.Name] = true
		validateColor(team.Color, field+".color", result)
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	validateTimers(&data.Timers, result)

	if data.Network.ReadBufferBytes < 512 {
		result.AddError("application_data.network.read_buffer_bytes", "read buffer must be at least 512 bytes")
	}
	if data.Network.ReassemblyLimitBytes < data.Network.ReadBufferBytes {
		result.AddWarning("application_data.network.reassembly_limit_bytes",
			"reassembly limit is smaller than the read buffer, large frames will be discarded")
	}

	if data.Chat.RateLimitSec < 0 {
		result.AddError("application_data.chat.rate_limit_sec", "rate limit cannot be negative")
	}
	if data.Chat.MaxMessageLength < 1 {
		result.AddError("application_data.chat.max_message_length", "max message length must be positive")
	}
	if data.Chat.FilterFile != "" {
		if _, err := os.Stat(data.Chat.FilterFile); os.IsNotExist(err) {
			result.AddWarning("application_data.chat.filter_file",
				fmt.Sprintf("filter file does not exist: %s", data.Chat.FilterFile))
		}
	}

	if strings.TrimSpace(data.Database.Path) == "" {
		result.AddError("application_data.database.path", "database path is required")
	}
	if data.Database.ChatRetentionDays < 1 {
		result.AddError("application_data.database.chat_retention_days",
			"chat retention must be at least 1 day")
	}

	// API
	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
		if !data.Security.AuthDisabled && strings.TrimSpace(data.API.Token) == "" {
			result.AddError("application_data.api.token",
				"API token is required unless security.auth_disabled is set")
		}
	}

	if data.Discord.WebhookURL != "" && !strings.HasPrefix(data.Discord.WebhookURL, "https://") {
		result.AddError("application_data.discord.webhook_url", "webhook URL must use https")
	}

	// MQTT
	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
	}

	// Security
	if data.Security.TLSEnabled {
		if strings.TrimSpace(data.Security.TLSCertFile) == "" {
			result.AddError("application_data.security.tls_cert_file",
				"TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(data.Security.TLSKeyFile) == "" {
			result.AddError("application_data.security.tls_key_file",
				"TLS key file is required when TLS is enabled")
		}
	}

	if data.Security.RateLimitRPS < 1 {
		result.AddWarning("application_data.security.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
}

func validateTimers(timers *TimerConfig, result *ValidationResult) {
	if timers.StatusInterval < 10 {
		result.AddWarning("timers.status_interval",
			"status interval less than 10s may cause excessive traffic")
	}
	if timers.ChatPruneInterval < 60 {
		result.AddWarning("timers.chat_prune_interval", "chat prune interval less than 60s")
	}
	if timers.HealthInterval < 0 {
		result.AddError("timers.health_check_interval", "health check interval cannot be negative")
	}
	if timers.WorldTickMillis < 10 {
		result.AddError("timers.world_tick_ms", "world tick must be at least 10ms")
	}
}

func validateColor(color, field string, result *ValidationResult) {
	if !hexColor.MatchString(color) {
		result.AddError(field, fmt.Sprintf("invalid colour %q (expected #rrggbb)", color))
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
