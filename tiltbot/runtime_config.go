package tiltbot

import (
	"log/slog"
)

// RuntimeConfig holds settings that can be changed while the bot runs,
// via the admin API, without a restart. A single row is kept in the
// `config` table; the bot caches the latest row and refreshes it on
// notifier events or after [Config.RuntimeConfigTTL].
type RuntimeConfig struct {
	ModelUintID
	ModelUnixTime

	// Paused stops the schedulers from firing announcements and
	// word-of-the-day deliveries. Counting messages are still handled.
	Paused bool `json:"paused" gorm:"default:false"`

	// AdminUsername for the admin API (set via `tiltbot init`)
	AdminUsername string `json:"admin_username" log:"[redacted]"`

	// AdminPassword is the argon2id hash of the admin API password
	AdminPassword string `json:"admin_password" log:"[redacted]"`

	// NotificationChannelID, if set, receives the startup message
	// whenever the bot connects to the gateway
	NotificationChannelID string `json:"notification_channel_id"`

	// CustomStatus sets the bot user's custom status on connect
	CustomStatus string `json:"custom_status"`

	// ChatEnabled toggles the /chat command responses
	ChatEnabled bool `json:"chat_enabled" gorm:"default:true"`

	BotLogLevel      DBLogLevel `json:"bot_log_level" gorm:"type:string" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DiscordLogLevel  DBLogLevel `json:"discord_log_level" gorm:"type:string" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DatabaseLogLevel DBLogLevel `json:"database_log_level" gorm:"type:string" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	APILogLevel      DBLogLevel `json:"api_log_level" gorm:"type:string" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
}

func (RuntimeConfig) TableName() string {
	return "config"
}

func (c RuntimeConfig) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DefaultRuntimeConfig returns the runtime config created on first run
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Paused:           false,
		ChatEnabled:      true,
		CustomStatus:     DefaultDiscordCustomStatus,
		BotLogLevel:      DBLogLevel(DefaultLogLevel.String()),
		DiscordLogLevel:  DBLogLevel(DefaultDiscordLogLevel.String()),
		DatabaseLogLevel: DBLogLevel(DefaultDatabaseLogLevel.String()),
		APILogLevel:      DBLogLevel(DefaultAPILogLevel.String()),
	}
}
