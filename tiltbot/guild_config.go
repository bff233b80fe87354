package tiltbot

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"
)

const (
	columnGuildConfigCurrentCount      = "current_count"
	columnGuildConfigLastCounterID     = "last_counter_id"
	columnGuildConfigCountingChannelID = "counting_channel_id"
	columnGuildConfigWotdLastWord      = "wotd_last_word"
)

const (
	DefaultWelcomeMessage = "Welcome to {guild.name}, {user.mention}!"
	DefaultGoodbyeMessage = "{user.name} has left the server."
)

// GuildConfig holds all per-guild settings: welcome/goodbye messages,
// the counting game channel and its persisted streak, and word-of-the-day
// delivery. One row per guild, created lazily the first time a guild
// configures anything.
type GuildConfig struct {
	GuildID string `gorm:"primaryKey" json:"guild_id"`
	ModelUnixTime

	WelcomeChannelID string `json:"welcome_channel_id"`
	WelcomeMessage   string `json:"welcome_message"`
	WelcomeImage     string `json:"welcome_image"`

	GoodbyeChannelID string `json:"goodbye_channel_id"`
	GoodbyeMessage   string `json:"goodbye_message"`
	GoodbyeImage     string `json:"goodbye_image"`

	// CountingChannelID enables the counting game when non-empty
	CountingChannelID string `json:"counting_channel_id"`

	// CurrentCount is the persisted streak. The in-memory copy in
	// [CountingGame] is authoritative while the bot runs; this column
	// is only written by the write-behind flush and on streak resets.
	CurrentCount int64 `json:"current_count"`

	// LastCounterID is the user ID of whoever counted last
	LastCounterID string `json:"last_counter_id"`

	// WotdChannelID enables word-of-the-day delivery when non-empty
	WotdChannelID string `json:"wotd_channel_id"`

	// WotdHour is the local hour of day (0-23) to deliver at
	WotdHour int `json:"wotd_hour"`

	// WotdTimezone is a UTC offset like "UTC+2" or "-5"
	WotdTimezone string `json:"wotd_timezone"`

	// WotdLastWord is the last word delivered to this guild, used to
	// avoid duplicate deliveries
	WotdLastWord string `json:"wotd_last_word"`
}

func (GuildConfig) TableName() string {
	return "guild_config"
}

func (g GuildConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("guild_id", g.GuildID),
		slog.String("counting_channel_id", g.CountingChannelID),
		slog.Int64("current_count", g.CurrentCount),
		slog.String("wotd_channel_id", g.WotdChannelID),
	)
}

// getGuildConfig loads the config row for a guild. Returns
// (nil, nil) if the guild has no row yet.
func getGuildConfig(db *gorm.DB, guildID string) (*GuildConfig, error) {
	var config GuildConfig
	err := db.Where("guild_id = ?", guildID).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// getOrCreateGuildConfig loads a guild's config row, creating a default
// row if one doesn't exist yet.
func getOrCreateGuildConfig(
	ctx context.Context,
	db DBI,
	guildID string,
) (*GuildConfig, error) {
	existing, err := getGuildConfig(db.DB(), guildID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	config := &GuildConfig{GuildID: guildID}
	if _, err := db.Create(ctx, config); err != nil {
		return nil, err
	}
	return config, nil
}
