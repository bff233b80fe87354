package tiltbot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// renderMemberTemplate fills the placeholders supported in welcome and
// goodbye messages.
func renderMemberTemplate(
	template string,
	user *discordgo.User,
	guildName string,
) string {
	replacer := strings.NewReplacer(
		"{user.mention}", user.Mention(),
		"{user.name}", user.Username,
		"{guild.name}", guildName,
	)
	return replacer.Replace(template)
}

// memberEventEmbed builds the embed posted on member join/leave
func memberEventEmbed(
	message string,
	user *discordgo.User,
	image string,
) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       wotdEmbedColor,
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: user.AvatarURL(""),
		},
	}
	if image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: image}
	}
	return embed
}

func (t *TiltBot) guildName(guildID string) string {
	return t.discord.session.GuildName(guildID)
}

// handlerGuildMemberAdd posts the guild's welcome message, if the guild
// has a welcome channel configured.
func (t *TiltBot) handlerGuildMemberAdd(
	ctx context.Context,
	m *discordgo.GuildMemberAdd,
) {
	if m.User == nil || m.User.Bot {
		return
	}
	logger := t.logger.With(
		"guild_id", m.GuildID,
		"user_id", m.User.ID,
	)

	config, err := getGuildConfig(t.db.WithContext(ctx), m.GuildID)
	if err != nil {
		logger.ErrorContext(
			ctx, "error loading guild config", tint.Err(err),
		)
		return
	}
	if config == nil || config.WelcomeChannelID == "" {
		return
	}

	template := config.WelcomeMessage
	if template == "" {
		template = DefaultWelcomeMessage
	}
	message := renderMemberTemplate(
		template, m.User, t.guildName(m.GuildID),
	)

	_, err = t.discord.session.ChannelMessageSendEmbed(
		config.WelcomeChannelID,
		memberEventEmbed(message, m.User, config.WelcomeImage),
	)
	if err != nil && !discordPermissionError(err) {
		logger.WarnContext(
			ctx, "error sending welcome message", tint.Err(err),
		)
	}
}

// handlerGuildMemberRemove posts the guild's goodbye message, if the
// guild has a goodbye channel configured.
func (t *TiltBot) handlerGuildMemberRemove(
	ctx context.Context,
	m *discordgo.GuildMemberRemove,
) {
	if m.User == nil || m.User.Bot {
		return
	}
	logger := t.logger.With(
		"guild_id", m.GuildID,
		"user_id", m.User.ID,
	)

	config, err := getGuildConfig(t.db.WithContext(ctx), m.GuildID)
	if err != nil {
		logger.ErrorContext(
			ctx, "error loading guild config", tint.Err(err),
		)
		return
	}
	if config == nil || config.GoodbyeChannelID == "" {
		return
	}

	template := config.GoodbyeMessage
	if template == "" {
		template = DefaultGoodbyeMessage
	}
	message := renderMemberTemplate(
		template, m.User, t.guildName(m.GuildID),
	)

	_, err = t.discord.session.ChannelMessageSendEmbed(
		config.GoodbyeChannelID,
		memberEventEmbed(message, m.User, config.GoodbyeImage),
	)
	if err != nil && !discordPermissionError(err) {
		logger.WarnContext(
			ctx, "error sending goodbye message", tint.Err(err),
		)
	}
}
