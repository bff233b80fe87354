package tiltbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	commandSetup      = "setup"
	commandConfig     = "config"
	commandAnnounce   = "announce"
	commandWotd       = "wotd"
	commandChat       = "chat"
	commandClear      = "clear"
	commandServerInfo = "serverinfo"

	clearMinCount = 1
	clearMaxCount = 100

	serverInfoEmbedColor = 0x3498db
)

// manageServerPermission restricts a command to members who can manage
// the server
var manageServerPermission int64 = discordgo.PermissionManageServer

// manageMessagesPermission restricts a command to members who can delete
// other users' messages
var manageMessagesPermission int64 = discordgo.PermissionManageMessages

func appCommandSetup() *discordgo.ApplicationCommand {
	channelTypes := []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
	return &discordgo.ApplicationCommand{
		Name:                     commandSetup,
		Description:              "Enable or disable bot features for this server",
		DefaultMemberPermissions: &manageServerPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "counting",
				Description: "Counting game",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "set",
						Description: "Set the counting channel (resets the count)",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:         discordgo.ApplicationCommandOptionChannel,
								Name:         "channel",
								Description:  "Channel to play the counting game in",
								ChannelTypes: channelTypes,
								Required:     true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "unset",
						Description: "Disable the counting game",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "welcome",
				Description: "Welcome messages",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "set",
						Description: "Set the welcome channel",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:         discordgo.ApplicationCommandOptionChannel,
								Name:         "channel",
								Description:  "Channel to post welcome messages in",
								ChannelTypes: channelTypes,
								Required:     true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "unset",
						Description: "Disable welcome messages",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "goodbye",
				Description: "Goodbye messages",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "set",
						Description: "Set the goodbye channel",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:         discordgo.ApplicationCommandOptionChannel,
								Name:         "channel",
								Description:  "Channel to post goodbye messages in",
								ChannelTypes: channelTypes,
								Required:     true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "unset",
						Description: "Disable goodbye messages",
					},
				},
			},
		},
	}
}

func appCommandConfig() *discordgo.ApplicationCommand {
	messageOptions := func(kind string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: fmt.Sprintf("%s message ({user.mention}, {user.name}, {guild.name})", kind),
				MaxLength:   discordMaxMessageLength,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "image",
				Description: "Image URL to attach",
			},
		}
	}
	return &discordgo.ApplicationCommand{
		Name:                     commandConfig,
		Description:              "View or change this server's bot configuration",
		DefaultMemberPermissions: &manageServerPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "show",
				Description: "Show the current configuration",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "welcome",
				Description: "Customize the welcome message",
				Options:     messageOptions("Welcome"),
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "goodbye",
				Description: "Customize the goodbye message",
				Options:     messageOptions("Goodbye"),
			},
		},
	}
}

func appCommandAnnounce() *discordgo.ApplicationCommand {
	frequencyChoices := make(
		[]*discordgo.ApplicationCommandOptionChoice,
		0,
		len(announcementFrequencies),
	)
	for _, f := range announcementFrequencies {
		frequencyChoices = append(
			frequencyChoices,
			&discordgo.ApplicationCommandOptionChoice{
				Name:  string(f),
				Value: string(f),
			},
		)
	}
	return &discordgo.ApplicationCommand{
		Name:                     commandAnnounce,
		Description:              "Manage recurring announcements",
		DefaultMemberPermissions: &manageServerPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a recurring announcement",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Channel to announce in",
						ChannelTypes: []discordgo.ChannelType{
							discordgo.ChannelTypeGuildText,
						},
						Required: true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "message",
						Description: "Announcement text",
						MaxLength:   discordMaxMessageLength,
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "frequency",
						Description: "How often to repeat",
						Choices:     frequencyChoices,
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List this server's announcements",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop and delete an announcement",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "id",
						Description: "Announcement ID (see /announce list)",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "preview",
				Description: "Preview an announcement message without scheduling it",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "message",
						Description: "Announcement text",
						MaxLength:   discordMaxMessageLength,
						Required:    true,
					},
				},
			},
		},
	}
}

func appCommandWotd() *discordgo.ApplicationCommand {
	var minHour float64
	maxHour := 23
	return &discordgo.ApplicationCommand{
		Name:                     commandWotd,
		Description:              "Word of the day delivery",
		DefaultMemberPermissions: &manageServerPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Deliver a word of the day to a channel",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Channel to deliver to",
						ChannelTypes: []discordgo.ChannelType{
							discordgo.ChannelTypeGuildText,
						},
						Required: true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "hour",
						Description: "Local hour of day to deliver at (0-23)",
						MinValue:    &minHour,
						MaxValue:    float64(maxHour),
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "timezone",
						Description: "UTC offset, like UTC+2 or -5 (default UTC)",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unset",
				Description: "Disable word of the day delivery",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "now",
				Description: "Show today's word right here",
			},
		},
	}
}

func appCommandChat() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        commandChat,
		Description: "Chat with the bot",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prompt",
				Description: "What to say",
				MaxLength:   500,
				Required:    true,
			},
		},
	}
}

func appCommandClear() *discordgo.ApplicationCommand {
	minCount := float64(clearMinCount)
	return &discordgo.ApplicationCommand{
		Name:                     commandClear,
		Description:              "Clear a number of recent messages in this channel",
		DefaultMemberPermissions: &manageMessagesPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: "Number of messages to delete (1-100)",
				MinValue:    &minCount,
				MaxValue:    float64(clearMaxCount),
				Required:    true,
			},
		},
	}
}

func appCommandServerInfo() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        commandServerInfo,
		Description: "Show information about this server",
	}
}

// handleInteraction routes an incoming interaction to its command
// handler. Only application commands are expected; anything else is
// logged and dropped.
func (t *TiltBot) handleInteraction(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	logger := t.logger.With(
		slog.String(loggerNameKey, "interaction"),
		"command", data.Name,
		"guild_id", i.GuildID,
		"interaction_id", i.ID,
	)
	ctx = WithLogger(ctx, logger)

	switch data.Name {
	case commandSetup:
		t.handleSetupCommand(ctx, i)
	case commandConfig:
		t.handleConfigCommand(ctx, i)
	case commandAnnounce:
		t.handleAnnounceCommand(ctx, i)
	case commandWotd:
		t.handleWotdCommand(ctx, i)
	case commandClear:
		t.handleClearCommand(ctx, i)
	case commandServerInfo:
		t.handleServerInfoCommand(ctx, i)
	case commandChat:
		if t.chat != nil {
			t.chat.handleCommand(ctx, i)
		}
	default:
		logger.WarnContext(ctx, "unknown command")
	}
}

// respondEphemeral answers an interaction with a message only the
// invoking user can see.
func (t *TiltBot) respondEphemeral(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
) {
	err := t.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		},
	)
	if err != nil {
		t.commandLogger(ctx).ErrorContext(
			ctx, "error responding to interaction", tint.Err(err),
		)
	}
}

// commandLogger returns the interaction-scoped logger set by
// handleInteraction, falling back to the bot logger.
func (t *TiltBot) commandLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ContextLogger(ctx); ok && logger != nil {
		return logger
	}
	return t.logger
}

func (t *TiltBot) handleSetupCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger := t.commandLogger(ctx)
	options := i.ApplicationCommandData().Options
	if len(options) == 0 || len(options[0].Options) == 0 {
		return
	}
	group := options[0]
	sub := group.Options[0]
	opts := subcommandOptions(sub)

	var channelID string
	if opt, ok := opts["channel"]; ok {
		channelID = opt.Value.(string)
	}

	config, err := getOrCreateGuildConfig(ctx, t.writeDB, i.GuildID)
	if err != nil {
		logger.ErrorContext(
			ctx, "error loading guild config", tint.Err(err),
		)
		t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
		return
	}

	var reply string
	updates := map[string]any{}
	switch group.Name {
	case "counting":
		if sub.Name == "set" {
			// a new channel always starts a fresh game
			updates[columnGuildConfigCountingChannelID] = channelID
			updates[columnGuildConfigCurrentCount] = 0
			updates[columnGuildConfigLastCounterID] = ""
			reply = fmt.Sprintf(
				"Counting game enabled in <#%s>. The first number is `1`!",
				channelID,
			)
		} else {
			updates[columnGuildConfigCountingChannelID] = ""
			updates[columnGuildConfigCurrentCount] = 0
			updates[columnGuildConfigLastCounterID] = ""
			reply = "Counting game disabled."
		}
	case "welcome":
		if sub.Name == "set" {
			updates["welcome_channel_id"] = channelID
			reply = fmt.Sprintf("Welcome messages enabled in <#%s>.", channelID)
		} else {
			updates["welcome_channel_id"] = ""
			reply = "Welcome messages disabled."
		}
	case "goodbye":
		if sub.Name == "set" {
			updates["goodbye_channel_id"] = channelID
			reply = fmt.Sprintf("Goodbye messages enabled in <#%s>.", channelID)
		} else {
			updates["goodbye_channel_id"] = ""
			reply = "Goodbye messages disabled."
		}
	default:
		return
	}

	_, err = t.writeDB.UpdatesWhere(
		ctx, &GuildConfig{}, updates, "guild_id = ?", config.GuildID,
	)
	if err != nil {
		logger.ErrorContext(
			ctx, "error updating guild config", tint.Err(err),
		)
		t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
		return
	}

	if group.Name == "counting" {
		t.counting.Evict(i.GuildID)
		t.notifyGuildConfigUpdated(ctx, i.GuildID)
	}
	t.respondEphemeral(ctx, i, reply)
}

func (t *TiltBot) handleConfigCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger := t.commandLogger(ctx)
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}
	sub := options[0]

	config, err := getOrCreateGuildConfig(ctx, t.writeDB, i.GuildID)
	if err != nil {
		logger.ErrorContext(
			ctx, "error loading guild config", tint.Err(err),
		)
		t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
		return
	}

	if sub.Name == "show" {
		t.respondEphemeral(ctx, i, guildConfigSummary(config))
		return
	}

	opts := subcommandOptions(sub)
	updates := map[string]any{}
	if opt, ok := opts["message"]; ok {
		updates[sub.Name+"_message"] = opt.Value.(string)
	}
	if opt, ok := opts["image"]; ok {
		updates[sub.Name+"_image"] = opt.Value.(string)
	}
	if len(updates) == 0 {
		t.respondEphemeral(ctx, i, "Nothing to change.")
		return
	}

	_, err = t.writeDB.UpdatesWhere(
		ctx, &GuildConfig{}, updates, "guild_id = ?", config.GuildID,
	)
	if err != nil {
		logger.ErrorContext(
			ctx, "error updating guild config", tint.Err(err),
		)
		t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
		return
	}
	t.respondEphemeral(
		ctx, i,
		fmt.Sprintf("Updated the %s message.", sub.Name),
	)
}

// guildConfigSummary renders a guild's config for `/config show`
func guildConfigSummary(config *GuildConfig) string {
	channel := func(id string) string {
		if id == "" {
			return "not set"
		}
		return fmt.Sprintf("<#%s>", id)
	}
	lines := []string{
		fmt.Sprintf("**Counting**: %s (count: %d)",
			channel(config.CountingChannelID), config.CurrentCount),
		fmt.Sprintf("**Welcome**: %s", channel(config.WelcomeChannelID)),
		fmt.Sprintf("**Goodbye**: %s", channel(config.GoodbyeChannelID)),
	}
	if config.WotdChannelID == "" {
		lines = append(lines, "**Word of the day**: not set")
	} else {
		lines = append(lines, fmt.Sprintf(
			"**Word of the day**: %s at %02d:00 (%s)",
			channel(config.WotdChannelID),
			config.WotdHour,
			wotdTimezoneLabel(config.WotdTimezone),
		))
	}
	return strings.Join(lines, "\n")
}

func wotdTimezoneLabel(tz string) string {
	offset := parseUTCOffset(tz)
	if offset == 0 {
		return "UTC"
	}
	return fmt.Sprintf("UTC%+d", offset)
}

func (t *TiltBot) handleAnnounceCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger := t.commandLogger(ctx)
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}
	sub := options[0]
	opts := subcommandOptions(sub)

	switch sub.Name {
	case "create":
		channelID := opts["channel"].Value.(string)
		message := opts["message"].Value.(string)
		frequency := AnnouncementFrequency(opts["frequency"].Value.(string))
		if frequency.Duration() == 0 {
			t.respondEphemeral(ctx, i, "Unknown frequency.")
			return
		}

		var userID string
		if i.Member != nil && i.Member.User != nil {
			userID = i.Member.User.ID
		}
		announcement := &Announcement{
			GuildID:   i.GuildID,
			ChannelID: channelID,
			Message:   message,
			Frequency: frequency,
			NextRunAt: t.announcer.now().Add(frequency.Duration()).UnixMilli(),
			CreatedBy: userID,
		}
		if _, err := t.writeDB.Create(ctx, announcement); err != nil {
			logger.ErrorContext(
				ctx, "error creating announcement", tint.Err(err),
			)
			t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
			return
		}
		logger.InfoContext(
			ctx, "created announcement", "announcement", announcement,
		)
		t.respondEphemeral(ctx, i, fmt.Sprintf(
			"Announcement `%d` created: every %s in <#%s>, starting %s.",
			announcement.ID,
			frequency,
			channelID,
			announcement.NextRunTime().UTC().Format("2006-01-02 15:04 MST"),
		))
	case "list":
		var announcements []Announcement
		err := t.db.WithContext(ctx).Where(
			"guild_id = ?", i.GuildID,
		).Order("id").Find(&announcements).Error
		if err != nil {
			logger.ErrorContext(
				ctx, "error listing announcements", tint.Err(err),
			)
			t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
			return
		}
		if len(announcements) == 0 {
			t.respondEphemeral(ctx, i, "No announcements yet.")
			return
		}
		lines := make([]string, 0, len(announcements))
		for _, a := range announcements {
			lines = append(lines, fmt.Sprintf(
				"`%d` every %s in <#%s>: %s",
				a.ID,
				a.Frequency,
				a.ChannelID,
				truncate(a.Message, 80),
			))
		}
		t.respondEphemeral(ctx, i, strings.Join(lines, "\n"))
	case "stop":
		id := opts["id"].Value.(float64)
		rowsAffected, err := t.writeDB.Delete(
			&Announcement{},
			"id = ? AND guild_id = ?", uint(id), i.GuildID,
		)
		if err != nil {
			logger.ErrorContext(
				ctx, "error deleting announcement", tint.Err(err),
			)
			t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
			return
		}
		if rowsAffected == 0 {
			t.respondEphemeral(ctx, i, fmt.Sprintf(
				"No announcement `%d` in this server.", uint(id),
			))
			return
		}
		t.respondEphemeral(ctx, i, fmt.Sprintf(
			"Announcement `%d` stopped.", uint(id),
		))
	case "preview":
		t.respondEphemeral(ctx, i, opts["message"].Value.(string))
	}
}

func (t *TiltBot) handleWotdCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger := t.commandLogger(ctx)
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}
	sub := options[0]
	opts := subcommandOptions(sub)

	switch sub.Name {
	case "set":
		channelID := opts["channel"].Value.(string)
		hour := int(opts["hour"].Value.(float64))
		timezone := ""
		if opt, ok := opts["timezone"]; ok {
			timezone = opt.Value.(string)
		}

		if _, err := getOrCreateGuildConfig(ctx, t.writeDB, i.GuildID); err != nil {
			logger.ErrorContext(
				ctx, "error loading guild config", tint.Err(err),
			)
			t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
			return
		}
		_, err := t.writeDB.UpdatesWhere(
			ctx,
			&GuildConfig{},
			map[string]any{
				"wotd_channel_id": channelID,
				"wotd_hour":       hour,
				"wotd_timezone":   timezone,
			},
			"guild_id = ?",
			i.GuildID,
		)
		if err != nil {
			logger.ErrorContext(
				ctx, "error updating guild config", tint.Err(err),
			)
			t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
			return
		}
		t.respondEphemeral(ctx, i, fmt.Sprintf(
			"Word of the day will be delivered to <#%s> at %02d:00 (%s).",
			channelID, hour, wotdTimezoneLabel(timezone),
		))
	case "unset":
		_, err := t.writeDB.UpdatesWhere(
			ctx,
			&GuildConfig{},
			map[string]any{"wotd_channel_id": ""},
			"guild_id = ?",
			i.GuildID,
		)
		if err != nil {
			logger.ErrorContext(
				ctx, "error updating guild config", tint.Err(err),
			)
			t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
			return
		}
		t.respondEphemeral(ctx, i, "Word of the day delivery disabled.")
	case "now":
		word, err := t.wotd.currentWord(ctx)
		if err != nil {
			logger.ErrorContext(
				ctx, "error fetching word of the day", tint.Err(err),
			)
			t.respondEphemeral(
				ctx, i, "Couldn't fetch the word of the day, try again later.",
			)
			return
		}
		err = t.discord.session.InteractionRespond(
			i.Interaction,
			&discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Embeds: []*discordgo.MessageEmbed{wordOfDayEmbed(word)},
				},
			},
		)
		if err != nil {
			logger.ErrorContext(
				ctx, "error responding to interaction", tint.Err(err),
			)
		}
	}
}

// handleClearCommand bulk-deletes the channel's most recent messages
func (t *TiltBot) handleClearCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger := t.commandLogger(ctx)
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}
	count := int(options[0].Value.(float64))
	if count < clearMinCount || count > clearMaxCount {
		t.respondEphemeral(ctx, i, fmt.Sprintf(
			"Count must be between %d and %d.", clearMinCount, clearMaxCount,
		))
		return
	}

	messages, err := t.discord.session.ChannelMessages(
		i.ChannelID, count, "", "", "",
	)
	if err != nil {
		logger.ErrorContext(
			ctx, "error listing channel messages", tint.Err(err),
		)
		t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
		return
	}
	if len(messages) == 0 {
		t.respondEphemeral(ctx, i, "Nothing to delete.")
		return
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	if err = t.discord.session.ChannelMessagesBulkDelete(
		i.ChannelID, ids,
	); err != nil {
		if discordPermissionError(err) {
			t.respondEphemeral(
				ctx, i,
				"I need the `Manage Messages` permission to do that.",
			)
			return
		}
		logger.ErrorContext(
			ctx, "error bulk deleting messages", tint.Err(err),
		)
		t.respondEphemeral(ctx, i, "Something went wrong, try again later.")
		return
	}

	logger.InfoContext(
		ctx, "cleared messages",
		"channel_id", i.ChannelID,
		"count", len(ids),
	)
	t.respondEphemeral(ctx, i, fmt.Sprintf("Deleted %d messages.", len(ids)))
}

func (t *TiltBot) handleServerInfoCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger := t.commandLogger(ctx)
	guild, err := t.discord.session.Guild(i.GuildID)
	if err != nil || guild == nil {
		logger.ErrorContext(ctx, "error fetching guild", tint.Err(err))
		t.respondEphemeral(ctx, i, "Couldn't look up this server.")
		return
	}

	err = t.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{serverInfoEmbed(guild)},
			},
		},
	)
	if err != nil {
		logger.ErrorContext(
			ctx, "error responding to interaction", tint.Err(err),
		)
	}
}

// serverInfoEmbed renders a guild's statistics for `/serverinfo`
func serverInfoEmbed(guild *discordgo.Guild) *discordgo.MessageEmbed {
	var created string
	if createdAt, err := discordgo.SnowflakeTimestamp(guild.ID); err == nil {
		created = fmt.Sprintf("<t:%d:D>", createdAt.Unix())
	}

	var textChannels int
	var voiceChannels int
	for _, channel := range guild.Channels {
		switch channel.Type {
		case discordgo.ChannelTypeGuildText:
			textChannels++
		case discordgo.ChannelTypeGuildVoice:
			voiceChannels++
		}
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Server Info: %s", guild.Name),
		Color: serverInfoEmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Owner",
				Value:  fmt.Sprintf("<@%s>", guild.OwnerID),
				Inline: true,
			},
			{
				Name:   "Server ID",
				Value:  fmt.Sprintf("`%s`", guild.ID),
				Inline: true,
			},
			{
				Name:   "Created On",
				Value:  created,
				Inline: true,
			},
			{
				Name:   "Members",
				Value:  fmt.Sprintf("%d", guild.MemberCount),
				Inline: true,
			},
			{
				Name: "Channels",
				Value: fmt.Sprintf(
					"**Text:** %d\n**Voice:** %d",
					textChannels,
					voiceChannels,
				),
				Inline: true,
			},
			{
				Name:   "Roles",
				Value:  fmt.Sprintf("%d", len(guild.Roles)),
				Inline: true,
			},
		},
	}
	if guild.Icon != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{
			URL: guild.IconURL(""),
		}
	}
	return embed
}

// notifyGuildConfigUpdated tells other bot instances (when running on
// postgres) that a guild's config changed, so they evict their cached
// counting state.
func (t *TiltBot) notifyGuildConfigUpdated(
	ctx context.Context,
	guildID string,
) {
	if t.dbNotifier == nil || t.dbNotifier.GuildConfigChannelName() == "" {
		return
	}
	if !t.dbNotifier.GuildConfigUpdated(ctx, guildID) {
		t.commandLogger(ctx).WarnContext(
			ctx,
			"error sending guild config notification",
			"guild_id", guildID,
		)
	}
}
