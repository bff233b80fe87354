package tiltbot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

// DefaultTestConfig returns a config suitable for tests: a sqlite
// database under dir, short intervals, API disabled.
func DefaultTestConfig(t testing.TB, dir string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database = filepath.Join(dir, "tiltbot_test.sqlite3")
	cfg.Discord.Token = "test-token"
	cfg.Discord.ApplicationID = "test-app-id"
	cfg.API.CORS.AllowOrigins = []string{"*"}
	cfg.CountingFlushInterval = 100 * time.Millisecond
	cfg.SchedulerTickInterval = 50 * time.Millisecond
	cfg.StartupTimeout = 10 * time.Second
	cfg.ShutdownTimeout = 10 * time.Second
	return cfg
}

// sentMessage records a ChannelMessageSend call
type sentMessage struct {
	ChannelID string
	Content   string
}

// sentEmbed records a ChannelMessageSendEmbed call
type sentEmbed struct {
	ChannelID string
	Embed     *discordgo.MessageEmbed
}

// deletedMessage records a ChannelMessageDelete call
type deletedMessage struct {
	ChannelID string
	MessageID string
}

// addedReaction records a MessageReactionAdd call
type addedReaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// bulkDelete records a ChannelMessagesBulkDelete call
type bulkDelete struct {
	ChannelID  string
	MessageIDs []string
}

// mockDiscordSession implements DiscordSessionHandler, recording calls
// and optionally returning configured errors per channel ID.
type mockDiscordSession struct {
	mu sync.Mutex

	messages    []sentMessage
	embeds      []sentEmbed
	deletes     []deletedMessage
	reactions   []addedReaction
	bulkDeletes []bulkDelete

	interactionResponses []*discordgo.InteractionResponse
	interactionEdits     []*discordgo.WebhookEdit

	// channelErrors, when set for a channel ID, is returned from send,
	// embed, delete, reaction and bulk-delete calls targeting that
	// channel
	channelErrors map[string]error

	guildNames map[string]string

	// channelMessages is returned from ChannelMessages, most recent first
	channelMessages map[string][]*discordgo.Message

	guilds map[string]*discordgo.Guild
}

func newMockDiscordSession() *mockDiscordSession {
	return &mockDiscordSession{
		channelErrors:   map[string]error{},
		guildNames:      map[string]string{},
		channelMessages: map[string][]*discordgo.Message{},
		guilds:          map[string]*discordgo.Guild{},
	}
}

// unknownChannelError builds the REST error discordgo returns for a
// nonexistent channel
func unknownChannelError() error {
	return &discordgo.RESTError{
		Message: &discordgo.APIErrorMessage{
			Code:    discordgo.ErrCodeUnknownChannel,
			Message: "Unknown Channel",
		},
	}
}

// missingPermissionsError builds the REST error discordgo returns when
// the bot lacks permissions
func missingPermissionsError() error {
	return &discordgo.RESTError{
		Message: &discordgo.APIErrorMessage{
			Code:    discordgo.ErrCodeMissingPermissions,
			Message: "Missing Permissions",
		},
	}
}

func (m *mockDiscordSession) Open() error  { return nil }
func (m *mockDiscordSession) Close() error { return nil }

func (m *mockDiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.channelErrors[channelID]; err != nil {
		return nil, err
	}
	m.messages = append(
		m.messages, sentMessage{ChannelID: channelID, Content: message},
	)
	return &discordgo.Message{ChannelID: channelID, Content: message}, nil
}

func (m *mockDiscordSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.channelErrors[channelID]; err != nil {
		return nil, err
	}
	m.embeds = append(m.embeds, sentEmbed{ChannelID: channelID, Embed: embed})
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (m *mockDiscordSession) ChannelMessageDelete(
	channelID string,
	messageID string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.channelErrors[channelID]; err != nil {
		return err
	}
	m.deletes = append(
		m.deletes, deletedMessage{ChannelID: channelID, MessageID: messageID},
	)
	return nil
}

func (m *mockDiscordSession) MessageReactionAdd(
	channelID string,
	messageID string,
	emojiID string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.channelErrors[channelID]; err != nil {
		return err
	}
	m.reactions = append(
		m.reactions,
		addedReaction{
			ChannelID: channelID,
			MessageID: messageID,
			Emoji:     emojiID,
		},
	)
	return nil
}

func (m *mockDiscordSession) ChannelMessages(
	channelID string,
	limit int,
	_ string,
	_ string,
	_ string,
	_ ...discordgo.RequestOption,
) ([]*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	messages := m.channelMessages[channelID]
	if limit < len(messages) {
		messages = messages[:limit]
	}
	return append([]*discordgo.Message{}, messages...), nil
}

func (m *mockDiscordSession) ChannelMessagesBulkDelete(
	channelID string,
	messages []string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.channelErrors[channelID]; err != nil {
		return err
	}
	m.bulkDeletes = append(m.bulkDeletes, bulkDelete{
		ChannelID:  channelID,
		MessageIDs: append([]string{}, messages...),
	})
	return nil
}

func (m *mockDiscordSession) Guild(
	guildID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	guild, ok := m.guilds[guildID]
	if !ok {
		return nil, errors.New("unknown guild")
	}
	return guild, nil
}

func (m *mockDiscordSession) ApplicationCommandBulkOverwrite(
	_ string,
	_ string,
	commands []*discordgo.ApplicationCommand,
	_ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return commands, nil
}

func (m *mockDiscordSession) UpdateCustomStatus(string) error { return nil }

func (m *mockDiscordSession) UpdateStatusComplex(
	discordgo.UpdateStatusData,
) error {
	return nil
}

func (m *mockDiscordSession) GuildName(guildID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guildNames[guildID]
}

func (m *mockDiscordSession) AddHandler(any) func() {
	return func() {}
}

func (m *mockDiscordSession) InteractionRespond(
	_ *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactionResponses = append(m.interactionResponses, resp)
	return nil
}

func (m *mockDiscordSession) InteractionResponseEdit(
	_ *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactionEdits = append(m.interactionEdits, newresp)
	return &discordgo.Message{}, nil
}

func (m *mockDiscordSession) SetHTTPClient(*http.Client) {}

func (m *mockDiscordSession) SetIdentify(discordgo.Identify) {}

func (m *mockDiscordSession) SetLogLevel(slog.Level) error { return nil }

func (m *mockDiscordSession) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage{}, m.messages...)
}

func (m *mockDiscordSession) sentEmbeds() []sentEmbed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmbed{}, m.embeds...)
}

func (m *mockDiscordSession) deletedMessages() []deletedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]deletedMessage{}, m.deletes...)
}

func (m *mockDiscordSession) addedReactions() []addedReaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]addedReaction{}, m.reactions...)
}

func (m *mockDiscordSession) bulkDeleted() []bulkDelete {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bulkDelete{}, m.bulkDeletes...)
}

func (m *mockDiscordSession) setChannelMessages(
	channelID string,
	messages []*discordgo.Message,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelMessages[channelID] = messages
}

func (m *mockDiscordSession) setGuild(guild *discordgo.Guild) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[guild.ID] = guild
}

func (m *mockDiscordSession) setChannelError(channelID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelErrors[channelID] = err
}

// newTestBot creates a TiltBot backed by a temp sqlite database and a
// mock Discord session, ready for direct calls without Run.
func newTestBot(t testing.TB) (*TiltBot, *mockDiscordSession) {
	t.Helper()
	ctx := context.Background()

	cfg := DefaultTestConfig(t, t.TempDir())
	bot, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, bot.initDB(ctx))
	t.Cleanup(
		func() {
			sqlDB, _ := bot.db.DB()
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)

	session := newMockDiscordSession()
	bot.discord.session = session

	runtimeConfig := DefaultRuntimeConfig()
	bot.runtimeConfig = &runtimeConfig

	return bot, session
}

// createTestGuild inserts a guild config row
func createTestGuild(
	t testing.TB,
	bot *TiltBot,
	config GuildConfig,
) GuildConfig {
	t.Helper()
	_, err := bot.writeDB.Create(context.Background(), &config)
	require.NoError(t, err)
	return config
}

// guildConfigFromDB reloads a guild's row from the database
func guildConfigFromDB(
	t testing.TB,
	bot *TiltBot,
	guildID string,
) GuildConfig {
	t.Helper()
	config, err := getGuildConfig(bot.db, guildID)
	require.NoError(t, err)
	require.NotNil(t, config)
	return *config
}

// countingMessage builds a counting-channel message event
func countingMessage(
	guildID string,
	channelID string,
	userID string,
	content string,
) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-" + userID + "-" + content,
			GuildID:   guildID,
			ChannelID: channelID,
			Content:   content,
			Author:    &discordgo.User{ID: userID},
		},
	}
}
