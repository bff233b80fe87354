package tiltbot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	countingReactionCorrect = "✅"
	countingReactionWrong   = "❌"
)

// countingOutcome describes what HandleMessage did with a message, mainly
// so tests can assert on the decision without inspecting side effects.
type countingOutcome int

const (
	// countingDisabled - the guild has no counting channel configured
	countingDisabled countingOutcome = iota

	// countingWrongChannel - message wasn't in the counting channel
	countingWrongChannel

	// countingIgnored - unparseable message that mentioned the expected
	// number somewhere in its text, left alone
	countingIgnored

	// countingDeleted - unparseable message, deleted
	countingDeleted

	// countingRepeatUser - same user counted twice in a row, rejected
	countingRepeatUser

	// countingCorrect - the count advanced
	countingCorrect

	// countingReset - wrong number, streak reset to zero
	countingReset
)

func (c countingOutcome) String() string {
	switch c {
	case countingDisabled:
		return "disabled"
	case countingWrongChannel:
		return "wrong_channel"
	case countingIgnored:
		return "ignored"
	case countingDeleted:
		return "deleted"
	case countingRepeatUser:
		return "repeat_user"
	case countingCorrect:
		return "correct"
	case countingReset:
		return "reset"
	default:
		return fmt.Sprintf("unknown (%d)", int(c))
	}
}

// countingState is the in-memory counting state for one guild. The cache
// entry is authoritative while the bot runs; the database row only
// catches up on flushes and on streak resets.
type countingState struct {
	guildID   string
	channelID string

	currentCount  int64
	lastCounterID string

	// dirty is set on every mutation and cleared when the value it
	// covered has been written to the database
	dirty bool

	// enabled is false when the guild was looked up and found to have
	// no counting channel. The entry is kept as a negative cache so we
	// don't hit the database for every message in such guilds, and is
	// evicted when the guild's config changes.
	enabled bool
}

// CountingGame runs the counting game: it validates each message in a
// guild's counting channel against the expected next number, keeps the
// per-guild streak in memory, and writes it back on a fixed interval
// (write-behind). The one exception is a broken streak, which is
// persisted synchronously so a crash can't resurrect a dead streak.
type CountingGame struct {
	bot    *TiltBot
	logger *slog.Logger

	flushInterval time.Duration

	mu     sync.Mutex
	states map[string]*countingState

	// flushing guards against overlapping flushes if a tick overruns
	flushing atomic.Bool
}

func newCountingGame(t *TiltBot, flushInterval time.Duration) *CountingGame {
	if flushInterval <= 0 {
		flushInterval = DefaultCountingFlushInterval
	}
	return &CountingGame{
		bot:           t,
		flushInterval: flushInterval,
		states:        map[string]*countingState{},
		logger: t.logger.With(
			slog.String(loggerNameKey, "counting"),
		),
	}
}

// HandleMessage applies one incoming guild message to the counting game.
// Messages outside the guild's counting channel, and messages in guilds
// that never configured the game, are ignored.
//
// All state transitions happen under c.mu, so messages for a guild are
// applied in the order the gateway handler delivers them.
func (c *CountingGame) HandleMessage(
	ctx context.Context,
	m *discordgo.MessageCreate,
) countingOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.stateFor(ctx, m.GuildID)
	if err != nil {
		c.logger.ErrorContext(
			ctx,
			"error loading counting state",
			tint.Err(err),
			"guild_id", m.GuildID,
		)
		return countingDisabled
	}
	if !state.enabled {
		return countingDisabled
	}
	if m.ChannelID != state.channelID {
		return countingWrongChannel
	}

	// attachment-only and embed-only messages carry no text to judge;
	// leave them alone
	if strings.TrimSpace(m.Content) == "" {
		return countingIgnored
	}

	logger := c.logger.With(
		"guild_id", m.GuildID,
		"channel_id", m.ChannelID,
		"user_id", m.Author.ID,
	)
	expected := state.currentCount + 1

	number, parseErr := strconv.ParseInt(
		strings.TrimSpace(m.Content), 10, 64,
	)
	if parseErr != nil {
		// Not a number. Chatter that mentions the expected number
		// anywhere in its text is tolerated; anything else is removed
		// to keep the channel readable.
		if strings.Contains(m.Content, strconv.FormatInt(expected, 10)) {
			return countingIgnored
		}
		c.deleteMessage(ctx, logger, m)
		return countingDeleted
	}

	if state.lastCounterID != "" && m.Author.ID == state.lastCounterID {
		c.deleteMessage(ctx, logger, m)
		c.sendNotice(ctx, logger, state.channelID, fmt.Sprintf(
			"You can't count twice in a row, %s! The next number is still `%d`.",
			m.Author.Mention(),
			expected,
		))
		return countingRepeatUser
	}

	if number == expected {
		state.currentCount = number
		state.lastCounterID = m.Author.ID
		state.dirty = true
		c.react(ctx, logger, m, countingReactionCorrect)
		return countingCorrect
	}

	// Wrong number. Reset, and persist the reset before returning:
	// unlike normal increments, losing a reset in a crash would let
	// the guild keep a streak it already broke.
	originalCount := state.currentCount
	state.currentCount = 0
	state.lastCounterID = ""
	state.dirty = true

	if persistErr := c.persistState(ctx, state); persistErr != nil {
		logger.ErrorContext(
			ctx,
			"error persisting streak reset",
			tint.Err(persistErr),
		)
	}

	c.react(ctx, logger, m, countingReactionWrong)
	c.sendNotice(ctx, logger, state.channelID, fmt.Sprintf(
		"**Streak broken!** %s ruined it at **%d**. The next number is `1`. Expected `%d`, got `%d`.",
		m.Author.Mention(),
		originalCount,
		expected,
		number,
	))
	return countingReset
}

// stateFor returns the cache entry for a guild, hydrating it from the
// database on first sight. Caller must hold c.mu.
func (c *CountingGame) stateFor(
	ctx context.Context,
	guildID string,
) (*countingState, error) {
	if state, ok := c.states[guildID]; ok {
		return state, nil
	}

	config, err := getGuildConfig(c.bot.db.WithContext(ctx), guildID)
	if err != nil {
		return nil, err
	}

	state := &countingState{guildID: guildID}
	if config != nil && config.CountingChannelID != "" {
		state.enabled = true
		state.channelID = config.CountingChannelID
		state.currentCount = config.CurrentCount
		state.lastCounterID = config.LastCounterID
	}
	c.states[guildID] = state
	return state, nil
}

// Evict drops a guild's cache entry, forcing a re-hydration from the
// database on the next message. Called when the guild's config changes
// (locally or, via the notifier, on another instance).
func (c *CountingGame) Evict(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, guildID)
}

// persistState writes one state's count to the database and clears its
// dirty flag on success. Caller must hold c.mu.
func (c *CountingGame) persistState(
	ctx context.Context,
	state *countingState,
) error {
	_, err := c.bot.writeDB.UpdatesWhere(
		ctx,
		&GuildConfig{},
		map[string]any{
			columnGuildConfigCurrentCount:  state.currentCount,
			columnGuildConfigLastCounterID: state.lastCounterID,
		},
		"guild_id = ?",
		state.guildID,
	)
	if err != nil {
		return err
	}
	state.dirty = false
	return nil
}

// countingSnapshot is the value a flush observed for one guild, so the
// dirty flag is only cleared if the state didn't move during the write.
type countingSnapshot struct {
	guildID       string
	currentCount  int64
	lastCounterID string
}

// Flush writes every dirty guild's count to the database. At most one
// flush runs at a time; if a tick fires while a previous flush is still
// writing, it is skipped and the dirty entries wait for the next tick.
// Returns the number of guilds written.
func (c *CountingGame) Flush(ctx context.Context) int {
	if !c.flushing.CompareAndSwap(false, true) {
		c.logger.WarnContext(
			ctx, "previous flush still running, skipping this tick",
		)
		return 0
	}
	defer c.flushing.Store(false)

	c.mu.Lock()
	snapshots := make([]countingSnapshot, 0, len(c.states))
	for _, state := range c.states {
		if !state.dirty {
			continue
		}
		snapshots = append(snapshots, countingSnapshot{
			guildID:       state.guildID,
			currentCount:  state.currentCount,
			lastCounterID: state.lastCounterID,
		})
	}
	c.mu.Unlock()

	if len(snapshots) == 0 {
		return 0
	}

	flushed := 0
	for _, snap := range snapshots {
		_, err := c.bot.writeDB.UpdatesWhere(
			ctx,
			&GuildConfig{},
			map[string]any{
				columnGuildConfigCurrentCount:  snap.currentCount,
				columnGuildConfigLastCounterID: snap.lastCounterID,
			},
			"guild_id = ?",
			snap.guildID,
		)
		if err != nil {
			// leave dirty set, the next tick retries
			c.logger.ErrorContext(
				ctx,
				"error flushing counting state",
				tint.Err(err),
				"guild_id", snap.guildID,
			)
			continue
		}
		flushed++

		c.mu.Lock()
		state, ok := c.states[snap.guildID]
		if ok &&
			state.currentCount == snap.currentCount &&
			state.lastCounterID == snap.lastCounterID {
			// only clear if nothing moved while we were writing
			state.dirty = false
		}
		c.mu.Unlock()
	}

	if flushed > 0 {
		c.logger.InfoContext(
			ctx,
			"flushed counting state",
			"guilds", flushed,
			"dirty", len(snapshots),
		)
	}
	return flushed
}

// runFlushLoop runs the write-behind flush on a fixed interval until ctx
// is cancelled. The first tick waits for the bot to signal ready, so we
// never write before the gateway session and database are up.
func (c *CountingGame) runFlushLoop(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-c.bot.signalReady:
		//
	}
	c.logger.InfoContext(
		ctx,
		"starting counting flush loop",
		"interval", c.flushInterval,
	)

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("counting flush loop stopped")
			return
		case <-ticker.C:
			c.Flush(ctx)
		}
	}
}

// FinalFlush performs a last best-effort flush during shutdown
func (c *CountingGame) FinalFlush(ctx context.Context) {
	flushed := c.Flush(ctx)
	c.logger.Info("final counting flush", "guilds", flushed)
}

func (c *CountingGame) deleteMessage(
	ctx context.Context,
	logger *slog.Logger,
	m *discordgo.MessageCreate,
) {
	err := c.bot.discord.session.ChannelMessageDelete(
		m.ChannelID, m.ID,
	)
	if err != nil && !discordPermissionError(err) {
		logger.WarnContext(
			ctx, "error deleting counting message", tint.Err(err),
		)
	}
}

func (c *CountingGame) react(
	ctx context.Context,
	logger *slog.Logger,
	m *discordgo.MessageCreate,
	emoji string,
) {
	err := c.bot.discord.session.MessageReactionAdd(
		m.ChannelID, m.ID, emoji,
	)
	if err != nil && !discordPermissionError(err) {
		logger.WarnContext(
			ctx, "error adding counting reaction", tint.Err(err),
		)
	}
}

func (c *CountingGame) sendNotice(
	ctx context.Context,
	logger *slog.Logger,
	channelID string,
	message string,
) {
	err := c.bot.discord.channelMessageSend(channelID, message)
	if err != nil && !discordPermissionError(err) {
		logger.WarnContext(
			ctx, "error sending counting notice", tint.Err(err),
		)
	}
}
