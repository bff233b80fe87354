package tiltbot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuildID    = "guild-1"
	testChannelID  = "channel-counting"
	otherChannelID = "channel-general"
)

func newCountingTestBot(t testing.TB) (*TiltBot, *mockDiscordSession) {
	t.Helper()
	bot, session := newTestBot(t)
	createTestGuild(
		t, bot, GuildConfig{
			GuildID:           testGuildID,
			CountingChannelID: testChannelID,
		},
	)
	return bot, session
}

func TestCountingSequentialIncrements(t *testing.T) {
	t.Parallel()
	bot, session := newCountingTestBot(t)
	ctx := context.Background()

	// alternating users counting 1..10
	for i := 1; i <= 10; i++ {
		userID := fmt.Sprintf("user-%d", i%2)
		outcome := bot.counting.HandleMessage(
			ctx,
			countingMessage(
				testGuildID, testChannelID, userID, fmt.Sprintf("%d", i),
			),
		)
		assert.Equal(t, countingCorrect, outcome, "count %d", i)
	}

	bot.counting.mu.Lock()
	state := bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	require.NotNil(t, state)
	assert.Equal(t, int64(10), state.currentCount)
	assert.True(t, state.dirty)

	// every correct count gets a checkmark, and nothing was persisted
	// yet (write-behind)
	assert.Len(t, session.addedReactions(), 10)
	assert.Equal(
		t,
		int64(0),
		guildConfigFromDB(t, bot, testGuildID).CurrentCount,
	)
}

func TestCountingSameUserTwice(t *testing.T) {
	t.Parallel()
	bot, session := newCountingTestBot(t)
	ctx := context.Background()

	outcome := bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-a", "1"),
	)
	require.Equal(t, countingCorrect, outcome)

	outcome = bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-a", "2"),
	)
	assert.Equal(t, countingRepeatUser, outcome)

	bot.counting.mu.Lock()
	state := bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	assert.Equal(t, int64(1), state.currentCount)
	assert.Equal(t, "user-a", state.lastCounterID)

	// the repeat message is deleted and a correction is sent
	require.Len(t, session.deletedMessages(), 1)
	messages := session.sentMessages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "can't count twice in a row")
	assert.Contains(t, messages[0].Content, "`2`")
}

func TestCountingWrongNumberResets(t *testing.T) {
	t.Parallel()
	bot, session := newCountingTestBot(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.Equal(
			t,
			countingCorrect,
			bot.counting.HandleMessage(
				ctx,
				countingMessage(
					testGuildID,
					testChannelID,
					fmt.Sprintf("user-%d", i%2),
					fmt.Sprintf("%d", i),
				),
			),
		)
	}

	outcome := bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-0", "7"),
	)
	assert.Equal(t, countingReset, outcome)

	bot.counting.mu.Lock()
	state := bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	assert.Equal(t, int64(0), state.currentCount)
	assert.Empty(t, state.lastCounterID)
	assert.False(t, state.dirty, "reset should be flushed synchronously")

	// the reset is persisted before HandleMessage returns, without
	// waiting for the periodic flush
	stored := guildConfigFromDB(t, bot, testGuildID)
	assert.Equal(t, int64(0), stored.CurrentCount)
	assert.Empty(t, stored.LastCounterID)

	messages := session.sentMessages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "Streak broken!")
	assert.Contains(t, messages[0].Content, "**3**")
	assert.Contains(t, messages[0].Content, "Expected `4`, got `7`")

	reactions := session.addedReactions()
	require.Len(t, reactions, 4)
	assert.Equal(t, countingReactionWrong, reactions[3].Emoji)
}

func TestCountingParseFailure(t *testing.T) {
	t.Parallel()
	bot, session := newCountingTestBot(t)
	ctx := context.Background()

	require.Equal(
		t,
		countingCorrect,
		bot.counting.HandleMessage(
			ctx, countingMessage(testGuildID, testChannelID, "user-a", "1"),
		),
	)

	// chatter mentioning the expected number is tolerated
	outcome := bot.counting.HandleMessage(
		ctx,
		countingMessage(
			testGuildID, testChannelID, "user-b", "ooh 2 is next!",
		),
	)
	assert.Equal(t, countingIgnored, outcome)
	assert.Empty(t, session.deletedMessages())

	// anything else is deleted
	outcome = bot.counting.HandleMessage(
		ctx,
		countingMessage(testGuildID, testChannelID, "user-b", "hello there"),
	)
	assert.Equal(t, countingDeleted, outcome)
	assert.Len(t, session.deletedMessages(), 1)

	// neither affected the count
	bot.counting.mu.Lock()
	state := bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	assert.Equal(t, int64(1), state.currentCount)
}

func TestCountingEmptyMessageIgnored(t *testing.T) {
	t.Parallel()
	bot, session := newCountingTestBot(t)
	ctx := context.Background()

	require.Equal(
		t,
		countingCorrect,
		bot.counting.HandleMessage(
			ctx, countingMessage(testGuildID, testChannelID, "user-a", "1"),
		),
	)

	// an attachment-only message has no content; it's not deleted and
	// doesn't touch the state
	outcome := bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-b", ""),
	)
	assert.Equal(t, countingIgnored, outcome)

	outcome = bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-b", "   "),
	)
	assert.Equal(t, countingIgnored, outcome)

	assert.Empty(t, session.deletedMessages())

	bot.counting.mu.Lock()
	state := bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	assert.Equal(t, int64(1), state.currentCount)
	assert.Equal(t, "user-a", state.lastCounterID)
}

func TestCountingChannelGate(t *testing.T) {
	t.Parallel()
	bot, _ := newCountingTestBot(t)
	ctx := context.Background()

	outcome := bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, otherChannelID, "user-a", "1"),
	)
	assert.Equal(t, countingWrongChannel, outcome)

	// a guild with no counting channel configured is a no-op
	createTestGuild(t, bot, GuildConfig{GuildID: "guild-2"})
	outcome = bot.counting.HandleMessage(
		ctx, countingMessage("guild-2", testChannelID, "user-a", "1"),
	)
	assert.Equal(t, countingDisabled, outcome)

	// unknown guilds are a no-op too
	outcome = bot.counting.HandleMessage(
		ctx, countingMessage("guild-3", testChannelID, "user-a", "1"),
	)
	assert.Equal(t, countingDisabled, outcome)
}

func TestCountingPermissionErrorsSwallowed(t *testing.T) {
	t.Parallel()
	bot, session := newCountingTestBot(t)
	ctx := context.Background()

	session.setChannelError(testChannelID, missingPermissionsError())

	// the game continues even though the delete and reaction fail
	outcome := bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-a", "nope"),
	)
	assert.Equal(t, countingDeleted, outcome)

	outcome = bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-a", "1"),
	)
	assert.Equal(t, countingCorrect, outcome)

	bot.counting.mu.Lock()
	state := bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	assert.Equal(t, int64(1), state.currentCount)
}

func TestCountingFlush(t *testing.T) {
	t.Parallel()
	bot, _ := newCountingTestBot(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.Equal(
			t,
			countingCorrect,
			bot.counting.HandleMessage(
				ctx,
				countingMessage(
					testGuildID,
					testChannelID,
					fmt.Sprintf("user-%d", i%2),
					fmt.Sprintf("%d", i),
				),
			),
		)
	}

	flushed := bot.counting.Flush(ctx)
	assert.Equal(t, 1, flushed)

	stored := guildConfigFromDB(t, bot, testGuildID)
	assert.Equal(t, int64(5), stored.CurrentCount)
	assert.Equal(t, "user-1", stored.LastCounterID)

	bot.counting.mu.Lock()
	state := bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	assert.False(t, state.dirty)

	// a second flush with no intervening mutation writes nothing
	assert.Equal(t, 0, bot.counting.Flush(ctx))
}

func TestCountingFlushSkipsWhileRunning(t *testing.T) {
	t.Parallel()
	bot, _ := newCountingTestBot(t)
	ctx := context.Background()

	require.Equal(
		t,
		countingCorrect,
		bot.counting.HandleMessage(
			ctx, countingMessage(testGuildID, testChannelID, "user-a", "1"),
		),
	)

	// simulate an in-flight flush
	bot.counting.flushing.Store(true)
	assert.Equal(t, 0, bot.counting.Flush(ctx))
	bot.counting.flushing.Store(false)

	// the dirty entry is still there for the next tick
	assert.Equal(t, 1, bot.counting.Flush(ctx))
}

// failingWriteDB wraps a DBI, failing UpdatesWhere calls while tripped
type failingWriteDB struct {
	DBI
	fail atomic.Bool
}

func (f *failingWriteDB) UpdatesWhere(
	ctx context.Context,
	model any,
	values map[string]any,
	query any,
	conds ...any,
) (int64, error) {
	if f.fail.Load() {
		return 0, errors.New("database is locked")
	}
	return f.DBI.UpdatesWhere(ctx, model, values, query, conds...)
}

func TestCountingFlushFailureRetries(t *testing.T) {
	t.Parallel()
	bot, _ := newCountingTestBot(t)
	ctx := context.Background()

	flaky := &failingWriteDB{DBI: bot.writeDB}
	bot.writeDB = flaky

	require.Equal(
		t,
		countingCorrect,
		bot.counting.HandleMessage(
			ctx, countingMessage(testGuildID, testChannelID, "user-a", "1"),
		),
	)

	// the write fails: the entry stays dirty and the row is untouched
	flaky.fail.Store(true)
	assert.Equal(t, 0, bot.counting.Flush(ctx))

	bot.counting.mu.Lock()
	state := bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	require.NotNil(t, state)
	assert.True(t, state.dirty)
	assert.Equal(
		t,
		int64(0),
		guildConfigFromDB(t, bot, testGuildID).CurrentCount,
	)

	// the next tick retries the same entry and succeeds
	flaky.fail.Store(false)
	assert.Equal(t, 1, bot.counting.Flush(ctx))

	bot.counting.mu.Lock()
	state = bot.counting.states[testGuildID]
	bot.counting.mu.Unlock()
	assert.False(t, state.dirty)
	assert.Equal(
		t,
		int64(1),
		guildConfigFromDB(t, bot, testGuildID).CurrentCount,
	)
}

func TestCountingEvictRehydrates(t *testing.T) {
	t.Parallel()
	bot, _ := newCountingTestBot(t)
	ctx := context.Background()

	require.Equal(
		t,
		countingCorrect,
		bot.counting.HandleMessage(
			ctx, countingMessage(testGuildID, testChannelID, "user-a", "1"),
		),
	)
	require.Equal(t, 1, bot.counting.Flush(ctx))

	// channel change in the database, then eviction: the next message
	// sees the new channel and the persisted count
	_, err := bot.writeDB.UpdatesWhere(
		ctx,
		&GuildConfig{},
		map[string]any{
			columnGuildConfigCountingChannelID: otherChannelID,
			columnGuildConfigCurrentCount:      0,
			columnGuildConfigLastCounterID:     "",
		},
		"guild_id = ?",
		testGuildID,
	)
	require.NoError(t, err)
	bot.counting.Evict(testGuildID)

	outcome := bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-a", "2"),
	)
	assert.Equal(t, countingWrongChannel, outcome)

	outcome = bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, otherChannelID, "user-a", "1"),
	)
	assert.Equal(t, countingCorrect, outcome)
}

func TestCountingInitialCountFromDB(t *testing.T) {
	t.Parallel()
	bot, _ := newTestBot(t)
	ctx := context.Background()

	createTestGuild(
		t, bot, GuildConfig{
			GuildID:           testGuildID,
			CountingChannelID: testChannelID,
			CurrentCount:      41,
			LastCounterID:     "user-b",
		},
	)

	// lazily hydrated from the persisted streak
	outcome := bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-a", "42"),
	)
	assert.Equal(t, countingCorrect, outcome)

	outcome = bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, testChannelID, "user-b", "42"),
	)
	assert.Equal(t, countingReset, outcome)
}
