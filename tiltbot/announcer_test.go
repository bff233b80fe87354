package tiltbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncementFrequencyDurations(t *testing.T) {
	t.Parallel()
	expected := map[AnnouncementFrequency]time.Duration{
		Frequency30Min:  30 * time.Minute,
		Frequency1Hour:  time.Hour,
		Frequency3Hour:  3 * time.Hour,
		Frequency6Hour:  6 * time.Hour,
		Frequency12Hour: 12 * time.Hour,
		Frequency1Day:   24 * time.Hour,
		Frequency3Day:   72 * time.Hour,
		Frequency1Week:  7 * 24 * time.Hour,
		Frequency2Week:  14 * 24 * time.Hour,
		Frequency1Month: 30 * 24 * time.Hour,
	}
	for frequency, duration := range expected {
		assert.Equal(t, duration, frequency.Duration(), string(frequency))
	}
	assert.Equal(
		t,
		time.Duration(0),
		AnnouncementFrequency("fortnightly").Duration(),
	)

	// every frequency offered in the command is recognized
	for _, frequency := range announcementFrequencies {
		assert.Positive(t, frequency.Duration(), string(frequency))
	}
}

func createTestAnnouncement(
	t testing.TB,
	bot *TiltBot,
	announcement Announcement,
) Announcement {
	t.Helper()
	_, err := bot.writeDB.Create(context.Background(), &announcement)
	require.NoError(t, err)
	return announcement
}

func TestAnnouncerFiresDue(t *testing.T) {
	t.Parallel()
	bot, session := newTestBot(t)
	ctx := context.Background()

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	created := createTestAnnouncement(
		t, bot, Announcement{
			GuildID:   testGuildID,
			ChannelID: "channel-news",
			Message:   "weekly meeting in one hour!",
			Frequency: Frequency1Hour,
			NextRunAt: t0.Add(time.Hour).UnixMilli(),
		},
	)

	// not due yet
	bot.announcer.now = func() time.Time { return t0.Add(30 * time.Minute) }
	assert.Equal(t, 0, bot.announcer.checkDue(ctx))
	assert.Empty(t, session.sentMessages())

	// evaluated 90 minutes after creation: one missed cycle, but it
	// fires exactly once, and the next run is measured from the
	// observed fire time rather than the original schedule
	fireTime := t0.Add(90 * time.Minute)
	bot.announcer.now = func() time.Time { return fireTime }
	assert.Equal(t, 1, bot.announcer.checkDue(ctx))

	messages := session.sentMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "weekly meeting in one hour!", messages[0].Content)

	var stored Announcement
	require.NoError(
		t, bot.db.First(&stored, "id = ?", created.ID).Error,
	)
	assert.Equal(
		t,
		fireTime.Add(time.Hour).UnixMilli(),
		stored.NextRunAt,
	)

	// the same tick time again does not re-fire
	assert.Equal(t, 0, bot.announcer.checkDue(ctx))
	assert.Len(t, session.sentMessages(), 1)
}

func TestAnnouncerRemovesUnresolvableChannel(t *testing.T) {
	t.Parallel()
	bot, session := newTestBot(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	created := createTestAnnouncement(
		t, bot, Announcement{
			GuildID:   testGuildID,
			ChannelID: "channel-deleted",
			Message:   "hello?",
			Frequency: Frequency30Min,
			NextRunAt: now.Add(-time.Minute).UnixMilli(),
		},
	)

	session.setChannelError("channel-deleted", unknownChannelError())
	bot.announcer.now = func() time.Time { return now }

	assert.Equal(t, 0, bot.announcer.checkDue(ctx))

	// the announcement is gone and doesn't reappear on later ticks
	var count int64
	require.NoError(
		t,
		bot.db.Model(&Announcement{}).Where(
			"id = ?", created.ID,
		).Count(&count).Error,
	)
	assert.Zero(t, count)

	bot.announcer.now = func() time.Time { return now.Add(time.Hour) }
	assert.Equal(t, 0, bot.announcer.checkDue(ctx))
}

func TestAnnouncerRetriesAfterSendFailure(t *testing.T) {
	t.Parallel()
	bot, session := newTestBot(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	created := createTestAnnouncement(
		t, bot, Announcement{
			GuildID:   testGuildID,
			ChannelID: "channel-flaky",
			Message:   "retry me",
			Frequency: Frequency1Hour,
			NextRunAt: now.Add(-time.Minute).UnixMilli(),
		},
	)

	session.setChannelError("channel-flaky", errors.New("http 500"))
	bot.announcer.now = func() time.Time { return now }
	assert.Equal(t, 0, bot.announcer.checkDue(ctx))

	// next_run untouched, so the next tick retries
	var stored Announcement
	require.NoError(t, bot.db.First(&stored, "id = ?", created.ID).Error)
	assert.Equal(t, created.NextRunAt, stored.NextRunAt)

	session.setChannelError("channel-flaky", nil)
	assert.Equal(t, 1, bot.announcer.checkDue(ctx))
	assert.Len(t, session.sentMessages(), 1)
}

func TestAnnouncerIgnoresUnscheduled(t *testing.T) {
	t.Parallel()
	bot, session := newTestBot(t)
	ctx := context.Background()

	// a row with no next run time (unrecognized frequency at creation)
	// is never fired
	createTestAnnouncement(
		t, bot, Announcement{
			GuildID:   testGuildID,
			ChannelID: "channel-news",
			Message:   "orphan",
			Frequency: AnnouncementFrequency("fortnightly"),
		},
	)

	bot.announcer.now = time.Now
	assert.Equal(t, 0, bot.announcer.checkDue(ctx))
	assert.Empty(t, session.sentMessages())
}
