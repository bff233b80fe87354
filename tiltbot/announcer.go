package tiltbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

const columnAnnouncementNextRun = "next_run"

// AnnouncementFrequency is one of the fixed repeat intervals an
// announcement can be created with.
type AnnouncementFrequency string

const (
	Frequency30Min  AnnouncementFrequency = "30min"
	Frequency1Hour  AnnouncementFrequency = "1hr"
	Frequency3Hour  AnnouncementFrequency = "3hr"
	Frequency6Hour  AnnouncementFrequency = "6hr"
	Frequency12Hour AnnouncementFrequency = "12hr"
	Frequency1Day   AnnouncementFrequency = "1day"
	Frequency3Day   AnnouncementFrequency = "3days"
	Frequency1Week  AnnouncementFrequency = "1week"
	Frequency2Week  AnnouncementFrequency = "2weeks"

	// Frequency1Month is a fixed 30 days, not calendar-month aware
	Frequency1Month AnnouncementFrequency = "1month"
)

// announcementFrequencies is ordered for display in command choices
var announcementFrequencies = []AnnouncementFrequency{
	Frequency30Min,
	Frequency1Hour,
	Frequency3Hour,
	Frequency6Hour,
	Frequency12Hour,
	Frequency1Day,
	Frequency3Day,
	Frequency1Week,
	Frequency2Week,
	Frequency1Month,
}

// Duration returns the fixed repeat interval, or 0 if the frequency
// isn't recognized.
func (f AnnouncementFrequency) Duration() time.Duration {
	switch f {
	case Frequency30Min:
		return 30 * time.Minute
	case Frequency1Hour:
		return time.Hour
	case Frequency3Hour:
		return 3 * time.Hour
	case Frequency6Hour:
		return 6 * time.Hour
	case Frequency12Hour:
		return 12 * time.Hour
	case Frequency1Day:
		return 24 * time.Hour
	case Frequency3Day:
		return 3 * 24 * time.Hour
	case Frequency1Week:
		return 7 * 24 * time.Hour
	case Frequency2Week:
		return 14 * 24 * time.Hour
	case Frequency1Month:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Announcement is a recurring broadcast: a fixed message posted to a
// channel on a fixed interval until stopped. Deleted outright when
// stopped or when its channel stops resolving.
type Announcement struct {
	ModelUintID
	ModelUnixTime

	GuildID   string                `json:"guild_id" gorm:"index"`
	ChannelID string                `json:"channel_id"`
	Message   string                `json:"message"`
	Frequency AnnouncementFrequency `json:"frequency" gorm:"type:string"`

	// NextRunAt is the next due time as Unix milliseconds. Zero only if
	// the row was created with an unrecognized frequency.
	NextRunAt int64 `json:"next_run_at" gorm:"column:next_run"`

	// CreatedBy is the Discord user ID that created the announcement
	CreatedBy string `json:"created_by"`
}

func (Announcement) TableName() string {
	return "announcements"
}

func (a Announcement) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("id", uint64(a.ID)),
		slog.String("guild_id", a.GuildID),
		slog.String("channel_id", a.ChannelID),
		slog.String("frequency", string(a.Frequency)),
		slog.Int64("next_run_at", a.NextRunAt),
	)
}

// NextRunTime returns NextRunAt as a time.Time
func (a Announcement) NextRunTime() time.Time {
	return time.UnixMilli(a.NextRunAt)
}

// Announcer fires recurring announcements. Rather than arming a timer
// per announcement, it polls once a minute for rows whose next run time
// has passed. A late tick (after downtime) still fires each overdue
// announcement exactly once, then reschedules from the time the fire
// was actually observed, so downtime never causes a burst of catch-up
// posts.
type Announcer struct {
	bot    *TiltBot
	logger *slog.Logger

	tickInterval time.Duration

	// now is swapped out in tests
	now func() time.Time
}

func newAnnouncer(t *TiltBot, tickInterval time.Duration) *Announcer {
	if tickInterval <= 0 {
		tickInterval = DefaultSchedulerTickInterval
	}
	return &Announcer{
		bot:          t,
		tickInterval: tickInterval,
		now:          time.Now,
		logger: t.logger.With(
			slog.String(loggerNameKey, "announcer"),
		),
	}
}

func (a *Announcer) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-a.bot.signalReady:
		//
	}
	a.logger.InfoContext(
		ctx,
		"starting announcement scheduler",
		"interval", a.tickInterval,
	)

	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("announcement scheduler stopped")
			return
		case <-ticker.C:
			if a.bot.paused.Load() {
				continue
			}
			a.checkDue(ctx)
		}
	}
}

// checkDue fires every announcement whose next run time has passed.
// Returns the number of announcements sent.
func (a *Announcer) checkDue(ctx context.Context) int {
	now := a.now()

	var due []Announcement
	err := a.bot.db.WithContext(ctx).Where(
		"next_run > 0 AND next_run <= ?", now.UnixMilli(),
	).Find(&due).Error
	if err != nil {
		a.logger.ErrorContext(
			ctx, "error listing due announcements", tint.Err(err),
		)
		return 0
	}

	fired := 0
	for _, announcement := range due {
		if a.fire(ctx, now, announcement) {
			fired++
		}
	}
	return fired
}

// fire sends one due announcement and advances its next run time,
// measuring the new interval from `now` (the observed fire time), not
// from the previously scheduled time. If the target channel no longer
// exists, the announcement is deleted.
func (a *Announcer) fire(
	ctx context.Context,
	now time.Time,
	announcement Announcement,
) bool {
	logger := a.logger.With("announcement", announcement)

	sendErr := a.bot.discord.channelMessageSend(
		announcement.ChannelID, announcement.Message,
	)
	switch {
	case sendErr == nil:
		//
	case discordUnknownChannelError(sendErr):
		logger.WarnContext(
			ctx, "announcement channel gone, removing announcement",
		)
		if _, err := a.bot.writeDB.Delete(&announcement); err != nil {
			logger.ErrorContext(
				ctx, "error deleting announcement", tint.Err(err),
			)
		}
		return false
	default:
		// leave next_run alone so the next tick retries
		logger.WarnContext(
			ctx, "error sending announcement", tint.Err(sendErr),
		)
		return false
	}

	nextRun := now.Add(announcement.Frequency.Duration())
	_, err := a.bot.writeDB.Update(
		ctx,
		&announcement,
		columnAnnouncementNextRun,
		nextRun.UnixMilli(),
	)
	if err != nil {
		logger.ErrorContext(
			ctx, "error rescheduling announcement", tint.Err(err),
		)
		return true
	}
	logger.InfoContext(
		ctx, "sent announcement", "next_run", nextRun,
	)
	return true
}
