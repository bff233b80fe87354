package tiltbot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	wotdSourceURL  = "https://www.merriam-webster.com/word-of-the-day"
	wotdSourceName = "Merriam-Webster"
	wotdEmbedColor = 0x2e6da4

	// UTC offsets are clamped to the real-world range
	wotdMinUTCOffset = -12
	wotdMaxUTCOffset = 14
)

var (
	// wotdTimezoneRe pulls the signed hour offset out of strings like
	// "UTC+2", "GMT-5" or a bare "3"
	wotdTimezoneRe = regexp.MustCompile(`([+-]?\d+)`)

	wotdWordRe       = regexp.MustCompile(`<h2 class="word-header-txt">([^<]+)</h2>`)
	wotdAttributeRe  = regexp.MustCompile(`<span class="main-attr">([^<]+)</span>`)
	wotdDefinitionRe = regexp.MustCompile(`(?s)<div class="wod-definition-container">.*?<p>(.*?)</p>`)
	wotdExampleRe    = regexp.MustCompile(`(?s)<div class="left-content-box">.*?<p>(.*?)</p>`)

	wotdTagRe = regexp.MustCompile(`<[^>]+>`)
)

// WordOfDay is one day's word as scraped from the source page
type WordOfDay struct {
	Word       string
	WordType   string
	Definition string
	Example    string
	SourceURL  string
}

// wordFetcher fetches the current word of the day. Satisfied by
// merriamWebsterFetcher; tests substitute a stub.
type wordFetcher interface {
	FetchWord(ctx context.Context) (*WordOfDay, error)
}

// merriamWebsterFetcher scrapes the word of the day from the
// Merriam-Webster site. The page layout is stable enough that a few
// targeted patterns beat pulling in a full HTML parser.
type merriamWebsterFetcher struct {
	httpClient *http.Client
	url        string
}

func (f *merriamWebsterFetcher) FetchWord(ctx context.Context) (
	*WordOfDay,
	error,
) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, f.url, nil,
	)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching word of the day: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"unexpected status fetching word of the day: %s", resp.Status,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	word, err := parseWordOfDayPage(string(body))
	if err != nil {
		return nil, err
	}
	word.SourceURL = f.url
	return word, nil
}

// parseWordOfDayPage extracts the word, part of speech, definition and
// example sentence from the word-of-the-day page HTML.
func parseWordOfDayPage(page string) (*WordOfDay, error) {
	wordMatch := wotdWordRe.FindStringSubmatch(page)
	if wordMatch == nil {
		return nil, fmt.Errorf("word not found in page")
	}
	word := WordOfDay{Word: strings.TrimSpace(wordMatch[1])}

	if m := wotdAttributeRe.FindStringSubmatch(page); m != nil {
		word.WordType = strings.TrimSpace(m[1])
	}
	if m := wotdDefinitionRe.FindStringSubmatch(page); m != nil {
		word.Definition = stripTags(m[1])
	}
	if m := wotdExampleRe.FindStringSubmatch(page); m != nil {
		word.Example = stripTags(m[1])
	}
	return &word, nil
}

func stripTags(s string) string {
	return strings.TrimSpace(wotdTagRe.ReplaceAllString(s, ""))
}

// parseUTCOffset extracts the hour offset from a guild's configured
// timezone string, clamped to [-12, +14]. Anything unparseable falls
// back to UTC rather than failing the delivery.
func parseUTCOffset(tz string) int {
	match := wotdTimezoneRe.FindStringSubmatch(tz)
	if match == nil {
		return 0
	}
	offset, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	if offset < wotdMinUTCOffset {
		return wotdMinUTCOffset
	}
	if offset > wotdMaxUTCOffset {
		return wotdMaxUTCOffset
	}
	return offset
}

// WOTD delivers a word of the day to each subscribed guild at that
// guild's configured local hour. One fetched word is shared across all
// guilds and refreshed on a TTL; per-guild duplicate delivery is
// prevented by comparing the last delivered word against the current
// one, not by timestamps, so a guild that was offline past its delivery
// hour still gets that day's word on the next tick.
type WOTD struct {
	bot    *TiltBot
	logger *slog.Logger

	tickInterval time.Duration
	cacheTTL     time.Duration

	fetcher wordFetcher

	cacheMu     sync.Mutex
	cachedWord  *WordOfDay
	lastFetched time.Time

	// now is swapped out in tests
	now func() time.Time
}

func newWOTD(
	t *TiltBot,
	tickInterval time.Duration,
	cacheTTL time.Duration,
) *WOTD {
	if tickInterval <= 0 {
		tickInterval = DefaultSchedulerTickInterval
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultWordCacheTTL
	}
	httpClient := t.config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &WOTD{
		bot:          t,
		tickInterval: tickInterval,
		cacheTTL:     cacheTTL,
		now:          time.Now,
		fetcher: &merriamWebsterFetcher{
			httpClient: httpClient,
			url:        wotdSourceURL,
		},
		logger: t.logger.With(
			slog.String(loggerNameKey, "wotd"),
		),
	}
}

func (w *WOTD) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-w.bot.signalReady:
		//
	}
	w.logger.InfoContext(
		ctx,
		"starting word of the day scheduler",
		"interval", w.tickInterval,
		"cache_ttl", w.cacheTTL,
	)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("word of the day scheduler stopped")
			return
		case <-ticker.C:
			if w.bot.paused.Load() {
				continue
			}
			w.checkDue(ctx)
		}
	}
}

// currentWord returns the cached word, fetching a fresh one when the
// cache is empty or stale. A failed fetch keeps serving the stale word
// if there is one.
func (w *WOTD) currentWord(ctx context.Context) (*WordOfDay, error) {
	w.cacheMu.Lock()
	defer w.cacheMu.Unlock()

	now := w.now()
	if w.cachedWord != nil && now.Sub(w.lastFetched) < w.cacheTTL {
		return w.cachedWord, nil
	}

	word, err := w.fetcher.FetchWord(ctx)
	if err != nil {
		if w.cachedWord != nil {
			w.logger.WarnContext(
				ctx,
				"error refreshing word of the day, using stale word",
				tint.Err(err),
			)
			return w.cachedWord, nil
		}
		return nil, err
	}
	w.cachedWord = word
	w.lastFetched = now
	w.logger.InfoContext(
		ctx, "fetched word of the day", "word", word.Word,
	)
	return word, nil
}

// checkDue delivers the current word to every guild whose local hour
// has reached its delivery hour and which hasn't received this word
// yet. Returns the number of guilds delivered to.
func (w *WOTD) checkDue(ctx context.Context) int {
	var configs []GuildConfig
	err := w.bot.db.WithContext(ctx).Where(
		"wotd_channel_id <> ''",
	).Find(&configs).Error
	if err != nil {
		w.logger.ErrorContext(
			ctx, "error listing word of the day guilds", tint.Err(err),
		)
		return 0
	}
	if len(configs) == 0 {
		return 0
	}

	word, err := w.currentWord(ctx)
	if err != nil {
		w.logger.ErrorContext(
			ctx, "error fetching word of the day", tint.Err(err),
		)
		return 0
	}

	utcHour := w.now().UTC().Hour()
	delivered := 0
	for _, config := range configs {
		localHour := utcHour + parseUTCOffset(config.WotdTimezone)
		localHour = ((localHour % 24) + 24) % 24

		if localHour < config.WotdHour {
			continue
		}
		if config.WotdLastWord == word.Word {
			continue
		}
		if w.deliver(ctx, config, word) {
			delivered++
		}
	}
	return delivered
}

// deliver sends the word embed to one guild and records the word as
// delivered. The marker is written immediately after a successful send
// so a second tick can't deliver the same word twice.
func (w *WOTD) deliver(
	ctx context.Context,
	config GuildConfig,
	word *WordOfDay,
) bool {
	logger := w.logger.With(
		"guild_id", config.GuildID,
		"channel_id", config.WotdChannelID,
		"word", word.Word,
	)

	_, sendErr := w.bot.discord.session.ChannelMessageSendEmbed(
		config.WotdChannelID, wordOfDayEmbed(word),
	)
	switch {
	case sendErr == nil:
		//
	case discordUnknownChannelError(sendErr):
		// self-heal rather than retrying a dead channel every tick
		logger.WarnContext(
			ctx,
			"word of the day channel gone, disabling delivery",
		)
		_, err := w.bot.writeDB.UpdatesWhere(
			ctx,
			&GuildConfig{},
			map[string]any{"wotd_channel_id": ""},
			"guild_id = ?",
			config.GuildID,
		)
		if err != nil {
			logger.ErrorContext(
				ctx,
				"error disabling word of the day delivery",
				tint.Err(err),
			)
		}
		return false
	default:
		logger.WarnContext(
			ctx, "error sending word of the day", tint.Err(sendErr),
		)
		return false
	}

	_, err := w.bot.writeDB.UpdatesWhere(
		ctx,
		&GuildConfig{},
		map[string]any{columnGuildConfigWotdLastWord: word.Word},
		"guild_id = ?",
		config.GuildID,
	)
	if err != nil {
		logger.ErrorContext(
			ctx,
			"error recording word of the day delivery",
			tint.Err(err),
		)
		return true
	}
	logger.InfoContext(ctx, "delivered word of the day")
	return true
}

// wordOfDayEmbed formats a word as the delivery embed
func wordOfDayEmbed(word *WordOfDay) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Word", Value: word.Word, Inline: true},
	}
	if word.WordType != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Type", Value: word.WordType, Inline: true,
		})
	}
	if word.Definition != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Definition", Value: word.Definition,
		})
	}
	if word.Example != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Example", Value: word.Example,
		})
	}
	return &discordgo.MessageEmbed{
		Title:  "Word of the Day",
		Color:  wotdEmbedColor,
		URL:    word.SourceURL,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: wotdSourceName,
		},
	}
}
