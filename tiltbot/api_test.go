package tiltbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAPITestBot creates a bot with the admin API enabled and
// credentials admin/correct-horse set.
func newAPITestBot(t testing.TB) (*TiltBot, *mockDiscordSession) {
	t.Helper()
	ctx := context.Background()

	cfg := DefaultTestConfig(t, t.TempDir())
	cfg.API.Enabled = true
	cfg.API.Secret = "test-secret"

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

	hashed, err := HashPassword("correct-horse")
	require.NoError(t, err)
	runtimeConfig := DefaultRuntimeConfig()
	runtimeConfig.AdminUsername = "admin"
	runtimeConfig.AdminPassword = hashed
	_, err = bot.writeDB.Create(ctx, &runtimeConfig)
	require.NoError(t, err)
	bot.runtimeConfig = &runtimeConfig

	return bot, session
}

// withTestNotifier attaches the in-process notifier the bot would
// normally create in Run
func withTestNotifier(t testing.TB, bot *TiltBot) {
	t.Helper()
	notifier, err := newDBNotifier(bot)
	require.NoError(t, err)
	bot.dbNotifier = notifier
}

// doRequest runs one request through the API's router
func doRequest(
	t testing.TB,
	bot *TiltBot,
	method string,
	path string,
	body any,
	cookies []*http.Cookie,
) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(payload)
	} else {
		reqBody = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	bot.api.engine.ServeHTTP(w, req)
	return w
}

// login authenticates and returns the session cookies
func login(t testing.TB, bot *TiltBot) []*http.Cookie {
	t.Helper()
	w := doRequest(
		t, bot, http.MethodPost, "/api/login",
		map[string]string{"username": "admin", "password": "correct-horse"},
		nil,
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestAPILogin(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)

	w := doRequest(
		t, bot, http.MethodPost, "/api/login",
		map[string]string{"username": "admin", "password": "wrong"},
		nil,
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(
		t, bot, http.MethodPost, "/api/login",
		map[string]string{"username": "admin", "password": "correct-horse"},
		nil,
	)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPILoginPendingSetup(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	bot.pendingSetup.Store(true)

	w := doRequest(
		t, bot, http.MethodPost, "/api/login",
		map[string]string{"username": "admin", "password": "correct-horse"},
		nil,
	)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPIAuthRequired(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)

	w := doRequest(t, bot, http.MethodGet, "/api/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// healthz is open
	w = doRequest(t, bot, http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIStatus(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	cookies := login(t, bot)

	w := doRequest(t, bot, http.MethodGet, "/api/status", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var status apiStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Paused)
}

func TestAPIGuildConfig(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	cookies := login(t, bot)

	createTestGuild(
		t, bot, GuildConfig{
			GuildID:           testGuildID,
			CountingChannelID: testChannelID,
			CurrentCount:      12,
		},
	)

	w := doRequest(
		t, bot, http.MethodGet,
		fmt.Sprintf("/api/guilds/%s/config", testGuildID),
		nil, cookies,
	)
	require.Equal(t, http.StatusOK, w.Code)

	var config GuildConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &config))
	assert.Equal(t, int64(12), config.CurrentCount)

	w = doRequest(
		t, bot, http.MethodGet, "/api/guilds/no-such-guild/config",
		nil, cookies,
	)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIPatchGuildConfig(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	ctx := context.Background()
	cookies := login(t, bot)

	createTestGuild(
		t, bot, GuildConfig{
			GuildID:           testGuildID,
			CountingChannelID: testChannelID,
		},
	)

	// hydrate the counting cache so we can observe the eviction
	require.Equal(
		t,
		countingCorrect,
		bot.counting.HandleMessage(
			ctx, countingMessage(testGuildID, testChannelID, "user-a", "1"),
		),
	)

	w := doRequest(
		t, bot, http.MethodPatch,
		fmt.Sprintf("/api/guilds/%s/config", testGuildID),
		map[string]any{
			"welcome_channel_id":  "channel-welcome",
			"counting_channel_id": otherChannelID,
		},
		cookies,
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored := guildConfigFromDB(t, bot, testGuildID)
	assert.Equal(t, "channel-welcome", stored.WelcomeChannelID)
	assert.Equal(t, otherChannelID, stored.CountingChannelID)
	assert.Zero(t, stored.CurrentCount, "channel change resets the count")

	// the cache entry was evicted; the next message re-hydrates against
	// the new channel
	outcome := bot.counting.HandleMessage(
		ctx, countingMessage(testGuildID, otherChannelID, "user-a", "1"),
	)
	assert.Equal(t, countingCorrect, outcome)
}

func TestAPIAnnouncements(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	cookies := login(t, bot)

	created := createTestAnnouncement(
		t, bot, Announcement{
			GuildID:   testGuildID,
			ChannelID: "channel-news",
			Message:   "hello",
			Frequency: Frequency1Day,
			NextRunAt: 1,
		},
	)

	w := doRequest(t, bot, http.MethodGet, "/api/announcements", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var announcements []Announcement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &announcements))
	require.Len(t, announcements, 1)

	w = doRequest(
		t, bot, http.MethodDelete,
		fmt.Sprintf("/api/announcements/%d", created.ID),
		nil, cookies,
	)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(
		t, bot, http.MethodDelete,
		fmt.Sprintf("/api/announcements/%d", created.ID),
		nil, cookies,
	)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIPauseResume(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	withTestNotifier(t, bot)
	cookies := login(t, bot)

	w := doRequest(t, bot, http.MethodPost, "/api/pause", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, bot.paused.Load())
	assert.True(t, <-bot.triggerRuntimeConfigRefreshCh)

	var stored RuntimeConfig
	require.NoError(t, bot.db.Last(&stored).Error)
	assert.True(t, stored.Paused)

	// pausing an already-paused bot is a no-op and doesn't re-notify
	w = doRequest(t, bot, http.MethodPost, "/api/pause", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.False(t, payload["changed"])
	assert.Empty(t, bot.triggerRuntimeConfigRefreshCh)

	w = doRequest(t, bot, http.MethodPost, "/api/resume", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, bot.paused.Load())
	assert.True(t, <-bot.triggerRuntimeConfigRefreshCh)

	require.NoError(t, bot.db.Last(&stored).Error)
	assert.False(t, stored.Paused)
}

func TestAPIPatchRuntimeConfig(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	withTestNotifier(t, bot)
	cookies := login(t, bot)

	w := doRequest(
		t, bot, http.MethodPatch, "/api/config",
		map[string]any{
			"custom_status": "counting sheep",
			"chat_enabled":  false,
			"bot_log_level": "DEBUG",
		},
		cookies,
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, <-bot.triggerRuntimeConfigRefreshCh)

	var stored RuntimeConfig
	require.NoError(t, bot.db.Last(&stored).Error)
	assert.Equal(t, "counting sheep", stored.CustomStatus)
	assert.False(t, stored.ChatEnabled)
	assert.Equal(t, DBLogLevelDebug, stored.BotLogLevel)

	// the handler applies the update locally before responding
	current := bot.RuntimeConfig()
	assert.Equal(t, "counting sheep", current.CustomStatus)
	assert.False(t, current.ChatEnabled)

	var response RuntimeConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Empty(t, response.AdminPassword)
	assert.Equal(t, "counting sheep", response.CustomStatus)

	w = doRequest(
		t, bot, http.MethodPatch, "/api/config",
		map[string]any{"bot_log_level": "LOUD"},
		cookies,
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIQuit(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	withTestNotifier(t, bot)
	bot.signalStop = make(chan struct{}, 1)
	cookies := login(t, bot)

	w := doRequest(t, bot, http.MethodPost, "/api/quit", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	select {
	case <-bot.signalStop:
	//
	default:
		t.Fatal("expected a stop signal")
	}
}

func TestAPILogout(t *testing.T) {
	t.Parallel()
	bot, _ := newAPITestBot(t)
	cookies := login(t, bot)

	w := doRequest(t, bot, http.MethodPost, "/api/logout", nil, cookies)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
