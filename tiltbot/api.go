package tiltbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

const (
	xRequestIDHeader = "X-Request-ID"

	apiSessionName    = "tiltbot"
	apiSessionUserKey = "username"

	// loginRateLimit bounds credential guessing
	loginRateLimit = rate.Limit(1)
	loginRateBurst = 5
)

// API is the admin HTTP API: login-gated endpoints for checking bot
// status, inspecting and editing guild config, and managing
// announcements.
type API struct {
	bot    *TiltBot
	config *APIConfig
	logger *slog.Logger

	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener

	loginLimiter *rate.Limiter
}

func newAPI(t *TiltBot, config *APIConfig) (*API, error) {
	if config == nil {
		return nil, errors.New("nil API config")
	}
	api := &API{
		bot:          t,
		config:       config,
		loginLimiter: rate.NewLimiter(loginRateLimit, loginRateBurst),
		logger: slog.New(
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     config.LogLevel,
					AddSource: true,
				},
			),
		).With(slog.String(loggerNameKey, "api")),
	}
	if !config.Enabled {
		return api, nil
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(api.requestIDMiddleware())
	engine.Use(api.loggingMiddleware())
	engine.Use(gin.Recovery())

	corsConfig := config.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 && config.Development {
		corsConfig.AllowOrigins = []string{"*"}
	}
	engine.Use(cors.New(corsConfig))

	var sessionKey []byte
	if config.Secret == "" {
		// sessions won't survive a restart without a configured secret
		sessionKey = securecookie.GenerateRandomKey(64)
	} else {
		sessionKey = derive64ByteKey(config.Secret)
	}
	store := newCookieStore(sessionKey)
	sameSite := http.SameSiteStrictMode
	if config.Development {
		sameSite = http.SameSiteNoneMode
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		Secure:   config.SSL.Cert != "",
		HttpOnly: true,
		SameSite: sameSite,
	})
	engine.Use(sessions.Sessions(apiSessionName, store))

	engine.POST("/api/login", api.loginHandler)
	engine.GET("/api/healthz", api.healthCheckHandler)

	authorized := engine.Group("/api", api.authMiddleware())
	authorized.POST("/logout", api.logoutHandler)
	authorized.GET("/status", api.statusHandler)
	authorized.POST("/pause", api.pauseHandler)
	authorized.POST("/resume", api.resumeHandler)
	authorized.POST("/quit", api.quitHandler)
	authorized.PATCH("/config", api.patchRuntimeConfigHandler)
	authorized.GET("/guilds/:guild_id/config", api.getGuildConfigHandler)
	authorized.PATCH("/guilds/:guild_id/config", api.patchGuildConfigHandler)
	authorized.GET("/announcements", api.listAnnouncementsHandler)
	authorized.DELETE("/announcements/:id", api.deleteAnnouncementHandler)

	api.engine = engine
	api.httpServer = &http.Server{
		Handler:           engine,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return api, nil
}

// cookieStore adapts a gorilla cookie store to the gin sessions
// middleware.
type cookieStore struct {
	*gsessions.CookieStore
}

func newCookieStore(keyPairs ...[]byte) *cookieStore {
	return &cookieStore{gsessions.NewCookieStore(keyPairs...)}
}

func (c *cookieStore) Options(options sessions.Options) {
	c.CookieStore.Options = options.ToGorillaOptions()
}

// Serve listens and blocks until the server is shut down
func (a *API) Serve(ctx context.Context) error {
	listener, err := net.Listen(a.config.ListenNetwork, a.config.Listen)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", a.config.Listen, err)
	}
	a.listener = listener
	a.logger.InfoContext(ctx, "admin API listening", "address", a.config.Listen)

	if a.config.SSL.Cert != "" {
		cfg, tlsErr := tlsConfig(
			a.config.SSL.Cert,
			a.config.SSL.Key,
			a.config.SSL.TLSMinVersion,
		)
		if tlsErr != nil {
			return tlsErr
		}
		a.httpServer.TLSConfig = cfg
		err = a.httpServer.ServeTLS(listener, "", "")
	} else {
		err = a.httpServer.Serve(listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *API) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(xRequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(xRequestIDHeader, requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func (a *API) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Info(
			"request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
			"client_ip", c.ClientIP(),
		)
	}
}

// authMiddleware rejects requests without a logged-in session
func (a *API) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		username, _ := session.Get(apiSessionUserKey).(string)
		if username == "" {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				gin.H{"error": "login required"},
			)
			return
		}
		c.Set(apiSessionUserKey, username)
		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) loginHandler(c *gin.Context) {
	if !a.loginLimiter.Allow() {
		c.JSON(
			http.StatusTooManyRequests,
			gin.H{"error": "too many login attempts"},
		)
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if a.bot.pendingSetup.Load() {
		c.JSON(
			http.StatusForbidden,
			gin.H{"error": "admin credentials not set, run: tiltbot init"},
		)
		return
	}

	runtimeConfig := a.bot.RuntimeConfig()
	passwordOK, err := VerifyPassword(runtimeConfig.AdminPassword, req.Password)
	if err != nil {
		a.logger.Error("error verifying password", tint.Err(err))
	}
	if req.Username != runtimeConfig.AdminUsername || !passwordOK {
		c.JSON(
			http.StatusUnauthorized,
			gin.H{"error": "invalid credentials"},
		)
		return
	}

	session := sessions.Default(c)
	session.Set(apiSessionUserKey, req.Username)
	if err = session.Save(); err != nil {
		a.logger.Error("error saving session", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": req.Username})
}

func (a *API) logoutHandler(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		a.logger.Error("error clearing session", tint.Err(err))
	}
	c.Status(http.StatusNoContent)
}

func (a *API) healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// apiStatus is the GET /api/status payload
type apiStatus struct {
	Version          string    `json:"version"`
	StartedAt        time.Time `json:"started_at"`
	Uptime           string    `json:"uptime"`
	Paused           bool      `json:"paused"`
	DiscordConnected bool      `json:"discord_connected"`
	DiscordConnects  int64     `json:"discord_connects"`
}

func (a *API) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, apiStatus{
		Version:          Version,
		StartedAt:        a.bot.startedAt,
		Uptime:           time.Since(a.bot.startedAt).String(),
		Paused:           a.bot.paused.Load(),
		DiscordConnected: a.bot.discord.connected.Load(),
		DiscordConnects:  a.bot.discord.metricConnects.Load(),
	})
}

// notifyRuntimeConfigUpdated nudges running instances (this one
// included, via the refresher loop) to reload the runtime config row
func (a *API) notifyRuntimeConfigUpdated(ctx context.Context) {
	if a.bot.dbNotifier == nil {
		return
	}
	if !a.bot.dbNotifier.ReloadRuntimeConfig(ctx) {
		a.logger.WarnContext(ctx, "error sending runtime config notification")
	}
}

func (a *API) pauseHandler(c *gin.Context) {
	ctx := c.Request.Context()
	changed := a.bot.Pause(ctx)
	if changed {
		a.logger.InfoContext(
			ctx, "paused", "username", c.GetString(apiSessionUserKey),
		)
		a.notifyRuntimeConfigUpdated(ctx)
	}
	c.JSON(http.StatusOK, gin.H{"paused": true, "changed": changed})
}

func (a *API) resumeHandler(c *gin.Context) {
	ctx := c.Request.Context()
	changed := a.bot.Resume(ctx)
	if changed {
		a.logger.InfoContext(
			ctx, "resumed", "username", c.GetString(apiSessionUserKey),
		)
		a.notifyRuntimeConfigUpdated(ctx)
	}
	c.JSON(http.StatusOK, gin.H{"paused": false, "changed": changed})
}

// quitHandler sends a stop signal to every bot instance sharing the
// database
func (a *API) quitHandler(c *gin.Context) {
	if a.bot.dbNotifier == nil {
		c.JSON(
			http.StatusServiceUnavailable,
			gin.H{"error": "bot is not running"},
		)
		return
	}
	ctx, cancel := context.WithTimeout(
		c.Request.Context(), dbNotifierSendTimeout,
	)
	defer cancel()

	a.logger.WarnContext(
		c.Request.Context(),
		"shutdown requested",
		"username", c.GetString(apiSessionUserKey),
	)
	if !a.bot.dbNotifier.Stop(ctx) {
		c.JSON(
			http.StatusInternalServerError,
			gin.H{"error": "error sending stop signal"},
		)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopping": true})
}

// runtimeConfigPatch is the PATCH /api/config payload. Pointer fields
// are only applied when present.
type runtimeConfigPatch struct {
	Paused                *bool   `json:"paused"`
	ChatEnabled           *bool   `json:"chat_enabled"`
	CustomStatus          *string `json:"custom_status"`
	NotificationChannelID *string `json:"notification_channel_id"`
	BotLogLevel           *string `json:"bot_log_level" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DiscordLogLevel       *string `json:"discord_log_level" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DatabaseLogLevel      *string `json:"database_log_level" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	APILogLevel           *string `json:"api_log_level" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
}

func (a *API) patchRuntimeConfigHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var patch runtimeConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var config RuntimeConfig
	if err := a.bot.db.WithContext(ctx).Last(&config).Error; err != nil {
		a.logger.Error("error loading runtime config", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	if patch.Paused != nil {
		config.Paused = *patch.Paused
	}
	if patch.ChatEnabled != nil {
		config.ChatEnabled = *patch.ChatEnabled
	}
	if patch.CustomStatus != nil {
		config.CustomStatus = *patch.CustomStatus
	}
	if patch.NotificationChannelID != nil {
		config.NotificationChannelID = *patch.NotificationChannelID
	}
	setLevel := func(target *DBLogLevel, value *string) {
		if value != nil {
			*target = DBLogLevel(*value)
		}
	}
	setLevel(&config.BotLogLevel, patch.BotLogLevel)
	setLevel(&config.DiscordLogLevel, patch.DiscordLogLevel)
	setLevel(&config.DatabaseLogLevel, patch.DatabaseLogLevel)
	setLevel(&config.APILogLevel, patch.APILogLevel)

	a.logger.InfoContext(
		ctx,
		"updating runtime config",
		"username", c.GetString(apiSessionUserKey),
		"custom_status", stringPointerValue(patch.CustomStatus),
		"notification_channel_id",
		stringPointerValue(patch.NotificationChannelID),
	)

	if _, err := a.bot.writeDB.Save(ctx, &config); err != nil {
		a.logger.Error("error saving runtime config", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	// apply locally right away, then tell any other instances. The
	// postgres listener filters out our own notification, so the local
	// refresh can't be left to it.
	a.bot.refreshRuntimeConfig(ctx, true)
	a.notifyRuntimeConfigUpdated(ctx)

	updated := a.bot.RuntimeConfig()
	updated.AdminPassword = ""
	c.JSON(http.StatusOK, updated)
}

func (a *API) getGuildConfigHandler(c *gin.Context) {
	guildID := c.Param("guild_id")
	config, err := getGuildConfig(
		a.bot.db.WithContext(c.Request.Context()), guildID,
	)
	if err != nil {
		a.logger.Error("error loading guild config", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	if config == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "guild not found"})
		return
	}
	c.JSON(http.StatusOK, config)
}

// guildConfigPatch is the PATCH /api/guilds/:guild_id/config payload.
// Pointer fields distinguish "clear this" from "leave it alone".
type guildConfigPatch struct {
	WelcomeChannelID  *string `json:"welcome_channel_id"`
	WelcomeMessage    *string `json:"welcome_message"`
	WelcomeImage      *string `json:"welcome_image"`
	GoodbyeChannelID  *string `json:"goodbye_channel_id"`
	GoodbyeMessage    *string `json:"goodbye_message"`
	GoodbyeImage      *string `json:"goodbye_image"`
	CountingChannelID *string `json:"counting_channel_id"`
	WotdChannelID     *string `json:"wotd_channel_id"`
	WotdHour          *int    `json:"wotd_hour" binding:"omitempty,min=0,max=23"`
	WotdTimezone      *string `json:"wotd_timezone"`
}

func (a *API) patchGuildConfigHandler(c *gin.Context) {
	guildID := c.Param("guild_id")
	ctx := c.Request.Context()

	var patch guildConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config, err := getGuildConfig(a.bot.db.WithContext(ctx), guildID)
	if err != nil {
		a.logger.Error("error loading guild config", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	if config == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "guild not found"})
		return
	}

	updates := map[string]any{}
	setString := func(column string, value *string) {
		if value != nil {
			updates[column] = *value
		}
	}
	setString("welcome_channel_id", patch.WelcomeChannelID)
	setString("welcome_message", patch.WelcomeMessage)
	setString("welcome_image", patch.WelcomeImage)
	setString("goodbye_channel_id", patch.GoodbyeChannelID)
	setString("goodbye_message", patch.GoodbyeMessage)
	setString("goodbye_image", patch.GoodbyeImage)
	setString("wotd_channel_id", patch.WotdChannelID)
	setString("wotd_timezone", patch.WotdTimezone)
	if patch.WotdHour != nil {
		updates["wotd_hour"] = *patch.WotdHour
	}

	countingChanged := false
	if patch.CountingChannelID != nil &&
		*patch.CountingChannelID != config.CountingChannelID {
		countingChanged = true
		updates[columnGuildConfigCountingChannelID] = *patch.CountingChannelID
		updates[columnGuildConfigCurrentCount] = 0
		updates[columnGuildConfigLastCounterID] = ""
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, config)
		return
	}

	_, err = a.bot.writeDB.UpdatesWhere(
		ctx, &GuildConfig{}, updates, "guild_id = ?", guildID,
	)
	if err != nil {
		a.logger.Error("error updating guild config", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	if countingChanged {
		a.bot.counting.Evict(guildID)
		a.bot.notifyGuildConfigUpdated(ctx, guildID)
	}

	updated, err := getGuildConfig(a.bot.db.WithContext(ctx), guildID)
	if err != nil || updated == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (a *API) listAnnouncementsHandler(c *gin.Context) {
	var announcements []Announcement
	query := a.bot.db.WithContext(c.Request.Context())
	if guildID := c.Query("guild_id"); guildID != "" {
		query = query.Where("guild_id = ?", guildID)
	}
	if err := query.Order("id").Find(&announcements).Error; err != nil {
		a.logger.Error("error listing announcements", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	c.JSON(http.StatusOK, announcements)
}

func (a *API) deleteAnnouncementHandler(c *gin.Context) {
	id := c.Param("id")
	rowsAffected, err := a.bot.writeDB.Delete(&Announcement{}, "id = ?", id)
	if err != nil {
		a.logger.Error("error deleting announcement", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "announcement not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
