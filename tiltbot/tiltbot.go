package tiltbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/TiltedBl0ck/Tilt-bot-sub000/tiltbot.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

var (
	defaultLogWriter io.Writer = os.Stdout
)

// TiltBot is the main application struct. It owns the Discord session,
// the database handles, the counting game cache, the announcement and
// word-of-the-day schedulers, the /chat handler and the admin API.
type TiltBot struct {
	dbNotifier DBNotifier
	config     *Config

	// Pointer to a read-only GORM connection. This is from an
	// overabundance of caution for using SQLite.
	db *gorm.DB

	// gorm.DB wrapper for write/update/delete operations. The only
	// difference between this and [TiltBot.db] is that, when using
	// sqlite, a mutex is used.
	writeDB DBI

	// Standard logger. Missing loggers will try to use this,
	// and fall back to slog.Default()
	logger *slog.Logger

	// Handler to use for the above
	logHandler slog.Handler

	// Handles discord integration, sessions
	discord *Discord

	// The counting game's write-behind state cache
	counting *CountingGame

	// Fires recurring announcements
	announcer *Announcer

	// Delivers the word of the day
	wotd *WOTD

	// Handles the /chat command. Nil when no OpenAI token is configured.
	chat *ChatHandler

	// Provides the admin API
	api *API

	// signalStop enables an explicit stop signal to be sent to the bot,
	// such as via the DB notifier
	signalStop chan struct{}

	// signalReady is closed once startup is complete: database
	// initialized, runtime config loaded, discord session open and
	// commands registered. The background loops wait on this before
	// doing any work.
	signalReady chan struct{}

	// A signal is sent on this channel when [TiltBot.shutdown] finishes
	eventShutdown chan struct{}

	// prevents Run from executing concurrently
	runMu sync.Mutex

	// If true, the announcement and word-of-the-day schedulers skip
	// their ticks. Counting messages are still handled.
	paused atomic.Bool

	// The time Run was called
	startedAt time.Time

	// Indicates whether admin credentials have been set. If they
	// haven't, the admin API rejects logins until `init` is run.
	pendingSetup atomic.Bool

	// Runtime-configurable settings - things you may want to
	// change without restarting the bot.
	runtimeConfig *RuntimeConfig

	// protecc the runtime config
	cfgMu sync.RWMutex

	triggerRuntimeConfigRefreshCh chan bool
	triggerGuildConfigRefreshCh   chan string
}

// New creates a TiltBot from the given config. Run must be called to
// actually start it.
func New(config *Config) (*TiltBot, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	t := &TiltBot{
		config:                        config,
		signalReady:                   make(chan struct{}, 1),
		eventShutdown:                 make(chan struct{}, 1),
		triggerRuntimeConfigRefreshCh: make(chan bool, 1),
		triggerGuildConfigRefreshCh:   make(chan string, 1),
	}

	t.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     t.config.LogLevel,
			AddSource: true,
		},
	)

	t.logger = slog.New(t.logHandler)
	slog.SetDefault(t.logger)

	t.config.Discord.httpClient = t.config.HTTPClient

	disc, err := newDiscord(t.config.Discord)
	if err != nil {
		errs = append(errs, err)
	}

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     t.config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	disc.logger = slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     t.config.Discord.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "discord")

	t.discord = disc
	disc.bot = t

	t.counting = newCountingGame(t, t.config.CountingFlushInterval)
	t.announcer = newAnnouncer(t, t.config.SchedulerTickInterval)
	t.wotd = newWOTD(t, t.config.SchedulerTickInterval, t.config.WordCacheTTL)

	if t.config.OpenAI.Token != "" {
		t.chat = newChatHandler(t, t.config.OpenAI)
	}

	api, err := newAPI(t, config.API)
	errs = append(errs, err)
	t.api = api

	return t, errors.Join(errs...)
}

func (t *TiltBot) ValidateConfig() error {
	return structValidator.Struct(t.config)
}

// RuntimeConfig returns a copy of the current runtime configuration
func (t *TiltBot) RuntimeConfig() RuntimeConfig {
	t.cfgMu.RLock()
	defer t.cfgMu.RUnlock()
	if t.runtimeConfig == nil {
		return DefaultRuntimeConfig()
	}
	return *t.runtimeConfig
}

// RegisterSlashCommands registers the slash commands for the bot
func (t *TiltBot) RegisterSlashCommands(options ...discordgo.RequestOption) (
	[]*discordgo.ApplicationCommand,
	error,
) {
	return t.discord.registerCommands(t.chat != nil, options...)
}

// Run starts the bot and blocks until the given context is canceled or
// a stop signal is received, then shuts down gracefully.
func (t *TiltBot) Run(ctx context.Context) error {
	// prevents concurrent runs
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.signalStop = make(chan struct{}, 1)

	t.startedAt = time.Now()
	logger := t.logger

	if err := t.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	notifier, err := newDBNotifier(t)
	if err != nil {
		logger.Error("error creating db notifier", tint.Err(err))
		return err
	}
	t.dbNotifier = notifier

	ctx = WithLogger(ctx, logger)

	runtimeWG := &sync.WaitGroup{}

	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.Any("config", t.config))
	if t.signalReady == nil {
		t.signalReady = make(chan struct{}, 1)
	}

	// this is the 'runtime' context, which triggers a graceful shutdown
	// when canceled
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-t.signalStop:
			t.logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			t.logger.Warn("context canceled, sending stop signal")
			t.signalStop <- struct{}{}
			return
		}
	}()

	if t.config.API.Enabled {
		go func() {
			httpErr := t.api.Serve(ctx)
			if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
				t.logger.ErrorContext(ctx, "error serving api HTTP", tint.Err(httpErr))
			}
		}()
	}

	startCtx, startCancel := context.WithTimeout(ctx, t.config.StartupTimeout)
	defer startCancel()

	initErr := make(chan error, 1)
	go func() {
		logger.Debug("initializing run...")
		initErr <- t.initRun(startCtx)
	}()

	select {
	case <-startCtx.Done():
		return fmt.Errorf("startup cancelled or timed out")
	case err := <-initErr:
		if err != nil {
			logger.ErrorContext(ctx, "init error", tint.Err(err))
			if t.api != nil && t.api.listener != nil {
				go func() {
					if e := t.api.listener.Close(); e != nil {
						logger.ErrorContext(ctx, "error closing listener", tint.Err(e))
					}
				}()
			}
			return err
		}
		logger.InfoContext(ctx, "init complete")
	}

	if t.pendingSetup.Load() {
		logger.WarnContext(
			ctx,
			"admin credentials not set - run the 'init' subcommand to "+
				"enable admin API logins",
		)
	}

	if discErr := t.initDiscordSession(ctx, runtimeWG); discErr != nil {
		t.logger.ErrorContext(ctx, "error creating discord session", tint.Err(discErr))
		return discErr
	}

	if openErr := t.discord.session.Open(); openErr != nil {
		t.logger.ErrorContext(ctx, "error opening discord session", tint.Err(openErr))
		return openErr
	}

	if _, cmdErr := t.RegisterSlashCommands(); cmdErr != nil {
		t.logger.ErrorContext(ctx, "error registering commands", tint.Err(cmdErr))
		return cmdErr
	}

	t.startRuntimeConfigRefresher(ctx, runtimeWG, logger)
	t.startGuildConfigListener(ctx, runtimeWG)

	// the background loops - the counting flusher, both schedulers and
	// the notifier listeners - wait on signalReady before their first tick
	loops, loopCtx := errgroup.WithContext(ctx)
	loops.Go(func() error {
		t.counting.runFlushLoop(loopCtx)
		return nil
	})
	loops.Go(func() error {
		t.announcer.run(loopCtx)
		return nil
	})
	loops.Go(func() error {
		t.wotd.run(loopCtx)
		return nil
	})
	for _, channel := range []string{
		t.dbNotifier.RuntimeConfigChannelName(),
		t.dbNotifier.GuildConfigChannelName(),
		t.dbNotifier.StopChannelName(),
	} {
		if channel == "" {
			continue
		}
		channel := channel
		loops.Go(func() error {
			return t.dbNotifier.Listen(loopCtx, channel)
		})
	}

	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		if e := loops.Wait(); e != nil {
			t.logger.ErrorContext(ctx, "background loop error", tint.Err(e))
		}
	}()

	close(t.signalReady)
	t.logger.InfoContext(ctx, "sent ready signal")

	// block until something cancels the main runtime context
	<-ctx.Done()

	return t.shutdown(ctx, runtimeWG)
}

func (t *TiltBot) initRun(startCtx context.Context) error {
	t.logger.Debug("initializing DB...")
	if err := t.initDB(startCtx); err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	t.logger.Debug("finished initializing DB")

	// load or create the runtime config - this tells the bot whether it
	// should start in a 'paused' state (to avoid a crashed bot restarting
	// in an active state when it was deliberately paused)
	var botState RuntimeConfig

	getStateErr := t.db.Last(&botState).Error
	if getStateErr != nil {
		if errors.Is(getStateErr, gorm.ErrRecordNotFound) {
			t.pendingSetup.Store(true)
			botState = DefaultRuntimeConfig()

			if _, err := t.writeDB.Create(startCtx, &botState); err != nil {
				return fmt.Errorf("error creating config: %w", err)
			}
		} else {
			return fmt.Errorf("error getting config: %w", getStateErr)
		}
	}
	if validationErr := structValidator.Struct(botState); validationErr != nil {
		return fmt.Errorf("invalid runtime config: %w", validationErr)
	}

	if botState.AdminUsername == "" || botState.AdminPassword == "" {
		t.pendingSetup.Store(true)
	}
	t.paused.Store(botState.Paused)
	t.setRuntimeLevels(botState)
	t.runtimeConfig = &botState

	return nil
}

func (t *TiltBot) initDB(ctx context.Context) error {
	if t.db == nil {
		db, err := CreateDB(ctx, t.config.DatabaseType, t.config.Database)
		if err != nil {
			return err
		}
		t.db = db
	}
	if t.writeDB == nil {
		t.writeDB = NewDatabase(
			t.db,
			t.logger,
			t.config.DatabaseType == dbTypePostgres,
		)
	}
	return nil
}

func (t *TiltBot) initDiscordSession(ctx context.Context, runtimeWG *sync.WaitGroup) error {
	logger := t.logger.With(loggerNameKey, "discord_session")

	if t.discord.session == nil {
		disc, discErr := t.discord.newSession()
		if discErr != nil {
			return fmt.Errorf("error creating discord session: %w", discErr)
		}
		t.discord.session = disc
	}

	ctx = WithLogger(ctx, logger)

	if len(t.discord.discordgoRemoveHandlerFuncs) > 0 {
		for _, h := range t.discord.discordgoRemoveHandlerFuncs {
			h()
		}
	}

	identify := discordgo.Identify{Intents: t.config.Discord.GatewayIntents}
	if t.paused.Load() {
		identify.Presence = discordgo.GatewayStatusUpdate{
			AFK:    true,
			Status: string(discordgo.StatusDoNotDisturb),
		}
	} else {
		identify.Presence = discordgo.GatewayStatusUpdate{
			Status: t.RuntimeConfig().CustomStatus,
		}
	}
	t.discord.session.SetIdentify(identify)

	t.discord.discordgoRemoveHandlerFuncs = []func(){
		t.discord.session.AddHandler(t.discord.handlerConnect()),
		t.discord.session.AddHandler(t.discord.handlerDisconnect()),
		t.discord.session.AddHandler(t.discord.handlerReady()),
		t.discord.session.AddHandler(
			func(
				_ *discordgo.Session,
				i *discordgo.InteractionCreate,
			) {
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					t.handleInteraction(ctx, i)
				}()
			},
		),
		t.discord.session.AddHandler(
			func(
				s *discordgo.Session,
				m *discordgo.MessageCreate,
			) {
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					t.handleDiscordMessage(ctx, s, m)
				}()
			},
		),
		t.discord.session.AddHandler(
			func(
				_ *discordgo.Session,
				m *discordgo.GuildMemberAdd,
			) {
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					t.handlerGuildMemberAdd(ctx, m)
				}()
			},
		),
		t.discord.session.AddHandler(
			func(
				_ *discordgo.Session,
				m *discordgo.GuildMemberRemove,
			) {
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					t.handlerGuildMemberRemove(ctx, m)
				}()
			},
		),
	}

	return nil
}

// handleDiscordMessage routes incoming guild messages to the counting
// game. Messages from bots (including this one) are ignored.
func (t *TiltBot) handleDiscordMessage(
	ctx context.Context,
	s *discordgo.Session,
	m *discordgo.MessageCreate,
) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s != nil && s.State != nil && s.State.User != nil &&
		m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		return
	}
	t.counting.HandleMessage(ctx, m)
}

func (t *TiltBot) startRuntimeConfigRefresher(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
	logger *slog.Logger,
) {
	runtimeConfigTTL := t.config.RuntimeConfigTTL

	if runtimeConfigTTL > 0 {
		runtimeWG.Add(1)
		go func() {
			defer runtimeWG.Done()
			ticker := time.NewTicker(runtimeConfigTTL)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					select {
					case t.triggerRuntimeConfigRefreshCh <- false:
						logger.Info("sent config refresh signal from ticker")
					case <-time.After(5 * time.Second):
						logger.Warn("timed out sending config refresh signal")
					}
				}
			}
		}()
	}

	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()

		for {
			select {
			case <-ctx.Done():
				return
			case forceRefresh := <-t.triggerRuntimeConfigRefreshCh:
				refreshCh := make(chan struct{}, 1)
				refreshCtx, refreshCancel := context.WithTimeout(ctx, 30*time.Second)
				go func() {
					t.refreshRuntimeConfig(refreshCtx, forceRefresh)
					refreshCh <- struct{}{}
				}()
				select {
				case <-refreshCh:
				//
				case <-refreshCtx.Done():
					t.logger.Warn("refresh runtime config timed out or interrupted")
				}
				refreshCancel()
			}
		}
	}()
}

// startGuildConfigListener evicts cached counting state when a guild's
// config row changes out from under us (admin API, or another instance
// via the postgres notifier).
func (t *TiltBot) startGuildConfigListener(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) {
	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case guildID := <-t.triggerGuildConfigRefreshCh:
				t.logger.Info("evicting cached guild state", "guild_id", guildID)
				t.counting.Evict(guildID)
			}
		}
	}()
}

func (t *TiltBot) refreshRuntimeConfig(ctx context.Context, force bool) {
	t.cfgMu.Lock()
	defer t.cfgMu.Unlock()

	runtimeConfigTTL := t.config.RuntimeConfigTTL
	rollbackConfig := t.runtimeConfig

	var refreshConfig RuntimeConfig
	if err := t.db.WithContext(ctx).Last(&refreshConfig).Error; err != nil {
		t.logger.Error("error getting runtime config", tint.Err(err))
		return
	}

	lastUpdated := time.Since(time.UnixMilli(refreshConfig.UpdatedAt))
	if force || lastUpdated > runtimeConfigTTL {
		t.logger.Info(
			fmt.Sprintf(
				"runtime config last updated: %s ago, refreshing",
				lastUpdated.String(),
			),
		)
		t.unsafeRefreshRuntimeConfig(rollbackConfig, &refreshConfig)
	} else {
		t.logger.Info("runtime config is up to date, skipping refresh")
	}
}

// unsafeRefreshRuntimeConfig refreshes the runtime configuration without
// locking the config mutex.
func (t *TiltBot) unsafeRefreshRuntimeConfig(
	rollbackConfig *RuntimeConfig,
	refreshConfig *RuntimeConfig,
) {
	if rollbackConfig != nil && t.discord.session != nil {
		switch {
		case refreshConfig.Paused && !rollbackConfig.Paused:
			if discErr := t.discord.updateStatusComplex(
				discordgo.UpdateStatusData{
					AFK:    true,
					Status: string(discordgo.StatusDoNotDisturb),
				},
			); discErr != nil {
				t.logger.Error("error updating discord status", tint.Err(discErr))
			}
		case refreshConfig.CustomStatus != rollbackConfig.CustomStatus:
			if discErr := t.discord.updateCustomStatus(
				refreshConfig.CustomStatus,
			); discErr != nil {
				t.logger.Error("error updating discord status", tint.Err(discErr))
			}
		}
	}

	t.paused.Store(refreshConfig.Paused)
	t.runtimeConfig = refreshConfig
	t.setRuntimeLevels(*refreshConfig)

	t.logger.Info("refreshed runtime config")
}

// setRuntimeLevels sets the logging levels for various components based
// on the provided runtime configuration.
func (t *TiltBot) setRuntimeLevels(state RuntimeConfig) {
	if state.BotLogLevel != "" {
		t.config.LogLevel.Set(state.BotLogLevel.Level())
	}
	if state.DiscordLogLevel != "" {
		t.config.Discord.LogLevel.Set(state.DiscordLogLevel.Level())
	}
	if state.DatabaseLogLevel != "" {
		t.config.DatabaseLogLevel.Set(state.DatabaseLogLevel.Level())
	}
	if state.APILogLevel != "" {
		t.config.API.LogLevel.Set(state.APILogLevel.Level())
	}
}

// Pause stops the schedulers from firing until Resume is called. The
// state is persisted so a restart doesn't silently resume.
func (t *TiltBot) Pause(ctx context.Context) bool {
	prev := t.paused.Swap(true)
	if prev {
		return false
	}
	t.cfgMu.Lock()
	defer t.cfgMu.Unlock()
	if t.runtimeConfig != nil {
		t.runtimeConfig.Paused = true
		if _, err := t.writeDB.Update(
			ctx, t.runtimeConfig, "paused", true,
		); err != nil {
			t.logger.Error("error saving paused state", tint.Err(err))
		}
	}
	return true
}

// Resume reverses Pause
func (t *TiltBot) Resume(ctx context.Context) bool {
	prev := t.paused.Swap(false)
	if !prev {
		return false
	}
	t.cfgMu.Lock()
	defer t.cfgMu.Unlock()
	if t.runtimeConfig != nil {
		t.runtimeConfig.Paused = false
		if _, err := t.writeDB.Update(
			ctx, t.runtimeConfig, "paused", false,
		); err != nil {
			t.logger.Error("error saving paused state", tint.Err(err))
		}
	}
	return true
}

func (t *TiltBot) shutdown(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) error {
	t.logger.WarnContext(ctx, "shutting down")
	defer func() {
		if t.eventShutdown != nil {
			go func() {
				t.eventShutdown <- struct{}{}
			}()
		}
	}()
	shutdownStart := time.Now()
	shutdownTimeout := t.config.ShutdownTimeout
	if shutdownTimeout.Seconds() == 0 {
		t.logger.Warn("immediate shutdown")
		if t.api != nil && t.api.httpServer != nil {
			go func() {
				_ = t.api.httpServer.Close()
			}()
		}
		return fmt.Errorf("shutdown timeout is zero, forced close")
	}
	shutdownDeadline := shutdownStart.Add(shutdownTimeout)

	shutdownTicker := time.NewTicker(10 * time.Second)
	defer shutdownTicker.Stop()

	t.logger.InfoContext(
		ctx,
		"exiting!",
		"shutdown_timeout", shutdownTimeout,
		"shutdown_started", shutdownStart,
		"shutdown_deadline", shutdownDeadline,
	)

	closeCtx, closeCancel := context.WithDeadline(
		context.Background(),
		shutdownDeadline,
	)
	defer closeCancel()

	// best-effort final flush of dirty counting streaks; anything that
	// fails here is accepted as lost
	t.counting.FinalFlush(closeCtx)

	gracefulShutdownCh := make(chan struct{}, 1)
	go func() {
		runtimeWG.Wait() // wait for anything spawned by the main processes
		runtimeStopEnd := time.Now()
		t.logger.InfoContext(
			ctx,
			"finished handling in-flight work",
			"shutdown_started", shutdownStart,
			"runtime_stopped", runtimeStopEnd,
			"runtime_stop_duration", runtimeStopEnd.Sub(shutdownStart),
		)
		stopWG := &sync.WaitGroup{}

		if t.api != nil && t.api.httpServer != nil {
			stopWG.Add(1)
			go func() {
				defer stopWG.Done()
				t.logger.InfoContext(ctx, "stopping http server")
				_ = t.api.httpServer.Shutdown(closeCtx)
				t.logger.InfoContext(ctx, "http server stopped")
			}()
		}

		if t.discord.session != nil {
			stopWG.Add(1)
			go func() {
				defer stopWG.Done()
				t.logger.InfoContext(ctx, "closing discord session")
				_ = t.discord.session.Close()
				t.logger.InfoContext(ctx, "discord session closed")
				if len(t.discord.discordgoRemoveHandlerFuncs) > 0 {
					for _, h := range t.discord.discordgoRemoveHandlerFuncs {
						h()
					}
					t.logger.InfoContext(ctx, "finished removing handlers")
				}
			}()
		}

		go func() {
			t.logger.InfoContext(ctx, "waiting graceful shutdown")
			stopWG.Wait()
			gracefulShutdownCh <- struct{}{}
			t.logger.InfoContext(ctx, "stopped http/discord")
		}()
	}()

	for {
		select {
		case <-gracefulShutdownCh:
			closeCancel()
			shutdownEnded := time.Now()
			t.logger.InfoContext(
				ctx,
				"shutdown complete",
				"shutdown_ended", shutdownEnded,
				"shutdown_duration", shutdownEnded.Sub(shutdownStart),
			)
			return nil
		case <-shutdownTicker.C:
			remaining := time.Until(shutdownDeadline)
			t.logger.Warn(
				fmt.Sprintf(
					"time until hard shutdown: %s",
					remaining.String(),
				),
			)
		case <-closeCtx.Done(): // timed out, force close
			t.logger.Warn("graceful shutdown did not finish in time, forcing close")

			if t.api != nil && t.api.httpServer != nil {
				go func() {
					_ = t.api.httpServer.Close()
				}()
			}

			return fmt.Errorf("graceful shutdown did not finish in time")
		}
	}
}
