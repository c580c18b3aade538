package spacecowbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

func init() {
	structValidator.SetTagName("binding")
}

// SpaceCowBot ties the configuration, database, Discord gateway,
// completion API client and status API together.
type SpaceCowBot struct {
	config     *Config
	logger     *slog.Logger
	logHandler slog.Handler

	db         DBI
	discord    *Discord
	chat       chatService
	api        *API
	dailyTip   *dailyTipScheduler
	handlers   map[string]commandHandler
	quizzes    *quizTracker
	studyTimer *studyTimer
	askLimiter *askLimiter

	messageWG sync.WaitGroup
	runMu     sync.Mutex
}

// New validates the config and wires up the bot's components. The
// database and gateway connections are opened by [SpaceCowBot.Run].
func New(config *Config) (*SpaceCowBot, error) {
	if config == nil {
		return nil, errors.New("nil config")
	}
	if err := structValidator.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logHandler := tint.NewHandler(
		os.Stdout,
		&tint.Options{
			Level:     config.LogLevel,
			AddSource: true,
		},
	)
	logger := slog.New(logHandler).With(loggerNameKey, "spacecowbot")
	slog.SetDefault(logger)

	discord, err := newDiscord(config.Discord, logHandler)
	if err != nil {
		return nil, err
	}

	b := &SpaceCowBot{
		config:     config,
		logger:     logger,
		logHandler: logHandler,
		discord:    discord,
		chat:       newOpenAI(config.OpenAI, logHandler),
		quizzes:    newQuizTracker(),
		studyTimer: newStudyTimer(
			config.Commands.StudyStartCooldown,
			config.Commands.StudySessionMaxAge,
		),
		askLimiter: newAskLimiter(config.Commands.AskCooldown),
	}
	b.handlers = b.commandHandlers()
	return b, nil
}

// Run opens the database and the Discord gateway, starts the status
// API and the daily tip scheduler, and blocks until ctx is canceled,
// then shuts down gracefully within the configured timeout.
func (b *SpaceCowBot) Run(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	startupCtx, startupCancel := context.WithTimeout(ctx, b.config.StartupTimeout)
	defer startupCancel()

	gormDB, err := CreateDB(startupCtx, b.config.DatabaseType, b.config.Database)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	b.db = NewDatabase(
		gormDB,
		b.logger,
		b.config.DatabaseType != dbTypeSQLite,
	)
	b.api = newAPI(b.config.API, b.db, b.logHandler)
	b.dailyTip = newDailyTipScheduler(
		b.db,
		b.chat,
		b.discord.session,
		b.config.Commands.DailyTipInterval,
		b.logger,
	)

	removeHandler := b.discord.session.AddHandler(b.handleDiscordMessage)
	defer removeHandler()

	if err = b.discord.session.Open(); err != nil {
		return fmt.Errorf("error opening discord gateway: %w", err)
	}
	b.logger.Info("bot started", "config", b.config)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if serveErr := b.api.Serve(runCtx); serveErr != nil {
			b.logger.Error("api server error", tint.Err(serveErr))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.dailyTip.Run(runCtx)
	}()

	<-ctx.Done()
	b.logger.Info("shutting down")
	return b.shutdown(&wg, gormDB)
}

// shutdown closes the gateway, waits for in-flight command handlers
// and background workers, and closes the database, all bounded by the
// configured shutdown timeout.
func (b *SpaceCowBot) shutdown(wg *sync.WaitGroup, gormDB *gorm.DB) error {
	deadline := time.Now().Add(b.config.ShutdownTimeout)

	if err := b.discord.session.Close(); err != nil {
		b.logger.Error("error closing discord session", tint.Err(err))
	}

	done := make(chan struct{})
	go func() {
		b.messageWG.Wait()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("shutdown complete")
	case <-time.After(time.Until(deadline)):
		b.logger.Warn("shutdown deadline passed, exiting anyway")
	}

	if sqlDB, err := gormDB.DB(); err == nil && sqlDB != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			b.logger.Error("error closing database", tint.Err(closeErr))
		}
	}
	return nil
}
