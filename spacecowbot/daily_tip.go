package spacecowbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

const fallbackMotivationalTip = "Couldn't rustle up a tip right now, partner. Try again later."

// dailyTipScheduler periodically posts a generated motivational tip to
// the channel stored under SettingDailyTipChannel. When no channel has
// been configured, ticks are skipped silently.
type dailyTipScheduler struct {
	db       DBI
	chat     chatService
	session  SessionHandler
	interval time.Duration
	logger   *slog.Logger
}

func newDailyTipScheduler(
	db DBI,
	chat chatService,
	session SessionHandler,
	interval time.Duration,
	logger *slog.Logger,
) *dailyTipScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &dailyTipScheduler{
		db:       db,
		chat:     chat,
		session:  session,
		interval: interval,
		logger:   logger.With(loggerNameKey, "daily_tip"),
	}
}

// Run blocks until ctx is canceled, posting one tip per interval.
func (s *dailyTipScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("daily tip scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("daily tip scheduler stopped")
			return
		case <-ticker.C:
			s.sendTip(ctx)
		}
	}
}

func (s *dailyTipScheduler) sendTip(ctx context.Context) {
	channelID, found, err := s.db.GetSetting(ctx, SettingDailyTipChannel)
	if err != nil {
		s.logger.ErrorContext(ctx, "error reading tip channel", tint.Err(err))
		return
	}
	if !found || channelID == "" {
		s.logger.Debug("no tip channel configured, skipping")
		return
	}

	tip, err := s.chat.MotivationalTip(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "error generating tip", tint.Err(err))
		tip = fallbackMotivationalTip
	}

	if _, err = s.session.ChannelMessageSend(channelID, tip); err != nil {
		s.logger.ErrorContext(
			ctx,
			"error sending daily tip",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
}
