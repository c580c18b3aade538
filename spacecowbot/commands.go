package spacecowbot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	CommandAddPoints     = "addpoints"
	CommandCheckPoints   = "checkpoints"
	CommandLeaderboard   = "leaderboard"
	CommandSetTipChannel = "settipchannel"
	CommandTip           = "tip"
	CommandShop          = "shop"
	CommandQuiz          = "quiz"
	CommandAsk           = "ask"
	CommandStartStudy    = "startstudy"
	CommandStopStudy     = "stopstudy"
)

const messageSomethingWentWrong = "🤠 Something went wrong, partner! Try again later."

// commandHandler handles a single prefix command. Any error returned
// is logged and answered with a generic message; user-facing outcomes
// (bad input, timeouts, insufficient points) are reported by the
// handler itself and return nil.
type commandHandler func(
	ctx context.Context,
	m *discordgo.MessageCreate,
	args []string,
) error

func (b *SpaceCowBot) commandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		CommandAddPoints:     b.handleAddPoints,
		CommandCheckPoints:   b.handleCheckPoints,
		CommandLeaderboard:   b.handleLeaderboard,
		CommandSetTipChannel: b.handleSetTipChannel,
		CommandTip:           b.handleTip,
		CommandShop:          b.handleShop,
		CommandQuiz:          b.handleQuiz,
		CommandAsk:           b.handleAsk,
		CommandStartStudy:    b.handleStartStudy,
		CommandStopStudy:     b.handleStopStudy,
	}
}

// handleDiscordMessage is the MessageCreate entrypoint. Messages from
// bots are ignored; messages a reply waiter is blocked on are consumed
// by that waiter; everything else starting with the command prefix is
// dispatched to its handler in a new goroutine, since interactive
// handlers block on further replies.
func (b *SpaceCowBot) handleDiscordMessage(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	if b.discord.offerMessage(m) {
		return
	}

	prefix := b.config.Discord.CommandPrefix
	if !strings.HasPrefix(m.Content, prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(fields) == 0 {
		return
	}

	name := strings.ToLower(fields[0])
	handler, ok := b.handlers[name]
	if !ok {
		return
	}
	args := fields[1:]

	logger := b.logger.With(
		"command", name,
		"user_id", m.Author.ID,
		"channel_id", m.ChannelID,
	)
	logger.Info("dispatching command")

	b.messageWG.Add(1)
	go func() {
		defer b.messageWG.Done()
		ctx := WithLogger(context.Background(), logger)
		if err := handler(ctx, m, args); err != nil {
			logger.Error("command failed", tint.Err(err))
			b.discord.sendMessage(m.ChannelID, messageSomethingWentWrong)
		}
	}()
}
