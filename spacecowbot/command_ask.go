package spacecowbot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	messageAskEmpty    = "🤠 Ain't no question here, partner. Please ask me somethin'!"
	messageAskCooldown = "🤠 Slow down, partner! You can ask again in a few seconds."
	messageAskFailed   = "🤠 Something went wrong with the space-time continuum... try again later."
)

// askLimiter enforces the per-user cooldown between `ask` commands.
type askLimiter struct {
	mu        sync.Mutex
	lastAsked map[string]time.Time
	cooldown  time.Duration
	clock     func() time.Time
}

func newAskLimiter(cooldown time.Duration) *askLimiter {
	return &askLimiter{
		lastAsked: map[string]time.Time{},
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether the user may ask now, recording the attempt
// when allowed.
func (a *askLimiter) Allow(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock()
	if last, ok := a.lastAsked[userID]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastAsked[userID] = now
	return true
}

// handleAsk answers a free-form question in space cowboy style.
func (b *SpaceCowBot) handleAsk(
	ctx context.Context,
	m *discordgo.MessageCreate,
	args []string,
) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		b.discord.sendMessage(m.ChannelID, messageAskEmpty)
		return nil
	}

	if !b.askLimiter.Allow(m.Author.ID) {
		b.discord.sendMessage(m.ChannelID, messageAskCooldown)
		return nil
	}

	answer, err := b.chat.Answer(ctx, question)
	if err != nil {
		log, ok := ContextLogger(ctx)
		if !ok || log == nil {
			log = b.logger
		}
		log.ErrorContext(ctx, "error fetching answer", tint.Err(err))
		b.discord.sendMessage(m.ChannelID, messageAskFailed)
		return nil
	}

	b.discord.sendMessage(
		m.ChannelID,
		truncate(answer, discordMaxMessageLength),
	)
	return nil
}
