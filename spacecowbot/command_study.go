package spacecowbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	messageStudyCooldown = "🤠 Hold your horses, partner! You can only start a new study session once every minute."
	messageStudyRunning  = "The study timer is already running!"
	messageStudyStopped  = "No timer is running."
	messageStudyNotOwner = "You can't stop someone else's study timer."
	messageStudyExpired  = "Your study session automatically timed out after 1 hour."
)

var (
	// ErrStudyCooldown indicates the user started a session too recently.
	ErrStudyCooldown = errors.New("study start cooldown active")

	// ErrStudyRunning indicates the single timer slot is occupied.
	ErrStudyRunning = errors.New("study timer already running")

	// ErrNoStudySession indicates there is no session to stop.
	ErrNoStudySession = errors.New("no study session running")

	// ErrNotSessionOwner indicates someone else owns the running session.
	ErrNotSessionOwner = errors.New("study session owned by another user")

	// ErrStudyExpired indicates the session outlived the maximum age
	// and was discarded without credit.
	ErrStudyExpired = errors.New("study session expired")
)

// studyTimer owns the single global study session slot and the
// per-user start cooldowns. All state lives behind its mutex; nothing
// else mutates it.
type studyTimer struct {
	mu           sync.Mutex
	activeUserID string
	startedAt    time.Time
	lastStart    map[string]time.Time

	startCooldown time.Duration
	maxAge        time.Duration
	clock         func() time.Time
}

func newStudyTimer(startCooldown time.Duration, maxAge time.Duration) *studyTimer {
	return &studyTimer{
		lastStart:     map[string]time.Time{},
		startCooldown: startCooldown,
		maxAge:        maxAge,
		clock:         time.Now,
	}
}

// Start claims the timer slot for the user. The start cooldown is
// recorded even when the slot turns out to be occupied, matching the
// one-attempt-per-minute behavior users expect.
func (t *studyTimer) Start(userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	if last, ok := t.lastStart[userID]; ok && now.Sub(last) < t.startCooldown {
		return ErrStudyCooldown
	}
	t.lastStart[userID] = now

	if t.activeUserID != "" {
		return ErrStudyRunning
	}
	t.activeUserID = userID
	t.startedAt = now
	return nil
}

// Stop releases the slot and returns the elapsed session time. Expired
// sessions release the slot but return ErrStudyExpired so no points
// are credited.
func (t *studyTimer) Stop(userID string) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activeUserID == "" {
		return 0, ErrNoStudySession
	}
	if t.activeUserID != userID {
		return 0, ErrNotSessionOwner
	}

	elapsed := t.clock().Sub(t.startedAt)
	t.activeUserID = ""
	t.startedAt = time.Time{}

	if elapsed > t.maxAge {
		return elapsed, ErrStudyExpired
	}
	return elapsed, nil
}

// handleStartStudy claims the study timer and reports the user's
// current balance.
func (b *SpaceCowBot) handleStartStudy(
	ctx context.Context,
	m *discordgo.MessageCreate,
	_ []string,
) error {
	switch err := b.studyTimer.Start(m.Author.ID); {
	case errors.Is(err, ErrStudyCooldown):
		b.discord.sendMessage(m.ChannelID, messageStudyCooldown)
		return nil
	case errors.Is(err, ErrStudyRunning):
		b.discord.sendMessage(m.ChannelID, messageStudyRunning)
		return nil
	case err != nil:
		return err
	}

	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid author ID %q: %w", m.Author.ID, err)
	}
	points, _, err := b.db.UserPoints(ctx, userID)
	if err != nil {
		return err
	}

	b.discord.sendMessage(
		m.ChannelID,
		fmt.Sprintf(
			"🤠 You currently have %d points. Let's start studying, partner!",
			points,
		),
	)
	return nil
}

// handleStopStudy ends the caller's session and credits one point per
// whole minute studied.
func (b *SpaceCowBot) handleStopStudy(
	ctx context.Context,
	m *discordgo.MessageCreate,
	_ []string,
) error {
	elapsed, err := b.studyTimer.Stop(m.Author.ID)
	switch {
	case errors.Is(err, ErrNoStudySession):
		b.discord.sendMessage(m.ChannelID, messageStudyStopped)
		return nil
	case errors.Is(err, ErrNotSessionOwner):
		b.discord.sendMessage(m.ChannelID, messageStudyNotOwner)
		return nil
	case errors.Is(err, ErrStudyExpired):
		b.discord.sendMessage(m.ChannelID, messageStudyExpired)
		return nil
	case err != nil:
		return err
	}

	minutes := int64(elapsed / time.Minute)
	points := minutes

	if points > 0 {
		userID, parseErr := strconv.ParseInt(m.Author.ID, 10, 64)
		if parseErr != nil {
			return fmt.Errorf("invalid author ID %q: %w", m.Author.ID, parseErr)
		}
		if err = b.db.CreditPoints(ctx, userID, points); err != nil {
			return err
		}
	}

	b.discord.sendMessage(
		m.ChannelID,
		fmt.Sprintf(
			"<@%s>, you studied for %d minutes and earned %d points!",
			m.Author.ID, minutes, points,
		),
	)
	return nil
}
