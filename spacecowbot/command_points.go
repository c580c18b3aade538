package spacecowbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

const (
	messageAddPointsUsage    = "🤠 Usage: %saddpoints @user <amount>"
	messageInvalidAmount     = "🤠 Hold up, partner! Make sure you're providing a valid number for points!"
	messageNonPositivePoints = "🤠 You gotta add positive points, partner!"
	messageNoPointsYet       = "🤠 Looks like you ain't got no points yet, partner!"
)

// handleAddPoints credits points to the mentioned user.
func (b *SpaceCowBot) handleAddPoints(
	ctx context.Context,
	m *discordgo.MessageCreate,
	args []string,
) error {
	if len(args) < 2 {
		b.discord.sendMessage(
			m.ChannelID,
			fmt.Sprintf(messageAddPointsUsage, b.config.Discord.CommandPrefix),
		)
		return nil
	}

	targetID, err := parseUserMention(args[0])
	if err != nil {
		b.discord.sendMessage(
			m.ChannelID,
			fmt.Sprintf(messageAddPointsUsage, b.config.Discord.CommandPrefix),
		)
		return nil
	}

	points, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		b.discord.sendMessage(m.ChannelID, messageInvalidAmount)
		return nil
	}
	if points <= 0 {
		b.discord.sendMessage(m.ChannelID, messageNonPositivePoints)
		return nil
	}

	if err = b.db.CreditPoints(ctx, targetID, points); err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			b.discord.sendMessage(m.ChannelID, messageNonPositivePoints)
			return nil
		}
		return err
	}

	username := b.discord.resolveUsername(strconv.FormatInt(targetID, 10))
	b.discord.sendMessage(
		m.ChannelID,
		fmt.Sprintf("🤠 Added %d points to user %s (%d).", points, username, targetID),
	)
	return nil
}

// handleCheckPoints reports the caller's current balance.
func (b *SpaceCowBot) handleCheckPoints(
	ctx context.Context,
	m *discordgo.MessageCreate,
	_ []string,
) error {
	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid author ID %q: %w", m.Author.ID, err)
	}

	points, found, err := b.db.UserPoints(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		b.discord.sendMessage(m.ChannelID, messageNoPointsYet)
		return nil
	}
	b.discord.sendMessage(
		m.ChannelID,
		fmt.Sprintf("🤠 You currently have %d points, partner!", points),
	)
	return nil
}
