package spacecowbot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

const (
	leaderboardSize       = 10
	leaderboardEmbedColor = 0xFFD700
)

// handleLeaderboard shows the top study point earners. Users that
// can't be resolved anymore (deleted accounts, users who left) are
// listed under a placeholder name rather than dropped.
func (b *SpaceCowBot) handleLeaderboard(
	ctx context.Context,
	m *discordgo.MessageCreate,
	_ []string,
) error {
	balances, err := b.db.TopBalances(ctx, leaderboardSize)
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		b.discord.sendMessage(m.ChannelID, "No study points have been earned yet!")
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🏆 Study Leaderboard",
		Description: fmt.Sprintf("Here are the top %d study point earners:", leaderboardSize),
		Color:       leaderboardEmbedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Keep studying hard to climb the leaderboard!",
		},
	}
	for i, balance := range balances {
		username := b.discord.resolveUsername(
			strconv.FormatInt(balance.UserID, 10),
		)
		embed.Fields = append(
			embed.Fields,
			&discordgo.MessageEmbedField{
				Name:   fmt.Sprintf("%d. %s", i+1, username),
				Value:  fmt.Sprintf("%d points", balance.Points),
				Inline: false,
			},
		)
	}
	b.discord.sendEmbed(m.ChannelID, embed)
	return nil
}
