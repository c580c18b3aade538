package spacecowbot

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

const (
	messageNotAdmin       = "🤠 Only the sheriff can do that, partner!"
	messageTipChannelSet  = "🤠 This here channel's now set for daily tips, partner!"
	messageTipChannelFail = "Sorry, there was an error setting the tip channel. Try again later."
	messageTipPlaceholder = "Here's your daily tip, partner!"
)

// handleSetTipChannel stores the current channel as the target for
// automatic daily tips. Admin only.
func (b *SpaceCowBot) handleSetTipChannel(
	ctx context.Context,
	m *discordgo.MessageCreate,
	_ []string,
) error {
	if !b.discord.userIsAdmin(m.Author.ID, m.ChannelID) {
		b.discord.sendMessage(m.ChannelID, messageNotAdmin)
		return nil
	}

	if err := b.db.SetSetting(ctx, SettingDailyTipChannel, m.ChannelID); err != nil {
		log, ok := ContextLogger(ctx)
		if ok && log != nil {
			log.ErrorContext(ctx, "error setting tip channel", "error", err)
		}
		b.discord.sendMessage(m.ChannelID, messageTipChannelFail)
		return nil
	}
	b.discord.sendMessage(m.ChannelID, messageTipChannelSet)
	return nil
}

func (b *SpaceCowBot) handleTip(
	_ context.Context,
	m *discordgo.MessageCreate,
	_ []string,
) error {
	b.discord.sendMessage(m.ChannelID, messageTipPlaceholder)
	return nil
}
