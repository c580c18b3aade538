package spacecowbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	shopEmbedColor      = 0x2ECC71
	colorRolePrefix     = "Color-"
	specialRoleName     = "Special Role"
	messageShopPrompt   = "🤠 Pick an item by typing the corresponding number."
	messageShopTimeout  = "🤠 You took too long to make a choice, partner!"
	messageShopBadItem  = "🤠 That's not a valid choice, partner!"
	messageShopTooPoor  = "🤠 You don't have enough points for this item!"
	messageShopBadColor = "🤠 That's not a valid color name! Please choose from the list."
)

type shopItem struct {
	Name  string
	Price int64
}

var shopItems = []shopItem{
	{Name: "Change Nickname Color", Price: 50},
	{Name: "Assign Special Role", Price: 100},
	{Name: "Unlock Animated Emoji", Price: 75},
	{Name: "XP Boost", Price: 150},
}

// nicknameColorNames is the menu order; nicknameColors maps names to
// role colors.
var (
	nicknameColorNames = []string{
		"Tomato",
		"OrangeRed",
		"LimeGreen",
		"SteelBlue",
		"BlueViolet",
	}
	nicknameColors = map[string]int{
		"Tomato":     0xff6347,
		"OrangeRed":  0xff4500,
		"LimeGreen":  0x32cd32,
		"SteelBlue":  0x4682b4,
		"BlueViolet": 0x8a2be2,
	}
)

// handleShop runs the interactive purchase flow: show the menu, wait
// for a numeric choice, check and debit the balance, then apply the
// reward. Points already debited are not refunded if a reward's
// follow-up input is invalid.
func (b *SpaceCowBot) handleShop(
	ctx context.Context,
	m *discordgo.MessageCreate,
	_ []string,
) error {
	embed := &discordgo.MessageEmbed{
		Title:       "SpaceCowBot Shop",
		Description: "Choose an item and spend points!",
		Color:       shopEmbedColor,
	}
	for i, item := range shopItems {
		embed.Fields = append(
			embed.Fields,
			&discordgo.MessageEmbedField{
				Name:   fmt.Sprintf("%d. %s", i+1, item.Name),
				Value:  fmt.Sprintf("Price: %d points", item.Price),
				Inline: false,
			},
		)
	}
	b.discord.sendEmbed(m.ChannelID, embed)
	b.discord.sendMessage(m.ChannelID, messageShopPrompt)

	reply, err := b.discord.AwaitReply(
		ctx,
		m.Author.ID,
		m.ChannelID,
		b.config.Commands.ShopReplyTimeout,
		isDigits,
	)
	if err != nil {
		if errors.Is(err, ErrReplyTimeout) {
			b.discord.sendMessage(m.ChannelID, messageShopTimeout)
			return nil
		}
		return err
	}

	choice, err := strconv.Atoi(reply.Content)
	if err != nil || choice < 1 || choice > len(shopItems) {
		b.discord.sendMessage(m.ChannelID, messageShopBadItem)
		return nil
	}
	item := shopItems[choice-1]

	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid author ID %q: %w", m.Author.ID, err)
	}

	points, found, err := b.db.UserPoints(ctx, userID)
	if err != nil {
		return err
	}
	if !found || points < item.Price {
		b.discord.sendMessage(m.ChannelID, messageShopTooPoor)
		return nil
	}

	// The balance may have changed since the check above; the
	// conditional debit still refuses to go negative.
	if err = b.db.DebitPoints(ctx, userID, item.Price); err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			b.discord.sendMessage(m.ChannelID, messageShopTooPoor)
			return nil
		}
		return err
	}

	if err = b.applyShopReward(ctx, m, item); err != nil {
		return err
	}

	b.discord.sendMessage(
		m.ChannelID,
		fmt.Sprintf("🤠 You've spent %d points on **%s**!", item.Price, item.Name),
	)
	return nil
}

func (b *SpaceCowBot) applyShopReward(
	ctx context.Context,
	m *discordgo.MessageCreate,
	item shopItem,
) error {
	switch item.Name {
	case "Change Nickname Color":
		return b.rewardNicknameColor(ctx, m)
	case "Assign Special Role":
		return b.rewardSpecialRole(m)
	case "Unlock Animated Emoji":
		return b.discord.directMessage(
			m.Author.ID,
			"🎉 You've unlocked the animated emoji! Enjoy using it!",
		)
	case "XP Boost":
		return b.discord.directMessage(
			m.Author.ID,
			"⚡ You've activated an XP boost! Your XP gain is doubled for the next hour!",
		)
	default:
		return fmt.Errorf("unknown shop item %q", item.Name)
	}
}

// rewardNicknameColor asks for a color choice, then creates and
// assigns the matching "Color-<Name>" role.
func (b *SpaceCowBot) rewardNicknameColor(
	ctx context.Context,
	m *discordgo.MessageCreate,
) error {
	b.discord.sendMessage(
		m.ChannelID,
		"🤠 You can choose a color for your nickname! Here's a list of options:",
	)
	b.discord.sendMessage(
		m.ChannelID,
		fmt.Sprintf(
			"Available colors:\n%s\n\nOr type the color name directly (e.g., Tomato).",
			strings.Join(nicknameColorNames, "\n"),
		),
	)

	reply, err := b.discord.AwaitReply(
		ctx,
		m.Author.ID,
		m.ChannelID,
		b.config.Commands.ShopReplyTimeout,
		nil,
	)
	if err != nil {
		if errors.Is(err, ErrReplyTimeout) {
			b.discord.sendMessage(m.ChannelID, messageShopTimeout)
			return nil
		}
		return err
	}

	selected := strings.TrimSpace(reply.Content)
	color, ok := nicknameColors[selected]
	if !ok {
		b.discord.sendMessage(m.ChannelID, messageShopBadColor)
		return nil
	}

	role, err := b.discord.ensureRole(m.GuildID, colorRolePrefix+selected, color)
	if err != nil {
		return err
	}
	if err = b.discord.assignRole(m.GuildID, m.Author.ID, role.ID); err != nil {
		return err
	}

	if err = b.discord.directMessage(
		m.Author.ID,
		fmt.Sprintf(
			"🌈 Your nickname color has been changed to %s (#%06x)!",
			selected, color,
		),
	); err != nil {
		log, hasLog := ContextLogger(ctx)
		if hasLog && log != nil {
			log.WarnContext(ctx, "could not DM color confirmation", tint.Err(err))
		}
	}
	return nil
}

// rewardSpecialRole assigns the preexisting special role, which must
// already exist on the server.
func (b *SpaceCowBot) rewardSpecialRole(m *discordgo.MessageCreate) error {
	role, err := b.discord.findRole(m.GuildID, specialRoleName)
	if err != nil {
		return err
	}
	if role == nil {
		return b.discord.directMessage(
			m.Author.ID,
			fmt.Sprintf(
				"🚫 Sorry, the '%s' role doesn't exist on this server.",
				specialRoleName,
			),
		)
	}
	if err = b.discord.assignRole(m.GuildID, m.Author.ID, role.ID); err != nil {
		return err
	}
	return b.discord.directMessage(
		m.Author.ID,
		fmt.Sprintf("🌟 You've been assigned the '%s' role!", specialRoleName),
	)
}
