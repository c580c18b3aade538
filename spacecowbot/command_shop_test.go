package spacecowbot

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleShopPurchase(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	require.NoError(t, bot.db.CreditPoints(ctx, 111, 100))

	m := newMessage("111", "chan-1", "!shop")
	done := make(chan error, 1)
	go func() {
		done <- bot.handleShop(ctx, m, nil)
	}()

	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "3")))
	require.NoError(t, <-done)

	// Unlock Animated Emoji costs 75
	points, _, err := bot.db.UserPoints(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, int64(25), points)

	assert.True(t, session.sentContains(t, "You've spent 75 points on **Unlock Animated Emoji**!"))

	// Reward DM goes to the user's DM channel
	var dm *sentMessage
	messages := session.sentMessages()
	for i := range messages {
		if messages[i].ChannelID == "dm-111" {
			dm = &messages[i]
			break
		}
	}
	require.NotNil(t, dm)
	assert.Contains(t, dm.Content, "unlocked the animated emoji")
}

func TestHandleShopInsufficientPoints(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	require.NoError(t, bot.db.CreditPoints(ctx, 111, 10))

	m := newMessage("111", "chan-1", "!shop")
	done := make(chan error, 1)
	go func() {
		done <- bot.handleShop(ctx, m, nil)
	}()

	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "1")))
	require.NoError(t, <-done)

	assert.True(t, session.sentContains(t, messageShopTooPoor))

	points, _, err := bot.db.UserPoints(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, int64(10), points)
}

func TestHandleShopInvalidChoice(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	require.NoError(t, bot.db.CreditPoints(ctx, 111, 500))

	m := newMessage("111", "chan-1", "!shop")
	done := make(chan error, 1)
	go func() {
		done <- bot.handleShop(ctx, m, nil)
	}()

	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "9")))
	require.NoError(t, <-done)

	assert.True(t, session.sentContains(t, messageShopBadItem))

	points, _, err := bot.db.UserPoints(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, int64(500), points)
}

func TestHandleShopTimeout(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	bot.config.Commands.ShopReplyTimeout = 50 * time.Millisecond

	err := bot.handleShop(
		context.Background(),
		newMessage("111", "chan-1", "!shop"),
		nil,
	)
	require.NoError(t, err)
	assert.True(t, session.sentContains(t, messageShopTimeout))
}

func TestHandleShopNicknameColor(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	require.NoError(t, bot.db.CreditPoints(ctx, 111, 60))

	m := newMessage("111", "chan-1", "!shop")
	done := make(chan error, 1)
	go func() {
		done <- bot.handleShop(ctx, m, nil)
	}()

	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "1")))

	// Color selection uses a second reply waiter
	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "Tomato")))
	require.NoError(t, <-done)

	points, _, err := bot.db.UserPoints(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, int64(10), points)

	roles, err := session.GuildRoles("guild-1")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "Color-Tomato", roles[0].Name)
	assert.Equal(t, 0xff6347, roles[0].Color)

	session.mu.Lock()
	roleAdds := session.roleAdds
	session.mu.Unlock()
	require.Len(t, roleAdds, 1)
	assert.Equal(t, "111:"+roles[0].ID, roleAdds[0])
}

func TestHandleShopNicknameColorInvalidName(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	require.NoError(t, bot.db.CreditPoints(ctx, 111, 60))

	m := newMessage("111", "chan-1", "!shop")
	done := make(chan error, 1)
	go func() {
		done <- bot.handleShop(ctx, m, nil)
	}()

	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "1")))

	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "Chartreuse")))
	require.NoError(t, <-done)

	assert.True(t, session.sentContains(t, messageShopBadColor))

	// Points stay spent; no role is created
	points, _, err := bot.db.UserPoints(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, int64(10), points)

	roles, err := session.GuildRoles("guild-1")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestHandleShopSpecialRoleMissing(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	require.NoError(t, bot.db.CreditPoints(ctx, 111, 150))

	m := newMessage("111", "chan-1", "!shop")
	done := make(chan error, 1)
	go func() {
		done <- bot.handleShop(ctx, m, nil)
	}()

	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "2")))
	require.NoError(t, <-done)

	assert.True(t, session.sentContains(t, "doesn't exist on this server"))
}

func TestHandleShopSpecialRoleAssigned(t *testing.T) {
	session := newMockSession()
	session.guildRoles = []*discordgo.Role{{ID: "role-special", Name: specialRoleName}}
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	require.NoError(t, bot.db.CreditPoints(ctx, 111, 150))

	m := newMessage("111", "chan-1", "!shop")
	done := make(chan error, 1)
	go func() {
		done <- bot.handleShop(ctx, m, nil)
	}()

	waitForWaiter(t, bot.discord, "111", "chan-1")
	require.True(t, bot.discord.offerMessage(newMessage("111", "chan-1", "2")))
	require.NoError(t, <-done)

	session.mu.Lock()
	roleAdds := session.roleAdds
	session.mu.Unlock()
	require.Len(t, roleAdds, 1)
	assert.Equal(t, "111:role-special", roleAdds[0])

	points, _, err := bot.db.UserPoints(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, int64(50), points)
}

func TestHandleShopMenuEmbed(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	bot.config.Commands.ShopReplyTimeout = 50 * time.Millisecond

	err := bot.handleShop(
		context.Background(),
		newMessage("111", "chan-1", "!shop"),
		nil,
	)
	require.NoError(t, err)

	embeds := session.sentEmbeds()
	require.Len(t, embeds, 1)
	assert.Equal(t, "SpaceCowBot Shop", embeds[0].Title)
	require.Len(t, embeds[0].Fields, len(shopItems))
	assert.Equal(t, "1. Change Nickname Color", embeds[0].Fields[0].Name)
	assert.Equal(t, "Price: 50 points", embeds[0].Fields[0].Value)
}
