package spacecowbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// ErrReplyTimeout indicates an interactive flow timed out waiting for
// the user's next message.
var ErrReplyTimeout = errors.New("timed out waiting for a reply")

// SessionHandler is the subset of [discordgo.Session] used by the bot.
// It exists so tests can substitute a mock session.
type SessionHandler interface {
	Open() error
	Close() error
	AddHandler(handler any) func()
	UpdateCustomStatus(state string) error
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	ChannelMessageSend(
		channelID string,
		content string,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	UserChannelCreate(
		recipientID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)
	UserChannelPermissions(
		userID string,
		channelID string,
		fetchOptions ...discordgo.RequestOption,
	) (int64, error)
	GuildRoles(
		guildID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Role, error)
	GuildRoleCreate(
		guildID string,
		data *discordgo.RoleParams,
		options ...discordgo.RequestOption,
	) (*discordgo.Role, error)
	GuildMemberRoleAdd(
		guildID string,
		userID string,
		roleID string,
		options ...discordgo.RequestOption,
	) error
}

type replyKey struct {
	userID    string
	channelID string
}

type replyWaiter struct {
	match func(content string) bool
	ch    chan *discordgo.Message
}

// Discord wraps the gateway session, and owns the reply-waiter
// registry used by the interactive shop and quiz flows.
type Discord struct {
	session SessionHandler
	config  *DiscordConfig
	logger  *slog.Logger

	mu      sync.Mutex
	waiters map[replyKey]*replyWaiter
}

func newDiscord(config *DiscordConfig, handler slog.Handler) (*Discord, error) {
	if config == nil {
		return nil, errors.New("nil discord config")
	}
	if handler == nil {
		handler = slog.Default().Handler()
	}
	logger := slog.New(handler).With(loggerNameKey, "discord")

	session, err := discordgo.New(fmt.Sprintf("Bot %s", config.Token))
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	session.Identify.Intents = config.GatewayIntents
	if config.DiscordGoLogLevel != nil {
		switch config.DiscordGoLogLevel.Level() {
		case slog.LevelDebug:
			session.LogLevel = discordgo.LogDebug
		case slog.LevelInfo:
			session.LogLevel = discordgo.LogInformational
		case slog.LevelWarn:
			session.LogLevel = discordgo.LogWarning
		case slog.LevelError:
			session.LogLevel = discordgo.LogError
		}
	}
	discordgo.Logger = discordgoLoggerFunc(context.Background(), handler)

	d := &Discord{
		session: session,
		config:  config,
		logger:  logger,
		waiters: map[replyKey]*replyWaiter{},
	}
	session.AddHandler(d.handlerReady)
	session.AddHandler(d.handlerConnect)
	session.AddHandler(d.handlerDisconnect)
	return d, nil
}

func (d *Discord) handlerReady(_ *discordgo.Session, r *discordgo.Ready) {
	d.logger.Info(
		"discord ready",
		"username", r.User.Username,
		"session_id", r.SessionID,
	)
}

func (d *Discord) handlerConnect(_ *discordgo.Session, _ *discordgo.Connect) {
	d.logger.Info("connected to discord gateway")
	if d.config.CustomStatus != "" {
		if err := d.session.UpdateCustomStatus(d.config.CustomStatus); err != nil {
			d.logger.Warn("error setting custom status", tint.Err(err))
		}
	}
}

func (d *Discord) handlerDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	d.logger.Warn("disconnected from discord gateway")
}

// AwaitReply blocks until the given user sends a message in the given
// channel whose content satisfies match (nil matches anything), the
// timeout elapses, or ctx is canceled. Only one waiter per
// (user, channel) pair is active at a time; a new call replaces any
// existing waiter.
func (d *Discord) AwaitReply(
	ctx context.Context,
	userID string,
	channelID string,
	timeout time.Duration,
	match func(content string) bool,
) (*discordgo.Message, error) {
	key := replyKey{userID: userID, channelID: channelID}
	waiter := &replyWaiter{
		match: match,
		ch:    make(chan *discordgo.Message, 1),
	}

	d.mu.Lock()
	d.waiters[key] = waiter
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.waiters[key] == waiter {
			delete(d.waiters, key)
		}
		d.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-waiter.ch:
		return m, nil
	case <-timer.C:
		return nil, ErrReplyTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// offerMessage hands an incoming message to a registered reply waiter.
// It reports true when the message was consumed by a waiter, in which
// case it must not be dispatched as a command. Messages that don't
// satisfy the waiter's match func are left for normal dispatch and the
// wait continues.
func (d *Discord) offerMessage(m *discordgo.MessageCreate) bool {
	if m.Author == nil {
		return false
	}
	key := replyKey{userID: m.Author.ID, channelID: m.ChannelID}

	d.mu.Lock()
	waiter, ok := d.waiters[key]
	if !ok {
		d.mu.Unlock()
		return false
	}
	if waiter.match != nil && !waiter.match(m.Content) {
		d.mu.Unlock()
		return false
	}
	delete(d.waiters, key)
	d.mu.Unlock()

	waiter.ch <- m.Message
	return true
}

func (d *Discord) sendMessage(channelID string, content string) {
	if _, err := d.session.ChannelMessageSend(channelID, content); err != nil {
		d.logger.Error(
			"error sending message",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
}

func (d *Discord) sendEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := d.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		d.logger.Error(
			"error sending embed",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
}

// directMessage sends content to the user's DM channel.
func (d *Discord) directMessage(userID string, content string) error {
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("error creating DM channel: %w", err)
	}
	if _, err = d.session.ChannelMessageSend(channel.ID, content); err != nil {
		return fmt.Errorf("error sending DM: %w", err)
	}
	return nil
}

// userIsAdmin reports whether the user has administrator permissions
// in the given channel.
func (d *Discord) userIsAdmin(userID string, channelID string) bool {
	perms, err := d.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		d.logger.Warn(
			"error checking permissions",
			tint.Err(err),
			"user_id", userID,
			"channel_id", channelID,
		)
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// findRole returns the first role in the guild with the given name.
func (d *Discord) findRole(guildID string, name string) (*discordgo.Role, error) {
	roles, err := d.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("error listing guild roles: %w", err)
	}
	for _, role := range roles {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, nil
}

// ensureRole returns the guild role with the given name, creating it
// with the given color if it doesn't exist yet.
func (d *Discord) ensureRole(
	guildID string,
	name string,
	color int,
) (*discordgo.Role, error) {
	role, err := d.findRole(guildID, name)
	if err != nil {
		return nil, err
	}
	if role != nil {
		return role, nil
	}
	role, err = d.session.GuildRoleCreate(
		guildID,
		&discordgo.RoleParams{Name: name, Color: &color},
	)
	if err != nil {
		return nil, fmt.Errorf("error creating role %q: %w", name, err)
	}
	return role, nil
}

func (d *Discord) assignRole(guildID string, userID string, roleID string) error {
	if err := d.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return fmt.Errorf("error assigning role: %w", err)
	}
	return nil
}

// resolveUsername returns the user's current Discord username, or
// "Unknown User" when the account can't be fetched.
func (d *Discord) resolveUsername(userID string) string {
	user, err := d.session.User(userID)
	if err != nil || user == nil {
		d.logger.Debug(
			"could not resolve user",
			"user_id", userID,
			tint.Err(err),
		)
		return unknownUserPlaceholder
	}
	return user.Username
}

const unknownUserPlaceholder = "Unknown User"
