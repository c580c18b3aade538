package spacecowbot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB creates a temporary SQLite-backed DBI, migrated and ready
// to use, cleaned up when the test ends.
func newTestDB(t testing.TB) DBI {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite3")
	gormDB, err := CreateDB(context.Background(), dbTypeSQLite, dbPath)
	require.NoError(t, err)

	t.Cleanup(
		func() {
			sqlDB, dbErr := gormDB.DB()
			if dbErr == nil && sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)
	return NewDatabase(gormDB, slog.Default(), false)
}

type sentMessage struct {
	ChannelID string
	Content   string
}

// mockSession implements SessionHandler, recording outgoing traffic.
type mockSession struct {
	mu sync.Mutex

	messages   []sentMessage
	embeds     []*discordgo.MessageEmbed
	roleAdds   []string
	guildRoles []*discordgo.Role

	permissions int64
	users       map[string]*discordgo.User

	nextRoleID int
}

func newMockSession() *mockSession {
	return &mockSession{users: map[string]*discordgo.User{}}
}

func (s *mockSession) Open() error  { return nil }
func (s *mockSession) Close() error { return nil }

func (s *mockSession) AddHandler(any) func() {
	return func() {}
}

func (s *mockSession) UpdateCustomStatus(string) error { return nil }

func (s *mockSession) User(
	userID string,
	_ ...discordgo.RequestOption,
) (*discordgo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("unknown user: %s", userID)
	}
	return user, nil
}

func (s *mockSession) ChannelMessageSend(
	channelID string,
	content string,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{ChannelID: channelID, Content: content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (s *mockSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeds = append(s.embeds, embed)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (s *mockSession) UserChannelCreate(
	recipientID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (s *mockSession) UserChannelPermissions(
	string,
	string,
	...discordgo.RequestOption,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permissions, nil
}

func (s *mockSession) GuildRoles(
	string,
	...discordgo.RequestOption,
) ([]*discordgo.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]*discordgo.Role, len(s.guildRoles))
	copy(roles, s.guildRoles)
	return roles, nil
}

func (s *mockSession) GuildRoleCreate(
	_ string,
	data *discordgo.RoleParams,
	_ ...discordgo.RequestOption,
) (*discordgo.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoleID++
	role := &discordgo.Role{
		ID:   fmt.Sprintf("role-%d", s.nextRoleID),
		Name: data.Name,
	}
	if data.Color != nil {
		role.Color = *data.Color
	}
	s.guildRoles = append(s.guildRoles, role)
	return role, nil
}

func (s *mockSession) GuildMemberRoleAdd(
	_ string,
	userID string,
	roleID string,
	_ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleAdds = append(s.roleAdds, userID+":"+roleID)
	return nil
}

func (s *mockSession) sentMessages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]sentMessage, len(s.messages))
	copy(messages, s.messages)
	return messages
}

func (s *mockSession) sentContains(t testing.TB, substr string) bool {
	t.Helper()
	for _, m := range s.sentMessages() {
		if strings.Contains(m.Content, substr) {
			return true
		}
	}
	return false
}

func (s *mockSession) sentEmbeds() []*discordgo.MessageEmbed {
	s.mu.Lock()
	defer s.mu.Unlock()
	embeds := make([]*discordgo.MessageEmbed, len(s.embeds))
	copy(embeds, s.embeds)
	return embeds
}

// fakeChat implements chatService with canned responses.
type fakeChat struct {
	questions []QuizQuestion
	quizErr   error

	answer    string
	answerErr error

	tip    string
	tipErr error
}

func (f *fakeChat) GenerateQuiz(
	_ context.Context,
	_ string,
	_ int,
) ([]QuizQuestion, error) {
	return f.questions, f.quizErr
}

func (f *fakeChat) Answer(_ context.Context, _ string) (string, error) {
	return f.answer, f.answerErr
}

func (f *fakeChat) MotivationalTip(_ context.Context) (string, error) {
	return f.tip, f.tipErr
}

// newTestBot wires a bot around a mock session and fake chat service,
// with short interactive timeouts.
func newTestBot(t testing.TB, session *mockSession, chat chatService) *SpaceCowBot {
	t.Helper()

	config := DefaultConfig()
	config.Discord.Token = "test-discord-token"
	config.OpenAI.Token = "test-openai-token"
	config.Commands.QuizAnswerTimeout = 5 * time.Second
	config.Commands.ShopReplyTimeout = 5 * time.Second

	logger := slog.Default()
	b := &SpaceCowBot{
		config:     config,
		logger:     logger,
		logHandler: logger.Handler(),
		db:         newTestDB(t),
		discord: &Discord{
			session: session,
			config:  config.Discord,
			logger:  logger,
			waiters: map[replyKey]*replyWaiter{},
		},
		chat:    chat,
		quizzes: newQuizTracker(),
		studyTimer: newStudyTimer(
			config.Commands.StudyStartCooldown,
			config.Commands.StudySessionMaxAge,
		),
		askLimiter: newAskLimiter(config.Commands.AskCooldown),
	}
	b.handlers = b.commandHandlers()
	return b
}

func newMessage(userID string, channelID string, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-1",
			GuildID:   "guild-1",
			ChannelID: channelID,
			Content:   content,
			Author:    &discordgo.User{ID: userID, Username: "tester"},
		},
	}
}

// waitForWaiter blocks until an interactive flow has registered a
// reply waiter for the user and channel.
func waitForWaiter(t testing.TB, d *Discord, userID string, channelID string) {
	t.Helper()
	key := replyKey{userID: userID, channelID: channelID}
	require.Eventually(
		t,
		func() bool {
			d.mu.Lock()
			defer d.mu.Unlock()
			_, ok := d.waiters[key]
			return ok
		},
		5*time.Second,
		5*time.Millisecond,
	)
}

func TestDispatchIgnoresBots(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})

	m := newMessage("111", "chan-1", "!checkpoints")
	m.Author.Bot = true
	bot.handleDiscordMessage(nil, m)
	bot.messageWG.Wait()

	assert.Empty(t, session.sentMessages())
}

func TestDispatchIgnoresUnknownCommands(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})

	bot.handleDiscordMessage(nil, newMessage("111", "chan-1", "!yeehaw"))
	bot.handleDiscordMessage(nil, newMessage("111", "chan-1", "no prefix here"))
	bot.handleDiscordMessage(nil, newMessage("111", "chan-1", "!"))
	bot.messageWG.Wait()

	assert.Empty(t, session.sentMessages())
}

func TestDispatchRunsHandler(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})

	bot.handleDiscordMessage(nil, newMessage("111", "chan-1", "!checkpoints"))
	bot.messageWG.Wait()

	require.Len(t, session.sentMessages(), 1)
	assert.Equal(t, messageNoPointsYet, session.sentMessages()[0].Content)
}

func TestDispatchCaseInsensitiveCommandName(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})

	bot.handleDiscordMessage(nil, newMessage("111", "chan-1", "!CheckPoints"))
	bot.messageWG.Wait()

	require.Len(t, session.sentMessages(), 1)
	assert.Equal(t, messageNoPointsYet, session.sentMessages()[0].Content)
}
