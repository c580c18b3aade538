package spacecowbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	quizEmbedColor      = 0x2ECC71
	quizFinalEmbedColor = 0x3498DB

	messageQuizActive      = "You already have an ongoing quiz! Finish that one first."
	messageQuizNoTopic     = "🤠 Give me a topic to quiz you on, partner!"
	messageQuizUnavailable = "Sorry, I couldn't generate a quiz. Try again later."
	messageQuizSaveFailed  = "Sorry, there was an error saving your quiz points. Try again later."
)

// ErrQuizActive indicates the user already has a quiz in progress.
var ErrQuizActive = errors.New("quiz already in progress")

// quizTracker marks users with an active quiz so a second one can't
// be started mid-flow.
type quizTracker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newQuizTracker() *quizTracker {
	return &quizTracker{active: map[string]struct{}{}}
}

func (q *quizTracker) Begin(userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.active[userID]; ok {
		return ErrQuizActive
	}
	q.active[userID] = struct{}{}
	return nil
}

func (q *quizTracker) End(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, userID)
}

// handleQuiz runs the interactive quiz flow: generate questions for
// the requested topic, ask them one at a time with a per-question
// timeout, then credit the score.
func (b *SpaceCowBot) handleQuiz(
	ctx context.Context,
	m *discordgo.MessageCreate,
	args []string,
) error {
	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" {
		b.discord.sendMessage(m.ChannelID, messageQuizNoTopic)
		return nil
	}

	if err := b.quizzes.Begin(m.Author.ID); err != nil {
		b.discord.sendMessage(m.ChannelID, messageQuizActive)
		return nil
	}
	defer b.quizzes.End(m.Author.ID)

	log, ok := ContextLogger(ctx)
	if !ok || log == nil {
		log = b.logger
	}

	b.discord.sendMessage(
		m.ChannelID,
		fmt.Sprintf("Alright, <@%s>, let's quiz you on **%s**!", m.Author.ID, topic),
	)

	questions, err := b.chat.GenerateQuiz(
		ctx,
		topic,
		b.config.Commands.QuizQuestionCount,
	)
	if err != nil || len(questions) == 0 {
		log.ErrorContext(
			ctx,
			"error generating quiz",
			tint.Err(err),
			"topic", topic,
		)
		b.discord.sendMessage(m.ChannelID, messageQuizUnavailable)
		return nil
	}

	score := int64(0)
	for i, question := range questions {
		b.sendQuizQuestion(m.ChannelID, i+1, question)

		choices := question.Choices
		reply, replyErr := b.discord.AwaitReply(
			ctx,
			m.Author.ID,
			m.ChannelID,
			b.config.Commands.QuizAnswerTimeout,
			func(content string) bool {
				_, valid := choices[strings.ToUpper(strings.TrimSpace(content))]
				return valid
			},
		)
		switch {
		case errors.Is(replyErr, ErrReplyTimeout):
			b.discord.sendMessage(
				m.ChannelID,
				fmt.Sprintf(
					"⏰ Time's up! The correct answer was **%s**.",
					question.Answer,
				),
			)
		case replyErr != nil:
			return replyErr
		case strings.ToUpper(strings.TrimSpace(reply.Content)) == question.Answer:
			score++
			b.discord.sendMessage(m.ChannelID, "✅ Correct!")
		default:
			b.discord.sendMessage(
				m.ChannelID,
				fmt.Sprintf(
					"❌ Wrong! The correct answer was **%s**.",
					question.Answer,
				),
			)
		}
	}

	b.discord.sendEmbed(
		m.ChannelID,
		&discordgo.MessageEmbed{
			Title: "Quiz Complete!",
			Description: fmt.Sprintf(
				"You scored **%d / %d**", score, len(questions),
			),
			Color: quizFinalEmbedColor,
		},
	)

	if score == 0 {
		return nil
	}
	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid author ID %q: %w", m.Author.ID, err)
	}
	if err = b.db.CreditPoints(ctx, userID, score); err != nil {
		log.ErrorContext(ctx, "error saving quiz points", tint.Err(err))
		b.discord.sendMessage(m.ChannelID, messageQuizSaveFailed)
	}
	return nil
}

func (b *SpaceCowBot) sendQuizQuestion(
	channelID string,
	number int,
	question QuizQuestion,
) {
	var choices strings.Builder
	for _, letter := range question.ChoiceLetters() {
		fmt.Fprintf(&choices, "%s) %s\n", letter, question.Choices[letter])
	}
	b.discord.sendEmbed(
		channelID,
		&discordgo.MessageEmbed{
			Title: fmt.Sprintf("Question %d", number),
			Description: fmt.Sprintf(
				"**%s**\n\n%s",
				question.Question,
				strings.TrimSuffix(choices.String(), "\n"),
			),
			Color: quizEmbedColor,
		},
	)
}
