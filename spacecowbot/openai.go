package spacecowbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	quizSystemPrompt = "You are a helpful AI that generates multiple choice quizzes in structured JSON."
	askSystemPrompt  = "You are a space cowboy who gives friendly, adventurous responses."
	tipSystemPrompt  = "You're a wise cowboy who gives short motivational messages to students."
	tipUserPrompt    = "Give me a short motivational study tip or quote in cowboy style."

	quizPromptFormat = `Generate a quiz with %d multiple choice questions about "%s".
Format your response as a JSON list like this:
[{"question": "What is 2 + 2?", "choices": {"A": "3", "B": "4", "C": "5", "D": "6"}, "answer": "B"}]`

	quizTemperature      = 0.7
	quizMaxTokens        = 500
	tipTemperature       = 0.9
	tipMaxTokens         = 100
	completionRetryDelay = 2 * time.Second
)

// ErrEmptyCompletion indicates the completion API returned no choices.
var ErrEmptyCompletion = errors.New("empty completion response")

// OpenAIChatClient is the subset of the go-openai client used by the
// bot, for mocking in tests.
type OpenAIChatClient interface {
	CreateChatCompletion(
		ctx context.Context,
		request openai.ChatCompletionRequest,
	) (openai.ChatCompletionResponse, error)
}

// chatService is what the command handlers need from the completion
// API layer.
type chatService interface {
	GenerateQuiz(ctx context.Context, topic string, count int) ([]QuizQuestion, error)
	Answer(ctx context.Context, question string) (string, error)
	MotivationalTip(ctx context.Context) (string, error)
}

// QuizQuestion is a single multiple-choice question, with choices
// keyed by answer letter.
type QuizQuestion struct {
	Question string            `json:"question"`
	Choices  map[string]string `json:"choices"`
	Answer   string            `json:"answer"`
}

// ChoiceLetters returns the question's answer letters in sorted order.
func (q QuizQuestion) ChoiceLetters() []string {
	letters := make([]string, 0, len(q.Choices))
	for letter := range q.Choices {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	return letters
}

// OpenAI wraps the completion API client with a request rate limiter
// and a single bounded retry.
type OpenAI struct {
	client         OpenAIChatClient
	config         *OpenAIConfig
	logger         *slog.Logger
	requestLimiter *rate.Limiter
}

func newOpenAI(config *OpenAIConfig, handler slog.Handler) *OpenAI {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &OpenAI{
		client: openai.NewClient(config.Token),
		config: config,
		logger: slog.New(handler).With(loggerNameKey, "openai"),
		requestLimiter: rate.NewLimiter(
			rate.Limit(config.MaxRequestsPerSecond),
			1,
		),
	}
}

// createChatCompletion sends the request, retrying once after a short
// delay on failure. Further retries are the user's problem.
func (c *OpenAI) createChatCompletion(
	ctx context.Context,
	request openai.ChatCompletionRequest,
) (string, error) {
	log, ok := ContextLogger(ctx)
	if !ok || log == nil {
		log = c.logger
	}
	if err := c.requestLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	response, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		log.WarnContext(
			ctx,
			"chat completion failed, retrying",
			tint.Err(err),
			"model", request.Model,
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(completionRetryDelay):
			//
		}
		response, err = c.client.CreateChatCompletion(ctx, request)
		if err != nil {
			return "", fmt.Errorf("chat completion failed after retry: %w", err)
		}
	}

	if len(response.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// GenerateQuiz asks the completion API for count multiple-choice
// questions about topic and parses the JSON payload.
func (c *OpenAI) GenerateQuiz(
	ctx context.Context,
	topic string,
	count int,
) ([]QuizQuestion, error) {
	content, err := c.createChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: quizSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(quizPromptFormat, count, topic),
				},
			},
			Temperature: quizTemperature,
			MaxTokens:   quizMaxTokens,
		},
	)
	if err != nil {
		return nil, err
	}
	return parseQuizJSON(content)
}

// Answer returns a space cowboy style answer to the question.
func (c *OpenAI) Answer(ctx context.Context, question string) (string, error) {
	return c.createChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: askSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: question,
				},
			},
		},
	)
}

// MotivationalTip returns a short cowboy-style study tip.
func (c *OpenAI) MotivationalTip(ctx context.Context) (string, error) {
	return c.createChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: tipSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: tipUserPrompt,
				},
			},
			Temperature: tipTemperature,
			MaxTokens:   tipMaxTokens,
		},
	)
}

// parseQuizJSON decodes the completion output into quiz questions.
// Models sometimes wrap the payload in a markdown code fence, so that
// is stripped first. Questions missing text, choices, or a valid
// answer letter are rejected rather than silently dropped.
func parseQuizJSON(content string) ([]QuizQuestion, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var questions []QuizQuestion
	if err := json.Unmarshal([]byte(content), &questions); err != nil {
		return nil, fmt.Errorf("malformed quiz payload: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		q.Answer = strings.ToUpper(strings.TrimSpace(q.Answer))
		if q.Question == "" {
			return nil, fmt.Errorf("question %d has no text", i+1)
		}
		if len(q.Choices) < 2 {
			return nil, fmt.Errorf("question %d has too few choices", i+1)
		}
		normalized := make(map[string]string, len(q.Choices))
		for letter, text := range q.Choices {
			normalized[strings.ToUpper(strings.TrimSpace(letter))] = text
		}
		q.Choices = normalized
		if _, ok := q.Choices[q.Answer]; !ok {
			return nil, fmt.Errorf(
				"question %d answer %q is not a choice", i+1, q.Answer,
			)
		}
	}
	return questions, nil
}
