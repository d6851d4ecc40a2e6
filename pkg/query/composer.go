package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
)

const (
	DefaultMaxTokens   = 3000
	DefaultTemperature = 0.3
)

// Turn is one earlier question and answer replayed to the model.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ComposeInput is everything the composer folds into a single prompt.
type ComposeInput struct {
	Question   string
	Context    string
	Knowledge  string
	BookTitles []string
	History    []Turn
}

// Composer asks the model for an answer and shapes the reply into text.
type Composer struct {
	client      ai.GraphAIClient
	forceJSON   bool
	maxTokens   int
	temperature float64
}

type ComposerOption func(*Composer)

// WithForceJSON asks the provider for a JSON object and shapes it afterwards.
func WithForceJSON(enabled bool) ComposerOption {
	return func(c *Composer) { c.forceJSON = enabled }
}

func WithAnswerTokens(n int) ComposerOption {
	return func(c *Composer) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithAnswerTemperature(t float64) ComposerOption {
	return func(c *Composer) { c.temperature = t }
}

func NewComposer(client ai.GraphAIClient, opts ...ComposerOption) *Composer {
	c := &Composer{
		client:      client,
		forceJSON:   true,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SystemPrompt renders the editor persona for the given books and knowledge.
func SystemPrompt(titles []string, knowledge string) string {
	books := ""
	if len(titles) > 0 {
		books = fmt.Sprintf(ai.AnalyzingBooksSentence, strings.Join(titles, ", "))
	}
	return fmt.Sprintf(ai.EditorPrompt, books, knowledge)
}

// UserPrompt renders the context and question block.
func (c *Composer) UserPrompt(context, question string) string {
	if c.forceJSON {
		return fmt.Sprintf(ai.QuestionJSONPrompt, context, question)
	}
	return fmt.Sprintf(ai.QuestionPrompt, context, question)
}

// Compose makes exactly one model call. On failure the returned text is a
// user facing error message and err is a *common.UpstreamError, so callers
// can show the text and still tell the answer is degraded.
func (c *Composer) Compose(ctx context.Context, in ComposeInput) (string, error) {
	messages := make([]ai.ChatMessage, 0, 2*len(in.History)+1)
	for _, t := range in.History {
		messages = append(messages,
			ai.ChatMessage{Role: "user", Message: t.Question},
			ai.ChatMessage{Role: "assistant", Message: t.Answer},
		)
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Message: c.UserPrompt(in.Context, in.Question)})

	raw, err := c.client.GenerateChat(ctx, messages,
		ai.WithSystemPrompts(SystemPrompt(in.BookTitles, in.Knowledge)),
		ai.WithMaxTokens(c.maxTokens),
		ai.WithTemperature(c.temperature),
		ai.WithJSONMode(c.forceJSON),
	)
	if err != nil {
		logger.Error("[Composer] Answer generation failed", "err", err)
		return fmt.Sprintf("Error generating response: %v", err), &common.UpstreamError{Op: "compose", Err: err}
	}

	if !c.forceJSON {
		return raw, nil
	}
	return FormatAnswer(raw), nil
}
