package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/logger"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

var errNoChatClient = errors.New("openai: chat client not configured")

func (c *GraphOpenAIClient) defaults() ai.GenerateOptions {
	return ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: c.temperature,
	}
}

func buildMessages(options ai.GenerateOptions, messages []ai.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(options.SystemPrompts)+len(messages))
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	for _, message := range messages {
		switch message.Role {
		case "user":
			msgs = append(msgs, openai.UserMessage(message.Message))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(message.Message))
		}
	}
	return msgs
}

func (c *GraphOpenAIClient) complete(
	ctx context.Context,
	body openai.ChatCompletionNewParams,
) (string, error) {
	if c.ChatClient == nil {
		return "", errNoChatClient
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", err
	}
	took := time.Since(start)
	c.Record(int(response.Usage.PromptTokens), int(response.Usage.CompletionTokens), took)

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model")
	}
	logger.Debug("[AI] completion finished",
		"model", body.Model,
		"tokens", response.Usage.TotalTokens,
		"duration_ms", took.Milliseconds(),
	)
	return response.Choices[0].Message.Content, nil
}

func (c *GraphOpenAIClient) newBody(options ai.GenerateOptions, msgs []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		body.MaxTokens = openai.Int(int64(options.MaxTokens))
	}
	if options.JSONMode {
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return body
}

// GenerateCompletion sends a single-turn prompt to the chat model and
// returns the generated completion as plain text.
//
// Example:
//
//	resp, err := client.GenerateCompletion(ctx, prompt,
//		ai.WithSystemPrompts(ai.SummarySystemPrompt),
//		ai.WithMaxTokens(1000),
//	)
func (c *GraphOpenAIClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	return c.GenerateChat(ctx, []ai.ChatMessage{{Role: "user", Message: prompt}}, opts...)
}

// GenerateCompletionWithFormat sends a prompt to the chat model and
// unmarshals the response into out, using a JSON schema derived from out
// to guide the structure. The schema is not strict since map-valued
// fields cannot be expressed in strict mode.
func (c *GraphOpenAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.ApplyOptions(c.defaults(), opts...)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      ai.GenerateSchema(out),
		Strict:      openai.Bool(false),
	}

	body := c.newBody(options, buildMessages(options, []ai.ChatMessage{{Role: "user", Message: prompt}}))
	body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: schemaParam,
		},
	}

	message, err := c.complete(ctx, body)
	if err != nil {
		return err
	}
	if message == "" {
		return fmt.Errorf("%w: empty response from model", ai.ErrMalformedOutput)
	}
	return ai.UnmarshalFlexible(message, out)
}

// GenerateChat sends a multi-turn chat conversation to the model and
// returns the assistant's reply as plain text. System prompts from opts
// are sent ahead of the conversation.
func (c *GraphOpenAIClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(c.defaults(), opts...)
	return c.complete(ctx, c.newBody(options, buildMessages(options, messages)))
}
