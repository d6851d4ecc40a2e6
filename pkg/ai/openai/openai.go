package openai

import (
	"context"

	"github.com/minitru/bunnyAI/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const defaultTemperature = 0.3

// GraphOpenAIClient talks to any OpenAI-compatible chat API, OpenRouter in
// particular. An optional second client serves embeddings.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	chatModel      string
	embeddingModel string
	embedDim       int
	temperature    float64
	chatURL        string

	reqLock *semaphore.Weighted
	limiter *rate.Limiter

	ai.Meter

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for
// creating a new GraphOpenAIClient.
//
// ChatURL and ChatKey configure the chat/completion API endpoint.
// EmbeddingURL and EmbeddingKey configure the embedding endpoint; when
// EmbeddingKey is empty the client cannot embed.
// RequestsPerSecond of 0 disables rate limiting.
type NewGraphOpenAIClientParams struct {
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int
	Temperature    float64

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	MaxConcurrentRequests int64
	RequestsPerSecond     float64
}

// NewGraphOpenAIClient creates a client configured with the provided
// parameters.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		ChatModel: "openai/gpt-4o-mini",
//		ChatURL:   "https://openrouter.ai/api/v1",
//		ChatKey:   os.Getenv("OPENROUTER_API_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	concurrency := params.MaxConcurrentRequests
	if concurrency <= 0 {
		concurrency = 1
	}

	var limiter *rate.Limiter
	if params.RequestsPerSecond > 0 {
		burst := int(params.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(params.RequestsPerSecond), burst)
	}

	temperature := params.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	return &GraphOpenAIClient{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		embedDim:       params.EmbeddingDim,
		temperature:    temperature,
		chatURL:        params.ChatURL,

		reqLock: semaphore.NewWeighted(concurrency),
		limiter: limiter,

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// Model returns the default chat model.
func (c *GraphOpenAIClient) Model() string {
	return c.chatModel
}

// acquire waits for a concurrency slot and, when configured, a rate token.
func (c *GraphOpenAIClient) acquire(ctx context.Context) (func(), error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.reqLock.Release(1)
			return nil, err
		}
	}
	return func() { c.reqLock.Release(1) }, nil
}
