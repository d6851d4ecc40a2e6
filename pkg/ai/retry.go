package ai

import (
	"context"
	"reflect"
	"time"

	"github.com/minitru/bunnyAI/internal/util"
)

// RetryingClient wraps a GraphAIClient and retries failed completion calls.
// Malformed structured output is retried as well since a second sample
// frequently parses.
type RetryingClient struct {
	inner    GraphAIClient
	maxTries int
	backoff  time.Duration
}

// NewRetryingClient returns inner unchanged when maxTries <= 1.
func NewRetryingClient(inner GraphAIClient, maxTries int, backoff time.Duration) GraphAIClient {
	if maxTries <= 1 {
		return inner
	}
	return &RetryingClient{inner: inner, maxTries: maxTries, backoff: backoff}
}

func (c *RetryingClient) GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return util.RetryWithBackoff(ctx, c.maxTries, c.backoff, func(ctx context.Context) (string, error) {
		return c.inner.GenerateCompletion(ctx, prompt, opts...)
	})
}

func (c *RetryingClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...GenerateOption,
) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return c.inner.GenerateCompletionWithFormat(ctx, name, description, prompt, out, opts...)
	}

	// Each attempt decodes into its own value; a failed attempt may have
	// filled part of it before erroring.
	_, err := util.RetryWithBackoff(ctx, c.maxTries, c.backoff, func(ctx context.Context) (struct{}, error) {
		fresh := reflect.New(target.Elem().Type())
		if err := c.inner.GenerateCompletionWithFormat(ctx, name, description, prompt, fresh.Interface(), opts...); err != nil {
			return struct{}{}, err
		}
		target.Elem().Set(fresh.Elem())
		return struct{}{}, nil
	})
	return err
}

func (c *RetryingClient) GenerateChat(ctx context.Context, messages []ChatMessage, opts ...GenerateOption) (string, error) {
	return util.RetryWithBackoff(ctx, c.maxTries, c.backoff, func(ctx context.Context) (string, error) {
		return c.inner.GenerateChat(ctx, messages, opts...)
	})
}

func (c *RetryingClient) Model() string            { return c.inner.Model() }
func (c *RetryingClient) ResetMetrics()            { c.inner.ResetMetrics() }
func (c *RetryingClient) GetMetrics() ModelMetrics { return c.inner.GetMetrics() }
