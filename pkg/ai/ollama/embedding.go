package ollama

import (
	"context"
	"strings"

	"github.com/minitru/bunnyAI/pkg/ai"

	"github.com/ollama/ollama/api"
)

// Dimensions returns the size of vectors produced by GenerateEmbedding.
func (c *GraphOllamaClient) Dimensions() int {
	if c.embedDim > 0 {
		return c.embedDim
	}
	return ai.DefaultHashDimensions
}

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model on Ollama. Vectors are truncated
// or zero padded to Dimensions.
func (c *GraphOllamaClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	dim := c.Dimensions()
	if len(strings.TrimSpace(string(input))) == 0 {
		return make([]float32, dim), nil
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	})
	if err != nil {
		return nil, err
	}

	c.Record(res.PromptEvalCount, 0, res.TotalDuration)

	out := make([]float32, dim)
	if len(res.Embeddings) > 0 {
		for i, val := range res.Embeddings[0] {
			if i >= dim {
				break
			}
			out[i] = float32(val)
		}
	}
	return out, nil
}
