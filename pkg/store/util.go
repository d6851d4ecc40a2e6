package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minitru/bunnyAI/pkg/ai"
	"golang.org/x/sync/errgroup"
)

// Batches calls fn for consecutive [start, end) windows of at most size
// items.
func Batches(total, size int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if size <= 0 {
		size = total
	}
	for start := 0; start < total; start += size {
		if err := fn(start, min(start+size, total)); err != nil {
			return err
		}
	}
	return nil
}

// BookIDs trims and dedups a book filter, keeping first-seen order.
// An empty result means "all books".
func BookIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type embeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
}

// EmbedTexts embeds chunk or entity documents in one request when the
// embedder batches and concurrently otherwise. Every vector must have the
// embedder's dimensionality, since the pgvector columns are fixed-width.
func EmbedTexts(ctx context.Context, embedder ai.Embedder, texts []string) ([][]float32, error) {
	if embedder == nil {
		return nil, errors.New("embedder is nil")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([][]byte, len(texts))
	for i, t := range texts {
		inputs[i] = []byte(t)
	}

	var out [][]float32
	if b, ok := embedder.(embeddingBatcher); ok {
		res, err := b.GenerateEmbeddings(ctx, inputs)
		if err != nil {
			return nil, err
		}
		out = res
	} else {
		out = make([][]float32, len(inputs))
		eg, ectx := errgroup.WithContext(ctx)
		for i := range inputs {
			eg.Go(func() error {
				emb, err := embedder.GenerateEmbedding(ectx, inputs[i])
				if err != nil {
					return err
				}
				out[i] = emb
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
	}
	if dim := embedder.Dimensions(); dim > 0 {
		for i, v := range out {
			if len(v) != dim {
				return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), dim)
			}
		}
	}
	return out, nil
}
