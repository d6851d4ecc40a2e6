// Package analysis builds and caches the per-book summary, character and
// plot analyses used as background knowledge when answering questions.
package analysis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/minitru/bunnyAI/internal/util"
	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/cache"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/store"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSampleSize = 200
	DefaultMaxTokens  = 1000
)

type Builder struct {
	store      store.ChunkStore
	client     ai.GraphAIClient
	analyses   *cache.Cache[common.BookAnalysis]
	combined   *cache.Cache[common.CombinedAnalysis]
	sampleSize int
	maxTokens  int
	now        func() time.Time

	flight singleflight.Group
}

type NewBuilderParams struct {
	Store      store.ChunkStore
	Client     ai.GraphAIClient
	Cache      cache.Backend
	SampleSize int
	MaxTokens  int
	Now        func() time.Time
}

func NewBuilder(p NewBuilderParams) *Builder {
	if p.SampleSize <= 0 {
		p.SampleSize = DefaultSampleSize
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Builder{
		store:      p.Store,
		client:     p.Client,
		analyses:   cache.New[common.BookAnalysis](p.Cache, cache.KindAnalysis, cache.WithClock(p.Now)),
		combined:   cache.New[common.CombinedAnalysis](p.Cache, cache.KindAnalysis, cache.WithClock(p.Now)),
		sampleSize: p.SampleSize,
		maxTokens:  p.MaxTokens,
		now:        p.Now,
	}
}

// Cached returns the stored analysis for bookID without generating one.
func (b *Builder) Cached(ctx context.Context, bookID string) (common.BookAnalysis, bool) {
	return b.analyses.Get(ctx, bookID)
}

// Analyze returns the analysis of bookID, generating and caching it when
// no valid entry exists or force is set. Failed model calls are reported
// inline in the affected field.
func (b *Builder) Analyze(ctx context.Context, bookID string, force bool) (common.BookAnalysis, error) {
	if !force {
		if a, ok := b.analyses.Get(ctx, bookID); ok {
			logger.Debug("[Analysis] cache hit", "book_id", bookID)
			return a, nil
		}
	}

	key := bookID
	if force {
		key += ":force"
	}
	return util.Shared(ctx, &b.flight, key, func(ctx context.Context) (common.BookAnalysis, error) {
		return b.generate(ctx, bookID)
	})
}

func (b *Builder) generate(ctx context.Context, bookID string) (common.BookAnalysis, error) {
	chunks, err := b.store.GetByBook(ctx, bookID)
	if err != nil {
		return common.BookAnalysis{}, fmt.Errorf("failed to load chunks of %s: %w", bookID, err)
	}
	if len(chunks) == 0 {
		return common.BookAnalysis{}, &common.NotFoundError{Kind: "book", ID: bookID}
	}

	title := chunks[0].BookTitle
	if title == "" {
		title = bookID
	}
	sample := Sample(chunks, b.sampleSize)
	content := FormatSample(sample)

	logger.Info("[Analysis] analyzing book", "book_id", bookID, "chunks", len(chunks), "sampled", len(sample))

	var summary, characters, plot string
	var eg errgroup.Group
	eg.Go(func() error {
		summary = b.complete(ctx, fmt.Sprintf(ai.SummaryPrompt, title, content), ai.SummarySystemPrompt, "Error creating summary")
		return nil
	})
	eg.Go(func() error {
		characters = b.complete(ctx, fmt.Sprintf(ai.CharacterPrompt, content), ai.CharacterSystemPrompt, "Error analyzing characters")
		return nil
	})
	eg.Go(func() error {
		plot = b.complete(ctx, fmt.Sprintf(ai.PlotPrompt, content), ai.PlotSystemPrompt, "Error analyzing plot")
		return nil
	})
	_ = eg.Wait()

	a := common.BookAnalysis{
		BookID:            bookID,
		BookTitle:         title,
		BookSummary:       summary,
		CharacterAnalysis: characters,
		PlotAnalysis:      plot,
		CreatedAt:         b.now(),
		Model:             b.client.Model(),
		ChunksAnalyzed:    len(sample),
		TotalChunks:       len(chunks),
	}

	b.analyses.Put(ctx, bookID, a, cache.Metadata{
		CreatedAt: a.CreatedAt.Format(time.RFC3339Nano),
		BookID:    bookID,
		Model:     a.Model,
		Tags: map[string]string{
			"book_title":      title,
			"chunks_analyzed": strconv.Itoa(a.ChunksAnalyzed),
			"total_chunks":    strconv.Itoa(a.TotalChunks),
		},
	})
	return a, nil
}

func (b *Builder) complete(ctx context.Context, prompt, system, errPrefix string) string {
	out, err := b.client.GenerateCompletion(ctx, prompt,
		ai.WithSystemPrompts(system),
		ai.WithMaxTokens(b.maxTokens),
	)
	if err != nil {
		logger.Warn("[Analysis] model call failed", "op", errPrefix, "err", err)
		return fmt.Sprintf("%s: %v", errPrefix, err)
	}
	return out
}

// Sample returns all chunks when there are at most size of them. Otherwise
// it takes 40% of size from the head, 40% from the tail and the remainder
// from the centre of the book.
func Sample(chunks []common.Chunk, size int) []common.Chunk {
	total := len(chunks)
	if size <= 0 || total <= size {
		return chunks
	}

	head := size * 2 / 5
	tail := size * 2 / 5
	middle := size - head - tail

	midStart := total/2 - middle/2
	midStart = max(midStart, head)
	midEnd := min(midStart+middle, total-tail)

	out := make([]common.Chunk, 0, size)
	out = append(out, chunks[:head]...)
	out = append(out, chunks[midStart:midEnd]...)
	out = append(out, chunks[total-tail:]...)
	return out
}

// FormatSample renders sampled chunks as numbered sections.
func FormatSample(chunks []common.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("--- Section %d (chunk %d) ---\n%s\n", i+1, c.ChunkIndex, c.Text))
	}
	return strings.Join(parts, "\n")
}
