package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/cache"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
)

// AllBooks is the result of AnalyzeAll.
type AllBooks struct {
	Books    []common.BookAnalysis   `json:"books"`
	Combined common.CombinedAnalysis `json:"combined"`
}

// AnalyzeAll analyses every stored book and then builds the comparative
// analysis across them. A failed comparative call is reported inline and
// not cached.
func (b *Builder) AnalyzeAll(ctx context.Context, force bool) (AllBooks, error) {
	books, err := b.store.ListBooks(ctx)
	if err != nil {
		return AllBooks{}, fmt.Errorf("failed to list books: %w", err)
	}
	if len(books) == 0 {
		return AllBooks{}, &common.NotFoundError{Kind: "book", ID: "*"}
	}

	out := AllBooks{Books: make([]common.BookAnalysis, 0, len(books))}
	for _, book := range books {
		a, err := b.Analyze(ctx, book.BookID, force)
		if err != nil {
			logger.Warn("[Analysis] skipping book", "book_id", book.BookID, "err", err)
			continue
		}
		out.Books = append(out.Books, a)
	}

	if !force {
		if c, ok := b.combined.Get(ctx, cache.CombinedKey); ok {
			out.Combined = c
			return out, nil
		}
	}

	prompt := fmt.Sprintf(ai.CombinedPrompt, SummaryBlocks(out.Books))
	text, err := b.client.GenerateCompletion(ctx, prompt,
		ai.WithSystemPrompts(ai.CombinedSystemPrompt),
		ai.WithMaxTokens(b.maxTokens),
	)
	out.Combined = common.CombinedAnalysis{BooksAnalyzed: len(out.Books), CreatedAt: b.now()}
	if err != nil {
		logger.Warn("[Analysis] combined analysis failed", "err", err)
		out.Combined.Analysis = fmt.Sprintf("Error creating combined analysis: %v", err)
		return out, nil
	}
	out.Combined.Analysis = text

	b.combined.Put(ctx, cache.CombinedKey, out.Combined, cache.Metadata{
		CreatedAt: out.Combined.CreatedAt.Format(time.RFC3339Nano),
		Model:     b.client.Model(),
	})
	return out, nil
}

// CachedCombined returns the stored comparative analysis.
func (b *Builder) CachedCombined(ctx context.Context) (common.CombinedAnalysis, bool) {
	return b.combined.Get(ctx, cache.CombinedKey)
}

// Knowledge returns the background text for a query. When the query spans
// every book and a comparative analysis is cached, that text is used;
// otherwise the summaries of bookIDs are concatenated, analysing books on
// first use.
func (b *Builder) Knowledge(ctx context.Context, bookIDs []string, allBooks bool) string {
	if allBooks {
		if c, ok := b.combined.Get(ctx, cache.CombinedKey); ok && c.Analysis != "" {
			return c.Analysis
		}
	}

	analyses := make([]common.BookAnalysis, 0, len(bookIDs))
	for _, id := range bookIDs {
		a, err := b.Analyze(ctx, id, false)
		if err != nil {
			logger.Warn("[Analysis] no knowledge for book", "book_id", id, "err", err)
			continue
		}
		analyses = append(analyses, a)
	}
	return SummaryBlocks(analyses)
}

// SummaryBlocks renders "=== title ===" blocks holding each book summary.
func SummaryBlocks(analyses []common.BookAnalysis) string {
	blocks := make([]string, 0, len(analyses))
	for _, a := range analyses {
		title := a.BookTitle
		if title == "" {
			title = a.BookID
		}
		blocks = append(blocks, fmt.Sprintf("=== %s ===\n%s\n", title, a.BookSummary))
	}
	return strings.Join(blocks, "\n")
}
