// Package retriever gathers the chunks used to answer a question: a direct
// similarity query plus one small query per key term, merged and ranked by
// distance.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/store"

	"golang.org/x/sync/errgroup"
)

// ErrNoContext is returned when no chunk matched the question. Callers must
// not send an empty context to the model.
var ErrNoContext = errors.New("no relevant context found")

const (
	DefaultResults     = 80
	DefaultMaxTerms    = 5
	DefaultTermResults = 10
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by is are was were be been
		have has had do does did will would could should may might can this that these those
		i you he she it we they me him her us them`) {
		stopWords[w] = struct{}{}
	}
}

// KeyTerms lowercases question, strips surrounding punctuation from every
// word and keeps words longer than two characters that are not stop words.
func KeyTerms(question string) []string {
	terms := make([]string, 0)
	for _, word := range strings.Fields(strings.ToLower(question)) {
		w := strings.Trim(word, ".,!?;:")
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

type Retriever struct {
	store       store.ChunkStore
	maxTerms    int
	termResults int
}

type Option func(*Retriever)

func WithMaxTerms(n int) Option {
	return func(r *Retriever) { r.maxTerms = n }
}

func WithTermResults(n int) Option {
	return func(r *Retriever) { r.termResults = n }
}

func New(s store.ChunkStore, opts ...Option) *Retriever {
	r := &Retriever{store: s, maxTerms: DefaultMaxTerms, termResults: DefaultTermResults}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Retrieve returns at most n chunks relevant to question, ordered by
// ascending distance, searching only bookIDs when given. Store failures
// count as no results. ErrNoContext is returned when nothing matched.
func (r *Retriever) Retrieve(ctx context.Context, question string, bookIDs []string, n int) ([]common.ScoredChunk, error) {
	if n <= 0 {
		n = DefaultResults
	}
	filter := store.Filter{BookIDs: bookIDs}

	terms := KeyTerms(question)
	if len(terms) > r.maxTerms {
		terms = terms[:r.maxTerms]
	}

	// slot 0 holds the direct query, the rest one per key term
	sets := make([][]common.ScoredChunk, len(terms)+1)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	eg.Go(func() error {
		res, err := r.query(ectx, question, n, filter)
		sets[0] = res
		return err
	})
	for i, term := range terms {
		eg.Go(func() error {
			res, err := r.query(ectx, term, r.termResults, filter)
			sets[i+1] = res
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := Merge(sets...)
	if len(merged) > n {
		merged = merged[:n]
	}
	if len(merged) == 0 {
		return nil, ErrNoContext
	}

	logger.Debug("[Retriever] retrieved chunks", "chunks", len(merged), "terms", len(terms), "books", len(bookIDs))
	return merged, nil
}

func (r *Retriever) query(ctx context.Context, text string, k int, filter store.Filter) ([]common.ScoredChunk, error) {
	res, err := r.store.Query(ctx, text, k, filter)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var storeErr *common.StoreError
	if errors.As(err, &storeErr) {
		logger.Warn("[Retriever] chunk query failed", "query", text, "err", err)
		return nil, nil
	}
	return nil, err
}

// Merge concatenates result sets, keeps the first occurrence of every chunk
// identity and stable sorts the survivors by ascending distance.
func Merge(sets ...[]common.ScoredChunk) []common.ScoredChunk {
	seen := make(map[string]struct{})
	out := make([]common.ScoredChunk, 0)
	for _, set := range sets {
		for _, c := range set {
			key := store.IdentityKey(c.Chunk)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// FormatContext renders chunks as labelled sections for the answer prompt.
func FormatContext(chunks []common.ScoredChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		title := c.BookTitle
		if title == "" {
			title = "Unknown Book"
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- %s - Section %d (chunk %d) ---\n%s\n", title, i+1, c.ChunkIndex, c.Text)
	}
	return b.String()
}
