// Package graph extracts per-book knowledge graphs with the model, keeps
// them in the artifact cache, indexes their entities for search and
// projects them into force-directed graph views.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/minitru/bunnyAI/internal/util"
	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/analysis"
	"github.com/minitru/bunnyAI/pkg/cache"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/store"
)

const (
	DefaultSampleSize   = 400
	DefaultContextChars = 15000
	DefaultMaxTokens    = 4000
)

type extractResponse struct {
	Entities      map[string]common.Entity `json:"entities" jsonschema_description:"Entities keyed by a short snake_case id"`
	Relationships []common.Relationship    `json:"relationships" jsonschema_description:"Relationships between entity ids"`
}

type Extractor struct {
	store        store.ChunkStore
	index        store.EntityIndex
	client       ai.GraphAIClient
	graphs       *cache.Cache[common.KnowledgeGraph]
	sampleSize   int
	contextChars int
	maxTokens    int
	now          func() time.Time

	// serialises read-modify-write of cached graphs
	mu sync.Mutex
}

type NewExtractorParams struct {
	Store        store.ChunkStore
	Index        store.EntityIndex
	Client       ai.GraphAIClient
	Cache        cache.Backend
	SampleSize   int
	ContextChars int
	MaxTokens    int
	Now          func() time.Time
}

func NewExtractor(p NewExtractorParams) *Extractor {
	if p.SampleSize <= 0 {
		p.SampleSize = DefaultSampleSize
	}
	if p.ContextChars <= 0 {
		p.ContextChars = DefaultContextChars
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Extractor{
		store:        p.Store,
		index:        p.Index,
		client:       p.Client,
		graphs:       cache.New[common.KnowledgeGraph](p.Cache, cache.KindKnowledgeGraph, cache.WithClock(p.Now)),
		sampleSize:   p.SampleSize,
		contextChars: p.ContextChars,
		maxTokens:    p.MaxTokens,
		now:          p.Now,
	}
}

// Cached returns the stored graph for bookID as is.
func (x *Extractor) Cached(ctx context.Context, bookID string) (common.KnowledgeGraph, bool) {
	return x.graphs.Get(ctx, bookID)
}

// BuildContext samples the chunks of bookID into extraction input.
func (x *Extractor) BuildContext(ctx context.Context, bookID string) (string, error) {
	chunks, err := x.store.GetByBook(ctx, bookID)
	if err != nil {
		return "", fmt.Errorf("failed to load chunks of %s: %w", bookID, err)
	}
	if len(chunks) == 0 {
		return "", &common.NotFoundError{Kind: "book", ID: bookID}
	}
	return analysis.FormatSample(analysis.Sample(chunks, x.sampleSize)), nil
}

// ExtractBook is Extract over the sampled chunks of bookID. A valid cached
// graph short-circuits without touching the chunk store.
func (x *Extractor) ExtractBook(ctx context.Context, bookID string, force bool) (common.KnowledgeGraph, error) {
	if !force {
		if g, ok := x.graphs.Get(ctx, bookID); ok {
			return g, nil
		}
	}
	content, err := x.BuildContext(ctx, bookID)
	if err != nil {
		return common.KnowledgeGraph{}, err
	}
	return x.Extract(ctx, bookID, content, force)
}

// Extract asks the model for the entity/relationship graph of content,
// caches it and indexes its entities. Unparsable or incomplete model output
// yields *common.ExtractionError and a failed call *common.UpstreamError.
func (x *Extractor) Extract(ctx context.Context, bookID, content string, force bool) (common.KnowledgeGraph, error) {
	if !force {
		if g, ok := x.graphs.Get(ctx, bookID); ok {
			logger.Debug("[Graph] cache hit", "book_id", bookID)
			return g, nil
		}
	}

	logger.Info("[Graph] extracting knowledge graph", "book_id", bookID, "context_chars", len(content))

	content = util.TruncateRunes(content, x.contextChars)
	prompt := fmt.Sprintf(ai.ExtractionPrompt, bookID, bookID, content)

	var res extractResponse
	err := x.client.GenerateCompletionWithFormat(ctx,
		"knowledge_graph",
		"Entities and relationships extracted from a book",
		prompt,
		&res,
		ai.WithSystemPrompts(ai.ExtractionSystemPrompt),
		ai.WithMaxTokens(x.maxTokens),
	)
	if err != nil {
		if errors.Is(err, ai.ErrMalformedOutput) {
			return common.KnowledgeGraph{}, &common.ExtractionError{BookID: bookID, Reason: "model output is not valid JSON", Err: err}
		}
		return common.KnowledgeGraph{}, &common.UpstreamError{Op: "extract knowledge graph", Err: err}
	}
	if res.Entities == nil {
		return common.KnowledgeGraph{}, &common.ExtractionError{BookID: bookID, Reason: "response has no entities"}
	}
	if res.Relationships == nil {
		return common.KnowledgeGraph{}, &common.ExtractionError{BookID: bookID, Reason: "response has no relationships"}
	}

	g := common.KnowledgeGraph{Entities: res.Entities, Relationships: res.Relationships}
	for id, e := range g.Entities {
		e.BookID = bookID
		g.Entities[id] = e
	}
	for i := range g.Relationships {
		g.Relationships[i].BookID = bookID
	}

	x.mu.Lock()
	x.graphs.Put(ctx, bookID, g, x.metadata(bookID, g))
	x.mu.Unlock()

	x.indexEntities(ctx, bookID, g.Entities)

	logger.Info("[Graph] extracted knowledge graph", "book_id", bookID, "entities", len(g.Entities), "relationships", len(g.Relationships))
	return g, nil
}

func (x *Extractor) metadata(bookID string, g common.KnowledgeGraph) cache.Metadata {
	return cache.Metadata{
		CreatedAt: x.now().Format(time.RFC3339Nano),
		BookID:    bookID,
		Model:     x.client.Model(),
		Tags: map[string]string{
			"entity_count":       strconv.Itoa(len(g.Entities)),
			"relationship_count": strconv.Itoa(len(g.Relationships)),
		},
	}
}

func (x *Extractor) indexEntities(ctx context.Context, bookID string, entities map[string]common.Entity) {
	if x.index == nil || len(entities) == 0 {
		return
	}
	rows := make([]common.IndexedEntity, 0, len(entities))
	for id, e := range entities {
		rows = append(rows, common.IndexedEntity{
			ID:         store.EntityIndexID(bookID, id),
			EntityID:   id,
			Name:       e.Name,
			Type:       e.Type,
			BookID:     bookID,
			Importance: e.ImportanceOrDefault(),
			Document:   store.EntityDocument(e),
		})
	}
	if err := x.index.Upsert(ctx, rows); err != nil {
		logger.Warn("[Graph] failed to index entities", "book_id", bookID, "err", err)
		return
	}
	logger.Debug("[Graph] indexed entities", "book_id", bookID, "entities", len(rows))
}
