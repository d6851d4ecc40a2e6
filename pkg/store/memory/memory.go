// Package memory is an in-process ChunkStore and EntityIndex. It is used
// when no database is configured and by tests.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/store"
)

type chunkRow struct {
	chunk     common.Chunk
	embedding []float32
	seq       int
}

// ChunkStore keeps chunks and their embeddings in memory and ranks them by
// cosine distance.
type ChunkStore struct {
	mu       sync.RWMutex
	embedder ai.Embedder
	rows     map[string]*chunkRow
	nextSeq  int
}

var _ store.ChunkStore = (*ChunkStore)(nil)

func NewChunkStore(embedder ai.Embedder) *ChunkStore {
	return &ChunkStore{embedder: embedder, rows: make(map[string]*chunkRow)}
}

func (s *ChunkStore) Upsert(ctx context.Context, chunks []common.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := store.EmbedTexts(ctx, s.embedder, texts)
	if err != nil {
		return &common.StoreError{Op: "upsert", Err: err}
	}
	embedded := make([]chunkRow, 0, len(chunks))
	for i, c := range chunks {
		embedded = append(embedded, chunkRow{chunk: c, embedding: embeddings[i]})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range embedded {
		id := row.chunk.ID
		if id == "" {
			id = store.IdentityKey(row.chunk)
		}
		if existing, ok := s.rows[id]; ok {
			row.seq = existing.seq
		} else {
			row.seq = s.nextSeq
			s.nextSeq++
		}
		r := row
		s.rows[id] = &r
	}
	return nil
}

func (s *ChunkStore) GetByBook(_ context.Context, bookID string) ([]common.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Chunk, 0)
	for _, row := range s.rows {
		if row.chunk.BookID == bookID {
			out = append(out, row.chunk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (s *ChunkStore) Query(ctx context.Context, text string, k int, filter store.Filter) ([]common.ScoredChunk, error) {
	if k <= 0 {
		return []common.ScoredChunk{}, nil
	}
	query, err := s.embedder.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, &common.StoreError{Op: "query", Err: err}
	}

	s.mu.RLock()
	rows := make([]*chunkRow, 0, len(s.rows))
	for _, row := range s.rows {
		if filter.Matches(row.chunk.BookID) {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	// insertion order keeps ties deterministic
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	scored := make([]common.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		scored = append(scored, common.ScoredChunk{
			Chunk:    row.chunk,
			Distance: CosineDistance(query, row.embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })
	if n := store.CandidateCount(k); len(scored) > n {
		scored = scored[:n]
	}
	return store.Finalize(scored, k), nil
}

func (s *ChunkStore) ListBooks(_ context.Context) ([]common.Book, error) {
	s.mu.RLock()
	chunks := make([]common.Chunk, 0, len(s.rows))
	for _, row := range s.rows {
		chunks = append(chunks, row.chunk)
	}
	s.mu.RUnlock()
	return store.GroupBooks(chunks), nil
}

// EntityIndex keeps indexed entities in memory.
type EntityIndex struct {
	mu       sync.RWMutex
	embedder ai.Embedder
	rows     map[string]common.IndexedEntity
}

var _ store.EntityIndex = (*EntityIndex)(nil)

func NewEntityIndex(embedder ai.Embedder) *EntityIndex {
	return &EntityIndex{embedder: embedder, rows: make(map[string]common.IndexedEntity)}
}

func (x *EntityIndex) Upsert(ctx context.Context, entities []common.IndexedEntity) error {
	for i := range entities {
		if entities[i].Embedding != nil {
			continue
		}
		emb, err := x.embedder.GenerateEmbedding(ctx, []byte(entities[i].Document))
		if err != nil {
			return &common.StoreError{Op: "index entities", Err: err}
		}
		entities[i].Embedding = emb
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entities {
		x.rows[e.ID] = e
	}
	return nil
}

func (x *EntityIndex) Search(ctx context.Context, text string, bookID string, limit int) ([]common.EntityMatch, error) {
	if limit <= 0 {
		return []common.EntityMatch{}, nil
	}
	query, err := x.embedder.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, &common.StoreError{Op: "search entities", Err: err}
	}

	x.mu.RLock()
	matches := make([]common.EntityMatch, 0, len(x.rows))
	for _, e := range x.rows {
		if bookID != "" && e.BookID != bookID {
			continue
		}
		matches = append(matches, common.EntityMatch{
			EntityID:   e.EntityID,
			Name:       e.Name,
			Type:       e.Type,
			BookID:     e.BookID,
			Importance: e.Importance,
			Distance:   CosineDistance(query, e.Embedding),
		})
	}
	x.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].BookID+matches[i].EntityID < matches[j].BookID+matches[j].EntityID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
