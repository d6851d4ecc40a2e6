// Package store defines the chunk store and entity index contracts used by
// retrieval, analysis and knowledge graph search.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/minitru/bunnyAI/pkg/common"
)

// MaxCandidates caps the number of rows a similarity query pulls before
// deduplication and truncation.
const MaxCandidates = 100

// Filter restricts a similarity query. An empty BookIDs matches every book.
type Filter struct {
	BookIDs []string
}

// Matches reports whether bookID passes the filter.
func (f Filter) Matches(bookID string) bool {
	if len(f.BookIDs) == 0 {
		return true
	}
	for _, id := range f.BookIDs {
		if id == bookID {
			return true
		}
	}
	return false
}

// ChunkStore is the vector store holding book chunks. Backends report
// failures as *common.StoreError.
type ChunkStore interface {
	// GetByBook returns every chunk of bookID ordered by chunk index.
	GetByBook(ctx context.Context, bookID string) ([]common.Chunk, error)
	// Query returns at most k chunks ranked by ascending distance to text.
	Query(ctx context.Context, text string, k int, filter Filter) ([]common.ScoredChunk, error)
	// Upsert stores chunks keyed by their id. Re-upserting an id overwrites.
	Upsert(ctx context.Context, chunks []common.Chunk) error
	// ListBooks groups stored chunks into books.
	ListBooks(ctx context.Context) ([]common.Book, error)
}

// EntityIndex holds knowledge graph entities for semantic search.
type EntityIndex interface {
	Upsert(ctx context.Context, entities []common.IndexedEntity) error
	// Search returns at most limit matches ordered by ascending distance.
	// An empty bookID searches every book.
	Search(ctx context.Context, text string, bookID string, limit int) ([]common.EntityMatch, error)
}

// CandidateCount is the number of rows fetched for a query asking for k
// results: min(2k, MaxCandidates), but never fewer than k.
func CandidateCount(k int) int {
	if k <= 0 {
		return 0
	}
	n := min(2*k, MaxCandidates)
	return max(n, k)
}

// IdentityKey identifies a chunk by book and position, falling back to the
// first 50 characters of its text when identity metadata is missing.
func IdentityKey(c common.Chunk) string {
	if c.HasIdentity() {
		return fmt.Sprintf("%s:%d", c.BookID, c.ChunkIndex)
	}
	r := []rune(c.Text)
	if len(r) > 50 {
		r = r[:50]
	}
	return "text:" + string(r)
}

// Finalize orders candidates by ascending distance, drops repeated chunk
// identities (keeping the closest) and truncates to k. Equal distances
// keep their input order.
func Finalize(candidates []common.ScoredChunk, k int) []common.ScoredChunk {
	sorted := make([]common.ScoredChunk, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Distance < sorted[j].Distance
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]common.ScoredChunk, 0, min(len(sorted), max(k, 0)))
	for _, c := range sorted {
		if len(out) >= k {
			break
		}
		key := IdentityKey(c.Chunk)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// GroupBooks derives the book list from chunk metadata, ordered by title
// and then id.
func GroupBooks(chunks []common.Chunk) []common.Book {
	byID := make(map[string]*common.Book)
	for _, c := range chunks {
		if c.BookID == "" {
			continue
		}
		b, ok := byID[c.BookID]
		if !ok {
			b = &common.Book{
				BookID:    c.BookID,
				BookTitle: c.BookTitle,
				Author:    c.Author,
				Filename:  c.Filename,
			}
			byID[c.BookID] = b
		}
		b.ChunkCount++
	}

	books := make([]common.Book, 0, len(byID))
	for _, b := range byID {
		books = append(books, *b)
	}
	SortBooks(books)
	return books
}

func SortBooks(books []common.Book) {
	sort.Slice(books, func(i, j int) bool {
		if books[i].BookTitle != books[j].BookTitle {
			return books[i].BookTitle < books[j].BookTitle
		}
		return books[i].BookID < books[j].BookID
	})
}

// EntityDocument is the text indexed for an entity.
func EntityDocument(e common.Entity) string {
	return fmt.Sprintf("Entity: %s. Type: %s. Description: %s", e.Name, e.Type, e.Description)
}

// EntityIndexID namespaces an entity id by book.
func EntityIndexID(bookID, entityID string) string {
	return bookID + "_" + entityID
}
