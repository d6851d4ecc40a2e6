// Package pgx implements the chunk store and entity index on Postgres with
// the pgvector extension.
package pgx

import (
	"context"
	"fmt"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBPool is the subset of *pgxpool.Pool the stores use.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertBatchSize = 500

// ChunkStore keeps chunks in the book_chunks table.
type ChunkStore struct {
	conn     DBPool
	embedder ai.Embedder
}

var _ store.ChunkStore = (*ChunkStore)(nil)

func NewChunkStore(conn DBPool, embedder ai.Embedder) *ChunkStore {
	return &ChunkStore{conn: conn, embedder: embedder}
}

const getByBookSQL = `
SELECT id, book_id, book_title, author, filename, chunk_index, total_chunks, text
FROM book_chunks
WHERE book_id = $1
ORDER BY chunk_index`

func (s *ChunkStore) GetByBook(ctx context.Context, bookID string) ([]common.Chunk, error) {
	rows, err := s.conn.Query(ctx, getByBookSQL, bookID)
	if err != nil {
		return nil, &common.StoreError{Op: "get by book", Err: err}
	}
	defer rows.Close()

	out := make([]common.Chunk, 0)
	for rows.Next() {
		var c common.Chunk
		if err := rows.Scan(&c.ID, &c.BookID, &c.BookTitle, &c.Author, &c.Filename, &c.ChunkIndex, &c.TotalChunks, &c.Text); err != nil {
			return nil, &common.StoreError{Op: "get by book", Err: err}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.StoreError{Op: "get by book", Err: err}
	}
	return out, nil
}

const queryChunksSQL = `
SELECT id, book_id, book_title, author, filename, chunk_index, total_chunks, text,
       embedding <=> $1 AS distance
FROM book_chunks
WHERE cardinality($2::text[]) = 0 OR book_id = ANY($2::text[])
ORDER BY distance, book_id, chunk_index
LIMIT $3`

func (s *ChunkStore) Query(ctx context.Context, text string, k int, filter store.Filter) ([]common.ScoredChunk, error) {
	if k <= 0 {
		return []common.ScoredChunk{}, nil
	}
	emb, err := s.embedder.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, &common.StoreError{Op: "query", Err: fmt.Errorf("failed to embed query: %w", err)}
	}

	bookIDs := store.BookIDs(filter.BookIDs)

	rows, err := s.conn.Query(ctx, queryChunksSQL, pgvector.NewVector(emb), bookIDs, store.CandidateCount(k))
	if err != nil {
		return nil, &common.StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	candidates := make([]common.ScoredChunk, 0, store.CandidateCount(k))
	for rows.Next() {
		var c common.ScoredChunk
		if err := rows.Scan(&c.ID, &c.BookID, &c.BookTitle, &c.Author, &c.Filename, &c.ChunkIndex, &c.TotalChunks, &c.Text, &c.Distance); err != nil {
			return nil, &common.StoreError{Op: "query", Err: err}
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.StoreError{Op: "query", Err: err}
	}

	return store.Finalize(candidates, k), nil
}

const upsertChunkSQL = `
INSERT INTO book_chunks (id, book_id, book_title, author, filename, chunk_index, total_chunks, text, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE
SET book_id = EXCLUDED.book_id,
    book_title = EXCLUDED.book_title,
    author = EXCLUDED.author,
    filename = EXCLUDED.filename,
    chunk_index = EXCLUDED.chunk_index,
    total_chunks = EXCLUDED.total_chunks,
    text = EXCLUDED.text,
    embedding = EXCLUDED.embedding`

func (s *ChunkStore) Upsert(ctx context.Context, chunks []common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	logger.Debug("[Store][Upsert] Upserting chunks", "chunks", len(chunks))

	return store.Batches(len(chunks), upsertBatchSize, func(start, end int) error {
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		embeddings, err := store.EmbedTexts(ctx, s.embedder, texts)
		if err != nil {
			return &common.StoreError{Op: "upsert", Err: fmt.Errorf("failed to embed chunks: %w", err)}
		}

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return &common.StoreError{Op: "upsert", Err: err}
		}
		defer tx.Rollback(ctx)

		for i, c := range batch {
			_, err := tx.Exec(ctx, upsertChunkSQL,
				c.ID, c.BookID, c.BookTitle, c.Author, c.Filename,
				c.ChunkIndex, c.TotalChunks, c.Text, pgvector.NewVector(embeddings[i]),
			)
			if err != nil {
				return &common.StoreError{Op: "upsert", Err: fmt.Errorf("chunk %s: %w", c.ID, err)}
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return &common.StoreError{Op: "upsert", Err: err}
		}
		return nil
	})
}

const listBooksSQL = `
SELECT book_id, max(book_title), max(author), max(filename), count(*)
FROM book_chunks
GROUP BY book_id`

func (s *ChunkStore) ListBooks(ctx context.Context) ([]common.Book, error) {
	rows, err := s.conn.Query(ctx, listBooksSQL)
	if err != nil {
		return nil, &common.StoreError{Op: "list books", Err: err}
	}
	defer rows.Close()

	books := make([]common.Book, 0)
	for rows.Next() {
		var (
			b     common.Book
			count int64
		)
		if err := rows.Scan(&b.BookID, &b.BookTitle, &b.Author, &b.Filename, &count); err != nil {
			return nil, &common.StoreError{Op: "list books", Err: err}
		}
		b.ChunkCount = int(count)
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.StoreError{Op: "list books", Err: err}
	}
	store.SortBooks(books)
	return books, nil
}
