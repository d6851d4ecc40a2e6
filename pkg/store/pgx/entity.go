package pgx

import (
	"context"
	"fmt"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/store"

	"github.com/pgvector/pgvector-go"
)

// EntityIndex keeps knowledge graph entities in the book_entities table.
type EntityIndex struct {
	conn     DBPool
	embedder ai.Embedder
}

var _ store.EntityIndex = (*EntityIndex)(nil)

func NewEntityIndex(conn DBPool, embedder ai.Embedder) *EntityIndex {
	return &EntityIndex{conn: conn, embedder: embedder}
}

const upsertEntitySQL = `
INSERT INTO book_entities (id, entity_id, name, type, book_id, importance, document, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
SET entity_id = EXCLUDED.entity_id,
    name = EXCLUDED.name,
    type = EXCLUDED.type,
    book_id = EXCLUDED.book_id,
    importance = EXCLUDED.importance,
    document = EXCLUDED.document,
    embedding = EXCLUDED.embedding`

func (x *EntityIndex) Upsert(ctx context.Context, entities []common.IndexedEntity) error {
	if len(entities) == 0 {
		return nil
	}

	var missing []string
	var missingIdx []int
	for i, e := range entities {
		if e.Embedding == nil {
			missing = append(missing, e.Document)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) > 0 {
		embeddings, err := store.EmbedTexts(ctx, x.embedder, missing)
		if err != nil {
			return &common.StoreError{Op: "index entities", Err: fmt.Errorf("failed to embed entities: %w", err)}
		}
		for j, i := range missingIdx {
			entities[i].Embedding = embeddings[j]
		}
	}

	tx, err := x.conn.Begin(ctx)
	if err != nil {
		return &common.StoreError{Op: "index entities", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, e := range entities {
		_, err := tx.Exec(ctx, upsertEntitySQL,
			e.ID, e.EntityID, e.Name, e.Type, e.BookID, e.Importance, e.Document,
			pgvector.NewVector(e.Embedding),
		)
		if err != nil {
			return &common.StoreError{Op: "index entities", Err: fmt.Errorf("entity %s: %w", e.ID, err)}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &common.StoreError{Op: "index entities", Err: err}
	}
	return nil
}

const searchEntitiesSQL = `
SELECT entity_id, name, type, book_id, importance, embedding <=> $1 AS distance
FROM book_entities
WHERE $2::text = '' OR book_id = $2::text
ORDER BY distance, book_id, entity_id
LIMIT $3`

func (x *EntityIndex) Search(ctx context.Context, text string, bookID string, limit int) ([]common.EntityMatch, error) {
	if limit <= 0 {
		return []common.EntityMatch{}, nil
	}
	emb, err := x.embedder.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, &common.StoreError{Op: "search entities", Err: fmt.Errorf("failed to embed query: %w", err)}
	}

	rows, err := x.conn.Query(ctx, searchEntitiesSQL, pgvector.NewVector(emb), bookID, limit)
	if err != nil {
		return nil, &common.StoreError{Op: "search entities", Err: err}
	}
	defer rows.Close()

	out := make([]common.EntityMatch, 0, limit)
	for rows.Next() {
		var m common.EntityMatch
		if err := rows.Scan(&m.EntityID, &m.Name, &m.Type, &m.BookID, &m.Importance, &m.Distance); err != nil {
			return nil, &common.StoreError{Op: "search entities", Err: err}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.StoreError{Op: "search entities", Err: err}
	}
	return out, nil
}
