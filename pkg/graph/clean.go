package graph

import (
	"context"

	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
)

// Clean drops relationships whose endpoints are not both entities of g and
// reports how many were removed.
func Clean(g common.KnowledgeGraph) (common.KnowledgeGraph, int) {
	entities := g.Entities
	if entities == nil {
		entities = map[string]common.Entity{}
	}
	kept := make([]common.Relationship, 0, len(g.Relationships))
	for _, r := range g.Relationships {
		_, fromOK := entities[r.From]
		_, toOK := entities[r.To]
		if fromOK && toOK {
			kept = append(kept, r)
		}
	}
	return common.KnowledgeGraph{Entities: entities, Relationships: kept}, len(g.Relationships) - len(kept)
}

// ValidateAndClean loads the cached graph of bookID, removes orphaned
// relationships and writes the result back when anything was removed. A
// missing graph yields an empty one.
func (x *Extractor) ValidateAndClean(ctx context.Context, bookID string) (common.KnowledgeGraph, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	entry, ok := x.graphs.GetEntry(ctx, bookID)
	if !ok {
		return common.KnowledgeGraph{
			Entities:      map[string]common.Entity{},
			Relationships: []common.Relationship{},
		}, nil
	}

	cleaned, removed := Clean(entry.Payload)
	if removed > 0 {
		logger.Info("[Graph] removed orphaned relationships", "book_id", bookID, "removed", removed)
		// keep the original created_at so cleaning does not extend validity
		x.graphs.Put(ctx, bookID, cleaned, entry.Metadata)
	}
	return cleaned, nil
}
