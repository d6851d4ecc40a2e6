package graph

import (
	"context"
	"errors"

	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
)

const DefaultSearchLimit = 10

// SearchEntities finds indexed entities similar to query, optionally within
// one book. Index failures yield no matches.
func (x *Extractor) SearchEntities(ctx context.Context, query, bookID string, limit int) ([]common.EntityMatch, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if x.index == nil {
		return []common.EntityMatch{}, nil
	}

	matches, err := x.index.Search(ctx, query, bookID, limit)
	if err != nil {
		var storeErr *common.StoreError
		if errors.As(err, &storeErr) {
			logger.Warn("[Graph] entity search failed", "query", query, "book_id", bookID, "err", err)
			return []common.EntityMatch{}, nil
		}
		return nil, err
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// EntityRelationships returns the cached relationships touching entityID.
func (x *Extractor) EntityRelationships(ctx context.Context, entityID, bookID string) ([]common.Relationship, error) {
	out := make([]common.Relationship, 0)
	g, ok := x.graphs.Get(ctx, bookID)
	if !ok {
		return out, nil
	}
	for _, r := range g.Relationships {
		if r.From == entityID || r.To == entityID {
			out = append(out, r)
		}
	}
	return out, nil
}
