package graph

import (
	"context"
	"sort"

	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
)

// CombinedID is the book id reported by the combined view.
const CombinedID = "combined"

// ToForceGraph projects the cleaned graph of bookID into nodes and links.
// Books without a graph yield an empty view.
func (x *Extractor) ToForceGraph(ctx context.Context, bookID string) (common.ForceGraphView, error) {
	g, err := x.ValidateAndClean(ctx, bookID)
	if err != nil {
		return common.ForceGraphView{}, err
	}
	return Project(bookID, g, ""), nil
}

// CombinedForceGraph unions the views of every book. Node ids are
// namespaced as book_id:entity_id.
func (x *Extractor) CombinedForceGraph(ctx context.Context) (common.ForceGraphView, error) {
	books, err := x.store.ListBooks(ctx)
	if err != nil {
		logger.Warn("[Graph] failed to list books for combined view", "err", err)
		books = nil
	}

	view := emptyView(CombinedID)
	for _, b := range books {
		g, err := x.ValidateAndClean(ctx, b.BookID)
		if err != nil {
			return common.ForceGraphView{}, err
		}
		part := Project(b.BookID, g, b.BookID+":")
		view.Nodes = append(view.Nodes, part.Nodes...)
		view.Links = append(view.Links, part.Links...)
	}
	view.Metadata.NodeCount = len(view.Nodes)
	view.Metadata.LinkCount = len(view.Links)
	return view, nil
}

// Project maps entities to nodes and relationships to links. Node order
// follows entity ids. A non-empty prefix namespaces ids and tags every node
// and link with bookID.
func Project(bookID string, g common.KnowledgeGraph, prefix string) common.ForceGraphView {
	view := emptyView(bookID)

	ids := make([]string, 0, len(g.Entities))
	for id := range g.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tag := ""
	if prefix != "" {
		tag = bookID
	}

	for _, id := range ids {
		e := g.Entities[id]
		view.Nodes = append(view.Nodes, common.ForceGraphNode{
			ID:          prefix + id,
			Name:        e.Name,
			Type:        e.Type,
			Description: e.Description,
			Importance:  e.ImportanceOrDefault(),
			Group:       e.Type,
			BookID:      tag,
		})
	}
	for _, r := range g.Relationships {
		view.Links = append(view.Links, common.ForceGraphLink{
			Source:      prefix + r.From,
			Target:      prefix + r.To,
			Type:        r.Type,
			Strength:    r.StrengthOrDefault(),
			Description: r.Description,
			BookID:      tag,
		})
	}
	view.Metadata.NodeCount = len(view.Nodes)
	view.Metadata.LinkCount = len(view.Links)
	return view
}

func emptyView(bookID string) common.ForceGraphView {
	return common.ForceGraphView{
		Nodes:    []common.ForceGraphNode{},
		Links:    []common.ForceGraphLink{},
		Metadata: common.ForceGraphMetadata{BookID: bookID},
	}
}
