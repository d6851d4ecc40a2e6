package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/analysis"
	"github.com/minitru/bunnyAI/pkg/cache"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/store/memory"
)

const wandaGraph = "```json\n" + `{
  "entities": {
    "wanda": {"name": "Wanda", "type": "character", "description": "the heroine", "importance": 0.9},
    "forest": {"name": "Forest", "type": "place", "description": "dark woods"}
  },
  "relationships": [
    {"from": "wanda", "to": "forest", "type": "lives_in", "strength": 0.7, "description": "home"},
    {"from": "wanda", "to": "ghost", "type": "fears"}
  ]
}` + "\n```"

type fakeClient struct {
	mu     sync.Mutex
	calls  int
	output string
	err    error
	delay  time.Duration
}

func (f *fakeClient) GenerateCompletion(context.Context, string, ...ai.GenerateOption) (string, error) {
	return "analysis", nil
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, _, _, _ string, out any, _ ...ai.GenerateOption) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	return ai.UnmarshalFlexible(f.output, out)
}

func (f *fakeClient) GenerateChat(context.Context, []ai.ChatMessage, ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (f *fakeClient) Model() string               { return "test-model" }
func (f *fakeClient) ResetMetrics()               {}
func (f *fakeClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	extractor *Extractor
	client    *fakeClient
	backend   cache.Backend
	chunks    *memory.ChunkStore
	index     *memory.EntityIndex
}

func newFixture(t *testing.T, output string) *fixture {
	t.Helper()
	embedder := ai.NewHashEmbedder(ai.DefaultHashDimensions)
	chunks := memory.NewChunkStore(embedder)
	for _, id := range []string{"b1", "b2"} {
		var cs []common.Chunk
		for i := 0; i < 3; i++ {
			cs = append(cs, common.Chunk{ID: fmt.Sprintf("%s_chunk_%d", id, i), BookID: id, BookTitle: "Title " + id, ChunkIndex: i, Text: "Wanda walks into the forest."})
		}
		if err := chunks.Upsert(context.Background(), cs); err != nil {
			t.Fatal(err)
		}
	}
	index := memory.NewEntityIndex(embedder)
	backend := cache.NewDiskBackend(t.TempDir())
	client := &fakeClient{output: output}
	return &fixture{
		extractor: NewExtractor(NewExtractorParams{Store: chunks, Index: index, Client: client, Cache: backend}),
		client:    client,
		backend:   backend,
		chunks:    chunks,
		index:     index,
	}
}

func seedGraph(t *testing.T, backend cache.Backend, bookID string, g common.KnowledgeGraph) {
	t.Helper()
	cache.New[common.KnowledgeGraph](backend, cache.KindKnowledgeGraph).Put(context.Background(), bookID, g, cache.Metadata{BookID: bookID})
}

func TestExtract_ParsesCachesAndIndexes(t *testing.T) {
	f := newFixture(t, wandaGraph)
	ctx := context.Background()

	g, err := f.extractor.ExtractBook(ctx, "b1", false)
	if err != nil {
		t.Fatalf("ExtractBook() error = %v", err)
	}
	if len(g.Entities) != 2 || len(g.Relationships) != 2 {
		t.Fatalf("unexpected graph %+v", g)
	}
	if g.Entities["wanda"].BookID != "b1" || g.Relationships[0].BookID != "b1" {
		t.Fatal("expected book id to be stamped on entities and relationships")
	}

	if _, err := f.extractor.ExtractBook(ctx, "b1", false); err != nil {
		t.Fatal(err)
	}
	if f.client.callCount() != 1 {
		t.Fatalf("expected cached graph to be reused, got %d calls", f.client.callCount())
	}

	matches, err := f.extractor.SearchEntities(ctx, "Entity: Wanda. Type: character. Description: the heroine", "b1", 5)
	if err != nil {
		t.Fatalf("SearchEntities() error = %v", err)
	}
	if len(matches) != 2 || matches[0].EntityID != "wanda" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		err     error
		wantErr any
	}{
		{name: "not an object", output: "[1, 2, 3]", wantErr: &common.ExtractionError{}},
		{name: "missing relationships", output: `{"entities": {}}`, wantErr: &common.ExtractionError{}},
		{name: "missing entities", output: `{"relationships": []}`, wantErr: &common.ExtractionError{}},
		{name: "upstream", err: errors.New("429 too many requests"), wantErr: &common.UpstreamError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.output)
			f.client.err = tt.err

			_, err := f.extractor.Extract(context.Background(), "b1", "content", false)
			switch tt.wantErr.(type) {
			case *common.ExtractionError:
				var target *common.ExtractionError
				if !errors.As(err, &target) {
					t.Fatalf("expected ExtractionError, got %v", err)
				}
			case *common.UpstreamError:
				var target *common.UpstreamError
				if !errors.As(err, &target) {
					t.Fatalf("expected UpstreamError, got %v", err)
				}
			}
			if _, ok := f.extractor.Cached(context.Background(), "b1"); ok {
				t.Fatal("failed extraction must not be cached")
			}
		})
	}
}

func TestExtractBook_UnknownBook(t *testing.T) {
	f := newFixture(t, wandaGraph)
	_, err := f.extractor.ExtractBook(context.Background(), "missing", true)
	var nf *common.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestValidateAndClean_RemovesOrphansOnce(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	seedGraph(t, f.backend, "b1", common.KnowledgeGraph{
		Entities: map[string]common.Entity{
			"a": {Name: "A", Type: common.EntityCharacter},
			"b": {Name: "B", Type: common.EntityPlace},
		},
		Relationships: []common.Relationship{{From: "a", To: "x", Type: "knows"}},
	})

	cleaned, err := f.extractor.ValidateAndClean(ctx, "b1")
	if err != nil {
		t.Fatalf("ValidateAndClean() error = %v", err)
	}
	if len(cleaned.Relationships) != 0 || len(cleaned.Entities) != 2 {
		t.Fatalf("unexpected cleaned graph %+v", cleaned)
	}

	stored, ok := f.extractor.Cached(ctx, "b1")
	if !ok || len(stored.Relationships) != 0 {
		t.Fatalf("expected cleaned graph to be persisted, got %+v", stored)
	}

	again, err := f.extractor.ValidateAndClean(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Relationships) != len(cleaned.Relationships) || len(again.Entities) != len(cleaned.Entities) {
		t.Fatal("second clean changed the graph")
	}
}

func TestValidateAndClean_MissingGraph(t *testing.T) {
	f := newFixture(t, "")
	g, err := f.extractor.ValidateAndClean(context.Background(), "b1")
	if err != nil {
		t.Fatal(err)
	}
	if g.Entities == nil || g.Relationships == nil || len(g.Entities) != 0 || len(g.Relationships) != 0 {
		t.Fatalf("expected empty non-nil graph, got %+v", g)
	}
}

func TestClean_OrphanInvariant(t *testing.T) {
	g := common.KnowledgeGraph{
		Entities: map[string]common.Entity{"a": {}, "b": {}, "c": {}},
		Relationships: []common.Relationship{
			{From: "a", To: "b"}, {From: "b", To: "z"}, {From: "y", To: "c"}, {From: "c", To: "a"},
		},
	}
	cleaned, removed := Clean(g)
	if removed != 2 || len(cleaned.Relationships) != 2 {
		t.Fatalf("expected 2 removed, got %d (%+v)", removed, cleaned.Relationships)
	}
	for _, r := range cleaned.Relationships {
		if _, ok := cleaned.Entities[r.From]; !ok {
			t.Fatalf("dangling from %q", r.From)
		}
		if _, ok := cleaned.Entities[r.To]; !ok {
			t.Fatalf("dangling to %q", r.To)
		}
	}
}

func TestToForceGraph(t *testing.T) {
	f := newFixture(t, wandaGraph)
	ctx := context.Background()
	if _, err := f.extractor.ExtractBook(ctx, "b1", false); err != nil {
		t.Fatal(err)
	}

	view, err := f.extractor.ToForceGraph(ctx, "b1")
	if err != nil {
		t.Fatalf("ToForceGraph() error = %v", err)
	}
	if len(view.Nodes) != 2 || len(view.Links) != 1 {
		t.Fatalf("expected 2 nodes and 1 link, got %d/%d", len(view.Nodes), len(view.Links))
	}
	if view.Metadata.BookID != "b1" || view.Metadata.NodeCount != 2 || view.Metadata.LinkCount != 1 {
		t.Fatalf("unexpected metadata %+v", view.Metadata)
	}

	forest := view.Nodes[0]
	if forest.ID != "forest" || forest.Group != common.EntityPlace || forest.Importance != common.DefaultWeight {
		t.Fatalf("unexpected node %+v", forest)
	}
	if view.Links[0].Source != "wanda" || view.Links[0].Target != "forest" || view.Links[0].Strength != 0.7 {
		t.Fatalf("unexpected link %+v", view.Links[0])
	}

	empty, err := f.extractor.ToForceGraph(ctx, "b2")
	if err != nil {
		t.Fatal(err)
	}
	if empty.Nodes == nil || empty.Links == nil || len(empty.Nodes) != 0 {
		t.Fatalf("expected empty view, got %+v", empty)
	}
}

func TestCombinedForceGraph(t *testing.T) {
	f := newFixture(t, wandaGraph)
	ctx := context.Background()
	for _, id := range []string{"b1", "b2"} {
		if _, err := f.extractor.ExtractBook(ctx, id, false); err != nil {
			t.Fatal(err)
		}
	}

	view, err := f.extractor.CombinedForceGraph(ctx)
	if err != nil {
		t.Fatalf("CombinedForceGraph() error = %v", err)
	}
	if len(view.Nodes) != 4 || len(view.Links) != 2 || view.Metadata.BookID != CombinedID {
		t.Fatalf("unexpected combined view %+v", view.Metadata)
	}
	if view.Nodes[0].ID != "b1:forest" || view.Nodes[0].BookID != "b1" {
		t.Fatalf("unexpected namespaced node %+v", view.Nodes[0])
	}
	if view.Links[1].Source != "b2:wanda" || view.Links[1].BookID != "b2" {
		t.Fatalf("unexpected namespaced link %+v", view.Links[1])
	}
}

func TestEntityRelationships(t *testing.T) {
	f := newFixture(t, wandaGraph)
	ctx := context.Background()
	if _, err := f.extractor.ExtractBook(ctx, "b1", false); err != nil {
		t.Fatal(err)
	}

	rels, err := f.extractor.EntityRelationships(ctx, "forest", "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 1 || rels[0].From != "wanda" {
		t.Fatalf("unexpected relationships %+v", rels)
	}

	none, _ := f.extractor.EntityRelationships(ctx, "forest", "b2")
	if len(none) != 0 {
		t.Fatalf("expected none, got %+v", none)
	}
}

func TestRefresher_Timeout(t *testing.T) {
	f := newFixture(t, wandaGraph)
	f.client.delay = time.Second

	r := NewRefresher(f.extractor, nil, 20*time.Millisecond)
	_, err := r.Refresh(context.Background(), "b1")
	var timeoutErr *common.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestRefresher_RefreshesGraphAndAnalysis(t *testing.T) {
	f := newFixture(t, wandaGraph)
	builder := analysis.NewBuilder(analysis.NewBuilderParams{Store: f.chunks, Client: f.client, Cache: f.backend})
	r := NewRefresher(f.extractor, builder, time.Minute)

	g, err := r.Refresh(context.Background(), "b1")
	if err != nil || len(g.Entities) != 2 {
		t.Fatalf("Refresh() = %+v, %v", g, err)
	}
	if _, err := r.Refresh(context.Background(), "b1"); err != nil {
		t.Fatal(err)
	}
	if f.client.callCount() != 2 {
		t.Fatalf("refresh must bypass the cache, got %d calls", f.client.callCount())
	}

	a, err := r.RefreshAnalysis(context.Background(), "b1")
	if err != nil || a.BookSummary != "analysis" {
		t.Fatalf("RefreshAnalysis() = %+v, %v", a, err)
	}
}
