package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/common"
)

func TestCandidateCount(t *testing.T) {
	tests := []struct {
		k    int
		want int
	}{
		{k: 0, want: 0},
		{k: 1, want: 2},
		{k: 5, want: 10},
		{k: 50, want: 100},
		{k: 80, want: 100},
		{k: 150, want: 150},
	}
	for _, tt := range tests {
		if got := CandidateCount(tt.k); got != tt.want {
			t.Fatalf("CandidateCount(%d) = %d, want %d", tt.k, got, tt.want)
		}
	}
}

func TestIdentityKey(t *testing.T) {
	withID := common.Chunk{BookID: "b1", ChunkIndex: 3, Text: "x"}
	if got := IdentityKey(withID); got != "b1:3" {
		t.Fatalf("unexpected key %q", got)
	}

	long := common.Chunk{Text: "Wanda walked into the forest before anyone else had noticed the storm"}
	if got := IdentityKey(long); got != "text:"+string([]rune(long.Text)[:50]) {
		t.Fatalf("unexpected fallback key %q", got)
	}
}

func TestFinalize_DedupSortTruncate(t *testing.T) {
	in := []common.ScoredChunk{
		{Chunk: common.Chunk{BookID: "b1", ChunkIndex: 2}, Distance: 0.4},
		{Chunk: common.Chunk{BookID: "b1", ChunkIndex: 1}, Distance: 0.2},
		{Chunk: common.Chunk{BookID: "b1", ChunkIndex: 2}, Distance: 0.1},
		{Chunk: common.Chunk{BookID: "b2", ChunkIndex: 0}, Distance: 0.2},
		{Chunk: common.Chunk{BookID: "b2", ChunkIndex: 9}, Distance: 0.9},
	}

	out := Finalize(in, 3)
	got := make([]string, 0, len(out))
	for _, c := range out {
		got = append(got, IdentityKey(c.Chunk))
	}
	want := []string{"b1:2", "b1:1", "b2:0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Finalize() = %v, want %v", got, want)
	}
	if out[0].Distance != 0.1 {
		t.Fatalf("expected closest duplicate to survive, got %v", out[0].Distance)
	}
}

func TestGroupBooks(t *testing.T) {
	chunks := []common.Chunk{
		{BookID: "b2", BookTitle: "Zebra Tales", ChunkIndex: 0},
		{BookID: "b1", BookTitle: "Apple Days", Author: "A", ChunkIndex: 0},
		{BookID: "b1", BookTitle: "Apple Days", Author: "A", ChunkIndex: 1},
		{Text: "orphan"},
	}

	books := GroupBooks(chunks)
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
	if books[0].BookID != "b1" || books[0].ChunkCount != 2 || books[1].ChunkCount != 1 {
		t.Fatalf("unexpected books %+v", books)
	}
}

func TestFilterMatches(t *testing.T) {
	if !(Filter{}).Matches("any") {
		t.Fatal("empty filter should match everything")
	}
	f := Filter{BookIDs: []string{"b1"}}
	if !f.Matches("b1") || f.Matches("b2") {
		t.Fatal("unexpected filter result")
	}
}

func TestBatches(t *testing.T) {
	var got [][2]int
	err := Batches(5, 2, func(start, end int) error {
		got = append(got, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{0, 2}, {2, 4}, {4, 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Batches = %v, want %v", got, want)
	}
}

func TestBookIDs(t *testing.T) {
	got := BookIDs([]string{" b2", "b1", "", "b2"})
	if want := []string{"b2", "b1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("BookIDs = %v, want %v", got, want)
	}
	if got := BookIDs(nil); got == nil || len(got) != 0 {
		t.Fatalf("BookIDs(nil) = %#v, want empty slice", got)
	}
}

type shortEmbedder struct{}

func (shortEmbedder) GenerateEmbedding(context.Context, []byte) ([]float32, error) {
	return []float32{1, 2}, nil
}
func (shortEmbedder) Dimensions() int { return 3 }

func TestEmbedTexts(t *testing.T) {
	vecs, err := EmbedTexts(context.Background(), ai.NewHashEmbedder(16), []string{"Wanda", "the storm"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 16 || len(vecs[1]) != 16 {
		t.Fatalf("unexpected vectors %v", vecs)
	}

	if _, err := EmbedTexts(context.Background(), shortEmbedder{}, []string{"x"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
