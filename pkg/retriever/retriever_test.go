package retriever

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/store"
	"github.com/minitru/bunnyAI/pkg/store/memory"
)

type fakeStore struct {
	mu      sync.Mutex
	results map[string][]common.ScoredChunk
	err     error
	calls   map[string]int
}

func (f *fakeStore) GetByBook(context.Context, string) ([]common.Chunk, error) { return nil, nil }
func (f *fakeStore) Upsert(context.Context, []common.Chunk) error              { return nil }
func (f *fakeStore) ListBooks(context.Context) ([]common.Book, error)          { return nil, nil }

func (f *fakeStore) Query(_ context.Context, text string, k int, _ store.Filter) ([]common.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[text] = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results[text], nil
}

func sc(book string, idx int, dist float64) common.ScoredChunk {
	return common.ScoredChunk{Chunk: common.Chunk{BookID: book, BookTitle: "T-" + book, ChunkIndex: idx, Text: "text"}, Distance: dist}
}

func TestKeyTerms(t *testing.T) {
	tests := []struct {
		question string
		want     []string
	}{
		{question: "Who is the protagonist?", want: []string{"who", "protagonist"}},
		{question: "What did Wanda do in the storm, and why!", want: []string{"what", "wanda", "storm", "why"}},
		{question: "is it me", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := KeyTerms(tt.question); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("KeyTerms() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetrieve_MergesDedupesAndSorts(t *testing.T) {
	fs := &fakeStore{results: map[string][]common.ScoredChunk{
		"who is the protagonist": {sc("b1", 1, 0.3), sc("b1", 2, 0.5)},
		"who":                    {sc("b1", 2, 0.1), sc("b1", 7, 0.3)},
		"protagonist":            {sc("b1", 1, 0.2), sc("b1", 9, 0.4)},
	}}

	got, err := New(fs).Retrieve(context.Background(), "who is the protagonist", []string{"b1"}, 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	var idx []int
	for _, c := range got {
		idx = append(idx, c.ChunkIndex)
	}
	// chunk 2 keeps the direct-query distance; ties keep direct results first
	want := []int{1, 7, 9, 2}
	if !reflect.DeepEqual(idx, want) {
		t.Fatalf("Retrieve() order = %v, want %v", idx, want)
	}
	if fs.calls["who"] != DefaultTermResults || fs.calls["who is the protagonist"] != 5 {
		t.Fatalf("unexpected query sizes %v", fs.calls)
	}
}

func TestRetrieve_TruncatesToN(t *testing.T) {
	fs := &fakeStore{results: map[string][]common.ScoredChunk{
		"storm": {sc("b1", 1, 0.1), sc("b1", 2, 0.2), sc("b1", 3, 0.3)},
	}}
	got, err := New(fs).Retrieve(context.Background(), "storm", nil, 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
}

func TestRetrieve_LimitsKeyTerms(t *testing.T) {
	fs := &fakeStore{}
	_, _ = New(fs, WithMaxTerms(2)).Retrieve(context.Background(), "alpha beta gamma delta", nil, 3)
	if len(fs.calls) != 3 {
		t.Fatalf("expected direct query plus 2 terms, got %v", fs.calls)
	}
}

func TestRetrieve_TermResults(t *testing.T) {
	fs := &fakeStore{}
	_, _ = New(fs, WithTermResults(4)).Retrieve(context.Background(), "lighthouse keeper", nil, 30)
	want := map[string]int{"lighthouse keeper": 30, "lighthouse": 4, "keeper": 4}
	if !reflect.DeepEqual(fs.calls, want) {
		t.Fatalf("query sizes = %v, want %v", fs.calls, want)
	}
}

func TestRetrieve_EmptyIsSentinel(t *testing.T) {
	_, err := New(&fakeStore{}).Retrieve(context.Background(), "nothing here", nil, 5)
	if !errors.Is(err, ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
}

func TestRetrieve_StoreErrorDegradesToEmpty(t *testing.T) {
	fs := &fakeStore{err: &common.StoreError{Op: "query", Err: errors.New("down")}}
	_, err := New(fs).Retrieve(context.Background(), "who is the protagonist", nil, 5)
	if !errors.Is(err, ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
}

func TestRetrieve_NoDuplicateIdentities(t *testing.T) {
	s := memory.NewChunkStore(ai.NewHashEmbedder(ai.DefaultHashDimensions))
	var chunks []common.Chunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, common.Chunk{ID: "b1_" + string(rune('a'+i)), BookID: "b1", ChunkIndex: i, Text: "protagonist storm wanda"})
	}
	if err := s.Upsert(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}

	got, err := New(s).Retrieve(context.Background(), "who is the protagonist in the storm", []string{"b1"}, 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) > 5 {
		t.Fatalf("expected at most 5 chunks, got %d", len(got))
	}
	seen := map[string]bool{}
	for i, c := range got {
		key := store.IdentityKey(c.Chunk)
		if seen[key] {
			t.Fatalf("duplicate identity %s", key)
		}
		seen[key] = true
		if c.BookID != "b1" {
			t.Fatalf("chunk from book %q", c.BookID)
		}
		if i > 0 && got[i-1].Distance > c.Distance {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestFormatContext(t *testing.T) {
	chunks := []common.ScoredChunk{
		{Chunk: common.Chunk{BookTitle: "Wanda", ChunkIndex: 4, Text: "first"}},
		{Chunk: common.Chunk{ChunkIndex: 9, Text: "second"}},
	}
	want := "--- Wanda - Section 1 (chunk 4) ---\nfirst\n\n--- Unknown Book - Section 2 (chunk 9) ---\nsecond\n"
	if got := FormatContext(chunks); got != want {
		t.Fatalf("FormatContext() = %q, want %q", got, want)
	}
}
