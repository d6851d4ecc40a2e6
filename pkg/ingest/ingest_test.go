package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/store/memory"
)

const bookText = "Sidetrack Key\nby Jessica Example\n\nThe storm came in low over the water. Wanda tied the boat twice. Nobody else was awake."

func TestInfoFromName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want BookInfo
	}{
		{
			name: "books/Sidetrack_Key.txt",
			text: bookText,
			want: BookInfo{BookID: "sidetrack_key", Title: "Sidetrack Key", Author: "Jessica Example", Filename: "Sidetrack_Key.txt"},
		},
		{
			name: "nonamekey.md",
			text: "No byline here.",
			want: BookInfo{BookID: "nonamekey", Title: "Nonamekey", Author: UnknownAuthor, Filename: "nonamekey.md"},
		},
		{
			name: "late.txt",
			text: strings.Repeat("x", authorHeadChars) + "\nby Too Late",
			want: BookInfo{BookID: "late", Title: "Late", Author: UnknownAuthor, Filename: "late.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InfoFromName(tt.name, tt.text); got != tt.want {
				t.Fatalf("InfoFromName() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type blobs map[string]string

func (b blobs) GetFile(_ context.Context, key string) ([]byte, error) {
	v, ok := b[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return []byte(v), nil
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "sidetrack_key.txt")
	if err := os.WriteFile(local, []byte(bookText), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/books/plain_tale.txt":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("A plain tale. It ends."))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader(WithHTTPClient(srv.Client()), WithBlobs(blobs{"books/blob_book.txt": "Stored in a bucket."}))
	ctx := context.Background()

	doc, err := l.Load(ctx, local)
	if err != nil {
		t.Fatalf("Load(file) error = %v", err)
	}
	if doc.Info.BookID != "sidetrack_key" || doc.Info.Author != "Jessica Example" || doc.Text != bookText {
		t.Fatalf("unexpected document %+v", doc.Info)
	}

	doc, err = l.Load(ctx, srv.URL+"/books/plain_tale.txt")
	if err != nil {
		t.Fatalf("Load(url) error = %v", err)
	}
	if doc.Info.BookID != "plain_tale" || doc.Text != "A plain tale. It ends." {
		t.Fatalf("unexpected document %+v %q", doc.Info, doc.Text)
	}

	doc, err = l.Load(ctx, "s3://books/blob_book.txt")
	if err != nil {
		t.Fatalf("Load(s3) error = %v", err)
	}
	if doc.Info.BookID != "blob_book" || doc.Text != "Stored in a bucket." {
		t.Fatalf("unexpected document %+v", doc)
	}

	for _, source := range []string{empty, srv.URL + "/missing", "s3://nope", filepath.Join(dir, "absent.txt")} {
		if _, err := l.Load(ctx, source); err == nil {
			t.Fatalf("Load(%q) expected an error", source)
		}
	}

	if _, err := NewLoader().Load(ctx, "s3://books/blob_book.txt"); err == nil {
		t.Fatal("expected an error without a blob store")
	}
}

func TestIngest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidetrack_key.txt")
	if err := os.WriteFile(path, []byte(bookText), 0o644); err != nil {
		t.Fatal(err)
	}

	s := memory.NewChunkStore(ai.NewHashEmbedder(ai.DefaultHashDimensions))
	splitter, err := NewSplitter("", 12, 0)
	if err != nil {
		t.Fatal(err)
	}
	ing := NewIngester(s, NewLoader(), splitter)
	ctx := context.Background()

	res, err := ing.Ingest(ctx, path, BookInfo{Title: "Sidetrack Key (Draft)"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Chunks == 0 || res.Book.BookID != "sidetrack_key" || res.Book.Title != "Sidetrack Key (Draft)" {
		t.Fatalf("unexpected result %+v", res)
	}

	if _, err := ing.Ingest(ctx, path, BookInfo{Title: "Sidetrack Key (Draft)"}); err != nil {
		t.Fatal(err)
	}

	chunks, err := s.GetByBook(ctx, "sidetrack_key")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != res.Chunks {
		t.Fatalf("re-ingest duplicated chunks: %d stored, %d expected", len(chunks), res.Chunks)
	}
	for i, c := range chunks {
		if c.ChunkIndex != i || c.TotalChunks != res.Chunks || c.BookTitle != "Sidetrack Key (Draft)" {
			t.Fatalf("chunk %d = %+v", i, c)
		}
	}

	books, err := s.ListBooks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0].ChunkCount != res.Chunks {
		t.Fatalf("ListBooks() = %+v", books)
	}
}
