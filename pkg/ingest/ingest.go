package ingest

import (
	"context"
	"fmt"

	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/store"
)

// Result summarises one ingested book.
type Result struct {
	Book   BookInfo `json:"book"`
	Chunks int      `json:"chunks"`
}

// Ingester loads, chunks and stores books. Re-ingesting a book overwrites
// chunks with the same ids.
type Ingester struct {
	store    store.ChunkStore
	loader   *Loader
	splitter *Splitter
}

func NewIngester(s store.ChunkStore, loader *Loader, splitter *Splitter) *Ingester {
	return &Ingester{store: s, loader: loader, splitter: splitter}
}

// Ingest stores the book found at source. Non-empty fields of override
// replace the derived metadata.
func (i *Ingester) Ingest(ctx context.Context, source string, override BookInfo) (Result, error) {
	doc, err := i.loader.Load(ctx, source)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load %s: %w", source, err)
	}
	info := merge(doc.Info, override)

	texts := i.splitter.Split(doc.Text)
	chunks := BuildChunks(info, texts)
	if err := i.store.Upsert(ctx, chunks); err != nil {
		return Result{}, err
	}

	logger.Info("[Ingest] stored book", "book_id", info.BookID, "title", info.Title, "chunks", len(chunks))
	return Result{Book: info, Chunks: len(chunks)}, nil
}

func merge(base, override BookInfo) BookInfo {
	if override.BookID != "" {
		base.BookID = override.BookID
	}
	if override.Title != "" {
		base.Title = override.Title
	}
	if override.Author != "" {
		base.Author = override.Author
	}
	if override.Filename != "" {
		base.Filename = override.Filename
	}
	return base
}
