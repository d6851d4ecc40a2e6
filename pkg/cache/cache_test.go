package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type analysis struct {
	Summary string `json:"book_summary"`
}

func TestIsValid_Boundaries(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt string
		want      bool
	}{
		{name: "just created", createdAt: now.Format(time.RFC3339Nano), want: true},
		{name: "one second before expiry", createdAt: now.Add(-DefaultExpiry + time.Second).Format(time.RFC3339Nano), want: true},
		{name: "exactly seven days", createdAt: now.Add(-DefaultExpiry).Format(time.RFC3339Nano), want: false},
		{name: "one second after expiry", createdAt: now.Add(-DefaultExpiry - time.Second).Format(time.RFC3339Nano), want: false},
		{name: "eight days ago", createdAt: now.Add(-8 * 24 * time.Hour).Format(time.RFC3339Nano), want: false},
		{name: "missing", createdAt: "", want: false},
		{name: "garbled", createdAt: "last tuesday", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValid(Metadata{CreatedAt: tt.createdAt}, now, DefaultExpiry)
			if got != tt.want {
				t.Fatalf("IsValid(%q) = %v, want %v", tt.createdAt, got, tt.want)
			}
		})
	}
}

func TestParseCreatedAt_ZonelessISO(t *testing.T) {
	got, ok := ParseCreatedAt("2025-03-10T12:00:00.123456")
	if !ok {
		t.Fatal("expected zone-less isoformat timestamp to parse")
	}
	if got.Year() != 2025 || got.Nanosecond() != 123456000 {
		t.Fatalf("unexpected time %s", got)
	}
}

func TestCache_DiskRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewDiskBackend(t.TempDir())
	c := New[analysis](backend, KindAnalysis)

	if _, ok := c.Get(ctx, "b1"); ok {
		t.Fatal("expected cold cache miss")
	}

	c.Put(ctx, "b1", analysis{Summary: "A story about Wanda."}, Metadata{BookID: "b1", Model: "m"})
	c.Put(ctx, "b1", analysis{Summary: "A story about Wanda, revised."}, Metadata{BookID: "b1", Model: "m"})

	entry, ok := c.GetEntry(ctx, "b1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Payload.Summary != "A story about Wanda, revised." {
		t.Fatalf("expected overwrite, got %q", entry.Payload.Summary)
	}
	if entry.Metadata.CreatedAt == "" || entry.Metadata.Model != "m" {
		t.Fatalf("unexpected metadata %+v", entry.Metadata)
	}

	c.Invalidate(ctx, "b1")
	c.Invalidate(ctx, "b1")
	if _, ok := c.Get(ctx, "b1"); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestCache_ExpiredEntryIsAbsent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	backend := NewDiskBackend(t.TempDir())
	c := New[analysis](backend, KindAnalysis, WithClock(func() time.Time { return now }))

	c.Put(ctx, "b1", analysis{Summary: "old"}, Metadata{CreatedAt: now.Add(-8 * 24 * time.Hour).Format(time.RFC3339Nano)})
	if _, ok := c.Get(ctx, "b1"); ok {
		t.Fatal("expected expired entry to be absent")
	}
}

func TestCache_CorruptFileIsAbsent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, KindKnowledgeGraph), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, KindKnowledgeGraph, "b1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New[analysis](NewDiskBackend(root), KindKnowledgeGraph)
	if _, ok := c.Get(ctx, "b1"); ok {
		t.Fatal("expected corrupt entry to be absent")
	}
}

func TestCache_WriteFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blocked")
	// a regular file where the cache directory should be
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New[analysis](NewDiskBackend(root), KindAnalysis)
	c.Put(ctx, "b1", analysis{Summary: "lost"}, Metadata{})
	if _, ok := c.Get(ctx, "b1"); ok {
		t.Fatal("expected miss after failed write")
	}
}

func TestDiskBackend_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	backend := NewDiskBackend(root)

	for i := 0; i < 3; i++ {
		if err := backend.Write(ctx, Key(KindAnalysis, "b1"), []byte(`{}`)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, KindAnalysis))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "b1.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only b1.json, got %v", names)
	}
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	backend := NewDiskBackend(t.TempDir())

	New[analysis](backend, KindAnalysis).Put(ctx, "b1", analysis{Summary: "s"}, Metadata{BookID: "b1"})
	New[analysis](backend, KindAnalysis).Put(ctx, CombinedKey, analysis{Summary: "c"}, Metadata{})
	New[analysis](backend, KindKnowledgeGraph).Put(ctx, "b1", analysis{}, Metadata{CreatedAt: now.Add(-10 * 24 * time.Hour).Format(time.RFC3339Nano)})

	all, err := Inspect(ctx, backend, "", now)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	graphs, err := Inspect(ctx, backend, KindKnowledgeGraph, now)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if len(graphs) != 1 || graphs[0].ID != "b1" || graphs[0].Valid {
		t.Fatalf("unexpected graph status %+v", graphs)
	}
}
