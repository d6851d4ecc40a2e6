// Package cache persists generated artifacts (book analyses, knowledge
// graphs) in a timestamped envelope. Entries expire a fixed window after
// creation and every I/O failure degrades to a cache miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/minitru/bunnyAI/pkg/logger"
)

// DefaultExpiry is the validity window for every artifact kind.
const DefaultExpiry = 7 * 24 * time.Hour

// Artifact kinds, used as the first key segment.
const (
	KindAnalysis       = "analysis"
	KindKnowledgeGraph = "kg"
)

// CombinedKey is the analysis key holding the cross-book analysis.
const CombinedKey = "_combined"

// ErrNotFound is returned by a Backend for a missing key.
var ErrNotFound = errors.New("cache: key not found")

// Backend stores raw envelopes. Implementations must make Write atomic with
// respect to concurrent Read calls.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Metadata describes a cached payload. CreatedAt is kept as text so that
// envelopes with a missing or garbled timestamp can still be read and
// rejected by IsValid.
type Metadata struct {
	CreatedAt string            `json:"created_at"`
	BookID    string            `json:"book_id,omitempty"`
	Model     string            `json:"model,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Entry is the envelope written for every artifact.
type Entry[T any] struct {
	Payload  T        `json:"payload"`
	Metadata Metadata `json:"metadata"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseCreatedAt parses the envelope timestamp. Zone-less timestamps are
// read as local time.
func ParseCreatedAt(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsValid reports whether now - created_at is strictly less than expiry.
func IsValid(meta Metadata, now time.Time, expiry time.Duration) bool {
	created, ok := ParseCreatedAt(meta.CreatedAt)
	if !ok {
		return false
	}
	return now.Sub(created) < expiry
}

// Key joins an artifact kind and id into a backend key.
func Key(kind, id string) string {
	return kind + "/" + id
}

// Cache is a typed view over a Backend for one artifact kind.
type Cache[T any] struct {
	backend Backend
	kind    string
	expiry  time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	expiry time.Duration
	now    func() time.Time
}

// WithExpiry overrides DefaultExpiry.
func WithExpiry(d time.Duration) Option {
	return func(o *options) { o.expiry = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New[T any](backend Backend, kind string, opts ...Option) *Cache[T] {
	o := options{expiry: DefaultExpiry, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{backend: backend, kind: kind, expiry: o.expiry, now: o.now}
}

// Put stores payload under id. CreatedAt is stamped with the current time
// when the caller leaves it empty. Failures are logged and dropped.
func (c *Cache[T]) Put(ctx context.Context, id string, payload T, meta Metadata) {
	if meta.CreatedAt == "" {
		meta.CreatedAt = c.now().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(Entry[T]{Payload: payload, Metadata: meta})
	if err != nil {
		logger.Error("[Cache] failed to encode entry", "kind", c.kind, "key", id, "err", err)
		return
	}
	if err := c.backend.Write(ctx, Key(c.kind, id), data); err != nil {
		logger.Error("[Cache] failed to write entry", "kind", c.kind, "key", id, "err", err)
		return
	}
	logger.Debug("[Cache] stored entry", "kind", c.kind, "key", id)
}

// Get returns the payload when a valid entry exists.
func (c *Cache[T]) Get(ctx context.Context, id string) (T, bool) {
	entry, ok := c.GetEntry(ctx, id)
	return entry.Payload, ok
}

// GetEntry returns the envelope when a valid entry exists. Missing,
// unreadable, undecodable and expired entries all report false.
func (c *Cache[T]) GetEntry(ctx context.Context, id string) (Entry[T], bool) {
	var entry Entry[T]
	data, err := c.backend.Read(ctx, Key(c.kind, id))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("[Cache] failed to read entry", "kind", c.kind, "key", id, "err", err)
		}
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Warn("[Cache] failed to decode entry", "kind", c.kind, "key", id, "err", err)
		return Entry[T]{}, false
	}
	if !IsValid(entry.Metadata, c.now(), c.expiry) {
		logger.Debug("[Cache] entry expired", "kind", c.kind, "key", id, "created_at", entry.Metadata.CreatedAt)
		return Entry[T]{}, false
	}
	return entry, true
}

// Invalidate removes the entry for id.
func (c *Cache[T]) Invalidate(ctx context.Context, id string) {
	if err := c.backend.Delete(ctx, Key(c.kind, id)); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Warn("[Cache] failed to delete entry", "kind", c.kind, "key", id, "err", err)
	}
}

// Status describes one stored envelope regardless of its payload type.
type Status struct {
	Key       string   `json:"key"`
	Kind      string   `json:"kind"`
	ID        string   `json:"id"`
	Metadata  Metadata `json:"metadata"`
	Valid     bool     `json:"valid"`
	SizeBytes int      `json:"size_bytes"`
}

// Inspect lists every envelope under kind (all kinds when empty) with its
// validity at now.
func Inspect(ctx context.Context, backend Backend, kind string, now time.Time) ([]Status, error) {
	prefix := ""
	if kind != "" {
		prefix = kind + "/"
	}
	keys, err := backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(keys))
	for _, key := range keys {
		data, err := backend.Read(ctx, key)
		if err != nil {
			continue
		}
		var entry Entry[json.RawMessage]
		_ = json.Unmarshal(data, &entry)

		k, id, _ := strings.Cut(key, "/")
		out = append(out, Status{
			Key:       key,
			Kind:      k,
			ID:        id,
			Metadata:  entry.Metadata,
			Valid:     IsValid(entry.Metadata, now, DefaultExpiry),
			SizeBytes: len(data),
		})
	}
	return out, nil
}
