package common

import "time"

// Chunk is a contiguous passage of a book as stored in the chunk store.
// Its identity is the pair (BookID, ChunkIndex); ID is the store key and is
// conventionally "{book_id}_chunk_{chunk_index}".
type Chunk struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	BookID      string `json:"book_id"`
	BookTitle   string `json:"book_title"`
	Author      string `json:"author"`
	Filename    string `json:"filename,omitempty"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// HasIdentity reports whether the chunk carries the metadata needed to
// identify it by book and position.
func (c Chunk) HasIdentity() bool {
	return c.BookID != ""
}

// ScoredChunk is a chunk returned by a similarity query together with its
// distance to the query. Lower distances are more relevant.
type ScoredChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}

// Book is derived by grouping chunks that share a book id. It is never
// persisted on its own.
type Book struct {
	BookID     string `json:"book_id"`
	BookTitle  string `json:"book_title"`
	Author     string `json:"author"`
	Filename   string `json:"filename,omitempty"`
	ChunkCount int    `json:"chunk_count"`
}

// BookAnalysis is the LLM generated background knowledge for a single book.
// A failed section holds an inline error string instead of text.
type BookAnalysis struct {
	BookID            string    `json:"book_id"`
	BookTitle         string    `json:"book_title"`
	BookSummary       string    `json:"book_summary"`
	CharacterAnalysis string    `json:"character_analysis"`
	PlotAnalysis      string    `json:"plot_analysis"`
	CreatedAt         time.Time `json:"created_at"`
	Model             string    `json:"model"`
	ChunksAnalyzed    int       `json:"chunks_analyzed"`
	TotalChunks       int       `json:"total_chunks"`
}

// CombinedAnalysis is the comparative analysis across all books.
type CombinedAnalysis struct {
	Analysis      string    `json:"combined_analysis"`
	BooksAnalyzed int       `json:"books_analyzed"`
	CreatedAt     time.Time `json:"created_at"`
}

// Entity types produced by knowledge graph extraction.
const (
	EntityCharacter = "character"
	EntityPlace     = "place"
	EntityObject    = "object"
	EntityEvent     = "event"
	EntityConcept   = "concept"
)

// DefaultWeight is used for importance and strength when the model omits them.
const DefaultWeight = 0.5

// Entity is a node of a book's knowledge graph. Importance and strength
// values are pointers so a missing value can be told apart from zero.
type Entity struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Importance  *float64 `json:"importance,omitempty"`
	BookID      string   `json:"book_id"`
}

// ImportanceOrDefault returns the importance or DefaultWeight when unset.
func (e Entity) ImportanceOrDefault() float64 {
	if e.Importance == nil {
		return DefaultWeight
	}
	return *e.Importance
}

// Relationship is a directed edge between two entities of the same book.
type Relationship struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Type        string   `json:"type"`
	Strength    *float64 `json:"strength,omitempty"`
	Description string   `json:"description"`
	BookID      string   `json:"book_id"`
}

// StrengthOrDefault returns the strength or DefaultWeight when unset.
func (r Relationship) StrengthOrDefault() float64 {
	if r.Strength == nil {
		return DefaultWeight
	}
	return *r.Strength
}

// KnowledgeGraph holds the entities of a book keyed by entity id and the
// relationships between them.
//
// A relationship whose From or To is not a key of Entities is orphaned and
// is removed by validation.
type KnowledgeGraph struct {
	Entities      map[string]Entity `json:"entities"`
	Relationships []Relationship    `json:"relationships"`
}

// ForceGraphNode is a node of the visualisation view.
type ForceGraphNode struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Importance  float64 `json:"importance"`
	Group       string  `json:"group"`
	BookID      string  `json:"book_id,omitempty"`
}

// ForceGraphLink is an edge of the visualisation view.
type ForceGraphLink struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Strength    float64 `json:"strength"`
	Description string  `json:"description"`
	BookID      string  `json:"book_id,omitempty"`
}

// ForceGraphMetadata summarises a ForceGraphView.
type ForceGraphMetadata struct {
	BookID    string `json:"book_id"`
	NodeCount int    `json:"node_count"`
	LinkCount int    `json:"link_count"`
}

// ForceGraphView is the node/link projection of a knowledge graph used by
// force directed graph renderers. It is recomputed on every request.
type ForceGraphView struct {
	Nodes    []ForceGraphNode   `json:"nodes"`
	Links    []ForceGraphLink   `json:"links"`
	Metadata ForceGraphMetadata `json:"metadata"`
}

// EntityMatch is a single hit of a semantic entity search.
type EntityMatch struct {
	EntityID   string  `json:"entity_id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	BookID     string  `json:"book_id"`
	Importance float64 `json:"importance"`
	Distance   float64 `json:"distance"`
}

// IndexedEntity is the record written to the entity index.
type IndexedEntity struct {
	ID         string
	EntityID   string
	Name       string
	Type       string
	BookID     string
	Importance float64
	Document   string
	Embedding  []float32
}
