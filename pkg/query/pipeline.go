package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/minitru/bunnyAI/internal/util"
	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/retriever"
)

// NoInformationAnswer is returned without calling the model when retrieval
// finds nothing.
const NoInformationAnswer = "I couldn't find any relevant information in the documents to answer your question."

// DefaultQueryTimeout bounds answer composition.
const DefaultQueryTimeout = 5 * time.Minute

const maxHistory = 100

// State is a step of a single query.
type State int

const (
	StateInit State = iota
	StateRetrieving
	StateContextEmpty
	StateContextFound
	StateComposing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRetrieving:
		return "RETRIEVING"
	case StateContextEmpty:
		return "CONTEXT_EMPTY"
	case StateContextFound:
		return "CONTEXT_FOUND"
	case StateComposing:
		return "COMPOSING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type ChunkRetriever interface {
	Retrieve(ctx context.Context, question string, bookIDs []string, n int) ([]common.ScoredChunk, error)
}

type KnowledgeSource interface {
	Knowledge(ctx context.Context, bookIDs []string, allBooks bool) string
}

type BookLister interface {
	ListBooks(ctx context.Context) ([]common.Book, error)
}

// Request is a single question. An empty BookID searches every book.
type Request struct {
	Question         string
	BookID           string
	ContextChunks    int
	UseBookKnowledge bool
}

// Response carries the answer and how it was produced. States lists the
// steps the query went through.
type Response struct {
	Answer            string   `json:"answer"`
	BooksSearched     []string `json:"books_searched"`
	ContextLength     int      `json:"context_length"`
	ChunksUsed        int      `json:"chunks_used"`
	BookKnowledgeUsed bool     `json:"book_knowledge_used"`
	ModelUsed         string   `json:"model_used,omitempty"`
	ProcessingTime    float64  `json:"processing_time"`
	Degraded          bool     `json:"degraded,omitempty"`
	States            []State  `json:"-"`
}

// Status describes the loaded library.
type Status struct {
	BooksLoaded               int             `json:"books_loaded"`
	TotalChunks               int             `json:"total_chunks"`
	SystemReady               bool            `json:"system_ready"`
	AvailableBooks            []string        `json:"available_books"`
	ConversationHistoryLength int             `json:"conversation_history_length"`
	AIMetrics                 ai.ModelMetrics `json:"ai_metrics"`
}

type NewPipelineParams struct {
	Retriever    ChunkRetriever
	Knowledge    KnowledgeSource
	Books        BookLister
	Client       ai.GraphAIClient
	Composer     *Composer
	Grace        time.Duration
	Timeout      time.Duration
	HistoryTurns int
	Now          func() time.Time
}

// Pipeline answers questions: retrieve, look up book knowledge, compose.
// It is safe for concurrent use.
type Pipeline struct {
	retriever    ChunkRetriever
	knowledge    KnowledgeSource
	books        BookLister
	client       ai.GraphAIClient
	composer     *Composer
	grace        time.Duration
	timeout      time.Duration
	historyTurns int
	now          func() time.Time

	mu      sync.Mutex
	history []Turn
}

func NewPipeline(p NewPipelineParams) *Pipeline {
	if p.Composer == nil {
		p.Composer = NewComposer(p.Client)
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultQueryTimeout
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Pipeline{
		retriever:    p.Retriever,
		knowledge:    p.Knowledge,
		books:        p.Books,
		client:       p.Client,
		composer:     p.Composer,
		grace:        p.Grace,
		timeout:      p.Timeout,
		historyTurns: p.HistoryTurns,
		now:          p.Now,
	}
}

// Query runs one question through the pipeline. Model failures do not fail
// the query: the answer holds an error message and Degraded is set. Only
// invalid input and caller cancellation return an error.
func (p *Pipeline) Query(ctx context.Context, req Request) (Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Response{}, &common.BadRequestError{Reason: "Question is required"}
	}

	start := p.now()
	res := Response{States: []State{StateInit}}
	finish := func() (Response, error) {
		res.States = append(res.States, StateDone)
		res.ProcessingTime = math.Round(p.now().Sub(start).Seconds()*100) / 100
		return res, nil
	}

	books := p.listBooks(ctx)
	allBooks := req.BookID == ""
	var filter []string
	if allBooks {
		res.BooksSearched = make([]string, 0, len(books))
		for _, b := range books {
			res.BooksSearched = append(res.BooksSearched, b.BookID)
		}
	} else {
		filter = []string{req.BookID}
		res.BooksSearched = filter
	}

	res.States = append(res.States, StateRetrieving)
	chunks, err := p.retriever.Retrieve(ctx, question, filter, req.ContextChunks)
	if errors.Is(err, retriever.ErrNoContext) {
		res.States = append(res.States, StateContextEmpty)
		res.Answer = NoInformationAnswer
		return finish()
	}
	if err != nil {
		return Response{}, err
	}

	res.States = append(res.States, StateContextFound)
	contextText := retriever.FormatContext(chunks)
	res.ContextLength = len(contextText)
	res.ChunksUsed = len(chunks)

	knowledge := ""
	if req.UseBookKnowledge && p.knowledge != nil {
		knowledge = p.knowledge.Knowledge(ctx, res.BooksSearched, allBooks)
	}
	res.BookKnowledgeUsed = knowledge != ""

	if err := p.pause(ctx); err != nil {
		return Response{}, err
	}

	res.States = append(res.States, StateComposing)
	res.ModelUsed = p.client.Model()
	in := ComposeInput{
		Question:   question,
		Context:    contextText,
		Knowledge:  knowledge,
		BookTitles: titles(books, res.BooksSearched),
		History:    p.recentHistory(),
	}
	answer, err := util.RunWithTimeout(ctx, "compose", p.timeout, func(ctx context.Context) (string, error) {
		return p.composer.Compose(ctx, in)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		logger.Warn("[Query] answer degraded", "err", err)
		if answer == "" {
			answer = fmt.Sprintf("Error generating response: %v", err)
		}
		res.Degraded = true
	} else {
		p.remember(Turn{Question: question, Answer: answer})
	}
	res.Answer = answer
	return finish()
}

// Status reports the loaded books and conversation state.
func (p *Pipeline) Status(ctx context.Context) (Status, error) {
	books, err := p.books.ListBooks(ctx)
	if err != nil {
		return Status{}, err
	}
	s := Status{
		BooksLoaded:               len(books),
		SystemReady:               true,
		AvailableBooks:            make([]string, 0, len(books)),
		ConversationHistoryLength: p.HistoryLen(),
		AIMetrics:                 p.client.GetMetrics(),
	}
	for _, b := range books {
		s.TotalChunks += b.ChunkCount
		s.AvailableBooks = append(s.AvailableBooks, b.BookTitle)
	}
	return s, nil
}

func (p *Pipeline) HistoryLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.history)
}

func (p *Pipeline) ClearHistory() {
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()
}

func (p *Pipeline) remember(t Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, t)
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
}

func (p *Pipeline) recentHistory() []Turn {
	if p.historyTurns <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	from := max(len(p.history)-p.historyTurns, 0)
	return append([]Turn(nil), p.history[from:]...)
}

func (p *Pipeline) pause(ctx context.Context) error {
	if p.grace <= 0 {
		return nil
	}
	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) listBooks(ctx context.Context) []common.Book {
	if p.books == nil {
		return nil
	}
	books, err := p.books.ListBooks(ctx)
	if err != nil {
		logger.Warn("[Query] listing books failed", "err", err)
		return nil
	}
	return books
}

// titles maps ids to titles, falling back to the id for unknown books.
func titles(books []common.Book, ids []string) []string {
	byID := make(map[string]string, len(books))
	for _, b := range books {
		byID[b.BookID] = b.BookTitle
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if t := byID[id]; t != "" {
			out = append(out, t)
		} else {
			out = append(out, id)
		}
	}
	return out
}
