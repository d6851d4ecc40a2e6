package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/minitru/bunnyAI/internal/queue"
	mid "github.com/minitru/bunnyAI/internal/server/middleware"
	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/analysis"
	"github.com/minitru/bunnyAI/pkg/cache"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/graph"
	"github.com/minitru/bunnyAI/pkg/query"
	"github.com/minitru/bunnyAI/pkg/retriever"
	"github.com/minitru/bunnyAI/pkg/store/memory"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

const extraction = `{
  "entities": {
    "wanda": {"name": "Wanda", "type": "character", "description": "Captain of the Gull"},
    "gull": {"name": "The Gull", "type": "object", "description": "A fishing boat"}
  },
  "relationships": [
    {"from": "wanda", "to": "gull", "type": "owns", "description": "Wanda skippers the Gull"}
  ]
}`

type fakeClient struct {
	mu    sync.Mutex
	chats int
}

func (f *fakeClient) GenerateCompletion(context.Context, string, ...ai.GenerateOption) (string, error) {
	return "A story about a boat.", nil
}

func (f *fakeClient) GenerateCompletionWithFormat(_ context.Context, _, _, _ string, out any, _ ...ai.GenerateOption) error {
	return json.Unmarshal([]byte(extraction), out)
}

func (f *fakeClient) GenerateChat(context.Context, []ai.ChatMessage, ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	f.chats++
	f.mu.Unlock()
	return `{"answer": "Wanda is the captain of the Gull."}`, nil
}

func (f *fakeClient) Model() string { return "fake/model" }
func (f *fakeClient) ResetMetrics()  {}

func (f *fakeClient) GetMetrics() ai.ModelMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ai.ModelMetrics{Requests: f.chats}
}

type fakePublisher struct {
	keys []string
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, _ amqp091.Publishing) error {
	f.keys = append(f.keys, key)
	return nil
}

func newTestApp(t *testing.T) *mid.App {
	t.Helper()
	ctx := context.Background()

	embedder := ai.NewHashEmbedder(64)
	st := memory.NewChunkStore(embedder)
	err := st.Upsert(ctx, []common.Chunk{
		{ID: "b1_chunk_0", Text: "Wanda tied the Gull to the dock.", BookID: "b1", BookTitle: "Sidetrack Key", Author: "J. Doe", ChunkIndex: 0, TotalChunks: 2},
		{ID: "b1_chunk_1", Text: "The captain watched the storm come in.", BookID: "b1", BookTitle: "Sidetrack Key", Author: "J. Doe", ChunkIndex: 1, TotalChunks: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{}
	backend := cache.NewDiskBackend(t.TempDir())
	builder := analysis.NewBuilder(analysis.NewBuilderParams{Store: st, Client: client, Cache: backend})
	extractor := graph.NewExtractor(graph.NewExtractorParams{
		Store:  st,
		Index:  memory.NewEntityIndex(embedder),
		Client: client,
		Cache:  backend,
	})

	return &mid.App{
		Pipeline: query.NewPipeline(query.NewPipelineParams{
			Retriever: retriever.New(st),
			Knowledge: builder,
			Books:     st,
			Client:    client,
		}),
		Store:     st,
		Graph:     extractor,
		Refresher: graph.NewRefresher(extractor, builder, 0),
	}
}

func do(t *testing.T, e *echo.Echo, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: invalid json %q", method, path, rec.Body.String())
		}
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	e := New(newTestApp(t))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("GET /health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestBooksAndStatus(t *testing.T) {
	e := New(newTestApp(t))

	code, body := do(t, e, http.MethodGet, "/api/books", "")
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("GET /api/books = %d %v", code, body)
	}
	books := body["books"].([]any)
	if len(books) != 1 || books[0].(map[string]any)["book_id"] != "b1" {
		t.Fatalf("books = %v", books)
	}

	code, body = do(t, e, http.MethodGet, "/api/status", "")
	if code != http.StatusOK || body["books_loaded"] != float64(1) || body["total_chunks"] != float64(2) || body["system_ready"] != true {
		t.Fatalf("GET /api/status = %d %v", code, body)
	}
}

func TestQuery(t *testing.T) {
	e := New(newTestApp(t))

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "blank question", body: `{"question": "   "}`, wantCode: http.StatusBadRequest, wantErr: "Question is required"},
		{name: "missing question", body: `{"book": "b1"}`, wantCode: http.StatusBadRequest, wantErr: "Question is required"},
		{name: "malformed body", body: `{"question": `, wantCode: http.StatusBadRequest},
		{name: "too many chunks", body: `{"question": "Who?", "context_chunks": 5000}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, e, http.MethodPost, "/api/query", tt.body)
			if code != tt.wantCode || body["success"] != false {
				t.Fatalf("POST /api/query = %d %v", code, body)
			}
			if tt.wantErr != "" && body["error"] != tt.wantErr {
				t.Fatalf("error = %v, want %q", body["error"], tt.wantErr)
			}
		})
	}

	code, body := do(t, e, http.MethodPost, "/api/query", `{"question": "Who is the captain?", "book": "b1", "use_book_knowledge": false}`)
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("POST /api/query = %d %v", code, body)
	}
	if body["answer"] != "Wanda is the captain of the Gull." {
		t.Fatalf("answer = %v", body["answer"])
	}
	if body["book_knowledge_used"] != false || body["chunks_used"].(float64) < 1 || body["model_used"] != "fake/model" {
		t.Fatalf("unexpected metadata %v", body)
	}
	if searched := body["books_searched"].([]any); len(searched) != 1 || searched[0] != "b1" {
		t.Fatalf("books_searched = %v", searched)
	}

	_, body = do(t, e, http.MethodGet, "/api/status", "")
	if body["conversation_history_length"] != float64(1) {
		t.Fatalf("history after query = %v", body["conversation_history_length"])
	}

	code, body = do(t, e, http.MethodPost, "/api/clear-memory", "")
	if code != http.StatusOK || body["message"] != "Conversation history cleared" {
		t.Fatalf("POST /api/clear-memory = %d %v", code, body)
	}
	_, body = do(t, e, http.MethodGet, "/api/status", "")
	if body["conversation_history_length"] != float64(0) {
		t.Fatalf("history after clear = %v", body["conversation_history_length"])
	}
}

func TestKnowledgeGraphRoutes(t *testing.T) {
	e := New(newTestApp(t))

	code, body := do(t, e, http.MethodGet, "/api/knowledge-graph/b1", "")
	if code != http.StatusOK || len(body["knowledge_graph"].(map[string]any)["entities"].(map[string]any)) != 0 {
		t.Fatalf("GET before refresh = %d %v", code, body)
	}

	code, body = do(t, e, http.MethodPost, "/api/knowledge-graph/b1/refresh", "")
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("POST refresh = %d %v", code, body)
	}

	code, body = do(t, e, http.MethodGet, "/api/knowledge-graph/b1", "")
	kg := body["knowledge_graph"].(map[string]any)
	if code != http.StatusOK || len(kg["entities"].(map[string]any)) != 2 || len(kg["relationships"].([]any)) != 1 {
		t.Fatalf("GET after refresh = %d %v", code, body)
	}

	code, body = do(t, e, http.MethodGet, "/api/force-graph/b1", "")
	view := body["force_graph"].(map[string]any)
	if code != http.StatusOK || len(view["nodes"].([]any)) != 2 || len(view["links"].([]any)) != 1 {
		t.Fatalf("GET force graph = %d %v", code, body)
	}

	code, body = do(t, e, http.MethodGet, "/api/force-graph/combined", "")
	view = body["force_graph"].(map[string]any)
	nodes := view["nodes"].([]any)
	if code != http.StatusOK || len(nodes) != 2 || !strings.HasPrefix(nodes[0].(map[string]any)["id"].(string), "b1:") {
		t.Fatalf("GET combined = %d %v", code, body)
	}
	if view["metadata"].(map[string]any)["book_id"] != graph.CombinedID {
		t.Fatalf("combined metadata = %v", view["metadata"])
	}

	code, body = do(t, e, http.MethodPost, "/api/entities/search", `{"query": "Wanda captain", "book_id": "b1", "limit": 5}`)
	if code != http.StatusOK || body["count"].(float64) < 1 {
		t.Fatalf("POST entity search = %d %v", code, body)
	}

	code, body = do(t, e, http.MethodPost, "/api/entities/search", `{"book_id": "b1"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("POST entity search without query = %d %v", code, body)
	}

	code, body = do(t, e, http.MethodGet, "/api/entities/b1/wanda/relationships", "")
	if code != http.StatusOK || len(body["relationships"].([]any)) != 1 {
		t.Fatalf("GET relationships = %d %v", code, body)
	}
}

func TestKnowledgeGraph_UnknownBook(t *testing.T) {
	e := New(newTestApp(t))

	code, body := do(t, e, http.MethodGet, "/api/knowledge-graph/ghost", "")
	if code != http.StatusNotFound || body["success"] != false {
		t.Fatalf("GET unknown book graph = %d %v", code, body)
	}

	code, body = do(t, e, http.MethodGet, "/api/force-graph/ghost", "")
	view := body["force_graph"].(map[string]any)
	if code != http.StatusOK || len(view["nodes"].([]any)) != 0 || len(view["links"].([]any)) != 0 {
		t.Fatalf("GET unknown book force graph = %d %v", code, body)
	}
}

func TestRefresh_Queued(t *testing.T) {
	app := newTestApp(t)
	pub := &fakePublisher{}
	app.Queue = pub
	e := New(app)

	code, body := do(t, e, http.MethodPost, "/api/knowledge-graph/b1/refresh", "")
	if code != http.StatusAccepted || body["job_id"] == "" || body["success"] != true {
		t.Fatalf("POST queued refresh = %d %v", code, body)
	}
	code, _ = do(t, e, http.MethodPost, "/api/analysis/b1/refresh", "")
	if code != http.StatusAccepted {
		t.Fatalf("POST queued analysis refresh = %d", code)
	}
	if len(pub.keys) != 2 || pub.keys[0] != queue.RefreshQueue {
		t.Fatalf("published to %v", pub.keys)
	}
}

func TestAuth_APIKey(t *testing.T) {
	app := newTestApp(t)
	app.APIKey = "secret"
	e := New(app)

	if code, _ := do(t, e, http.MethodGet, "/api/books", ""); code != http.StatusUnauthorized {
		t.Fatalf("without token = %d", code)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/books", "", "Authorization", "Bearer wrong"); code != http.StatusUnauthorized {
		t.Fatalf("with wrong token = %d", code)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/books", "", "Authorization", "Bearer secret"); code != http.StatusOK {
		t.Fatalf("with token = %d", code)
	}
	if code, _ := do(t, e, http.MethodGet, "/health", ""); code != http.StatusOK {
		t.Fatalf("health should stay public, got %d", code)
	}
}
