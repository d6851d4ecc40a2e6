// Package bootstrap assembles the service components from a Config.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/minitru/bunnyAI/internal/config"
	"github.com/minitru/bunnyAI/internal/storage"
	"github.com/minitru/bunnyAI/pkg/ai"
	oai "github.com/minitru/bunnyAI/pkg/ai/ollama"
	gai "github.com/minitru/bunnyAI/pkg/ai/openai"
	"github.com/minitru/bunnyAI/pkg/analysis"
	"github.com/minitru/bunnyAI/pkg/cache"
	"github.com/minitru/bunnyAI/pkg/graph"
	"github.com/minitru/bunnyAI/pkg/ingest"
	"github.com/minitru/bunnyAI/pkg/leaselock"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/query"
	"github.com/minitru/bunnyAI/pkg/retriever"
	"github.com/minitru/bunnyAI/pkg/store"
	"github.com/minitru/bunnyAI/pkg/store/memory"
	pgstore "github.com/minitru/bunnyAI/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

const cachePrefix = "cache"

// App holds every long lived component of a process.
type App struct {
	Config config.Config

	Client   ai.GraphAIClient
	Embedder ai.Embedder
	Store    store.ChunkStore
	Index    store.EntityIndex
	Cache    cache.Backend
	Blobs    *storage.Client

	Analysis  *analysis.Builder
	Graph     *graph.Extractor
	Refresher *graph.Refresher
	Pipeline  *query.Pipeline

	// nil unless the chunk store is Postgres
	DB     *pgxpool.Pool
	Locker *leaselock.Locker

	closers []func()
}

// New builds an App. The caller owns it and must call Close.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	client, embedder, err := newAIClient(cfg)
	if err != nil {
		return nil, err
	}
	app.Client = ai.NewRetryingClient(client, cfg.MaxTries, time.Second)
	app.Embedder = embedder
	if !cfg.HasEmbeddingModel() {
		logger.Warn("[Bootstrap] no embedding model configured, chunks and entities are ranked by content hash",
			"embedding_dim", embedder.Dimensions(),
		)
	}

	if err := app.initStore(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initCache(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.Analysis = analysis.NewBuilder(analysis.NewBuilderParams{
		Store:      app.Store,
		Client:     app.Client,
		Cache:      app.Cache,
		SampleSize: cfg.AnalysisSampleSize,
		MaxTokens:  cfg.AnalysisTokens,
	})
	app.Graph = graph.NewExtractor(graph.NewExtractorParams{
		Store:        app.Store,
		Index:        app.Index,
		Client:       app.Client,
		Cache:        app.Cache,
		SampleSize:   cfg.KGSampleSize,
		ContextChars: cfg.KGContextChars,
		MaxTokens:    cfg.KGTokens,
	})
	app.Refresher = graph.NewRefresher(app.Graph, app.Analysis, cfg.RefreshTimeout)
	app.Pipeline = query.NewPipeline(query.NewPipelineParams{
		Retriever: retriever.New(app.Store),
		Knowledge: app.Analysis,
		Books:     app.Store,
		Client:    app.Client,
		Composer: query.NewComposer(app.Client,
			query.WithForceJSON(cfg.ForceJSON),
			query.WithAnswerTokens(cfg.AnswerTokens),
			query.WithAnswerTemperature(cfg.Temperature),
		),
		Grace:        cfg.Grace,
		Timeout:      cfg.QueryTimeout,
		HistoryTurns: cfg.HistoryTurns,
	})

	logger.Info("[Bootstrap] components ready",
		"adapter", cfg.AIAdapter,
		"model", app.Client.Model(),
		"chunk_store", cfg.ChunkStore,
		"cache", cfg.CacheBackend,
		"embedding_dim", embedder.Dimensions(),
	)
	return app, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewIngester returns an ingester writing into the app's chunk store.
func (a *App) NewIngester(maxTokens, overlap int) (*ingest.Ingester, error) {
	splitter, err := ingest.NewSplitter(ingest.DefaultEncoding, maxTokens, overlap)
	if err != nil {
		return nil, err
	}
	opts := []ingest.LoaderOption{}
	if a.Blobs != nil {
		opts = append(opts, ingest.WithBlobs(a.Blobs))
	}
	return ingest.NewIngester(a.Store, ingest.NewLoader(opts...), splitter), nil
}

func newAIClient(cfg config.Config) (ai.GraphAIClient, ai.Embedder, error) {
	switch cfg.AIAdapter {
	case config.AdapterOllama:
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbedModel,
			EmbeddingDim:   cfg.EmbedDim,
			Temperature:    cfg.Temperature,

			BaseURL: cfg.ChatURL,
			ApiKey:  cfg.ChatKey,

			MaxConcurrentRequests: int64(cfg.ParallelRequests),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		if cfg.HasEmbeddingModel() {
			return client, client, nil
		}
		return client, ai.NewHashEmbedder(cfg.EmbedDim), nil
	default:
		client := gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbedModel,
			EmbeddingDim:   cfg.EmbedDim,
			Temperature:    cfg.Temperature,

			ChatURL:      cfg.ChatURL,
			ChatKey:      cfg.ChatKey,
			EmbeddingURL: cfg.EmbedURL,
			EmbeddingKey: cfg.EmbedKey,

			MaxConcurrentRequests: int64(cfg.ParallelRequests),
			RequestsPerSecond:     cfg.RateLimit,
		})
		if cfg.HasEmbeddingModel() {
			return client, client, nil
		}
		return client, ai.NewHashEmbedder(cfg.EmbedDim), nil
	}
}

func (a *App) initStore(ctx context.Context) error {
	if a.Config.ChunkStore == config.StoreMemory {
		a.Store = memory.NewChunkStore(a.Embedder)
		a.Index = memory.NewEntityIndex(a.Embedder)
		return nil
	}

	if err := pgstore.Migrate(a.Config.MigrationsDir, a.Config.DatabaseURL); err != nil {
		return err
	}

	poolCfg, err := pgxpool.ParseConfig(a.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	a.DB = pool
	a.Locker = leaselock.New(pool)
	a.Store = pgstore.NewChunkStore(pool, a.Embedder)
	a.Index = pgstore.NewEntityIndex(pool, a.Embedder)
	return nil
}

func (a *App) initCache(ctx context.Context) error {
	cfg := a.Config

	// the bucket also serves s3:// ingestion sources
	if cfg.AWSBucket != "" {
		blobs, err := storage.NewS3Client(ctx, storage.NewS3ClientParams{
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AWSEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			Bucket:    cfg.AWSBucket,
		})
		if err != nil {
			return err
		}
		a.Blobs = blobs
	}

	switch cfg.CacheBackend {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.Cache = cache.NewRedisBackend(client, cache.DefaultExpiry+24*time.Hour)
	case config.CacheS3:
		if a.Blobs == nil {
			return fmt.Errorf("s3 cache requires AWS_BUCKET")
		}
		a.Cache = storage.NewCacheBackend(a.Blobs, cachePrefix)
	default:
		a.Cache = cache.NewDiskBackend(cfg.CacheDir)
	}
	return nil
}
