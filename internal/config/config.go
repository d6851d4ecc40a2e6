// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/minitru/bunnyAI/internal/util"
)

const (
	AdapterOpenAI = "openai"
	AdapterOllama = "ollama"

	StorePGVector = "pgvector"
	StoreMemory   = "memory"

	CacheDisk  = "disk"
	CacheRedis = "redis"
	CacheS3    = "s3"

	RefreshInline = "inline"
	RefreshQueue  = "queue"
)

type Config struct {
	Port      string
	Debug     bool
	LogFormat string

	AIAdapter      string
	ChatKey        string
	ChatURL        string
	ChatModel      string
	AnswerTokens   int
	KGTokens       int
	AnalysisTokens int
	Temperature    float64
	ForceJSON      bool
	Grace          time.Duration

	EmbedURL   string
	EmbedKey   string
	EmbedModel string
	EmbedDim   int

	// HashEmbeddings accepts the content hash embedder for chunk retrieval
	// when no embedding endpoint is configured (AI_EMBED=hash).
	HashEmbeddings bool

	ParallelRequests int
	RateLimit        float64
	MaxTries         int

	ChunkStore    string
	DatabaseURL   string
	MigrationsDir string

	CacheBackend string
	CacheDir     string
	RedisURL     string

	AWSRegion    string
	AWSEndpoint  string
	AWSAccessKey string
	AWSSecretKey string
	AWSBucket    string

	RefreshMode    string
	RefreshTimeout time.Duration
	QueryTimeout   time.Duration

	RabbitUser     string
	RabbitPassword string
	RabbitHost     string
	RabbitPort     string

	APIKey  string
	AuthURL string

	AnalysisSampleSize int
	KGSampleSize       int
	KGContextChars     int
	HistoryTurns       int
}

// Load reads every setting, applying defaults for unset variables.
func Load() Config {
	return Config{
		Port:      util.GetEnvString("PORT", "7777"),
		Debug:     util.GetEnvBool("DEBUG", false),
		LogFormat: util.GetEnvString("LOG_FORMAT", "text"),

		AIAdapter:      util.GetEnvString("AI_ADAPTER", AdapterOpenAI),
		ChatKey:        util.GetEnv("OPENROUTER_API_KEY"),
		ChatURL:        util.GetEnvString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		ChatModel:      util.GetEnvString("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		AnswerTokens:   util.GetEnvInt("OPENROUTER_MAX_TOKENS", 3000),
		KGTokens:       util.GetEnvInt("KG_MAX_TOKENS", 4000),
		AnalysisTokens: util.GetEnvInt("ANALYSIS_MAX_TOKENS", 1000),
		Temperature:    util.GetEnvNumeric("OPENROUTER_TEMPERATURE", 0.3),
		ForceJSON:      util.GetEnvBool("OPENROUTER_FORCE_JSON", true),
		Grace:          time.Duration(util.GetEnvInt("QUESTION_FINAL_GRACE_MS", 0)) * time.Millisecond,

		EmbedURL:   util.GetEnv("AI_EMBED_URL"),
		EmbedKey:   util.GetEnv("AI_EMBED_KEY"),
		EmbedModel: util.GetEnv("AI_EMBED_MODEL"),
		EmbedDim:   util.GetEnvInt("AI_EMBED_DIM", 384),

		HashEmbeddings: util.GetEnv("AI_EMBED") == "hash",

		ParallelRequests: util.GetEnvInt("AI_PARALLEL_REQ", 4),
		RateLimit:        util.GetEnvNumeric("AI_RATE_LIMIT", 0),
		MaxTries:         util.GetEnvInt("AI_MAX_TRIES", 1),

		ChunkStore:    util.GetEnvString("CHUNK_STORE", StorePGVector),
		DatabaseURL:   util.GetEnv("DATABASE_URL"),
		MigrationsDir: util.GetEnvString("MIGRATIONS_DIR", "migrations"),

		CacheBackend: util.GetEnvString("CACHE_BACKEND", CacheDisk),
		CacheDir:     util.GetEnvString("CACHE_DIR", "cache"),
		RedisURL:     util.GetEnv("REDIS_URL"),

		AWSRegion:    util.GetEnv("AWS_REGION"),
		AWSEndpoint:  util.GetEnv("AWS_ENDPOINT"),
		AWSAccessKey: util.GetEnv("AWS_ACCESS_KEY"),
		AWSSecretKey: util.GetEnv("AWS_SECRET_KEY"),
		AWSBucket:    util.GetEnv("AWS_BUCKET"),

		RefreshMode:    util.GetEnvString("REFRESH_MODE", RefreshInline),
		RefreshTimeout: util.GetEnvSeconds("REFRESH_TIMEOUT", 600*time.Second),
		QueryTimeout:   util.GetEnvSeconds("QUERY_TIMEOUT", 300*time.Second),

		RabbitUser:     util.GetEnv("RABBITMQ_USER"),
		RabbitPassword: util.GetEnv("RABBITMQ_PASSWORD"),
		RabbitHost:     util.GetEnv("RABBITMQ_HOST"),
		RabbitPort:     util.GetEnvString("RABBITMQ_PORT", "5672"),

		APIKey:  util.GetEnv("API_KEY"),
		AuthURL: util.GetEnv("AUTH_URL"),

		AnalysisSampleSize: util.GetEnvInt("ANALYSIS_SAMPLE_SIZE", 200),
		KGSampleSize:       util.GetEnvInt("KG_SAMPLE_SIZE", 400),
		KGContextChars:     util.GetEnvInt("KG_CONTEXT_CHARS", 15000),
		HistoryTurns:       util.GetEnvInt("HISTORY_TURNS", 0),
	}
}

// Validate reports the first missing or unsupported setting.
func (c Config) Validate() error {
	switch c.AIAdapter {
	case AdapterOpenAI:
		if c.ChatKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for the %s adapter", c.AIAdapter)
		}
	case AdapterOllama:
	default:
		return fmt.Errorf("unknown AI_ADAPTER %q", c.AIAdapter)
	}

	if !c.HasEmbeddingModel() && !c.HashEmbeddings {
		return fmt.Errorf("no embedding model configured: set AI_EMBED_URL (openai) or AI_EMBED_MODEL (ollama), or AI_EMBED=hash to rank chunks by content hash")
	}

	switch c.ChunkStore {
	case StorePGVector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s chunk store", c.ChunkStore)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown CHUNK_STORE %q", c.ChunkStore)
	}

	switch c.CacheBackend {
	case CacheDisk:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache")
		}
	case CacheS3:
		if c.AWSBucket == "" {
			return fmt.Errorf("AWS_BUCKET is required for the s3 cache")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	switch c.RefreshMode {
	case RefreshInline:
	case RefreshQueue:
		if c.RabbitHost == "" {
			return fmt.Errorf("RABBITMQ_HOST is required for queued refreshes")
		}
	default:
		return fmt.Errorf("unknown REFRESH_MODE %q", c.RefreshMode)
	}
	return nil
}

// HasEmbeddingModel reports whether the adapter is configured with a real
// embedding endpoint. Without one the hash embedder is used.
func (c Config) HasEmbeddingModel() bool {
	if c.AIAdapter == AdapterOllama {
		return c.EmbedModel != ""
	}
	return c.EmbedURL != ""
}

// JSONLogs reports whether the console logger should emit JSON.
func (c Config) JSONLogs() bool {
	return c.LogFormat == "json"
}
