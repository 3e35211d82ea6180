package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/Syntra/internal/config"
	"github.com/markdave123-py/Syntra/internal/core"
	db "github.com/markdave123-py/Syntra/internal/core/database"
	"github.com/markdave123-py/Syntra/internal/core/embedding"
	"github.com/markdave123-py/Syntra/internal/core/extract"
	"github.com/markdave123-py/Syntra/internal/core/ingestion"
	"github.com/markdave123-py/Syntra/internal/core/llm"
	objectclient "github.com/markdave123-py/Syntra/internal/core/object-client"
	"github.com/markdave123-py/Syntra/internal/core/retrieval"
	"github.com/markdave123-py/Syntra/internal/services"
)

// App owns every long-lived component and tears them down in Close.
type App struct {
	DBClient core.DbClient
	Server   *Server

	embedder *llm.GeminiEmbedder
	llm      *llm.GeminiLLM
	redis    *redis.Client
	sweeper  *ingestion.Sweeper
	logger   *slog.Logger
}

// NewApp wires the whole service: storage, AI providers, the background
// ingestion pipeline and the HTTP server. ctx outlives NewApp; pipeline
// workers and the sweeper run on it until it is cancelled.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	logger.Info("database initialized")

	objClient, err := objectclient.NewS3Client(initCtx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	embedder, err := llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	llmProvider, err := llm.NewGeminiLLM(initCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}

	// The embedding cache is optional; without Redis every call hits the
	// provider.
	var (
		rdb   *redis.Client
		cache *embedding.Cache
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(initCtx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		cache = embedding.NewCache(rdb, embedder.ModelName(), embedding.DefaultCacheTTL, logger)
		logger.Info("embedding cache enabled")
	}

	// Two embedding clients over one provider: the ingestion instance is
	// batched and throttled, the query instance stays interactive so
	// background ingestion cannot starve chat.
	ingestEmbed := embedding.NewClient(embedder, cache, embedding.Options{
		BatchSize:     cfg.EmbedBatchSize,
		MaxConcurrent: cfg.EmbedMaxConcurrent,
		MaxRetries:    cfg.EmbedMaxRetries,
		Dim:           cfg.EmbedDim,
		RateLimit:     cfg.EmbedRateLimit,
	}, logger)
	queryEmbed := embedding.NewClient(embedder, cache, embedding.Options{
		BatchSize:     1,
		MaxConcurrent: 1,
		MaxRetries:    2,
		Dim:           cfg.EmbedDim,
	}, logger)

	extractor := extract.NewExtractor(logger)
	pipeline := ingestion.NewPipeline(dbClient, objClient, extractor, ingestEmbed, ingestion.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Timeout:      cfg.ProcessingTimeout,
	}, logger)
	pipeline.Start(ctx, cfg.IngestWorkers)

	sweeper := ingestion.NewSweeper(dbClient, cfg.ProcessingTimeout, logger)
	if err := sweeper.Start(ctx); err != nil {
		return nil, fmt.Errorf("start sweeper: %w", err)
	}

	engine := retrieval.NewEngine(dbClient, queryEmbed, cfg.TopK, cfg.MinSimilarity, logger)

	notebookSvc := services.NewNotebookService(dbClient)
	sourceSvc := services.NewSourceService(dbClient, objClient, notebookSvc, pipeline, cfg.BucketName, logger)
	chatSvc := services.NewChatService(dbClient, notebookSvc, engine, llmProvider, logger)

	server := NewServer(cfg, logger, dbClient, notebookSvc, sourceSvc, chatSvc)

	return &App{
		DBClient: dbClient,
		Server:   server,
		embedder: embedder,
		llm:      llmProvider,
		redis:    rdb,
		sweeper:  sweeper,
		logger:   logger,
	}, nil
}

func (a *App) Close() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
