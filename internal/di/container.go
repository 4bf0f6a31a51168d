package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"copilot-orchestrator/internal/adapter/llm"
	"copilot-orchestrator/internal/adapter/repository"
	"copilot-orchestrator/internal/adapter/search"
	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/infra/config"
	"copilot-orchestrator/internal/infra/httpclient"
	"copilot-orchestrator/internal/infra/resilience"
	"copilot-orchestrator/internal/usecase"
	"copilot-orchestrator/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	DocRepo   domain.DocumentRepository
	ChunkRepo domain.ChunkRepository
	JobRepo   domain.JobRepository
	Records   domain.RecordStore

	// Usecases
	AnswerUsecase  usecase.AnswerUsecase
	IngestUsecase  usecase.IngestUsecase
	EnrichBackfill usecase.EnrichBackfillUsecase

	// Worker
	Worker *worker.IngestWorker
}

// NewApplicationComponents wires all dependencies from config and database
// pool. The context is only used for client construction, not stored.
func NewApplicationComponents(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Repositories
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	jobRepo := repository.NewJobRepository(pool)
	records := repository.NewRecordStore(pool)
	txManager := repository.NewTransactionManager(pool)

	// Model catalog and provider clients. A disabled provider keeps a nil
	// client; the catalog rejects its tasks before the gateway would touch it.
	catalog := domain.NewModelCatalog(cfg.AI.Enabled, cfg.AI.ProviderEnabled(), cfg.AI.Bindings)

	var openaiClient llm.Client
	var googleClient llm.Client
	openaiActive := cfg.AI.Enabled && cfg.AI.OpenAI.Enabled
	if openaiActive {
		c, err := llm.NewOpenAIClient(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.BaseURL,
			httpclient.NewPooledClient(cfg.Pipeline.StageTimeout))
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		openaiClient = c
	}
	if cfg.AI.Enabled && cfg.AI.Google.Enabled {
		c, err := llm.NewGoogleClient(ctx, cfg.AI.Google.APIKey)
		if err != nil {
			return nil, fmt.Errorf("google client: %w", err)
		}
		googleClient = c
	}

	limiters := map[domain.Provider]*rate.Limiter{
		domain.ProviderOpenAI: rate.NewLimiter(rate.Limit(cfg.AI.OpenAI.RatePerSecond), cfg.AI.OpenAI.Burst),
		domain.ProviderGoogle: rate.NewLimiter(rate.Limit(cfg.AI.Google.RatePerSecond), cfg.AI.Google.Burst),
	}

	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:    cfg.Resilience.MaxAttempts,
		InitialBackoff: cfg.Resilience.InitialBackoff,
		Multiplier:     cfg.Resilience.BackoffMultiplier,
		MaxBackoff:     cfg.Resilience.MaxBackoff,
		BreakerEnabled: true,
		FailureRatio:   cfg.Resilience.BreakerFailureRatio,
		MinRequests:    cfg.Resilience.BreakerMinRequests,
		Cooldown:       cfg.Resilience.BreakerCooldown,
	}, log)

	gateway := llm.NewTaskGateway(catalog, openaiClient, googleClient, limiters, executor,
		cfg.Pipeline.StageTimeout, log)

	// Embeddings ride the OpenAI credentials directly. The LRU in front keeps
	// repeated queries and deep-search refinements from re-billing.
	var encoder domain.VectorEncoder
	if openaiActive {
		embedder, err := llm.NewOpenAIEmbedder(
			cfg.AI.OpenAI.APIKey,
			cfg.AI.OpenAI.BaseURL,
			cfg.AI.Bindings[domain.TaskEmbedding].Model,
			httpclient.NewPooledClient(cfg.Pipeline.StageTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		encoder, err = llm.NewCachedEncoder(embedder, cfg.Cache.EmbeddingEntries)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
	} else {
		encoder = llm.NewDisabledEncoder()
		log.Warn("no embedding provider active, semantic retrieval and ingestion will not serve")
	}

	// Retrieval
	searcher := search.NewWorkspaceSearcher(encoder, chunkRepo, records, log)

	// Pipeline stages
	rewriter := usecase.NewQueryRewriter(gateway, log)
	router := usecase.NewIntentRouter(gateway, log)
	planner := usecase.NewFilterPlanner(gateway, log)
	reranker := usecase.NewReranker(gateway, cfg.Pipeline.RerankCandidates,
		cfg.Retrieval.SemanticWeight, cfg.Retrieval.KeywordWeight, log)
	deepSearch := usecase.NewDeepSearchController(gateway, searcher, reranker,
		cfg.Pipeline.DeepSearchMaxIterations, cfg.Pipeline.RerankMaxResults, log)
	synthesizer := usecase.NewSynthesizer(gateway, usecase.NewAnswerGuard(), cfg.Pipeline.AnswerMaxTokens, log)
	direct := usecase.NewDirectResponder(gateway, cfg.Pipeline.AnswerMaxTokens, log)
	enricher := usecase.NewChunkEnricher(gateway, cfg.Pipeline.EnrichMaxTokens, log)

	answerUsecase := usecase.NewAnswerUsecase(
		router, rewriter, planner, searcher, reranker, deepSearch, synthesizer, direct, records,
		usecase.PipelineOptions{
			SemanticWeight:    cfg.Retrieval.SemanticWeight,
			KeywordWeight:     cfg.Retrieval.KeywordWeight,
			SearchLimit:       cfg.Retrieval.SearchLimit,
			RecordLimit:       cfg.Retrieval.RecordLimit,
			RRFK:              cfg.Retrieval.RRFK,
			MaxResults:        cfg.Pipeline.RerankMaxResults,
			DeepSearchEnabled: cfg.Pipeline.DeepSearchEnabled,
		},
		log,
	)

	// Ingestion
	ingestUsecase := usecase.NewIngestUsecase(
		docRepo, chunkRepo, jobRepo, txManager,
		domain.NewHashPolicy(), domain.NewChunker(), enricher, encoder, log,
	)
	enrichBackfill := usecase.NewEnrichBackfillUsecase(docRepo, chunkRepo, jobRepo, enricher, encoder, log)

	// Worker
	ingestWorker := worker.NewIngestWorker(jobRepo, ingestUsecase, worker.Options{
		PollInterval:   cfg.Ingest.PollInterval,
		IdleMaxBackoff: cfg.Ingest.IdleMaxBackoff,
		MaxAttempts:    cfg.Ingest.MaxJobAttempts,
	}, log)

	return &ApplicationComponents{
		DocRepo:        docRepo,
		ChunkRepo:      chunkRepo,
		JobRepo:        jobRepo,
		Records:        records,
		AnswerUsecase:  answerUsecase,
		IngestUsecase:  ingestUsecase,
		EnrichBackfill: enrichBackfill,
		Worker:         ingestWorker,
	}, nil
}
