package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"copilot-orchestrator/internal/domain"
)

// Config is loaded once at startup and treated as read-only afterward.
type Config struct {
	Env      string
	LogLevel string

	Server     ServerConfig
	DB         DBConfig
	Telemetry  TelemetryConfig
	AI         AIConfig
	Pipeline   PipelineConfig
	Retrieval  RetrievalConfig
	Resilience ResilienceConfig
	Ingest     IngestConfig
	Cache      CacheConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxConns int32
	MinConns int32
}

// DSN renders the pgx connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	SampleRatio  float64
}

// Enabled reports whether an exporter endpoint is configured.
func (c TelemetryConfig) Enabled() bool { return c.OTLPEndpoint != "" }

// ProviderConfig holds one vendor's switch and credentials.
type ProviderConfig struct {
	Enabled bool
	APIKey  string
	BaseURL string
	// RatePerSecond and Burst feed the provider's client-side limiter.
	RatePerSecond float64
	Burst         int
}

type AIConfig struct {
	Enabled  bool
	OpenAI   ProviderConfig
	Google   ProviderConfig
	Bindings map[domain.Task]domain.ModelBinding
}

// ProviderEnabled returns the enablement map the model catalog is built from.
func (c AIConfig) ProviderEnabled() map[domain.Provider]bool {
	return map[domain.Provider]bool{
		domain.ProviderOpenAI: c.OpenAI.Enabled,
		domain.ProviderGoogle: c.Google.Enabled,
	}
}

func (c AIConfig) Validate() error {
	for task, b := range c.Bindings {
		if _, err := domain.ParseProvider(string(b.Provider)); err != nil {
			return fmt.Errorf("binding for task %s: %w", task, err)
		}
		if b.Model == "" {
			return fmt.Errorf("binding for task %s has no model", task)
		}
		if b.Temperature < 0 || b.Temperature > 2 {
			return fmt.Errorf("binding for task %s: temperature must be in [0, 2], got %v", task, b.Temperature)
		}
	}
	for _, task := range domain.Tasks() {
		if _, ok := c.Bindings[task]; !ok {
			return fmt.Errorf("task %s has no model binding", task)
		}
	}
	if c.Enabled {
		if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai is enabled but OPENAI_API_KEY is empty")
		}
		if c.Google.Enabled && c.Google.APIKey == "" {
			return fmt.Errorf("google is enabled but GOOGLE_API_KEY is empty")
		}
	}
	return nil
}

type PipelineConfig struct {
	// StageTimeout bounds each individual model call.
	StageTimeout time.Duration
	// RerankMaxResults is the cap on entries the reranker may return.
	RerankMaxResults int
	// RerankCandidates is the cap on candidates shown to the reranker.
	RerankCandidates int
	AnswerMaxTokens  int
	EnrichMaxTokens  int

	DeepSearchEnabled       bool
	DeepSearchMaxIterations int
}

func (c PipelineConfig) Validate() error {
	if c.StageTimeout <= 0 {
		return fmt.Errorf("stage timeout must be positive, got %v", c.StageTimeout)
	}
	if c.RerankMaxResults <= 0 {
		return fmt.Errorf("rerank max results must be positive, got %d", c.RerankMaxResults)
	}
	if c.RerankCandidates < c.RerankMaxResults {
		return fmt.Errorf("rerank candidate pool (%d) must not be smaller than max results (%d)",
			c.RerankCandidates, c.RerankMaxResults)
	}
	if c.DeepSearchMaxIterations <= 0 {
		return fmt.Errorf("deep search max iterations must be positive, got %d", c.DeepSearchMaxIterations)
	}
	return nil
}

type RetrievalConfig struct {
	// SearchLimit is the per-leg candidate pool before fusion.
	SearchLimit int
	// RecordLimit bounds the structured-record leg.
	RecordLimit    int
	SemanticWeight float64
	KeywordWeight  float64
	// RRFK is the reciprocal-rank-fusion constant.
	RRFK float64
}

func (c RetrievalConfig) Validate() error {
	if c.SearchLimit <= 0 {
		return fmt.Errorf("search limit must be positive, got %d", c.SearchLimit)
	}
	if c.SemanticWeight < 0 || c.KeywordWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative, got %v/%v", c.SemanticWeight, c.KeywordWeight)
	}
	if c.SemanticWeight == 0 && c.KeywordWeight == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrf k must be positive, got %v", c.RRFK)
	}
	return nil
}

type ResilienceConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	// Breaker settings: trip when the failure ratio over at least MinRequests
	// reaches FailureRatio; probe again after Cooldown.
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
	BreakerCooldown     time.Duration
}

func (c ResilienceConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1, got %v", c.BackoffMultiplier)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("breaker failure ratio must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	return nil
}

type IngestConfig struct {
	PollInterval   time.Duration
	IdleMaxBackoff time.Duration
	MaxJobAttempts int
}

func (c IngestConfig) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.MaxJobAttempts <= 0 {
		return fmt.Errorf("max job attempts must be positive, got %d", c.MaxJobAttempts)
	}
	return nil
}

type CacheConfig struct {
	// EmbeddingEntries sizes the LRU in front of the vector encoder.
	EmbeddingEntries int
}

// Load reads the whole configuration from the environment.
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnv("PORT", "9020"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "workspace-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "copilot_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "copilot_password"),
			Name:     getEnv("DB_NAME", "workspace_db"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "copilot-orchestrator"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SampleRatio:  getEnvFloat64("OTEL_TRACE_SAMPLE_RATIO", 0.2),
		},
		AI: AIConfig{
			Enabled: getEnvBool("AI_ENABLED", true),
			OpenAI: ProviderConfig{
				Enabled:       getEnvBool("OPENAI_ENABLED", true),
				APIKey:        getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
				BaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				RatePerSecond: getEnvFloat64("OPENAI_RATE_LIMIT", 5),
				Burst:         getEnvInt("OPENAI_RATE_BURST", 10),
			},
			Google: ProviderConfig{
				Enabled:       getEnvBool("GOOGLE_ENABLED", true),
				APIKey:        getSecret("GOOGLE_API_KEY", "GOOGLE_API_KEY_FILE", ""),
				RatePerSecond: getEnvFloat64("GOOGLE_RATE_LIMIT", 5),
				Burst:         getEnvInt("GOOGLE_RATE_BURST", 10),
			},
			Bindings: loadBindings(),
		},
		Pipeline: PipelineConfig{
			StageTimeout:            getEnvDuration("PIPELINE_STAGE_TIMEOUT", 45*time.Second),
			RerankMaxResults:        getEnvInt("RERANK_MAX_RESULTS", 10),
			RerankCandidates:        getEnvInt("RERANK_CANDIDATES", 30),
			AnswerMaxTokens:         getEnvInt("ANSWER_MAX_TOKENS", 4096),
			EnrichMaxTokens:         getEnvInt("ENRICH_MAX_TOKENS", 256),
			DeepSearchEnabled:       getEnvBool("DEEP_SEARCH_ENABLED", true),
			DeepSearchMaxIterations: getEnvInt("DEEP_SEARCH_MAX_ITERATIONS", 3),
		},
		Retrieval: RetrievalConfig{
			SearchLimit:    getEnvInt("RETRIEVAL_SEARCH_LIMIT", 50),
			RecordLimit:    getEnvInt("RETRIEVAL_RECORD_LIMIT", 20),
			SemanticWeight: getEnvFloat64("RETRIEVAL_SEMANTIC_WEIGHT", 1.0),
			KeywordWeight:  getEnvFloat64("RETRIEVAL_KEYWORD_WEIGHT", 0.7),
			RRFK:           getEnvFloat64("RETRIEVAL_RRF_K", 60.0),
		},
		Resilience: ResilienceConfig{
			MaxAttempts:         getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			InitialBackoff:      getEnvDuration("RETRY_INITIAL_BACKOFF", 500*time.Millisecond),
			BackoffMultiplier:   getEnvFloat64("RETRY_BACKOFF_MULTIPLIER", 2.0),
			MaxBackoff:          getEnvDuration("RETRY_MAX_BACKOFF", 8*time.Second),
			BreakerFailureRatio: getEnvFloat64("BREAKER_FAILURE_RATIO", 0.6),
			BreakerMinRequests:  uint32(getEnvInt("BREAKER_MIN_REQUESTS", 5)),
			BreakerCooldown:     getEnvDuration("BREAKER_COOLDOWN", 30*time.Second),
		},
		Ingest: IngestConfig{
			PollInterval:   getEnvDuration("INGEST_POLL_INTERVAL", time.Second),
			IdleMaxBackoff: getEnvDuration("INGEST_IDLE_MAX_BACKOFF", 30*time.Second),
			MaxJobAttempts: getEnvInt("INGEST_MAX_JOB_ATTEMPTS", 3),
		},
		Cache: CacheConfig{
			EmbeddingEntries: getEnvInt("EMBEDDING_CACHE_ENTRIES", 512),
		},
	}
}

// Validate checks every section; the process refuses to start on the first
// violation.
func (c *Config) Validate() error {
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai config: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if err := c.Retrieval.Validate(); err != nil {
		return fmt.Errorf("retrieval config: %w", err)
	}
	if err := c.Resilience.Validate(); err != nil {
		return fmt.Errorf("resilience config: %w", err)
	}
	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest config: %w", err)
	}
	return nil
}

// loadBindings resolves the per-task model bindings. Each task reads
// MODEL_<TASK>_PROVIDER, MODEL_<TASK> and MODEL_<TASK>_TEMPERATURE, falling
// back to the defaults below.
func loadBindings() map[domain.Task]domain.ModelBinding {
	defaults := map[domain.Task]domain.ModelBinding{
		domain.TaskQueryRewrite:      {Provider: domain.ProviderOpenAI, Model: "gpt-4.1-mini", Temperature: 0.3},
		domain.TaskIntentRecognition: {Provider: domain.ProviderOpenAI, Model: "gpt-4.1-mini", Temperature: 0},
		domain.TaskDatabaseFilter:    {Provider: domain.ProviderOpenAI, Model: "gpt-4.1-mini", Temperature: 0},
		domain.TaskRerank:            {Provider: domain.ProviderOpenAI, Model: "gpt-4.1-mini", Temperature: 0},
		domain.TaskDeepRerank:        {Provider: domain.ProviderGoogle, Model: "gemini-2.5-pro", Temperature: 0.2},
		domain.TaskDeepPlanner:       {Provider: domain.ProviderGoogle, Model: "gemini-2.5-pro", Temperature: 0.7},
		domain.TaskContextEnhancer:   {Provider: domain.ProviderOpenAI, Model: "gpt-4.1-nano", Temperature: 0.2},
		domain.TaskResponse:          {Provider: domain.ProviderOpenAI, Model: "gpt-4.1", Temperature: 0.5},
		domain.TaskNoContext:         {Provider: domain.ProviderOpenAI, Model: "gpt-4.1", Temperature: 0.7},
		domain.TaskEmbedding:         {Provider: domain.ProviderOpenAI, Model: "text-embedding-3-small", Temperature: 0},
	}

	bindings := make(map[domain.Task]domain.ModelBinding, len(defaults))
	for task, def := range defaults {
		key := "MODEL_" + strings.ToUpper(string(task))
		bindings[task] = domain.ModelBinding{
			Provider:    domain.Provider(getEnv(key+"_PROVIDER", string(def.Provider))),
			Model:       getEnv(key, def.Model),
			Temperature: getEnvFloat32(key+"_TEMPERATURE", def.Temperature),
		}
	}
	return bindings
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat32(key string, fallback float32) float32 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
