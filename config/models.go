package config

import "time"

// Config holds the configuration of the application
// Use cmd.NewConfig to create a new instance
type Config struct {
	LLM           LLM                 `mapstructure:"llm"`
	Embeddings    EmbeddingsConfig    `mapstructure:"embeddings"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Stats         StatsConfig         `mapstructure:"stats"`
	Store         StoreConfig         `mapstructure:"store"`
	Server        ServerConfig        `mapstructure:"server"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Log           LogConfig           `mapstructure:"log"`
	OpenTelemetry OpenTelemetryConfig `mapstructure:"opentelemetry"`
	DataConfig    DataConfig          `mapstructure:"data"`
}

type LLM struct {
	// Service is one of "openai", "deepseek", "groq" or "ollama".
	Service string `mapstructure:"service"`
	Model   string `mapstructure:"model"`
	// API keys are loaded from ENV, not the config file.
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	DeepSeekAPIKey string `mapstructure:"deepseek_api_key"`
	GroqAPIKey     string `mapstructure:"groq_api_key"`
	// OpenAIEndpoint overrides the vendor's default API base URL. Model names
	// are not validated when an endpoint override is set.
	OpenAIEndpoint  string  `mapstructure:"openai_endpoint"`
	OpenAIOrgID     string  `mapstructure:"openai_org_id"`
	OllamaServerURL string  `mapstructure:"ollama_server_url"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
}

type EmbeddingsConfig struct {
	// Service is one of "openai" or "ollama".
	Service string `mapstructure:"service"`
	Model   string `mapstructure:"model"`
	// Dimensions must match the width of the chunk embedding column.
	Dimensions      int    `mapstructure:"dimensions"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	OpenAIEndpoint  string `mapstructure:"openai_endpoint"`
	OllamaServerURL string `mapstructure:"ollama_server_url"`
}

type RetrievalConfig struct {
	// Limit is the number of chunks retrieved for a chat answer.
	Limit     int       `mapstructure:"limit"`
	Threshold float64   `mapstructure:"threshold"`
	MMR       MMRConfig `mapstructure:"mmr"`
}

// MMRConfig configures maximal marginal relevance reranking of search results.
type MMRConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Lambda  float64 `mapstructure:"lambda"`
	// Multiplier is the oversampling factor applied to the search limit
	// before reranking.
	Multiplier int `mapstructure:"multiplier"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	// Async embeds chunks via the task queue rather than inline with the
	// document upload request.
	Async          bool `mapstructure:"async"`
	EmbedBatchSize int  `mapstructure:"embed_batch_size"`
}

type StatsConfig struct {
	// CostPer1KTokens is the USD rate used for the savings estimate.
	CostPer1KTokens float64 `mapstructure:"cost_per_1k_tokens"`
}

type StoreConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN              string           `mapstructure:"dsn"`
	AvailableIndexes AvailableIndexes `mapstructure:"available_indexes"`
}

// AvailableIndexes records which pgvector index types the connected
// server supports. Populated at connection time, not from file config.
type AvailableIndexes struct {
	IVFFLAT bool `mapstructure:"ivfflat"`
	HSNW    bool `mapstructure:"hsnw"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// MaxContentLength is the maximum size of a request body, in bytes.
	MaxContentLength int64 `mapstructure:"max_content_length"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// RequestsPerSecond and Burst apply per client IP to the chat routes.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type OpenTelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP/HTTP collector host:port. When empty, the
	// exporter falls back to the standard OTEL_EXPORTER_OTLP_ENDPOINT
	// environment variable.
	Endpoint string `mapstructure:"endpoint"`
}

type DataConfig struct {
	// PurgeEvery is the period between hard deletes of soft-deleted rows and
	// expired cache entries, in minutes. 0 disables the purge processor.
	PurgeEvery int `mapstructure:"purge_every"`
}
