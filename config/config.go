package config

import (
	"strings"

	"github.com/ticobot/ticobot/internal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// We're bootstrapping so avoid any imports from other packages
var log = logrus.New()

// LoadConfig loads the config file and ENV variables into a Config struct
func LoadConfig(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetConfigType("yaml")

	setDefaults()

	viper.SetEnvPrefix("TICOBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	// Environment variables take precedence over config file
	loadDotEnv()

	if err := bindAPIKeys(); err != nil {
		log.Fatalf("Error binding environment variable: %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("llm.service", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.ollama_server_url", "http://localhost:11434")
	viper.SetDefault("embeddings.service", "openai")
	viper.SetDefault("embeddings.model", "text-embedding-3-small")
	viper.SetDefault("embeddings.dimensions", 1536)
	viper.SetDefault("embeddings.ollama_server_url", "http://localhost:11434")
	viper.SetDefault("retrieval.limit", 5)
	viper.SetDefault("retrieval.threshold", 0.3)
	viper.SetDefault("retrieval.mmr.enabled", false)
	viper.SetDefault("retrieval.mmr.lambda", 0.5)
	viper.SetDefault("retrieval.mmr.multiplier", 2)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("ingest.chunk_size", 500)
	viper.SetDefault("ingest.chunk_overlap", 50)
	viper.SetDefault("ingest.async", true)
	viper.SetDefault("ingest.embed_batch_size", 32)
	viper.SetDefault("stats.cost_per_1k_tokens", 0.002)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.max_content_length", 5<<20)
	viper.SetDefault("rate_limit.enabled", false)
	viper.SetDefault("rate_limit.requests_per_second", 1)
	viper.SetDefault("rate_limit.burst", 5)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("opentelemetry.enabled", false)
	viper.SetDefault("data.purge_every", 60)
}

// bindAPIKeys maps the vendor API keys to short env var names. The keys are
// never read from the config file.
func bindAPIKeys() error {
	for key, envVar := range map[string]string{
		"llm.openai_api_key":        "TICOBOT_OPENAI_API_KEY",
		"llm.deepseek_api_key":      "TICOBOT_DEEPSEEK_API_KEY",
		"llm.groq_api_key":          "TICOBOT_GROQ_API_KEY",
		"embeddings.openai_api_key": "TICOBOT_OPENAI_API_KEY",
	} {
		if err := viper.BindEnv(key, envVar); err != nil {
			return err
		}
	}
	return nil
}

// loadDotEnv loads environment variables from .env file
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Warn(".env file not found or unable to load")
	}
}

// SetLogLevel sets the log level based on the config file. Defaults to INFO if not set or invalid
func SetLogLevel(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	internal.SetLogLevel(level)
	log.Info("Log level set to: ", level)
}
