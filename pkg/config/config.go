package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Retrieval RetrievalConfig
	Scheduler SchedulerConfig
	Ingestion IngestionConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host              string
	Port              int
	ReadTimeout       int
	WriteTimeout      int
	BodyLimit         int
	RateLimitPerMin   int
	MaxQuestionLength int
	AllowedOrigins    string
	Development       bool
}

type SQLiteConfig struct {
	Path string
}

type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	Dimension  int
	TimeoutSec int
}

type RetrievalConfig struct {
	TopK           int
	SemanticWeight float64
	LexicalWeight  float64
	ChunkSize      int
	ChunkOverlap   int
}

type SchedulerConfig struct {
	Enabled          bool
	Cron             string
	InitializeOnBoot bool
}

type IngestionConfig struct {
	Source     string
	RulesURL   string
	TimeoutSec int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/golf-qa")

	v.SetEnvPrefix("GOLFQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("llm.apiKey", "GOLFQA_LLM_APIKEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind llm api key: %w", err)
	}
	if err := v.BindEnv("embedding.apiKey", "GOLFQA_EMBEDDING_APIKEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind embedding api key: %w", err)
	}

	if err := v.BindEnv("redis.password", "GOLFQA_REDIS_PASSWORD", "REDIS_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind redis password: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Embedding.Provider {
	case "openai", "local":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}

	switch c.Ingestion.Source {
	case "sample", "html":
	default:
		return fmt.Errorf("unknown ingestion source %q", c.Ingestion.Source)
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.topK must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.LexicalWeight < 0 {
		return fmt.Errorf("retrieval weights must not be negative")
	}
	if c.Retrieval.SemanticWeight+c.Retrieval.LexicalWeight == 0 {
		return fmt.Errorf("retrieval weights must not both be zero")
	}
	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunkOverlap must be smaller than retrieval.chunkSize")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 90)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.rateLimitPerMin", 30)
	v.SetDefault("server.maxQuestionLength", 2000)
	v.SetDefault("server.allowedOrigins", "*")
	v.SetDefault("server.development", true)

	v.SetDefault("sqlite.path", "./data/golf_app.db")

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.maxTokens", 1024)
	v.SetDefault("llm.timeoutSec", 60)

	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.apiKey", "")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.timeoutSec", 15)

	v.SetDefault("retrieval.topK", 5)
	v.SetDefault("retrieval.semanticWeight", 0.7)
	v.SetDefault("retrieval.lexicalWeight", 0.3)
	v.SetDefault("retrieval.chunkSize", 512)
	v.SetDefault("retrieval.chunkOverlap", 50)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cron", "0 2 1 * *")
	v.SetDefault("scheduler.initializeOnBoot", true)

	v.SetDefault("ingestion.source", "sample")
	v.SetDefault("ingestion.rulesURL", "https://www.usga.org/rules/rules-and-clarifications.html")
	v.SetDefault("ingestion.timeoutSec", 30)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlHours", 720)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
