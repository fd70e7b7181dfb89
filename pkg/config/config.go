package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Index     IndexConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	LLM       LLMConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host                 string
	Port                 int
	ReadTimeout          int
	WriteTimeout         int
	BodyLimit            int
	MaxRequestsPerMinute int
}

type SQLiteConfig struct {
	Path string
}

type IndexConfig struct {
	Dir string
}

type ChunkingConfig struct {
	ChunkSize int
	Overlap   int
}

type RetrievalConfig struct {
	TopK   int
	FetchK int
	Lambda float64
}

type LLMConfig struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/docchat")

	viper.SetEnvPrefix("DOCCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 52428800)
	viper.SetDefault("server.maxRequestsPerMinute", 60)

	viper.SetDefault("sqlite.path", "./data/docchat.db")

	viper.SetDefault("index.dir", "./data/indexes")

	viper.SetDefault("chunking.chunkSize", 5000)
	viper.SetDefault("chunking.overlap", 500)

	viper.SetDefault("retrieval.topK", 5)
	viper.SetDefault("retrieval.fetchK", 20)
	viper.SetDefault("retrieval.lambda", 0.5)

	viper.SetDefault("llm.baseURL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	viper.SetDefault("llm.model", "gemini-2.0-flash")
	viper.SetDefault("llm.embeddingModel", "text-embedding-004")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
