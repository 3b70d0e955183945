package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Milvus  MilvusConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	LLM     LLMConfig
	Ingest  IngestConfig
	Exam    ExamConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type IngestConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	BatchSize     int
	MaxRetries    int
	MaxConcurrent int
	PDFDir        string
}

type ExamConfig struct {
	MaxParallelQuestions int
	QuestionTimeoutSec   int
	RetrieveTopK         int
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
	viper.AddConfigPath("/etc/examgen")

	viper.SetEnvPrefix("EXAMGEN")
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
	viper.SetDefault("server.port", 8001)
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 52428800)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "exam_chunks")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("sqlite.path", "./data/examgen.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 168)

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.4)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 45)

	viper.SetDefault("ingest.chunkSize", 1200)
	viper.SetDefault("ingest.chunkOverlap", 150)
	viper.SetDefault("ingest.batchSize", 32)
	viper.SetDefault("ingest.maxRetries", 3)
	viper.SetDefault("ingest.maxConcurrent", 2)
	viper.SetDefault("ingest.pdfDir", "./pdfs")

	viper.SetDefault("exam.maxParallelQuestions", 4)
	viper.SetDefault("exam.questionTimeoutSec", 60)
	viper.SetDefault("exam.retrieveTopK", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
