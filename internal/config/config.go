package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Redis      RedisConfig      `mapstructure:"redis"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Expansion  ExpansionConfig  `mapstructure:"expansion"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Collection CollectionConfig `mapstructure:"collection"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	default:
		return c.Path
	}
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type ExpansionConfig struct {
	Model   string `mapstructure:"model"`
	Queries int    `mapstructure:"queries"`
}

type EmbeddingConfig struct {
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

type ScoringConfig struct {
	Model         string `mapstructure:"model"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

type CollectionConfig struct {
	BaseURL              string            `mapstructure:"base_url"`
	APIKey               string            `mapstructure:"api_key"`
	DatasetIDs           map[string]string `mapstructure:"dataset_ids"`
	BatchSize            int               `mapstructure:"batch_size"`
	MaxConcurrentBatches int               `mapstructure:"max_concurrent_batches"`
	PollingInterval      time.Duration     `mapstructure:"polling_interval"`
	MaxWait              time.Duration     `mapstructure:"max_wait"`
}

type PipelineConfig struct {
	Alphas        []float64 `mapstructure:"alphas"`
	PerQueryLimit int       `mapstructure:"per_query_limit"`
	DefaultTopN   int       `mapstructure:"default_top_n"`
	MaxTopN       int       `mapstructure:"max_top_n"`
	Platforms     []string  `mapstructure:"platforms"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/creatorscout.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "creator_profiles")
	v.SetDefault("qdrant.use_tls", false)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("expansion.model", "gpt-5-mini")
	v.SetDefault("expansion.queries", 12)
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("scoring.model", "gpt-5-mini")
	v.SetDefault("scoring.max_concurrent", 8)
	v.SetDefault("collection.base_url", "https://api.brightdata.com/datasets/v3")
	v.SetDefault("collection.batch_size", 50)
	v.SetDefault("collection.max_concurrent_batches", 3)
	v.SetDefault("collection.polling_interval", "30s")
	v.SetDefault("collection.max_wait", "15m")
	v.SetDefault("pipeline.alphas", []float64{0.2, 0.5, 0.8})
	v.SetDefault("pipeline.per_query_limit", 500)
	v.SetDefault("pipeline.default_top_n", 100)
	v.SetDefault("pipeline.max_top_n", 1000)
	v.SetDefault("pipeline.platforms", []string{"instagram", "tiktok"})
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.bucket", "creatorscout-snapshots")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.use_ssl", true)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "LLM_BASE_URL")
	v.BindEnv("expansion.model", "EXPANSION_MODEL")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("scoring.model", "SCORING_MODEL")
	v.BindEnv("collection.api_key", "BRIGHTDATA_API_KEY")
	v.BindEnv("collection.base_url", "BRIGHTDATA_BASE_URL")
	v.BindEnv("archive.endpoint", "S3_ENDPOINT")
	v.BindEnv("archive.access_key", "S3_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "S3_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
