package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIConfig struct {
	Provider      string             `json:"provider"`
	Model         string             `json:"model"`
	EmbedModel    string             `json:"embed_model"`
	EmbedDims     int                `json:"embed_dims"`
	MaxInputChars int                `json:"max_input_chars"`
	Timeout       int                `json:"timeout"`
	Data          json.RawMessage    `json:"data"`
	CacheSize     int                `json:"cache_size"`
	CacheTTLMin   int                `json:"cache_ttl_minutes"`
	Fallbacks     []AIFallbackConfig `json:"fallbacks"`
}

// AIFallbackConfig is a secondary provider tried when the primary fails.
type AIFallbackConfig struct {
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	EmbedModel string          `json:"embed_model"`
	Data       json.RawMessage `json:"data"`
}

type RetrievalConfig struct {
	CacheTTLMinutes  int     `json:"cache_ttl_minutes"`
	DefaultThreshold float32 `json:"default_threshold"`
	DefaultCount     int     `json:"default_count"`
	MaxCount         int     `json:"max_count"`
}

type JobConfig struct {
	CacheCleanupSpec      string `json:"cache_cleanup_spec"`
	BatchCleanupSpec      string `json:"batch_cleanup_spec"`
	EmbedCacheCleanupSpec string `json:"embed_cache_cleanup_spec"`
	EmbedResyncSpec       string `json:"embed_resync_spec"`
	SummarySpec           string `json:"summary_spec"`
	BatchRetentionDays    int    `json:"batch_retention_days"`
	EmbedCacheAgeDays     int    `json:"embed_cache_age_days"`
	EmbedResyncBatchCap   int    `json:"embed_resync_batch_cap"`
	SummaryBatchCap       int    `json:"summary_batch_cap"`
}

type FileStoreConfig struct {
	Type      string   `json:"type"`
	Dir       string   `json:"dir"`
	PublicURL string   `json:"public_url"`
	S3        S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	PublicURL string `json:"public_url"`
	UseSSL    bool   `json:"use_ssl"`
}

type PropertiesConfig struct {
	EnableUserRegister bool `json:"enable_user_register"`
	EnableMetrics      bool `json:"enable_metrics"`
}

type Config struct {
	Database    DatabaseConfig   `json:"database"`
	JWTSecret   string           `json:"jwt_secret"`
	Port        int              `json:"port"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	AI          AIConfig         `json:"ai"`
	Retrieval   RetrievalConfig  `json:"retrieval"`
	Jobs        JobConfig        `json:"jobs"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Properties  PropertiesConfig `json:"properties"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 20000
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLMin == 0 {
		cfg.AI.CacheTTLMin = 120
	}
	if cfg.Retrieval.CacheTTLMinutes == 0 {
		cfg.Retrieval.CacheTTLMinutes = 15
	}
	if cfg.Retrieval.DefaultThreshold == 0 {
		cfg.Retrieval.DefaultThreshold = 0.7
	}
	if cfg.Retrieval.DefaultCount == 0 {
		cfg.Retrieval.DefaultCount = 5
	}
	if cfg.Retrieval.MaxCount == 0 {
		cfg.Retrieval.MaxCount = 50
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "*/10 * * * *"
	}
	if cfg.Jobs.BatchCleanupSpec == "" {
		cfg.Jobs.BatchCleanupSpec = "30 3 * * *"
	}
	if cfg.Jobs.EmbedCacheCleanupSpec == "" {
		cfg.Jobs.EmbedCacheCleanupSpec = "0 4 * * *"
	}
	if cfg.Jobs.EmbedResyncSpec == "" {
		cfg.Jobs.EmbedResyncSpec = "*/5 * * * *"
	}
	if cfg.Jobs.SummarySpec == "" {
		cfg.Jobs.SummarySpec = "*/15 * * * *"
	}
	if cfg.Jobs.BatchRetentionDays == 0 {
		cfg.Jobs.BatchRetentionDays = 30
	}
	if cfg.Jobs.EmbedCacheAgeDays == 0 {
		cfg.Jobs.EmbedCacheAgeDays = 30
	}
	if cfg.Jobs.EmbedResyncBatchCap == 0 {
		cfg.Jobs.EmbedResyncBatchCap = 20
	}
	if cfg.Jobs.SummaryBatchCap == 0 {
		cfg.Jobs.SummaryBatchCap = 50
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	switch cfg.FileStore.Type {
	case "local":
		if cfg.FileStore.Dir == "" {
			return nil, fmt.Errorf("file_store.dir is required for local store")
		}
	case "s3":
		if cfg.FileStore.S3.Endpoint == "" || cfg.FileStore.S3.Bucket == "" || cfg.FileStore.S3.SecretID == "" || cfg.FileStore.S3.SecretKey == "" {
			return nil, fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if cfg.FileStore.S3.Region == "" {
			cfg.FileStore.S3.Region = "us-east-1"
		}
	default:
		return nil, fmt.Errorf("file_store.type must be local or s3")
	}
	return &cfg, nil
}
