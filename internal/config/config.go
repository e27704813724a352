package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// ModelConfig points at the completion/embedding service.
type ModelConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// IngestConfig points at the email ingestion collaborator.
type IngestConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PipelineConfig tunes the batch orchestrator.
type PipelineConfig struct {
	SubBatchSize    int `yaml:"sub_batch_size"`
	SubBatchDelayMS int `yaml:"sub_batch_delay_ms"`
	FullFetchLimit  int `yaml:"full_fetch_limit"`
}

type Config struct {
	DB       DBConfig       `yaml:"db"`
	MQ       MQConfig       `yaml:"mq"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

func (c *ModelConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *IngestConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *PipelineConfig) SubBatchDelay() time.Duration {
	return time.Duration(c.SubBatchDelayMS) * time.Millisecond
}

// Load reads config.yaml (path overridable via CONFIG_PATH), applies defaults
// and environment overrides. Fails hard on a missing or malformed file.
func Load() (*Config, error) {
	path := getEnv("CONFIG_PATH", "config.yaml")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.overrideFromEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Pipeline.SubBatchSize <= 0 {
		c.Pipeline.SubBatchSize = 10
	}
	if c.Pipeline.SubBatchDelayMS <= 0 {
		c.Pipeline.SubBatchDelayMS = 500
	}
	if c.Pipeline.FullFetchLimit <= 0 {
		c.Pipeline.FullFetchLimit = 500
	}
	if c.Model.MaxRetries <= 0 {
		c.Model.MaxRetries = 2
	}
	if c.Model.EmbeddingModel == "" {
		c.Model.EmbeddingModel = "text-embedding-3-small"
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("DB_HOST"); host != "" {
		c.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		c.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		c.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		c.DB.Name = name
	}
	if url := os.Getenv("MQ_URL"); url != "" {
		c.MQ.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if url := os.Getenv("MODEL_BASE_URL"); url != "" {
		c.Model.BaseURL = url
	}
	if url := os.Getenv("INGEST_BASE_URL"); url != "" {
		c.Ingest.BaseURL = url
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
