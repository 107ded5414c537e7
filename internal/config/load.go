// Package config defines environment configuration structs and loaders.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	StoreEnvConfig
	RedisEnvConfig
	DocStoreEnvConfig
	EmbeddingEnvConfig
	PipelineEnvConfig
	MetricsEnvConfig
}

func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoreEnvConfig selects the artifact store backend.
type StoreEnvConfig struct {
	StoreBackend string `env:"STORE_BACKEND" envDefault:"fs"`
	StoreDir     string `env:"STORE_DIR" envDefault:"./data/artifacts"`
	StorePrefix  string `env:"STORE_PREFIX" envDefault:"novelty:"`
}

// RedisEnvConfig configures Redis connection.
type RedisEnvConfig struct {
	RedisHost     string `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisUsername string `env:"REDIS_USERNAME"`
}

// DocStoreEnvConfig configures the paper and score record store.
type DocStoreEnvConfig struct {
	DocStoreDriver string `env:"DOCSTORE_DRIVER" envDefault:"sqlite3"`
	DocStoreDSN    string `env:"DOCSTORE_DSN" envDefault:"file:novelty.db?_journal_mode=WAL"`
}

// EmbeddingEnvConfig configures access to the embedding service used by the
// distance indicator.
type EmbeddingEnvConfig struct {
	EmbeddingURL     string        `env:"EMBEDDING_URL" envDefault:"http://localhost:5005"`
	EmbeddingTimeout time.Duration `env:"EMBEDDING_TIMEOUT" envDefault:"15s"`
	EmbeddingRetries int           `env:"EMBEDDING_RETRIES" envDefault:"3"`
}

// PipelineEnvConfig configures batch execution.
type PipelineEnvConfig struct {
	IndicatorsFile string `env:"INDICATORS_FILE" envDefault:"indicators.yaml"`
	Workers        int    `env:"WORKERS" envDefault:"4"`
	YearWorkers    int    `env:"YEAR_WORKERS" envDefault:"2"`
	Environment    string `env:"ENVIRONMENT" envDefault:"dev"`
}

// MetricsEnvConfig configures the Prometheus endpoint.
type MetricsEnvConfig struct {
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPort    int  `env:"METRICS_PORT" envDefault:"9102"`
}
