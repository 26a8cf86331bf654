package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL   string        `env:"JOURNEYS_DATABASE_URL,required,notEmpty"`
	WorkerCount   int           `env:"JOURNEYS_WORKER_COUNT" envDefault:"4"`
	QueueSize     int           `env:"JOURNEYS_QUEUE_SIZE" envDefault:"64"`
	JobRetries    int           `env:"JOURNEYS_JOB_RETRIES" envDefault:"3"`
	JobRetryDelay time.Duration `env:"JOURNEYS_JOB_RETRY_DELAY" envDefault:"1s"`
	RunTimeout    time.Duration `env:"JOURNEYS_RUN_TIMEOUT" envDefault:"5m"`
	LogLevel      string        `env:"JOURNEYS_LOG_LEVEL" envDefault:"info"`
	LogFile       string        `env:"JOURNEYS_LOG_FILE"`
	PageSize      int           `env:"JOURNEYS_PAGE_SIZE" envDefault:"50"`
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("JOURNEYS_WORKER_COUNT must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.QueueSize < 1 {
		return fmt.Errorf("JOURNEYS_QUEUE_SIZE must be at least 1, got %d", cfg.QueueSize)
	}
	if cfg.JobRetries < 1 {
		return fmt.Errorf("JOURNEYS_JOB_RETRIES must be at least 1, got %d", cfg.JobRetries)
	}
	return nil
}
