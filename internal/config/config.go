// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
	"github.com/renderinc/review-queue/internal/review"
)

// Config is the full service configuration.
type Config struct {
	DBPath      string        `env:"REVIEW_DB_PATH" envDefault:"./data/review.db"`
	IndexPath   string        `env:"REVIEW_INDEX_PATH" envDefault:"./data/bleve"`
	BusyTimeout time.Duration `env:"REVIEW_BUSY_TIMEOUT" envDefault:"5s"`

	ListenAddr     string   `env:"REVIEW_LISTEN_ADDR" envDefault:"localhost:8000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	// The category filter scopes both the queue and stats.
	CategoryFilter bool   `env:"REVIEW_CATEGORY_FILTER" envDefault:"true"`
	CategoryKey    string `env:"REVIEW_CATEGORY_KEY" envDefault:"봇"`
	CategoryValue  string `env:"REVIEW_CATEGORY_VALUE" envDefault:"규정집"`

	Policy      string   `env:"REVIEW_POLICY" envDefault:"minimal"`
	TitleKeys   []string `env:"REVIEW_TITLE_KEYS" envDefault:"프롬프트,질문,title" envSeparator:","`
	ExactTotals bool     `env:"REVIEW_EXACT_TOTALS" envDefault:"false"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`
}

// Load reads envFiles (default ".env") if present, then the environment.
// Variables already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	switch c.Policy {
	case normalize.PolicyMinimal, normalize.PolicyValidating:
	default:
		return fmt.Errorf("REVIEW_POLICY must be %q or %q, got %q",
			normalize.PolicyMinimal, normalize.PolicyValidating, c.Policy)
	}
	if c.DBPath == "" {
		return errors.New("REVIEW_DB_PATH is required")
	}
	if err := c.KeyTable().Validate(); err != nil {
		return fmt.Errorf("REVIEW_TITLE_KEYS: %w", err)
	}
	return nil
}

// KeyTable builds the field resolver table from the configured title order.
func (c *Config) KeyTable() record.KeyTable {
	keys := make([]string, 0, len(c.TitleKeys))
	for _, k := range c.TitleKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return record.NewKeyTable(keys)
}

// Filter returns the population filter, the zero Filter when disabled.
func (c *Config) Filter() review.Filter {
	if !c.CategoryFilter {
		return review.Filter{}
	}
	return review.Filter{Key: c.CategoryKey, Value: c.CategoryValue}
}
