package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/renderinc/review-queue/internal/metrics"
	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
	"github.com/renderinc/review-queue/internal/review"
	"github.com/renderinc/review-queue/internal/search"
	"github.com/renderinc/review-queue/internal/storage"
)

// openDB opens the store, creating its directory when needed.
func (a *app) openDB() (*storage.DB, error) {
	if a.cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := storage.Open(a.cfg.DBPath, storage.Options{BusyTimeout: a.cfg.BusyTimeout})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (a *app) openIndex() (*search.Index, error) {
	idx, err := search.Open(a.cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return idx, nil
}

// newService builds the pipeline. idx and m may be nil.
func (a *app) newService(db *storage.DB, idx *search.Index, m *metrics.Collectors) (*review.Service, error) {
	resolver := record.NewResolver(a.cfg.KeyTable())
	policy, err := normalize.New(a.cfg.Policy, resolver)
	if err != nil {
		return nil, err
	}

	opts := []review.Option{
		review.WithFilter(a.cfg.Filter()),
		review.WithExactTotals(a.cfg.ExactTotals),
		review.WithLogger(a.logger),
	}
	if idx != nil {
		opts = append(opts, review.WithIndexer(idx))
	}
	if m != nil {
		opts = append(opts, review.WithObserver(m))
	}

	a.logger.Debug("Pipeline configured",
		zap.String("policy", policy.Name()),
		zap.Strings("title_keys", resolver.Keys(record.FieldTitle)),
		zap.Bool("category_filter", a.cfg.Filter().Enabled()))

	return review.NewService(db, resolver, policy, opts...), nil
}
