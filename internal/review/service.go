// Package review implements the human review pipeline: the undecided queue,
// the at-most-once decision coordinator and ledger statistics.
package review

import (
	"time"

	"go.uber.org/zap"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
)

// Service wires the pipeline components around a Store.
type Service struct {
	store       Store
	resolver    *record.Resolver
	policy      normalize.Policy
	filter      Filter
	exactTotals bool
	indexer     Indexer
	observer    Observer
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithFilter scopes both the queue and statistics.
func WithFilter(f Filter) Option {
	return func(s *Service) { s.filter = f }
}

// WithExactTotals makes the derived total an exact count.
func WithExactTotals(exact bool) Option {
	return func(s *Service) { s.exactTotals = exact }
}

// WithIndexer registers a search index fed on acceptance.
func WithIndexer(idx Indexer) Option {
	return func(s *Service) { s.indexer = idx }
}

// WithObserver registers an outcome observer (metrics).
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the pipeline. The policy is fixed for the lifetime of
// the service.
func NewService(store Store, resolver *record.Resolver, policy normalize.Policy, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: resolver,
		policy:   policy,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured normalization policy.
func (s *Service) Policy() normalize.Policy {
	return s.policy
}

// Filter returns the population filter.
func (s *Service) Filter() Filter {
	return s.filter
}
