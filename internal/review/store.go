package review

import (
	"context"
	"time"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
)

// Filter scopes the source population. The zero value matches everything.
type Filter struct {
	Key   string
	Value string
}

// Enabled reports whether the filter restricts anything.
func (f Filter) Enabled() bool {
	return f.Key != "" && f.Value != ""
}

// DecisionCounts is an exact breakdown of sources by decision marker.
type DecisionCounts struct {
	Undecided int
	Accepted  int
	Rejected  int
}

// Total is the sum of all buckets.
func (c DecisionCounts) Total() int {
	return c.Undecided + c.Accepted + c.Rejected
}

// Commit describes the outcome of Store.CommitDecision.
type Commit struct {
	// Applied is false when the marker was already set (or the source is
	// gone); nothing was written in that case.
	Applied bool
	// Current is the source as stored after the attempt; nil if missing.
	Current *record.Source
	// DerivedID identifies the inserted derived record, 0 if none.
	DerivedID int64
}

// Store is the document store the pipeline runs against.
type Store interface {
	// FindSource returns nil, nil when no source has id.
	FindSource(ctx context.Context, id int64) (*record.Source, error)
	// ListUndecided returns undecided sources in ascending id order.
	ListUndecided(ctx context.Context, filter Filter, limit int) ([]*record.Source, error)
	// CommitDecision sets the marker only if it is currently unset and, in
	// the same transaction, appends derived when non-nil.
	CommitDecision(ctx context.Context, id int64, verdict record.Verdict, decidedAt time.Time, derived normalize.Record) (*Commit, error)
	// CountByDecision counts sources under filter in a single snapshot.
	CountByDecision(ctx context.Context, filter Filter) (DecisionCounts, error)
	// CountDerived counts derived records; exact=false allows an estimate.
	CountDerived(ctx context.Context, exact bool) (int, error)
}

// Indexer receives derived records after they are committed.
type Indexer interface {
	IndexRecord(id int64, sourceID int64, rec normalize.Record) error
}

// Observer is notified of pipeline outcomes.
type Observer interface {
	Decided(verdict record.Verdict, alreadyDecided bool)
	NormalizeFailed(field string)
	StatsComputed(s *Snapshot)
}
