package review

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
)

type derivedRow struct {
	id       int64
	sourceID int64
	rec      normalize.Record
}

// memStore is an in-memory Store with the same compare-and-set semantics
// as the SQLite store.
type memStore struct {
	mu      sync.Mutex
	sources map[int64]*record.Source
	derived []derivedRow
	nextID  int64
	failAll error
}

func newMemStore() *memStore {
	return &memStore{sources: make(map[int64]*record.Source)}
}

func (m *memStore) add(body string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sources[m.nextID] = record.NewSource(m.nextID, []byte(body))
	return m.nextID
}

func clone(src *record.Source) *record.Source {
	c := *src
	return &c
}

func (m *memStore) FindSource(_ context.Context, id int64) (*record.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	src, ok := m.sources[id]
	if !ok {
		return nil, nil
	}
	return clone(src), nil
}

func matches(src *record.Source, f Filter) bool {
	if !f.Enabled() {
		return true
	}
	v := src.Lookup(f.Key)
	return v.Type == gjson.String && v.Str == f.Value
}

func (m *memStore) ListUndecided(_ context.Context, filter Filter, limit int) ([]*record.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []*record.Source
	for _, src := range m.sources {
		if !src.Decided() && matches(src, filter) {
			out = append(out, clone(src))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CommitDecision(_ context.Context, id int64, verdict record.Verdict, decidedAt time.Time, derived normalize.Record) (*Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	src, ok := m.sources[id]
	if !ok {
		return &Commit{}, nil
	}
	if src.Decided() {
		return &Commit{Current: clone(src)}, nil
	}
	src.Decision = verdict
	src.DecidedAt = &decidedAt
	commit := &Commit{Applied: true, Current: clone(src)}
	if derived != nil {
		commit.DerivedID = int64(len(m.derived) + 1)
		m.derived = append(m.derived, derivedRow{id: commit.DerivedID, sourceID: id, rec: derived})
	}
	return commit, nil
}

func (m *memStore) CountByDecision(_ context.Context, filter Filter) (DecisionCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c DecisionCounts
	if m.failAll != nil {
		return c, m.failAll
	}
	for _, src := range m.sources {
		if !matches(src, filter) {
			continue
		}
		switch src.Decision {
		case record.Accept:
			c.Accepted++
		case record.Reject:
			c.Rejected++
		default:
			c.Undecided++
		}
	}
	return c, nil
}

func (m *memStore) CountDerived(_ context.Context, _ bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.derived), m.failAll
}

func (m *memStore) derivedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.derived)
}

type recordingIndexer struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (r *recordingIndexer) IndexRecord(id int64, _ int64, _ normalize.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return r.err
}

type countingObserver struct {
	mu       sync.Mutex
	decided  map[string]int
	failures map[string]int
	last     *Snapshot
}

func newCountingObserver() *countingObserver {
	return &countingObserver{decided: map[string]int{}, failures: map[string]int{}}
}

func (o *countingObserver) Decided(v record.Verdict, already bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := string(v)
	if already {
		key += "/replay"
	}
	o.decided[key]++
}

func (o *countingObserver) NormalizeFailed(field string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[field]++
}

func (o *countingObserver) StatsComputed(s *Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = s
}

var errBoom = errors.New("disk I/O error")
