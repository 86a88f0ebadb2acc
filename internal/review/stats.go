package review

import (
	"context"
	"fmt"
)

// Snapshot is a point-in-time view of the decision ledger. It is computed
// per request and never cached.
type Snapshot struct {
	Total     int `json:"raw_total"`
	Undecided int `json:"raw_undecided"`
	Accepted  int `json:"raw_yes"`
	Rejected  int `json:"raw_no"`
	Derived   int `json:"rmx_total"`
}

// Stats counts sources by decision and the derived records.
//
// Decision buckets come from one exact grouped count, so
// Undecided+Accepted+Rejected == Total always holds. The derived total is
// an estimate unless exact totals are configured.
func (s *Service) Stats(ctx context.Context) (*Snapshot, error) {
	counts, err := s.store.CountByDecision(ctx, s.filter)
	if err != nil {
		return nil, fmt.Errorf("%w: count sources: %v", ErrStoreUnavailable, err)
	}
	derived, err := s.store.CountDerived(ctx, s.exactTotals)
	if err != nil {
		return nil, fmt.Errorf("%w: count derived: %v", ErrStoreUnavailable, err)
	}

	snap := &Snapshot{
		Total:     counts.Total(),
		Undecided: counts.Undecided,
		Accepted:  counts.Accepted,
		Rejected:  counts.Rejected,
		Derived:   derived,
	}
	if s.observer != nil {
		s.observer.StatsComputed(snap)
	}
	return snap, nil
}
