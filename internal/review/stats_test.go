package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/review-queue/internal/record"
)

func TestStatsConsistentWithLedger(t *testing.T) {
	store := newMemStore()
	filter := Filter{Key: "봇", Value: "규정집"}
	var ids []int64
	for range 5 {
		ids = append(ids, store.add(`{"봇":"규정집","title":"q","content":"a"}`))
	}
	store.add(`{"봇":"기타","title":"q","content":"a"}`)
	obs := newCountingObserver()
	svc := newTestService(store, WithFilter(filter), WithObserver(obs))
	ctx := context.Background()

	snap, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Snapshot{Total: 5, Undecided: 5}, snap)

	prevDerived := 0
	for i, n := range ids[:4] {
		verdict := record.Accept
		if i%2 == 1 {
			verdict = record.Reject
		}
		_, err := svc.Decide(ctx, id(n), verdict)
		require.NoError(t, err)

		snap, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap.Total, snap.Undecided+snap.Accepted+snap.Rejected)
		assert.GreaterOrEqual(t, snap.Derived, prevDerived)
		assert.Equal(t, snap.Accepted, snap.Derived)
		prevDerived = snap.Derived
	}

	snap, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Snapshot{Total: 5, Undecided: 1, Accepted: 2, Rejected: 2, Derived: 2}, snap)
	assert.Equal(t, snap, obs.last)
}

func TestStatsStoreUnavailable(t *testing.T) {
	store := newMemStore()
	store.failAll = errBoom
	svc := newTestService(store)

	_, err := svc.Stats(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
