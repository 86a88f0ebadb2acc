package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
	"github.com/renderinc/review-queue/internal/review"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insert(t *testing.T, db *DB, body string) int64 {
	t.Helper()
	id, err := db.InsertSource(context.Background(), []byte(body), "", nil)
	require.NoError(t, err)
	return id
}

func TestInsertAndFindSource(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id := insert(t, db, `{"질문":"q","답변":"a"}`)
	src, err := db.FindSource(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, id, src.ID)
	assert.Equal(t, "q", src.Lookup("질문").String())
	assert.False(t, src.Decided())
	assert.Nil(t, src.DecidedAt)

	missing, err := db.FindSource(ctx, id+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertSourceRejectsInvalidJSON(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertSource(context.Background(), []byte(`{not json`), "", nil)
	assert.Error(t, err)
}

func TestInsertSourceKeepsVerdict(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	id, err := db.InsertSource(ctx, []byte(`{"title":"t"}`), record.Reject, &at)
	require.NoError(t, err)

	src, err := db.FindSource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, record.Reject, src.Decision)
	require.NotNil(t, src.DecidedAt)
	assert.True(t, at.Equal(*src.DecidedAt))
}

func TestListUndecidedOrderFilterLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := insert(t, db, `{"봇":"규정집","title":"a"}`)
	insert(t, db, `{"봇":"기타","title":"b"}`)
	c := insert(t, db, `{"봇":"규정집","title":"c"}`)
	d := insert(t, db, `{"봇":"규정집","title":"d"}`)

	_, err := db.CommitDecision(ctx, c, record.Reject, time.Now(), nil)
	require.NoError(t, err)

	filter := review.Filter{Key: "봇", Value: "규정집"}
	got, err := db.ListUndecided(ctx, filter, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID)
	assert.Equal(t, d, got[1].ID)

	got, err = db.ListUndecided(ctx, review.Filter{}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID)
}

func TestCommitDecisionCompareAndSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id := insert(t, db, `{"title":"q","content":"a"}`)
	derived := &normalize.Minimal{Question: "q", Answer: "a"}

	commit, err := db.CommitDecision(ctx, id, record.Accept, time.Now(), derived)
	require.NoError(t, err)
	assert.True(t, commit.Applied)
	assert.Equal(t, int64(1), commit.DerivedID)
	assert.Equal(t, record.Accept, commit.Current.Decision)

	commit, err = db.CommitDecision(ctx, id, record.Reject, time.Now(), derived)
	require.NoError(t, err)
	assert.False(t, commit.Applied)
	assert.Zero(t, commit.DerivedID)
	assert.Equal(t, record.Accept, commit.Current.Decision)

	n, err := db.CountDerived(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := db.GetDerived(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, id, stored.SourceRawID)
	rec, err := stored.Record()
	require.NoError(t, err)
	assert.Equal(t, derived, rec)
}

func TestCommitDecisionMissingSource(t *testing.T) {
	db := openTestDB(t)

	commit, err := db.CommitDecision(context.Background(), 99, record.Reject, time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, commit.Applied)
	assert.Nil(t, commit.Current)
}

func TestCountByDecisionAndDerived(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	filter := review.Filter{Key: "봇", Value: "규정집"}

	var ids []int64
	for range 4 {
		ids = append(ids, insert(t, db, `{"봇":"규정집","title":"q","content":"a"}`))
	}
	insert(t, db, `{"title":"untagged"}`)

	_, err := db.CommitDecision(ctx, ids[0], record.Accept, time.Now(), &normalize.Minimal{Question: "q", Answer: "a"})
	require.NoError(t, err)
	_, err = db.CommitDecision(ctx, ids[1], record.Reject, time.Now(), nil)
	require.NoError(t, err)

	counts, err := db.CountByDecision(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, review.DecisionCounts{Undecided: 2, Accepted: 1, Rejected: 1}, counts)

	all, err := db.CountByDecision(ctx, review.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 5, all.Total())

	approx, err := db.CountDerived(ctx, false)
	require.NoError(t, err)
	exact, err := db.CountDerived(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, approx)
	assert.Equal(t, exact, approx)
}

func TestCommitDecisionConcurrentFileDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.db")
	db, err := Open(path, Options{BusyTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	id := insert(t, db, `{"title":"q","content":"a"}`)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			commit, err := db.CommitDecision(ctx, id, record.Accept, time.Now(), &normalize.Minimal{Question: "q", Answer: "a"})
			if err != nil {
				t.Errorf("commit: %v", err)
				return
			}
			if commit.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	n, err := db.CountDerived(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJSONPathQuotesKey(t *testing.T) {
	assert.Equal(t, `$."봇"`, jsonPath("봇"))
	assert.Equal(t, `$."a\"b"`, jsonPath(`a"b`))
}
