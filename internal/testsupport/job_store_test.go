package testsupport

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// TestClaimAtMostOnce is invariant 1: K concurrent Claim calls against a
// pool of M pending jobs return exactly min(K,M) distinct job IDs.
func TestClaimAtMostOnce(t *testing.T) {
	const m = 20
	const k = 50
	store := NewJobStore()
	ctx := context.Background()
	for i := 0; i < m; i++ {
		_, err := store.Enqueue(ctx, valueobject.JobKindParsePaper, nil, 5)
		require.NoError(t, err)
	}

	var (
		mu  sync.Mutex
		ids = make(map[uuid.UUID]struct{})
		wg  sync.WaitGroup
	)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, err := store.Claim(ctx, fmt.Sprintf("worker-%d", i), []valueobject.JobKind{valueobject.JobKindParsePaper}, time.Minute)
			require.NoError(t, err)
			if job == nil {
				return
			}
			mu.Lock()
			ids[job.ID] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, m)
}

// TestClaimIncrementsAttemptsUnconditionally guards the attempts-bump
// fix: every successful Claim, not just a stale reclaim, advances
// Attempts, so a job that keeps failing eventually exhausts MaxAttempts.
func TestClaimIncrementsAttemptsUnconditionally(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()
	id, err := store.Enqueue(ctx, valueobject.JobKindParsePaper, nil, 3)
	require.NoError(t, err)

	for attempt := 1; attempt <= 3; attempt++ {
		job, err := store.Claim(ctx, "w1", []valueobject.JobKind{valueobject.JobKindParsePaper}, time.Minute)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, attempt, job.Attempts)

		retryAfter := time.Time{}
		if attempt < 3 {
			r := time.Now().Add(-time.Second) // already due, so the next Claim can pick it up
			retryAfter = r
			require.NoError(t, store.Fail(ctx, id, "w1", "boom", &retryAfter))
		} else {
			require.NoError(t, store.Fail(ctx, id, "w1", "boom", nil))
		}
	}

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
}

// TestCompleteRequiresOwnership is invariant 2: Complete succeeds iff the
// job is running and claimed by the calling worker.
func TestCompleteRequiresOwnership(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()
	id, err := store.Enqueue(ctx, valueobject.JobKindParsePaper, nil, 5)
	require.NoError(t, err)
	_, err = store.Claim(ctx, "owner", []valueobject.JobKind{valueobject.JobKindParsePaper}, time.Minute)
	require.NoError(t, err)

	err = store.Complete(ctx, id, "someone-else", map[string]any{"ok": true})
	assert.Error(t, err)

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusRunning, job.Status)

	require.NoError(t, store.Complete(ctx, id, "owner", map[string]any{"ok": true}))
	job, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, job.Status)
}

// TestTerminalJobNeverReturnsToPendingOrRunning is invariant 3.
func TestTerminalJobNeverReturnsToPendingOrRunning(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()
	id, err := store.Enqueue(ctx, valueobject.JobKindParsePaper, nil, 1)
	require.NoError(t, err)
	_, err = store.Claim(ctx, "w1", []valueobject.JobKind{valueobject.JobKindParsePaper}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, id, "w1", "boom", nil))

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, job.Status.IsTerminal())
	require.NotNil(t, job.FinishedAt)

	// A terminal job is never claimable again.
	claimed, err := store.Claim(ctx, "w2", []valueobject.JobKind{valueobject.JobKindParsePaper}, 0)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	err = store.Complete(ctx, id, "w1", map[string]any{})
	assert.Error(t, err)
}

// TestStaleRunningJobIsReclaimed covers the sweeper side of the claim
// contract: a running job whose claim has gone stale becomes claimable
// again without ever visiting pending.
func TestStaleRunningJobIsReclaimed(t *testing.T) {
	clockTime := time.Now().Add(-time.Hour)
	store := NewJobStore()
	store.Clock = func() time.Time { return clockTime }
	ctx := context.Background()
	id, err := store.Enqueue(ctx, valueobject.JobKindParsePaper, nil, 5)
	require.NoError(t, err)
	_, err = store.Claim(ctx, "dead-worker", []valueobject.JobKind{valueobject.JobKindParsePaper}, time.Minute)
	require.NoError(t, err)

	store.Clock = func() time.Time { return clockTime.Add(time.Hour) }
	job, err := store.Claim(ctx, "w2", []valueobject.JobKind{valueobject.JobKindParsePaper}, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "w2", *job.ClaimedBy)
	assert.Equal(t, 2, job.Attempts)
}

// TestCutoffMonotonicity is invariant 8: LastClaimedAtOfKindForSubject
// only ever reports the most recent claim, never an older one.
func TestCutoffMonotonicity(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()
	libraryID := uuid.New()

	for i := 0; i < 3; i++ {
		id, err := store.Enqueue(ctx, valueobject.JobKindLinkLibrary, map[string]any{"library_id": libraryID.String()}, 5)
		require.NoError(t, err)
		claimTime := time.Now().Add(time.Duration(i) * time.Minute)
		store.Clock = func() time.Time { return claimTime }
		_, err = store.Claim(ctx, "w1", []valueobject.JobKind{valueobject.JobKindLinkLibrary}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, id, "w1", map[string]any{}))
	}

	cutoff, err := store.LastClaimedAtOfKindForSubject(ctx, valueobject.JobKindLinkLibrary, "library_id", libraryID)
	require.NoError(t, err)
	require.NotNil(t, cutoff)

	want := time.Now().Add(2 * time.Minute)
	assert.WithinDuration(t, want, *cutoff, time.Second)
}

// TestDebounceWindow is invariant 9: a pending job created within window
// suppresses a fresh trigger; once it ages out, it no longer does.
func TestDebounceWindow(t *testing.T) {
	libraryID := uuid.New()
	start := time.Now()
	store := NewJobStore()
	store.Clock = func() time.Time { return start }
	ctx := context.Background()

	_, err := store.Enqueue(ctx, valueobject.JobKindLinkLibrary, map[string]any{"library_id": libraryID.String()}, 5)
	require.NoError(t, err)

	store.Clock = func() time.Time { return start.Add(2 * time.Minute) }
	debounced, err := store.RecentPendingOfKindForSubject(ctx, valueobject.JobKindLinkLibrary, "library_id", libraryID, 3*time.Minute)
	require.NoError(t, err)
	assert.True(t, debounced, "job created 2m ago is within a 3m debounce window")

	store.Clock = func() time.Time { return start.Add(4 * time.Minute) }
	debounced, err = store.RecentPendingOfKindForSubject(ctx, valueobject.JobKindLinkLibrary, "library_id", libraryID, 3*time.Minute)
	require.NoError(t, err)
	assert.False(t, debounced, "job created 4m ago is outside a 3m debounce window")
}
