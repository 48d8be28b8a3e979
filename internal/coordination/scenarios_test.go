package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/paperlink/internal/domain/entity"
)

// TestScenarioS1FreshLibrary: a library with no prior linking and both
// claims and observations now present enqueues exactly one LINK_LIBRARY
// with cutoff:null.
func TestScenarioS1FreshLibrary(t *testing.T) {
	jobs := &fakeJobStore{}
	extracts := &fakeExtractRepo{
		claims:       []*entity.Extract{{ID: uuid.New()}},
		observations: []*entity.Extract{{ID: uuid.New()}},
	}
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  extracts,
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New(), uuid.New()}},
		Logger:    testLogger{},
	}

	require.NoError(t, c.MaybeQueueLinkLibrary(context.Background(), uuid.New(), nil))

	assert.Equal(t, 1, jobs.enqueuedCount)
	_, hasCutoff := jobs.enqueuedPayload["cutoff"]
	assert.False(t, hasCutoff, "first-ever run must enqueue with cutoff:null")
}

// TestScenarioS2BurstDebounce: two papers finishing extraction within
// the debounce window of each other must produce exactly one
// LINK_LIBRARY, not two.
func TestScenarioS2BurstDebounce(t *testing.T) {
	libraryID := uuid.New()
	jobs := &fakeJobStore{}
	extracts := &fakeExtractRepo{unlinked: []*entity.Extract{{ID: uuid.New()}}}
	lastLinked := time.Now().Add(-time.Hour)
	jobs.cutoff = &lastLinked
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  extracts,
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New()}},
		Logger:    testLogger{},
	}

	// P6 finishes extraction first: nothing pending yet, so this
	// enqueues the library's LINK_LIBRARY.
	require.NoError(t, c.MaybeQueueLinkLibrary(context.Background(), libraryID, nil))
	assert.Equal(t, 1, jobs.enqueuedCount)

	// P7 finishes a moment later, inside the debounce window: the job
	// just enqueued for P6 is now "recent pending", so this call must
	// not enqueue a second one.
	jobs.debounced = true
	require.NoError(t, c.MaybeQueueLinkLibrary(context.Background(), libraryID, nil))
	assert.Equal(t, 1, jobs.enqueuedCount)
}

// TestScenarioS3PaperMovesIntoLinkedLibrary: a library that has already
// been linked gets a paper added after the cutoff; its pre-existing
// claims count as unlinked even though their own CreatedAt predates
// cutoff (modeled here by the fake's unlinked set directly, the way
// UnlinkedClaims' added_at-OR-created_at predicate would populate it).
func TestScenarioS3PaperMovesIntoLinkedLibrary(t *testing.T) {
	cutoff := time.Now()
	jobs := &fakeJobStore{cutoff: &cutoff}
	extracts := &fakeExtractRepo{unlinked: []*entity.Extract{{ID: uuid.New()}}}
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  extracts,
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New()}},
		Logger:    testLogger{},
	}

	require.NoError(t, c.MaybeQueueLinkLibrary(context.Background(), uuid.New(), nil))
	assert.Equal(t, 1, jobs.enqueuedCount)
	cutoffStr, ok := jobs.enqueuedPayload["cutoff"].(string)
	require.True(t, ok)
	assert.Equal(t, cutoff.Format(time.RFC3339Nano), cutoffStr)
}

// TestScenarioS6NoObservationsYet: a library with claims but no
// observations is "nothing to do" on a first-ever run — the first-time
// rule requires both types before anything is enqueued.
func TestScenarioS6NoObservationsYet(t *testing.T) {
	jobs := &fakeJobStore{}
	extracts := &fakeExtractRepo{claims: []*entity.Extract{{ID: uuid.New()}}}
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  extracts,
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New()}},
		Logger:    testLogger{},
	}

	require.NoError(t, c.MaybeQueueLinkLibrary(context.Background(), uuid.New(), nil))
	assert.Equal(t, 0, jobs.enqueuedCount)
}
