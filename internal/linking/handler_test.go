package linking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/service"
	"github.com/sogos/paperlink/internal/domain/valueobject"
	"github.com/sogos/paperlink/internal/testsupport"
)

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any)                   {}
func (testLogger) Info(msg string, args ...any)                    {}
func (testLogger) Warn(msg string, args ...any)                    {}
func (testLogger) Error(msg string, args ...any)                   {}
func (l testLogger) With(args ...any) service.Logger               { return l }
func (l testLogger) WithContext(ctx context.Context) service.Logger { return l }

// fakeLinkingLLM answers every Complete call according to SchemaName and
// records every request it saw, so a test can assert which phases
// actually issued a call.
type fakeLinkingLLM struct {
	mu    sync.Mutex
	calls []service.CompletionRequest
}

func (f *fakeLinkingLLM) Complete(ctx context.Context, req service.CompletionRequest) (service.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	switch req.SchemaName {
	case "pairwise_link_result":
		return service.Completion{Text: `{"link_type":"duplicate","reasoning":"same claim restated"}`}, nil
	case "evidence_linking_result":
		return service.Completion{Text: `{"links":[]}`}, nil
	case "method_selection":
		return service.Completion{Text: `{"method_ids":[]}`}, nil
	default:
		return service.Completion{Text: `{}`}, nil
	}
}

func (f *fakeLinkingLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeLinkingLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// TestHandleResumesSkippingAlreadyProcessedClaims is invariant 7 / S4: a
// LINK_LIBRARY job whose progress already records one claim's phase B
// work only issues LLM calls for the remaining claim, and the persisted
// progress accumulates rather than resets.
func TestHandleResumesSkippingAlreadyProcessedClaims(t *testing.T) {
	ctx := context.Background()
	libraryID := uuid.New()
	paperID := uuid.New()
	sourceJobID := uuid.New()
	claim1, claim2 := uuid.New(), uuid.New()

	extracts := testsupport.NewExtractRepository()
	require.NoError(t, extracts.CreateBatch(ctx, []*entity.Extract{
		{ID: claim1, PaperID: paperID, JobID: sourceJobID, Type: valueobject.ExtractTypeClaim, Content: map[string]any{"rephrased_claim": "claim one"}},
		{ID: claim2, PaperID: paperID, JobID: sourceJobID, Type: valueobject.ExtractTypeClaim, Content: map[string]any{"rephrased_claim": "claim two"}},
	}))

	vectors := testsupport.NewExtractVectorRepository()
	require.NoError(t, vectors.CreateBatch(ctx, []*entity.ExtractVector{
		{ExtractID: claim1, Embedding: []float32{1, 0}},
		{ExtractID: claim2, Embedding: []float32{1, 0}},
	}))

	links := testsupport.NewExtractLinkRepository()
	jobs := testsupport.NewJobStore()
	libraries := &testsupport.LibraryRepository{PaperIDs: []uuid.UUID{paperID}}
	llm := &fakeLinkingLLM{}

	h := &Handler{
		Jobs:      jobs,
		Libraries: libraries,
		Extracts:  extracts,
		Vectors:   vectors,
		Links:     links,
		LLM:       llm,
		Logger:    testLogger{},
	}

	jobID, err := jobs.Enqueue(ctx, valueobject.JobKindLinkLibrary, map[string]any{"library_id": libraryID.String()}, 5)
	require.NoError(t, err)
	job, err := jobs.Claim(ctx, "w1", []valueobject.JobKind{valueobject.JobKindLinkLibrary}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, jobID, job.ID)

	// Simulate a crash after phase B finished claim1 but before claim2.
	job.Progress = map[string]any{"c2c_done": []any{claim1.String()}}

	result, err := h.Handle(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "complete", result["status"])

	// Only the unprocessed claim (claim2) should have produced a
	// candidate pair, so exactly one phase B call was made.
	assert.Equal(t, 1, llm.callCount())
	assert.Equal(t, "pairwise_link_result", llm.calls[0].SchemaName)

	persisted, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	c2cDone, ok := persisted.Progress["c2c_done"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{claim1.String(), claim2.String()}, c2cDone)

	// Exactly one link should exist: resuming must not duplicate the
	// work already recorded as done, only add the newly-found one.
	assert.Len(t, links.All(), 1)
}

// TestValidateLinksDropsHallucinatedEndpoints is scenario S5: an
// endpoint the LLM returned that isn't in the legal write surface (the
// "not-a-uuid" / nonexistent-ID case) is dropped, not persisted, while
// valid links in the same batch survive.
func TestValidateLinksDropsHallucinatedEndpoints(t *testing.T) {
	validFrom, validTo := uuid.New(), uuid.New()
	hallucinatedTo := uuid.New() // well-formed UUID, but absent from toSet

	fromSet := map[string]struct{}{validFrom.String(): {}}
	toSet := map[string]struct{}{validTo.String(): {}}

	links := []*entity.ExtractLink{
		{FromID: validFrom, ToID: validTo, Type: valueobject.LinkTypeSupports},
		{FromID: validFrom, ToID: hallucinatedTo, Type: valueobject.LinkTypeSupports},
	}

	valid := validateLinks(links, fromSet, toSet, testLogger{})
	require.Len(t, valid, 1)
	assert.Equal(t, validTo, valid[0].ToID)
}

func TestMergeIDsDeduplicatesAcrossRuns(t *testing.T) {
	merged := mergeIDs([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)
}
