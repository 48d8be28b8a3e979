package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/service"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// testLogger implements service.Logger as a no-op, sufficient for
// exercising Coordinator code paths that only log.
type testLogger struct{}

func (testLogger) Debug(msg string, args ...any) {}
func (testLogger) Info(msg string, args ...any)  {}
func (testLogger) Warn(msg string, args ...any)  {}
func (testLogger) Error(msg string, args ...any) {}
func (l testLogger) With(args ...any) service.Logger {
	return l
}
func (l testLogger) WithContext(ctx context.Context) service.Logger {
	return l
}

type fakeJobStore struct {
	active          bool
	debounced       bool
	cutoff          *time.Time
	enqueuedKind    valueobject.JobKind
	enqueuedCount   int
	enqueuedPayload map[string]any
}

func (f *fakeJobStore) Enqueue(ctx context.Context, kind valueobject.JobKind, payload map[string]any, maxAttempts int) (uuid.UUID, error) {
	f.enqueuedKind = kind
	f.enqueuedCount++
	f.enqueuedPayload = payload
	return uuid.New(), nil
}
func (f *fakeJobStore) Claim(ctx context.Context, workerID string, kinds []valueobject.JobKind, staleAfter time.Duration) (*entity.Job, error) {
	return nil, nil
}
func (f *fakeJobStore) Complete(ctx context.Context, jobID uuid.UUID, workerID string, result map[string]any) error {
	return nil
}
func (f *fakeJobStore) Fail(ctx context.Context, jobID uuid.UUID, workerID string, errMsg string, retryAfter *time.Time) error {
	return nil
}
func (f *fakeJobStore) Get(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	return nil, nil
}
func (f *fakeJobStore) PutProgress(ctx context.Context, jobID uuid.UUID, workerID string, progress map[string]any) error {
	return nil
}
func (f *fakeJobStore) HasActiveOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, excludeJobID *uuid.UUID) (bool, error) {
	return f.active, nil
}
func (f *fakeJobStore) RecentPendingOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, window time.Duration) (bool, error) {
	return f.debounced, nil
}
func (f *fakeJobStore) LastClaimedAtOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID) (*time.Time, error) {
	return f.cutoff, nil
}

type fakeExtractRepo struct {
	claims       []*entity.Extract
	observations []*entity.Extract
	unlinked     []*entity.Extract
}

func (f *fakeExtractRepo) CreateBatch(ctx context.Context, extracts []*entity.Extract) error {
	return nil
}
func (f *fakeExtractRepo) ExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	return false, nil
}
func (f *fakeExtractRepo) LatestByPaperAndType(ctx context.Context, paperIDs []uuid.UUID, extractType valueobject.ExtractType) ([]*entity.Extract, error) {
	if extractType == valueobject.ExtractTypeClaim {
		return f.claims, nil
	}
	return f.observations, nil
}
func (f *fakeExtractRepo) UnlinkedClaims(ctx context.Context, libraryID uuid.UUID, paperIDs []uuid.UUID, cutoff *time.Time) ([]*entity.Extract, error) {
	return f.unlinked, nil
}

type fakeLibraryRepo struct {
	paperIDs []uuid.UUID
}

func (f *fakeLibraryRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Library, error) {
	return nil, nil
}
func (f *fakeLibraryRepo) AddPaper(ctx context.Context, libraryID, paperID uuid.UUID) error {
	return nil
}
func (f *fakeLibraryRepo) ListPaperIDs(ctx context.Context, libraryID uuid.UUID) ([]uuid.UUID, error) {
	return f.paperIDs, nil
}
func (f *fakeLibraryRepo) ListLibraryIDsForPaper(ctx context.Context, paperID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

type fakePublisher struct {
	calls int
	last  ProcessingStatus
}

func (f *fakePublisher) PublishStatus(ctx context.Context, libraryID uuid.UUID, status ProcessingStatus) error {
	f.calls++
	f.last = status
	return nil
}

func TestMaybeQueueLinkLibrarySkipsWhenProcessing(t *testing.T) {
	jobs := &fakeJobStore{active: true}
	pub := &fakePublisher{}
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  &fakeExtractRepo{},
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New()}},
		Logger:    testLogger{},
		Publisher: pub,
	}
	err := c.MaybeQueueLinkLibrary(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, jobs.enqueuedCount)
	assert.Equal(t, 1, pub.calls)
}

func TestMaybeQueueLinkLibrarySkipsWhenDebounced(t *testing.T) {
	jobs := &fakeJobStore{debounced: true}
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  &fakeExtractRepo{},
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New()}},
		Logger:    testLogger{},
	}
	err := c.MaybeQueueLinkLibrary(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, jobs.enqueuedCount)
}

func TestMaybeQueueLinkLibrarySkipsWhenNothingUnlinkedFirstRun(t *testing.T) {
	jobs := &fakeJobStore{}
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  &fakeExtractRepo{},
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New()}},
		Logger:    testLogger{},
	}
	err := c.MaybeQueueLinkLibrary(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, jobs.enqueuedCount)
}

func TestMaybeQueueLinkLibraryEnqueuesWhenUnlinkedExistFirstRun(t *testing.T) {
	jobs := &fakeJobStore{}
	extracts := &fakeExtractRepo{
		claims:       []*entity.Extract{{ID: uuid.New()}},
		observations: []*entity.Extract{{ID: uuid.New()}},
	}
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  extracts,
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New()}},
		Logger:    testLogger{},
	}
	err := c.MaybeQueueLinkLibrary(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, jobs.enqueuedCount)
	assert.Equal(t, valueobject.JobKindLinkLibrary, jobs.enqueuedKind)
}

func TestMaybeQueueLinkLibraryEnqueuesWhenUnlinkedClaimsExistAfterCutoff(t *testing.T) {
	now := time.Now()
	jobs := &fakeJobStore{cutoff: &now}
	extracts := &fakeExtractRepo{unlinked: []*entity.Extract{{ID: uuid.New()}}}
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  extracts,
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New()}},
		Logger:    testLogger{},
	}
	err := c.MaybeQueueLinkLibrary(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, jobs.enqueuedCount)
}

func TestStatusReportsProcessingAndLinking(t *testing.T) {
	jobs := &fakeJobStore{active: true}
	libraryID := uuid.New()
	c := &Coordinator{
		Jobs:      jobs,
		Extracts:  &fakeExtractRepo{},
		Libraries: &fakeLibraryRepo{paperIDs: []uuid.UUID{uuid.New(), uuid.New()}},
		Logger:    testLogger{},
	}
	status, err := c.Status(context.Background(), libraryID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.PapersProcessing)
	assert.True(t, status.LibraryLinking)
}
