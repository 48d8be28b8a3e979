package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/service"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any)              {}
func (testLogger) Info(msg string, args ...any)               {}
func (testLogger) Warn(msg string, args ...any)                {}
func (testLogger) Error(msg string, args ...any)               {}
func (l testLogger) With(args ...any) service.Logger           { return l }
func (l testLogger) WithContext(ctx context.Context) service.Logger { return l }

type fakeStore struct {
	completedJobID uuid.UUID
	completedResult map[string]any
	failedJobID    uuid.UUID
	failedErr      string
	failedRetry    *time.Time
}

func (f *fakeStore) Enqueue(ctx context.Context, kind valueobject.JobKind, payload map[string]any, maxAttempts int) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (f *fakeStore) Claim(ctx context.Context, workerID string, kinds []valueobject.JobKind, staleAfter time.Duration) (*entity.Job, error) {
	return nil, nil
}
func (f *fakeStore) Complete(ctx context.Context, jobID uuid.UUID, workerID string, result map[string]any) error {
	f.completedJobID = jobID
	f.completedResult = result
	return nil
}
func (f *fakeStore) Fail(ctx context.Context, jobID uuid.UUID, workerID string, errMsg string, retryAfter *time.Time) error {
	f.failedJobID = jobID
	f.failedErr = errMsg
	f.failedRetry = retryAfter
	return nil
}
func (f *fakeStore) Get(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) { return nil, nil }
func (f *fakeStore) PutProgress(ctx context.Context, jobID uuid.UUID, workerID string, progress map[string]any) error {
	return nil
}
func (f *fakeStore) HasActiveOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, excludeJobID *uuid.UUID) (bool, error) {
	return false, nil
}
func (f *fakeStore) RecentPendingOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, window time.Duration) (bool, error) {
	return false, nil
}
func (f *fakeStore) LastClaimedAtOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func TestLoopProcessCompletesOnSuccess(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry()
	registry.Register(valueobject.JobKindParsePaper, func(ctx context.Context, job *entity.Job) (map[string]any, error) {
		return map[string]any{"pages": 3}, nil
	})
	l := &Loop{Store: store, Registry: registry, Logger: testLogger{}, WorkerID: "w1"}

	jobID := uuid.New()
	l.process(context.Background(), &entity.Job{ID: jobID, Kind: valueobject.JobKindParsePaper, Attempts: 1, MaxAttempts: 5})

	assert.Equal(t, jobID, store.completedJobID)
	assert.Equal(t, map[string]any{"pages": 3}, store.completedResult)
}

func TestLoopProcessFailsWithRetryWhenAttemptsRemain(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry()
	registry.Register(valueobject.JobKindParsePaper, func(ctx context.Context, job *entity.Job) (map[string]any, error) {
		return nil, errors.New("boom")
	})
	l := &Loop{Store: store, Registry: registry, Logger: testLogger{}, WorkerID: "w1"}

	jobID := uuid.New()
	l.process(context.Background(), &entity.Job{ID: jobID, Kind: valueobject.JobKindParsePaper, Attempts: 1, MaxAttempts: 5})

	assert.Equal(t, jobID, store.failedJobID)
	assert.Equal(t, "boom", store.failedErr)
	require.NotNil(t, store.failedRetry)
	assert.True(t, store.failedRetry.After(time.Now()))
}

func TestLoopProcessFailsTerminallyWhenAttemptsExhausted(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry()
	registry.Register(valueobject.JobKindParsePaper, func(ctx context.Context, job *entity.Job) (map[string]any, error) {
		return nil, errors.New("boom")
	})
	l := &Loop{Store: store, Registry: registry, Logger: testLogger{}, WorkerID: "w1"}

	jobID := uuid.New()
	l.process(context.Background(), &entity.Job{ID: jobID, Kind: valueobject.JobKindParsePaper, Attempts: 5, MaxAttempts: 5})

	assert.Equal(t, jobID, store.failedJobID)
	assert.Nil(t, store.failedRetry)
}

func TestBackoffIsBoundedAndMonotonicByUpperBound(t *testing.T) {
	prevMax := time.Duration(0)
	for attempts := 1; attempts <= 10; attempts++ {
		d := backoff(attempts)
		assert.True(t, d >= 0)
		assert.True(t, d <= 10*time.Minute)
		upper := time.Duration(1<<uint(attempts)) * 2 * time.Second
		if upper > 10*time.Minute {
			upper = 10 * time.Minute
		}
		assert.True(t, d <= upper)
		_ = prevMax
	}
}
