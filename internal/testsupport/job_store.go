// Package testsupport holds in-memory fakes that implement the domain
// repository interfaces with real claim/ownership/uniqueness semantics,
// for tests that need more than a hard-coded stub return value.
package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// JobStore is an in-memory repository.JobStore. Claim, Complete, Fail
// and PutProgress enforce the same ownership/atomicity rules as the
// Postgres implementation's single UPDATE statement: one mutex
// serializes every operation, so a Claim that picks a row and a
// concurrent Claim racing for the same row never both win.
type JobStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*entity.Job
	Clock func() time.Time
}

// NewJobStore constructs an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*entity.Job)}
}

var _ repository.JobStore = (*JobStore)(nil)

func (s *JobStore) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *JobStore) Enqueue(ctx context.Context, kind valueobject.JobKind, payload map[string]any, maxAttempts int) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.jobs[id] = &entity.Job{
		ID:          id,
		Kind:        kind,
		Payload:     payload,
		Status:      valueobject.JobStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   s.now(),
	}
	return id, nil
}

// Claim mirrors the Postgres UPDATE ... WHERE id = (SELECT ... ORDER BY
// pending-first, created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED): it
// picks the oldest claimable job among kinds and marks it running,
// incrementing Attempts unconditionally on every successful claim.
func (s *JobStore) Claim(ctx context.Context, workerID string, kinds []valueobject.JobKind, staleAfter time.Duration) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wantKind := make(map[valueobject.JobKind]struct{}, len(kinds))
	for _, k := range kinds {
		wantKind[k] = struct{}{}
	}

	now := s.now()
	var candidates []*entity.Job
	for _, j := range s.jobs {
		if _, ok := wantKind[j.Kind]; !ok {
			continue
		}
		if j.IsClaimableAt(now) {
			candidates = append(candidates, j)
			continue
		}
		if j.Status == valueobject.JobStatusRunning && j.ClaimedAt != nil && j.ClaimedAt.Before(now.Add(-staleAfter)) {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, k int) bool {
		pi := candidates[i].Status == valueobject.JobStatusPending
		pk := candidates[k].Status == valueobject.JobStatusPending
		if pi != pk {
			return pi
		}
		return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
	})

	j := candidates[0]
	j.Status = valueobject.JobStatusRunning
	worker := workerID
	j.ClaimedBy = &worker
	claimedAt := now
	j.ClaimedAt = &claimedAt
	j.Attempts++

	cp := *j
	return &cp, nil
}

func (s *JobStore) Complete(ctx context.Context, jobID uuid.UUID, workerID string, result map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.owned(jobID, workerID)
	if err != nil {
		return err
	}
	j.Status = valueobject.JobStatusCompleted
	j.Result = result
	finishedAt := s.now()
	j.FinishedAt = &finishedAt
	return nil
}

func (s *JobStore) Fail(ctx context.Context, jobID uuid.UUID, workerID string, errMsg string, retryAfter *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.owned(jobID, workerID)
	if err != nil {
		return err
	}
	j.Error = errMsg
	if retryAfter != nil {
		j.Status = valueobject.JobStatusPending
		j.RetryAfter = retryAfter
		j.ClaimedBy = nil
		j.ClaimedAt = nil
		return nil
	}
	j.Status = valueobject.JobStatusFailed
	finishedAt := s.now()
	j.FinishedAt = &finishedAt
	return nil
}

func (s *JobStore) owned(jobID uuid.UUID, workerID string) (*entity.Job, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job_store: job %s not found", jobID)
	}
	if !j.OwnedBy(workerID) {
		return nil, fmt.Errorf("job_store: job %s not owned by %s or not running", jobID, workerID)
	}
	return j, nil
}

func (s *JobStore) Get(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job_store: job %s not found", jobID)
	}
	cp := *j
	return &cp, nil
}

func (s *JobStore) PutProgress(ctx context.Context, jobID uuid.UUID, workerID string, progress map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.owned(jobID, workerID)
	if err != nil {
		return err
	}
	if j.Progress == nil {
		j.Progress = make(map[string]any, len(progress))
	}
	for k, v := range progress {
		j.Progress[k] = v
	}
	return nil
}

func (s *JobStore) HasActiveOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, excludeJobID *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Kind != kind {
			continue
		}
		if j.Status != valueobject.JobStatusPending && j.Status != valueobject.JobStatusRunning {
			continue
		}
		if excludeJobID != nil && j.ID == *excludeJobID {
			continue
		}
		if j.PayloadString(subjectKey) == subjectID.String() {
			return true, nil
		}
	}
	return false, nil
}

func (s *JobStore) RecentPendingOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-window)
	for _, j := range s.jobs {
		if j.Kind != kind || j.Status != valueobject.JobStatusPending {
			continue
		}
		if j.PayloadString(subjectKey) != subjectID.String() {
			continue
		}
		if j.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (s *JobStore) LastClaimedAtOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *time.Time
	for _, j := range s.jobs {
		if j.Kind != kind || j.ClaimedAt == nil {
			continue
		}
		if j.PayloadString(subjectKey) != subjectID.String() {
			continue
		}
		if latest == nil || j.ClaimedAt.After(*latest) {
			t := *j.ClaimedAt
			latest = &t
		}
	}
	return latest, nil
}
