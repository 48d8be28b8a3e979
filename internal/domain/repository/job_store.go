package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// DefaultMaxAttempts is the max_attempts every job kind in this module
// enqueues with; spec §6 calls max_attempts a per-component parameter
// with a default, and no handler currently needs a different value.
const DefaultMaxAttempts = 5

// JobStore is the durable job queue. Claim must be implemented as a
// single atomic statement (UPDATE ... WHERE id = (SELECT ... FOR UPDATE
// SKIP LOCKED) RETURNING ...) so that concurrent workers never claim the
// same row twice and a crashed worker's claim is eventually reclaimed.
type JobStore interface {
	// Enqueue inserts a new pending job with the given max_attempts and
	// returns its ID.
	Enqueue(ctx context.Context, kind valueobject.JobKind, payload map[string]any, maxAttempts int) (uuid.UUID, error)

	// Claim atomically selects and marks running a job that is either
	// pending-and-due, or running-but-stale (ClaimedAt older than
	// staleAfter), for any of kinds: pending-and-due jobs come before
	// stale ones, and the oldest wins within each group. Returns nil, nil
	// when none is available.
	Claim(ctx context.Context, workerID string, kinds []valueobject.JobKind, staleAfter time.Duration) (*entity.Job, error)

	// Complete marks a job owned by workerID as completed, storing result.
	Complete(ctx context.Context, jobID uuid.UUID, workerID string, result map[string]any) error

	// Fail marks a job owned by workerID as failed (terminal) when
	// retryAfter is nil, or requeues it pending with RetryAfter set to
	// retryAfter; the caller decides from the job's attempts which applies.
	Fail(ctx context.Context, jobID uuid.UUID, workerID string, errMsg string, retryAfter *time.Time) error

	// Get returns a job by ID.
	Get(ctx context.Context, jobID uuid.UUID) (*entity.Job, error)

	// PutProgress merges fields into a running job's Progress bag, used by
	// long-running handlers (linking phases) to checkpoint partial work.
	PutProgress(ctx context.Context, jobID uuid.UUID, workerID string, progress map[string]any) error

	// HasActiveOfKindForSubject reports whether a pending or running job of
	// kind exists whose payload[subjectKey] == subjectID, optionally
	// excluding one job ID (the caller's own, per spec §4.4 test 1).
	HasActiveOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, excludeJobID *uuid.UUID) (bool, error)

	// RecentPendingOfKindForSubject reports whether a pending job of kind
	// for the given subject was created within window.
	RecentPendingOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, window time.Duration) (bool, error)

	// LastClaimedAtOfKindForSubject returns the ClaimedAt of the most
	// recently claimed job of kind for the given subject, or nil if none
	// has ever been claimed. Used to compute the coordination cutoff.
	LastClaimedAtOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID) (*time.Time, error)
}
