package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// JobStore implements repository.JobStore against PostgreSQL. There is no
// tenant concept in this module, so unlike the job tables this was
// modeled on, queries run directly against *sql.DB/*sql.Tx with no
// row-level-security wrapping.
type JobStore struct {
	db *sql.DB
}

// NewJobStore constructs a JobStore.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

var _ repository.JobStore = (*JobStore)(nil)

func (s *JobStore) Enqueue(ctx context.Context, kind valueobject.JobKind, payload map[string]any, maxAttempts int) (uuid.UUID, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("job_store: marshal payload: %w", err)
	}
	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO jobs (kind, payload, status, attempts, max_attempts, created_at)
		VALUES ($1, $2, 'pending', 0, $3, NOW())
		RETURNING id
	`, kind.String(), payloadJSON, maxAttempts).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("job_store: enqueue: %w", err)
	}
	return id, nil
}

// Claim implements the push+sweep atomic claim: UPDATE with a SELECT ...
// FOR UPDATE SKIP LOCKED subquery, picking either a pending-and-due job
// or a running job whose claim has gone stale.
func (s *JobStore) Claim(ctx context.Context, workerID string, kinds []valueobject.JobKind, staleAfter time.Duration) (*entity.Job, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = k.String()
	}
	staleSeconds := int(staleAfter.Seconds())

	query := `
		UPDATE jobs
		SET status = 'running', claimed_by = $1, claimed_at = NOW(),
		    attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE kind = ANY($2)
			  AND (
			        (status = 'pending' AND (retry_after IS NULL OR retry_after <= NOW()))
			     OR (status = 'running' AND claimed_at < NOW() - make_interval(secs => $3))
			  )
			ORDER BY
				CASE WHEN status = 'pending' THEN 0 ELSE 1 END,
				created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, status, attempts, max_attempts, retry_after,
		          claimed_by, claimed_at, created_at, finished_at, result, error, progress
	`
	row := s.db.QueryRowContext(ctx, query, workerID, pq.Array(kindStrs), staleSeconds)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("job_store: claim: %w", err)
	}
	return job, nil
}

func (s *JobStore) Complete(ctx context.Context, jobID uuid.UUID, workerID string, result map[string]any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("job_store: marshal result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed', result = $3, finished_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = 'running'
	`, jobID, workerID, resultJSON)
	if err != nil {
		return fmt.Errorf("job_store: complete: %w", err)
	}
	return requireOneRow(res, "complete", jobID, workerID)
}

func (s *JobStore) Fail(ctx context.Context, jobID uuid.UUID, workerID string, errMsg string, retryAfter *time.Time) error {
	var res sql.Result
	var err error
	if retryAfter != nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'pending', error = $3, retry_after = $4, claimed_by = NULL, claimed_at = NULL
			WHERE id = $1 AND claimed_by = $2 AND status = 'running'
		`, jobID, workerID, errMsg, *retryAfter)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'failed', error = $3, finished_at = NOW()
			WHERE id = $1 AND claimed_by = $2 AND status = 'running'
		`, jobID, workerID, errMsg)
	}
	if err != nil {
		return fmt.Errorf("job_store: fail: %w", err)
	}
	return requireOneRow(res, "fail", jobID, workerID)
}

func (s *JobStore) Get(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, payload, status, attempts, max_attempts, retry_after,
		       claimed_by, claimed_at, created_at, finished_at, result, error, progress
		FROM jobs WHERE id = $1
	`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job_store: job %s: %w", jobID, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("job_store: get: %w", err)
	}
	return job, nil
}

func (s *JobStore) PutProgress(ctx context.Context, jobID uuid.UUID, workerID string, progress map[string]any) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("job_store: marshal progress: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET progress = COALESCE(progress, '{}'::jsonb) || $3::jsonb
		WHERE id = $1 AND claimed_by = $2 AND status = 'running'
	`, jobID, workerID, progressJSON)
	if err != nil {
		return fmt.Errorf("job_store: put progress: %w", err)
	}
	return requireOneRow(res, "put progress", jobID, workerID)
}

func (s *JobStore) HasActiveOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, excludeJobID *uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM jobs
			WHERE kind = $1
			  AND status IN ('pending', 'running')
			  AND payload->>$2 = $3
			  AND ($4::uuid IS NULL OR id != $4)
		)
	`, kind.String(), subjectKey, subjectID.String(), excludeJobID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("job_store: has active: %w", err)
	}
	return exists, nil
}

func (s *JobStore) RecentPendingOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID, window time.Duration) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM jobs
			WHERE kind = $1
			  AND status = 'pending'
			  AND payload->>$2 = $3
			  AND created_at > NOW() - make_interval(secs => $4)
		)
	`, kind.String(), subjectKey, subjectID.String(), int(window.Seconds())).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("job_store: recent pending: %w", err)
	}
	return exists, nil
}

func (s *JobStore) LastClaimedAtOfKindForSubject(ctx context.Context, kind valueobject.JobKind, subjectKey string, subjectID uuid.UUID) (*time.Time, error) {
	var claimedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(claimed_at) FROM jobs
		WHERE kind = $1 AND payload->>$2 = $3 AND claimed_at IS NOT NULL
	`, kind.String(), subjectKey, subjectID.String()).Scan(&claimedAt)
	if err != nil {
		return nil, fmt.Errorf("job_store: last claimed at: %w", err)
	}
	if !claimedAt.Valid {
		return nil, nil
	}
	return &claimedAt.Time, nil
}

func requireOneRow(res sql.Result, op string, jobID uuid.UUID, workerID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job_store: %s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("job_store: %s: job %s not owned by %s or not running", op, jobID, workerID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*entity.Job, error) {
	job := &entity.Job{}
	var kindStr, statusStr string
	var payloadJSON, resultJSON, progressJSON []byte
	var errMsg sql.NullString

	err := row.Scan(
		&job.ID, &kindStr, &payloadJSON, &statusStr, &job.Attempts, &job.MaxAttempts,
		&job.RetryAfter, &job.ClaimedBy, &job.ClaimedAt, &job.CreatedAt, &job.FinishedAt,
		&resultJSON, &errMsg, &progressJSON,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = valueobject.JobKind(kindStr)
	status, parseErr := valueobject.ParseJobStatus(statusStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse job status %q: %w", statusStr, parseErr)
	}
	job.Status = status
	job.Error = errMsg.String

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &job.Progress); err != nil {
			return nil, fmt.Errorf("unmarshal progress: %w", err)
		}
	}
	return job, nil
}
