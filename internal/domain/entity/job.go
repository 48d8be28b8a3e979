package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// Job is the durable unit of work described in spec §3/§4.1. Payload,
// Result and Progress are schemaless maps: the store never interprets
// their contents, only persists them.
type Job struct {
	ID          uuid.UUID
	Kind        valueobject.JobKind
	Payload     map[string]any
	Status      valueobject.JobStatus
	Attempts    int
	MaxAttempts int
	RetryAfter  *time.Time
	ClaimedBy   *string
	ClaimedAt   *time.Time
	CreatedAt   time.Time
	FinishedAt  *time.Time
	Result      map[string]any
	Error       string
	Progress    map[string]any
}

// IsClaimableAt reports whether the job could be claimed by Claim at the
// given instant: pending, with retry_after null or in the past.
func (j *Job) IsClaimableAt(now time.Time) bool {
	if j.Status != valueobject.JobStatusPending {
		return false
	}
	if j.RetryAfter != nil && j.RetryAfter.After(now) {
		return false
	}
	return true
}

// OwnedBy reports whether workerID is the current claimant of a running job.
func (j *Job) OwnedBy(workerID string) bool {
	return j.Status == valueobject.JobStatusRunning && j.ClaimedBy != nil && *j.ClaimedBy == workerID
}

// PayloadString returns payload[key] as a string, or "" if absent/wrong type.
func (j *Job) PayloadString(key string) string {
	if j.Payload == nil {
		return ""
	}
	v, ok := j.Payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
