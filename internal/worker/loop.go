package worker

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/service"
)

// Loop is the single-job-at-a-time claim/dispatch/complete cycle run by
// one worker OS process (spec §4.2). It holds no shared state with
// sibling processes beyond the JobStore.
type Loop struct {
	Store        repository.JobStore
	Registry     *Registry
	Logger       service.Logger
	WorkerID     string
	PollInterval time.Duration
	StaleAfter   time.Duration
}

// Run blocks claiming and processing jobs until ctx is canceled. It
// returns nil on a clean, context-driven shutdown.
func (l *Loop) Run(ctx context.Context) error {
	kinds := l.Registry.Kinds()
	log := l.Logger.With("worker_id", l.WorkerID)
	log.Info("worker loop starting", "kinds", kinds)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker loop stopping")
			return nil
		default:
		}

		job, err := l.Store.Claim(ctx, l.WorkerID, kinds, l.StaleAfter)
		if err != nil {
			log.Error("claim failed", "error", err)
			if !sleepCtx(ctx, l.PollInterval) {
				return nil
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, l.PollInterval) {
				return nil
			}
			continue
		}

		l.process(ctx, job)
	}
}

// process dispatches one claimed job and reports its outcome back to the
// store, applying the backoff policy on retryable failure.
func (l *Loop) process(ctx context.Context, job *entity.Job) {
	log := l.Logger.With("worker_id", l.WorkerID, "job_id", job.ID, "kind", job.Kind)
	log.Info("job claimed")

	result, err := l.Registry.Dispatch(ctx, job)
	if err == nil {
		if cerr := l.Store.Complete(ctx, job.ID, l.WorkerID, result); cerr != nil {
			log.Error("complete failed", "error", cerr)
		} else {
			log.Info("job completed")
		}
		return
	}

	log.Error("job handler failed", "error", err)
	var retryAfter *time.Time
	if job.Attempts < job.MaxAttempts {
		t := time.Now().Add(backoff(job.Attempts))
		retryAfter = &t
	}
	if ferr := l.Store.Fail(ctx, job.ID, l.WorkerID, err.Error(), retryAfter); ferr != nil {
		log.Error("fail failed", "error", ferr)
	}
}

// backoff is exponential with full jitter, base 2 seconds, capped at 10
// minutes: attempt 1 -> up to 4s, attempt 2 -> up to 8s, ... capped.
func backoff(attempts int) time.Duration {
	const base = 2 * time.Second
	const maxDelay = 10 * time.Minute
	d := time.Duration(math.Pow(2, float64(attempts))) * base
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
