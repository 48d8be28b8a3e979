// Package coordination gates LINK_LIBRARY enqueueing: it decides, per
// library, whether enough has settled to re-link and which cutoff the
// run should use.
package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/service"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// DebounceWindow is how recently a pending LINK_LIBRARY must have been
// created to suppress a new trigger for the same library.
const DebounceWindow = 3 * time.Minute

// StatusPublisher broadcasts a library's processing-status change.
// Implemented by pubsub.RedisPubSub and pubsub.NoOpPublisher; nil
// disables publication.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, libraryID uuid.UUID, status ProcessingStatus) error
}

// Coordinator evaluates the "enqueue LINK_LIBRARY now?" predicate and
// enqueues the job when it holds.
type Coordinator struct {
	Jobs      repository.JobStore
	Extracts  repository.ExtractRepository
	Libraries repository.LibraryRepository
	Logger    service.Logger

	// Publisher broadcasts Status after every evaluation that may have
	// changed it. Optional; nil disables publication.
	Publisher StatusPublisher
}

// MaybeQueueLinkLibrary runs the three-test predicate for libraryID and
// enqueues LINK_LIBRARY when all three hold. callerJobID, when non-nil,
// is excluded from the "nothing processing" check (the caller's own
// EXTRACT_ELEMENTS job is naturally still running while it calls this).
func (c *Coordinator) MaybeQueueLinkLibrary(ctx context.Context, libraryID uuid.UUID, callerJobID *uuid.UUID) error {
	log := c.Logger.With("library_id", libraryID)
	defer c.publishStatus(ctx, libraryID)

	paperIDs, err := c.Libraries.ListPaperIDs(ctx, libraryID)
	if err != nil {
		return fmt.Errorf("coordination: list library papers: %w", err)
	}

	processing, err := c.anythingProcessing(ctx, paperIDs, callerJobID)
	if err != nil {
		return fmt.Errorf("coordination: nothing-processing check: %w", err)
	}
	if processing {
		log.Debug("skip link trigger: extraction still in flight")
		return nil
	}

	debounced, err := c.Jobs.RecentPendingOfKindForSubject(ctx, valueobject.JobKindLinkLibrary, "library_id", libraryID, DebounceWindow)
	if err != nil {
		return fmt.Errorf("coordination: debounce check: %w", err)
	}
	if debounced {
		log.Debug("skip link trigger: recent pending LINK_LIBRARY exists")
		return nil
	}

	cutoff, err := c.Jobs.LastClaimedAtOfKindForSubject(ctx, valueobject.JobKindLinkLibrary, "library_id", libraryID)
	if err != nil {
		return fmt.Errorf("coordination: cutoff lookup: %w", err)
	}

	unlinked, err := c.hasUnlinked(ctx, libraryID, paperIDs, cutoff)
	if err != nil {
		return fmt.Errorf("coordination: unlinked check: %w", err)
	}
	if !unlinked {
		log.Debug("skip link trigger: nothing unlinked")
		return nil
	}

	payload := map[string]any{"library_id": libraryID.String()}
	if cutoff != nil {
		payload["cutoff"] = cutoff.Format(time.RFC3339Nano)
	}
	jobID, err := c.Jobs.Enqueue(ctx, valueobject.JobKindLinkLibrary, payload, repository.DefaultMaxAttempts)
	if err != nil {
		return fmt.Errorf("coordination: enqueue link_library: %w", err)
	}
	log.Info("enqueued LINK_LIBRARY", "job_id", jobID, "cutoff", cutoff)
	return nil
}

// publishStatus recomputes and broadcasts libraryID's processing status.
// Failures are logged, not returned: publication is best-effort and must
// never fail the caller's job.
func (c *Coordinator) publishStatus(ctx context.Context, libraryID uuid.UUID) {
	if c.Publisher == nil {
		return
	}
	status, err := c.Status(ctx, libraryID)
	if err != nil {
		c.Logger.Error("coordination: status lookup for publish failed", "error", err, "library_id", libraryID)
		return
	}
	if err := c.Publisher.PublishStatus(ctx, libraryID, status); err != nil {
		c.Logger.Error("coordination: publish status failed", "error", err, "library_id", libraryID)
	}
}

// anythingProcessing implements coordination test 1: no pending/running
// PARSE_PAPER or EXTRACT_ELEMENTS whose payload paper_id belongs to the
// library, excluding the caller's own job.
func (c *Coordinator) anythingProcessing(ctx context.Context, paperIDs []uuid.UUID, excludeJobID *uuid.UUID) (bool, error) {
	for _, kind := range []valueobject.JobKind{valueobject.JobKindParsePaper, valueobject.JobKindExtractElements} {
		for _, paperID := range paperIDs {
			active, err := c.Jobs.HasActiveOfKindForSubject(ctx, kind, "paper_id", paperID, excludeJobID)
			if err != nil {
				return false, err
			}
			if active {
				return true, nil
			}
		}
	}
	return false, nil
}

// hasUnlinked implements the §4.4 unlinked-detection rule.
func (c *Coordinator) hasUnlinked(ctx context.Context, libraryID uuid.UUID, paperIDs []uuid.UUID, cutoff *time.Time) (bool, error) {
	if cutoff == nil {
		claims, err := c.Extracts.LatestByPaperAndType(ctx, paperIDs, valueobject.ExtractTypeClaim)
		if err != nil {
			return false, err
		}
		if len(claims) == 0 {
			return false, nil
		}
		observations, err := c.Extracts.LatestByPaperAndType(ctx, paperIDs, valueobject.ExtractTypeObservation)
		if err != nil {
			return false, err
		}
		return len(observations) > 0, nil
	}
	unlinked, err := c.Extracts.UnlinkedClaims(ctx, libraryID, paperIDs, cutoff)
	if err != nil {
		return false, err
	}
	return len(unlinked) > 0, nil
}

// ProcessingStatus reports the two UI counters described in spec §4.4.
type ProcessingStatus struct {
	PapersProcessing int
	LibraryLinking   bool
}

// Status computes ProcessingStatus for libraryID.
func (c *Coordinator) Status(ctx context.Context, libraryID uuid.UUID) (ProcessingStatus, error) {
	paperIDs, err := c.Libraries.ListPaperIDs(ctx, libraryID)
	if err != nil {
		return ProcessingStatus{}, fmt.Errorf("coordination: list library papers: %w", err)
	}

	processingSet := make(map[uuid.UUID]struct{})
	for _, kind := range []valueobject.JobKind{valueobject.JobKindParsePaper, valueobject.JobKindExtractElements} {
		for _, paperID := range paperIDs {
			active, err := c.Jobs.HasActiveOfKindForSubject(ctx, kind, "paper_id", paperID, nil)
			if err != nil {
				return ProcessingStatus{}, err
			}
			if active {
				processingSet[paperID] = struct{}{}
			}
		}
	}

	linking, err := c.Jobs.HasActiveOfKindForSubject(ctx, valueobject.JobKindLinkLibrary, "library_id", libraryID, nil)
	if err != nil {
		return ProcessingStatus{}, err
	}

	return ProcessingStatus{
		PapersProcessing: len(processingSet),
		LibraryLinking:   linking,
	}, nil
}
