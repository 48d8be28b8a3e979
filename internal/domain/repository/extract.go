package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// ExtractRepository persists Extract rows and answers the "latest set"
// queries the linking engine materializes from (spec §5, Phase A).
type ExtractRepository interface {
	CreateBatch(ctx context.Context, extracts []*entity.Extract) error

	// ExistsForJob reports whether any extract already carries jobID,
	// the idempotency check EXTRACT_ELEMENTS runs before doing any work
	// on retry (spec §4.3/§6: "if any Extract already carries this job's
	// ID, the handler reports skipped and returns").
	ExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error)

	// LatestByPaperAndType returns, for each paper in paperIDs, the
	// extracts of the given type belonging to the most recent
	// EXTRACT_ELEMENTS job for that (paper, type) pair. Newest JobID wins;
	// ties break on JobID's lexicographic order.
	LatestByPaperAndType(ctx context.Context, paperIDs []uuid.UUID, extractType valueobject.ExtractType) ([]*entity.Extract, error)

	// UnlinkedClaims returns the latest claim extracts among paperIDs
	// whose CreatedAt is after cutoff, OR whose owning paper's
	// library_papers.added_at is after cutoff (a paper freshly added to
	// this library brings its pre-existing claims along as "new to this
	// library"). Used both by Coordination's unlinked-count check and by
	// Phase A to build the input set U (spec §4.4/§4.5).
	UnlinkedClaims(ctx context.Context, libraryID uuid.UUID, paperIDs []uuid.UUID, cutoff *time.Time) ([]*entity.Extract, error)
}

// ExtractVectorRepository persists and fetches extract embeddings.
type ExtractVectorRepository interface {
	CreateBatch(ctx context.Context, vectors []*entity.ExtractVector) error
	GetByExtractIDs(ctx context.Context, extractIDs []uuid.UUID) (map[uuid.UUID][]float32, error)
}

// ExtractLinkRepository persists ExtractLink rows. CreateBatch is expected to
// be idempotent on the (from_id, to_id) unique constraint: re-running
// linking over the same extracts should not duplicate rows.
type ExtractLinkRepository interface {
	CreateBatch(ctx context.Context, links []*entity.ExtractLink) error
	ExistsForPair(ctx context.Context, fromID, toID uuid.UUID) (bool, error)
}
