package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// ExtractRepository is an in-memory repository.ExtractRepository. The
// "latest set" queries replicate the Postgres implementation's grouping
// exactly: per (paper_id, type), the winning JobID is the lexicographic
// maximum of job_id's text form, not the extract with the latest
// CreatedAt.
type ExtractRepository struct {
	mu       sync.Mutex
	extracts []*entity.Extract

	// AddedAt records library_papers.added_at per (library_id, paper_id),
	// consulted by UnlinkedClaims the same way the SQL join does.
	AddedAt map[[2]uuid.UUID]time.Time
}

// NewExtractRepository constructs an empty ExtractRepository.
func NewExtractRepository() *ExtractRepository {
	return &ExtractRepository{AddedAt: make(map[[2]uuid.UUID]time.Time)}
}

var _ repository.ExtractRepository = (*ExtractRepository)(nil)

func (r *ExtractRepository) CreateBatch(ctx context.Context, extracts []*entity.Extract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range extracts {
		cp := *e
		r.extracts = append(r.extracts, &cp)
	}
	return nil
}

func (r *ExtractRepository) ExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.extracts {
		if e.JobID == jobID {
			return true, nil
		}
	}
	return false, nil
}

// latestJobIDByPaper returns, for each paper among paperIDs with at
// least one extract of extractType, the lexicographically greatest
// JobID string among those extracts.
func (r *ExtractRepository) latestJobIDByPaper(paperIDs []uuid.UUID, extractType valueobject.ExtractType) map[uuid.UUID]string {
	want := make(map[uuid.UUID]struct{}, len(paperIDs))
	for _, id := range paperIDs {
		want[id] = struct{}{}
	}
	latest := make(map[uuid.UUID]string)
	for _, e := range r.extracts {
		if e.Type != extractType {
			continue
		}
		if _, ok := want[e.PaperID]; !ok {
			continue
		}
		jobIDStr := e.JobID.String()
		if cur, ok := latest[e.PaperID]; !ok || jobIDStr > cur {
			latest[e.PaperID] = jobIDStr
		}
	}
	return latest
}

func (r *ExtractRepository) LatestByPaperAndType(ctx context.Context, paperIDs []uuid.UUID, extractType valueobject.ExtractType) ([]*entity.Extract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(paperIDs) == 0 {
		return nil, nil
	}
	latest := r.latestJobIDByPaper(paperIDs, extractType)

	var out []*entity.Extract
	for _, e := range r.extracts {
		if e.Type != extractType {
			continue
		}
		if latest[e.PaperID] == e.JobID.String() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *ExtractRepository) UnlinkedClaims(ctx context.Context, libraryID uuid.UUID, paperIDs []uuid.UUID, cutoff *time.Time) ([]*entity.Extract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(paperIDs) == 0 {
		return nil, nil
	}
	latest := r.latestJobIDByPaper(paperIDs, valueobject.ExtractTypeClaim)

	var out []*entity.Extract
	for _, e := range r.extracts {
		if e.Type != valueobject.ExtractTypeClaim {
			continue
		}
		if latest[e.PaperID] != e.JobID.String() {
			continue
		}
		if cutoff == nil {
			out = append(out, e)
			continue
		}
		addedAt := r.AddedAt[[2]uuid.UUID{libraryID, e.PaperID}]
		if e.CreatedAt.After(*cutoff) || addedAt.After(*cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}
