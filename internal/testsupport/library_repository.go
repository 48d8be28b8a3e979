package testsupport

import (
	"context"

	"github.com/google/uuid"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
)

// LibraryRepository is an in-memory repository.LibraryRepository backed
// by a fixed paper list; tests set PaperIDs directly rather than going
// through AddPaper.
type LibraryRepository struct {
	PaperIDs []uuid.UUID
}

var _ repository.LibraryRepository = (*LibraryRepository)(nil)

func (r *LibraryRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Library, error) {
	return &entity.Library{ID: id}, nil
}

func (r *LibraryRepository) AddPaper(ctx context.Context, libraryID, paperID uuid.UUID) error {
	r.PaperIDs = append(r.PaperIDs, paperID)
	return nil
}

func (r *LibraryRepository) ListPaperIDs(ctx context.Context, libraryID uuid.UUID) ([]uuid.UUID, error) {
	return r.PaperIDs, nil
}

func (r *LibraryRepository) ListLibraryIDsForPaper(ctx context.Context, paperID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
