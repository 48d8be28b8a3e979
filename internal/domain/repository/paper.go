package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sogos/paperlink/internal/domain/entity"
)

// PaperRepository persists Paper rows, content-addressed by SHA256.
type PaperRepository interface {
	Create(ctx context.Context, p *entity.Paper) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Paper, error)
	GetBySHA256(ctx context.Context, sha256 string) (*entity.Paper, error)
	SetParsedPath(ctx context.Context, id uuid.UUID, parsedPath string, metadata map[string]any) error
	ListByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*entity.Paper, error)
}

// LibraryRepository persists Library rows and their paper membership.
type LibraryRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Library, error)
	AddPaper(ctx context.Context, libraryID, paperID uuid.UUID) error
	ListPaperIDs(ctx context.Context, libraryID uuid.UUID) ([]uuid.UUID, error)

	// ListLibraryIDsForPaper returns every library paperID belongs to, the
	// fan-out EXTRACT_ELEMENTS needs to invoke Coordination once per
	// library after a paper's extracts land (spec §4.4).
	ListLibraryIDsForPaper(ctx context.Context, paperID uuid.UUID) ([]uuid.UUID, error)
}
