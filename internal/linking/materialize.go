package linking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// materials is everything Phase A gathers before Phases B/C run.
type materials struct {
	// Input is the set U of unlinked claims (with embeddings attached).
	Input []claimWithEmbedding

	// LibraryClaims is every claim in the library (latest-per-paper),
	// used as both the comparison pool for Phase B and the valid write
	// surface C_all.
	LibraryClaims        []claimWithEmbedding
	ValidClaimIDs        map[string]struct{}
	ValidObsIDs          map[string]struct{}
	Methods              []*entity.Extract
	Observations         []*entity.Extract
	ObservationsByMethod map[string][]*entity.Extract
	ObservationsByPaper  map[string][]*entity.Extract
}

// materialize implements Phase A (spec §4.5).
func materialize(ctx context.Context, libraryID uuid.UUID, paperIDs []uuid.UUID, cutoff *time.Time, extracts repository.ExtractRepository, vectors repository.ExtractVectorRepository) (*materials, error) {
	allClaims, err := extracts.LatestByPaperAndType(ctx, paperIDs, valueobject.ExtractTypeClaim)
	if err != nil {
		return nil, fmt.Errorf("materialize: load claims: %w", err)
	}
	unlinked, err := extracts.UnlinkedClaims(ctx, libraryID, paperIDs, cutoff)
	if err != nil {
		return nil, fmt.Errorf("materialize: load unlinked claims: %w", err)
	}
	allMethods, err := extracts.LatestByPaperAndType(ctx, paperIDs, valueobject.ExtractTypeMethod)
	if err != nil {
		return nil, fmt.Errorf("materialize: load methods: %w", err)
	}
	allObservations, err := extracts.LatestByPaperAndType(ctx, paperIDs, valueobject.ExtractTypeObservation)
	if err != nil {
		return nil, fmt.Errorf("materialize: load observations: %w", err)
	}

	claimIDs := make([]uuid.UUID, 0, len(allClaims))
	for _, c := range allClaims {
		claimIDs = append(claimIDs, c.ID)
	}
	embeddings, err := vectors.GetByExtractIDs(ctx, claimIDs)
	if err != nil {
		return nil, fmt.Errorf("materialize: load embeddings: %w", err)
	}

	toEmbedded := func(c *entity.Extract) (claimWithEmbedding, bool) {
		emb, ok := embeddings[c.ID]
		if !ok {
			return claimWithEmbedding{}, false // drop claims without an embedding (warn at call site)
		}
		return claimWithEmbedding{
			ID:        c.ID.String(),
			PaperID:   c.PaperID.String(),
			Text:      c.RephrasedClaim(),
			Embedding: emb,
		}, true
	}

	libraryClaims := make([]claimWithEmbedding, 0, len(allClaims))
	validClaimIDs := make(map[string]struct{}, len(allClaims))
	for _, c := range allClaims {
		validClaimIDs[c.ID.String()] = struct{}{}
		if cwe, ok := toEmbedded(c); ok {
			libraryClaims = append(libraryClaims, cwe)
		}
	}

	input := make([]claimWithEmbedding, 0, len(unlinked))
	for _, c := range unlinked {
		if cwe, ok := toEmbedded(c); ok {
			input = append(input, cwe)
		}
	}

	validObsIDs := make(map[string]struct{}, len(allObservations))
	obsByMethod := make(map[string][]*entity.Extract)
	obsByPaper := make(map[string][]*entity.Extract)
	for _, o := range allObservations {
		validObsIDs[o.ID.String()] = struct{}{}
		if ref := o.MethodReference(); ref != "" {
			obsByMethod[ref] = append(obsByMethod[ref], o)
		}
		obsByPaper[o.PaperID.String()] = append(obsByPaper[o.PaperID.String()], o)
	}

	return &materials{
		Input:                input,
		LibraryClaims:        libraryClaims,
		ValidClaimIDs:        validClaimIDs,
		ValidObsIDs:          validObsIDs,
		Methods:              allMethods,
		Observations:         allObservations,
		ObservationsByMethod: obsByMethod,
		ObservationsByPaper:  obsByPaper,
	}, nil
}
