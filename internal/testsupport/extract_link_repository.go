package testsupport

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
)

// ExtractLinkRepository is an in-memory repository.ExtractLinkRepository.
// CreateBatch normalizes symmetric link types and silently drops a row
// whose (FromID, ToID) pair already exists, mirroring the Postgres
// implementation's ON CONFLICT (from_id, to_id) DO NOTHING.
type ExtractLinkRepository struct {
	mu    sync.Mutex
	links map[[2]uuid.UUID]*entity.ExtractLink
}

// NewExtractLinkRepository constructs an empty ExtractLinkRepository.
func NewExtractLinkRepository() *ExtractLinkRepository {
	return &ExtractLinkRepository{links: make(map[[2]uuid.UUID]*entity.ExtractLink)}
}

var _ repository.ExtractLinkRepository = (*ExtractLinkRepository)(nil)

func (r *ExtractLinkRepository) CreateBatch(ctx context.Context, links []*entity.ExtractLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range links {
		l.Normalize()
		key := [2]uuid.UUID{l.FromID, l.ToID}
		if _, exists := r.links[key]; exists {
			continue
		}
		cp := *l
		r.links[key] = &cp
	}
	return nil
}

func (r *ExtractLinkRepository) ExistsForPair(ctx context.Context, fromID, toID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.links[[2]uuid.UUID{fromID, toID}]
	return ok, nil
}

// All returns every persisted link, for test assertions.
func (r *ExtractLinkRepository) All() []*entity.ExtractLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.ExtractLink, 0, len(r.links))
	for _, l := range r.links {
		out = append(out, l)
	}
	return out
}
