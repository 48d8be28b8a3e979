package testsupport

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
)

// ExtractVectorRepository is an in-memory repository.ExtractVectorRepository.
type ExtractVectorRepository struct {
	mu      sync.Mutex
	vectors map[uuid.UUID][]float32
}

// NewExtractVectorRepository constructs an empty ExtractVectorRepository.
func NewExtractVectorRepository() *ExtractVectorRepository {
	return &ExtractVectorRepository{vectors: make(map[uuid.UUID][]float32)}
}

var _ repository.ExtractVectorRepository = (*ExtractVectorRepository)(nil)

func (r *ExtractVectorRepository) CreateBatch(ctx context.Context, vectors []*entity.ExtractVector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range vectors {
		r.vectors[v.ExtractID] = v.Embedding
	}
	return nil
}

func (r *ExtractVectorRepository) GetByExtractIDs(ctx context.Context, extractIDs []uuid.UUID) (map[uuid.UUID][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID][]float32, len(extractIDs))
	for _, id := range extractIDs {
		if v, ok := r.vectors[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}
