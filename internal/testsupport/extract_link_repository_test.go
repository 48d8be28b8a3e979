package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// TestLinkUniqueness is invariant 4: for any (from_id, to_id) the store
// contains at most one row, even across repeated CreateBatch calls for
// the same pair (a resumed or re-triggered linking run).
func TestLinkUniqueness(t *testing.T) {
	repo := NewExtractLinkRepository()
	a, b := uuid.New(), uuid.New()
	ctx := context.Background()

	link := &entity.ExtractLink{
		ID: uuid.New(), FromID: a, ToID: b,
		Category: valueobject.LinkCategoryClaimToClaim,
		Type:     valueobject.LinkTypeDuplicate,
	}
	require.NoError(t, repo.CreateBatch(ctx, []*entity.ExtractLink{link}))

	// A second run over the same pair, even with a fresh link ID and
	// the endpoints swapped, must not produce a second row: duplicate
	// link types are symmetric and Normalize sorts the endpoints.
	again := &entity.ExtractLink{
		ID: uuid.New(), FromID: b, ToID: a,
		Category: valueobject.LinkCategoryClaimToClaim,
		Type:     valueobject.LinkTypeDuplicate,
	}
	require.NoError(t, repo.CreateBatch(ctx, []*entity.ExtractLink{again}))

	assert.Len(t, repo.All(), 1)
}

// TestLinkUniquenessIsPerDirectedPairForAsymmetricTypes confirms a
// directional link type (premise) is not collapsed with its reverse:
// uniqueness is keyed on the exact (from_id, to_id) pair, not the
// unordered endpoint set.
func TestLinkUniquenessIsPerDirectedPairForAsymmetricTypes(t *testing.T) {
	repo := NewExtractLinkRepository()
	a, b := uuid.New(), uuid.New()
	ctx := context.Background()

	forward := &entity.ExtractLink{ID: uuid.New(), FromID: a, ToID: b, Type: valueobject.LinkTypePremise}
	backward := &entity.ExtractLink{ID: uuid.New(), FromID: b, ToID: a, Type: valueobject.LinkTypePremise}
	require.NoError(t, repo.CreateBatch(ctx, []*entity.ExtractLink{forward, backward}))

	assert.Len(t, repo.All(), 2)
}
