package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// Extract is an immutable knowledge element (claim, method, or
// observation) produced by one EXTRACT_ELEMENTS job run. A fresh set is
// produced by every run; the "latest set per (paper, type)" is the
// subset sharing the newest JobID for that pair (spec §3).
type Extract struct {
	ID        uuid.UUID
	PaperID   uuid.UUID
	JobID     uuid.UUID
	Type      valueobject.ExtractType
	Content   map[string]any
	CreatedAt time.Time
}

// RephrasedClaim returns content["rephrased_claim"] for a claim extract,
// matching the content-key convention carried over from the original
// claim extractor's output shape.
func (e *Extract) RephrasedClaim() string {
	return stringField(e.Content, "rephrased_claim")
}

// MethodSummary returns content["method_summary"] for a method extract.
func (e *Extract) MethodSummary() string {
	return stringField(e.Content, "method_summary")
}

// MethodReference returns content["method_reference"] for an observation
// extract: the ID of the method extract that produced it, if any.
func (e *Extract) MethodReference() string {
	return stringField(e.Content, "method_reference")
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// ExtractVector is the embedding for an Extract, when embeddable.
type ExtractVector struct {
	ExtractID uuid.UUID
	Embedding []float32
}

// ExtractLink is a typed, potentially directional relation between two
// extracts. Uniqueness on (FromID, ToID) is enforced by the store;
// symmetric link types must be normalized (sorted endpoint order) before
// writing so the uniqueness constraint dedupes across re-runs.
type ExtractLink struct {
	ID        uuid.UUID
	FromID    uuid.UUID
	ToID      uuid.UUID
	Category  valueobject.LinkCategory
	Type      valueobject.LinkType
	Reasoning string
	JobID     uuid.UUID
	CreatedAt time.Time
}

// Content returns the wire-shaped content bag for this link: the union
// of link_category/link_type with free-text reasoning, matching spec §3's
// ExtractLink.content shape.
func (l *ExtractLink) Content() map[string]any {
	return map[string]any{
		"link_category": l.Category.String(),
		"link_type":     l.Type.String(),
		"reasoning":     l.Reasoning,
	}
}

// Normalize sorts FromID/ToID for symmetric link types so that repeated
// runs converge on the same (from_id, to_id) pair and are absorbed by the
// store's uniqueness constraint. Directional types are left untouched.
func (l *ExtractLink) Normalize() {
	if !l.Type.IsSymmetric() {
		return
	}
	if l.FromID.String() > l.ToID.String() {
		l.FromID, l.ToID = l.ToID, l.FromID
	}
}
