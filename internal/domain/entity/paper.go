package entity

import (
	"time"

	"github.com/google/uuid"
)

// Paper is a content-addressed PDF upload. Identical bytes (same SHA-256)
// collapse to one row; ParsedPath/Metadata are filled in once PARSE_PAPER
// completes.
type Paper struct {
	ID          uuid.UUID
	Title       string
	Filename    string
	StoragePath string
	ParsedPath  *string
	SHA256      string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// IsParsed reports whether PARSE_PAPER has already produced output for
// this paper.
func (p *Paper) IsParsed() bool {
	return p.ParsedPath != nil && *p.ParsedPath != ""
}

// LibraryPaper is the many-to-many row joining a Library and a Paper.
type LibraryPaper struct {
	LibraryID uuid.UUID
	PaperID   uuid.UUID
	AddedAt   time.Time
}

// Library is a user-owned (or public, when OwnerID is nil) collection of
// papers — the unit over which linking runs.
type Library struct {
	ID      uuid.UUID
	Title   string
	OwnerID *uuid.UUID
}

// IsPublic reports whether the library has no owner.
func (l *Library) IsPublic() bool {
	return l.OwnerID == nil
}
