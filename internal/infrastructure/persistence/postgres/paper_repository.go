package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
)

// PaperRepository implements repository.PaperRepository against PostgreSQL.
type PaperRepository struct {
	db *sql.DB
}

// NewPaperRepository constructs a PaperRepository.
func NewPaperRepository(db *sql.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

var _ repository.PaperRepository = (*PaperRepository)(nil)

func (r *PaperRepository) Create(ctx context.Context, p *entity.Paper) error {
	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("paper_repository: marshal metadata: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO papers (id, title, filename, storage_path, sha256, metadata, created_at)
		VALUES (COALESCE(NULLIF($1, '00000000-0000-0000-0000-000000000000'::uuid), gen_random_uuid()), $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`, p.ID, p.Title, p.Filename, p.StoragePath, p.SHA256, metadataJSON).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("paper_repository: create: %w", err)
	}
	return nil
}

func (r *PaperRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Paper, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, title, filename, storage_path, parsed_path, sha256, metadata, created_at
		FROM papers WHERE id = $1
	`, id))
}

func (r *PaperRepository) GetBySHA256(ctx context.Context, sha256 string) (*entity.Paper, error) {
	p, err := r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, title, filename, storage_path, parsed_path, sha256, metadata, created_at
		FROM papers WHERE sha256 = $1
	`, sha256))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *PaperRepository) SetParsedPath(ctx context.Context, id uuid.UUID, parsedPath string, metadata map[string]any) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("paper_repository: marshal metadata: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE papers SET parsed_path = $2, metadata = COALESCE(metadata, '{}'::jsonb) || $3::jsonb
		WHERE id = $1
	`, id, parsedPath, metadataJSON)
	if err != nil {
		return fmt.Errorf("paper_repository: set parsed path: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("paper_repository: set parsed path: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("paper_repository: paper %s not found", id)
	}
	return nil
}

func (r *PaperRepository) ListByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*entity.Paper, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.filename, p.storage_path, p.parsed_path, p.sha256, p.metadata, p.created_at
		FROM papers p
		JOIN library_papers lp ON lp.paper_id = p.id
		WHERE lp.library_id = $1
		ORDER BY p.created_at ASC
	`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("paper_repository: list by library: %w", err)
	}
	defer rows.Close()

	var papers []*entity.Paper
	for rows.Next() {
		p, err := scanPaperRow(rows)
		if err != nil {
			return nil, fmt.Errorf("paper_repository: list by library: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

type rowsScanner interface {
	Scan(dest ...any) error
}

func (r *PaperRepository) scanOne(row *sql.Row) (*entity.Paper, error) {
	return scanPaperRow(row)
}

func scanPaperRow(row rowsScanner) (*entity.Paper, error) {
	p := &entity.Paper{}
	var metadataJSON []byte
	err := row.Scan(&p.ID, &p.Title, &p.Filename, &p.StoragePath, &p.ParsedPath, &p.SHA256, &metadataJSON, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return p, nil
}

// LibraryRepository implements repository.LibraryRepository against PostgreSQL.
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository constructs a LibraryRepository.
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

var _ repository.LibraryRepository = (*LibraryRepository)(nil)

func (r *LibraryRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Library, error) {
	l := &entity.Library{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, owner_id FROM libraries WHERE id = $1
	`, id).Scan(&l.ID, &l.Title, &l.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("library_repository: get: %w", err)
	}
	return l, nil
}

func (r *LibraryRepository) AddPaper(ctx context.Context, libraryID, paperID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO library_papers (library_id, paper_id, added_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (library_id, paper_id) DO NOTHING
	`, libraryID, paperID)
	if err != nil {
		return fmt.Errorf("library_repository: add paper: %w", err)
	}
	return nil
}

func (r *LibraryRepository) ListPaperIDs(ctx context.Context, libraryID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT paper_id FROM library_papers WHERE library_id = $1
	`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("library_repository: list paper ids: %w", err)
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

func (r *LibraryRepository) ListLibraryIDsForPaper(ctx context.Context, paperID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT library_id FROM library_papers WHERE paper_id = $1
	`, paperID)
	if err != nil {
		return nil, fmt.Errorf("library_repository: list library ids for paper: %w", err)
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

func scanUUIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
