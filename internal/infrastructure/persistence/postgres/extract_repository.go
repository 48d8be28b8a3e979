package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// ExtractRepository implements repository.ExtractRepository against PostgreSQL.
type ExtractRepository struct {
	db *sql.DB
}

// NewExtractRepository constructs an ExtractRepository.
func NewExtractRepository(db *sql.DB) *ExtractRepository {
	return &ExtractRepository{db: db}
}

var _ repository.ExtractRepository = (*ExtractRepository)(nil)

func (r *ExtractRepository) CreateBatch(ctx context.Context, extracts []*entity.Extract) error {
	if len(extracts) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("extract_repository: create batch: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO extracts (id, paper_id, job_id, type, content, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`)
	if err != nil {
		return fmt.Errorf("extract_repository: create batch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range extracts {
		contentJSON, err := json.Marshal(e.Content)
		if err != nil {
			return fmt.Errorf("extract_repository: marshal content for %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.PaperID, e.JobID, e.Type.String(), contentJSON); err != nil {
			return fmt.Errorf("extract_repository: insert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (r *ExtractRepository) ExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM extracts WHERE job_id = $1)
	`, jobID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("extract_repository: exists for job: %w", err)
	}
	return exists, nil
}

// LatestByPaperAndType selects, per paper, the extracts of extractType
// belonging to that paper's most recent EXTRACT_ELEMENTS job (highest
// job_id among the paper's extracts of this type; ties broken by job_id
// text order, matching the domain contract).
func (r *ExtractRepository) LatestByPaperAndType(ctx context.Context, paperIDs []uuid.UUID, extractType valueobject.ExtractType) ([]*entity.Extract, error) {
	if len(paperIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		WITH latest_job AS (
			SELECT paper_id, MAX(job_id::text) AS job_id
			FROM extracts
			WHERE paper_id = ANY($1) AND type = $2
			GROUP BY paper_id
		)
		SELECT e.id, e.paper_id, e.job_id, e.type, e.content, e.created_at
		FROM extracts e
		JOIN latest_job lj ON lj.paper_id = e.paper_id AND e.job_id::text = lj.job_id
		WHERE e.type = $2
	`, pq.Array(uuidsToStrings(paperIDs)), extractType.String())
	if err != nil {
		return nil, fmt.Errorf("extract_repository: latest by paper and type: %w", err)
	}
	defer rows.Close()
	return scanExtracts(rows)
}

// UnlinkedClaims returns the latest claim extracts among paperIDs whose
// own created_at is after cutoff, OR whose owning paper's
// library_papers.added_at (for libraryID) is after cutoff. cutoff == nil
// matches everything (first-ever linking run for the library).
func (r *ExtractRepository) UnlinkedClaims(ctx context.Context, libraryID uuid.UUID, paperIDs []uuid.UUID, cutoff *time.Time) ([]*entity.Extract, error) {
	if len(paperIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		WITH latest_job AS (
			SELECT paper_id, MAX(job_id::text) AS job_id
			FROM extracts
			WHERE paper_id = ANY($1) AND type = 'claim'
			GROUP BY paper_id
		)
		SELECT e.id, e.paper_id, e.job_id, e.type, e.content, e.created_at
		FROM extracts e
		JOIN latest_job lj ON lj.paper_id = e.paper_id AND e.job_id::text = lj.job_id
		JOIN library_papers lp ON lp.paper_id = e.paper_id AND lp.library_id = $2
		WHERE e.type = 'claim'
		  AND ($3::timestamptz IS NULL OR e.created_at > $3 OR lp.added_at > $3)
	`, pq.Array(uuidsToStrings(paperIDs)), libraryID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("extract_repository: unlinked claims: %w", err)
	}
	defer rows.Close()
	return scanExtracts(rows)
}

func scanExtracts(rows *sql.Rows) ([]*entity.Extract, error) {
	var extracts []*entity.Extract
	for rows.Next() {
		e := &entity.Extract{}
		var typeStr string
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.PaperID, &e.JobID, &typeStr, &contentJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		t, err := valueobject.ParseExtractType(typeStr)
		if err != nil {
			return nil, err
		}
		e.Type = t
		if len(contentJSON) > 0 {
			if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
				return nil, fmt.Errorf("unmarshal content for %s: %w", e.ID, err)
			}
		}
		extracts = append(extracts, e)
	}
	return extracts, rows.Err()
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// ExtractVectorRepository implements repository.ExtractVectorRepository
// against PostgreSQL, storing embeddings as pgvector columns.
type ExtractVectorRepository struct {
	db *sql.DB
}

// NewExtractVectorRepository constructs an ExtractVectorRepository.
func NewExtractVectorRepository(db *sql.DB) *ExtractVectorRepository {
	return &ExtractVectorRepository{db: db}
}

var _ repository.ExtractVectorRepository = (*ExtractVectorRepository)(nil)

func (r *ExtractVectorRepository) CreateBatch(ctx context.Context, vectors []*entity.ExtractVector) error {
	if len(vectors) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("extract_vector_repository: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO extract_vectors (extract_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (extract_id) DO UPDATE SET embedding = EXCLUDED.embedding
	`)
	if err != nil {
		return fmt.Errorf("extract_vector_repository: prepare: %w", err)
	}
	defer stmt.Close()

	for _, v := range vectors {
		if _, err := stmt.ExecContext(ctx, v.ExtractID, formatVector(v.Embedding)); err != nil {
			return fmt.Errorf("extract_vector_repository: insert %s: %w", v.ExtractID, err)
		}
	}
	return tx.Commit()
}

func (r *ExtractVectorRepository) GetByExtractIDs(ctx context.Context, extractIDs []uuid.UUID) (map[uuid.UUID][]float32, error) {
	if len(extractIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT extract_id, embedding FROM extract_vectors WHERE extract_id = ANY($1)
	`, pq.Array(uuidsToStrings(extractIDs)))
	if err != nil {
		return nil, fmt.Errorf("extract_vector_repository: get by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]float32, len(extractIDs))
	for rows.Next() {
		var id uuid.UUID
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		vec, err := parseVector(raw)
		if err != nil {
			return nil, fmt.Errorf("parse vector for %s: %w", id, err)
		}
		out[id] = vec
	}
	return out, rows.Err()
}

// ExtractLinkRepository implements repository.ExtractLinkRepository
// against PostgreSQL.
type ExtractLinkRepository struct {
	db *sql.DB
}

// NewExtractLinkRepository constructs an ExtractLinkRepository.
func NewExtractLinkRepository(db *sql.DB) *ExtractLinkRepository {
	return &ExtractLinkRepository{db: db}
}

var _ repository.ExtractLinkRepository = (*ExtractLinkRepository)(nil)

func (r *ExtractLinkRepository) CreateBatch(ctx context.Context, links []*entity.ExtractLink) error {
	if len(links) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("extract_link_repository: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO extract_links (id, from_id, to_id, category, type, reasoning, job_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (from_id, to_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("extract_link_repository: prepare: %w", err)
	}
	defer stmt.Close()

	for _, l := range links {
		l.Normalize()
		if _, err := stmt.ExecContext(ctx, l.ID, l.FromID, l.ToID, l.Category.String(), l.Type.String(), l.Reasoning, l.JobID); err != nil {
			return fmt.Errorf("extract_link_repository: insert %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

func (r *ExtractLinkRepository) ExistsForPair(ctx context.Context, fromID, toID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM extract_links WHERE from_id = $1 AND to_id = $2)
	`, fromID, toID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("extract_link_repository: exists for pair: %w", err)
	}
	return exists, nil
}
