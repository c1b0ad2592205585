package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
)

// documentRepository implements repository.DocumentRepository for PostgreSQL.
type documentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new PostgreSQL document repository.
func NewDocumentRepository(db *DB) repository.DocumentRepository {
	return &documentRepository{db: db}
}

const documentColumns = `id, data_room_id, parent_folder_id, display_name, original_filename,
	mime_type, size_bytes, content_address, content_url, temp_storage_path,
	description, metadata, created_at, updated_at`

// Create persists a new document.
func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, data_room_id, parent_folder_id, display_name, original_filename,
			mime_type, size_bytes, content_address, content_url, temp_storage_path,
			description, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	var parentID *string
	if doc.ParentFolderID != nil {
		s := doc.ParentFolderID.String()
		parentID = &s
	}

	metadataJSON := []byte("{}")
	if doc.Metadata != nil {
		metadataJSON, _ = json.Marshal(doc.Metadata)
	}

	_, err := r.db.Pool.Exec(ctx, query,
		doc.ID.String(),
		doc.DataRoomID.String(),
		parentID,
		doc.DisplayName,
		doc.OriginalFilename,
		doc.MimeType,
		doc.SizeBytes,
		doc.ContentAddress,
		doc.ContentURL,
		doc.TempStoragePath,
		doc.Description,
		metadataJSON,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrFolderNotFound
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document scoped to its room.
func (r *documentRepository) GetByID(ctx context.Context, roomID, docID uuid.UUID) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND data_room_id = $2`

	doc, err := scanDocumentRow(r.db.Pool.QueryRow(ctx, query, docID.String(), roomID.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ExistsInRoom reports whether a document exists within the given room.
func (r *documentRepository) ExistsInRoom(ctx context.Context, roomID, docID uuid.UUID) (bool, error) {
	var one int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT 1 FROM documents WHERE id = $1 AND data_room_id = $2`,
		docID.String(), roomID.String(),
	).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check document existence: %w", err)
	}
	return true, nil
}

// ListByRoom returns the room's documents, newest first.
func (r *documentRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE data_room_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, roomID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteSubtree removes a document and all descendants in one transaction.
// The subtree is resolved with a recursive CTE scoped to the room; the FK
// cascade on parent_folder_id removes descendants when the root is deleted.
func (r *documentRepository) DeleteSubtree(ctx context.Context, roomID, docID uuid.UUID) (int64, int64, error) {
	var removed, freed int64

	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		const subtreeQuery = `
			WITH RECURSIVE subtree(id, size_bytes) AS (
				SELECT id, size_bytes FROM documents WHERE id = $1 AND data_room_id = $2
				UNION ALL
				SELECT d.id, d.size_bytes FROM documents d
				JOIN subtree s ON d.parent_folder_id = s.id
			)
			SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM subtree
		`

		err := tx.QueryRow(ctx, subtreeQuery, docID.String(), roomID.String()).Scan(&removed, &freed)
		if err != nil {
			return fmt.Errorf("failed to resolve document subtree: %w", err)
		}
		if removed == 0 {
			return domain.ErrDocumentNotFound
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE id = $1 AND data_room_id = $2`,
			docID.String(), roomID.String())
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return domain.ErrDocumentNotFound
		}

		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return removed, freed, nil
}

// ListPendingPromotion returns documents still awaiting promotion, oldest
// first, so the promotion worker drains the backlog in arrival order.
func (r *documentRepository) ListPendingPromotion(ctx context.Context, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE content_address IS NULL AND temp_storage_path IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending documents: %w", err)
	}

	return docs, nil
}

// MarkPromoted records the content address and clears the scratch path.
// The guard on content_address keeps the transition one way.
func (r *documentRepository) MarkPromoted(ctx context.Context, docID uuid.UUID, contentAddress, contentURL string) error {
	query := `
		UPDATE documents
		SET content_address = $1, content_url = $2, temp_storage_path = NULL, updated_at = $3
		WHERE id = $4 AND content_address IS NULL
	`

	tag, err := r.db.Pool.Exec(ctx, query, contentAddress, contentURL, time.Now().UTC(), docID.String())
	if err != nil {
		return fmt.Errorf("failed to mark document promoted: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var one int
		err := r.db.Pool.QueryRow(ctx, `SELECT 1 FROM documents WHERE id = $1`, docID.String()).Scan(&one)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrDocumentNotFound
			}
			return fmt.Errorf("failed to check document: %w", err)
		}
		return domain.ErrAlreadyPromoted
	}

	return nil
}

// ListTempPaths returns every scratch path referenced by a document row.
func (r *documentRepository) ListTempPaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT temp_storage_path FROM documents WHERE temp_storage_path IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to list temp paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan temp path: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating temp paths: %w", err)
	}

	return paths, nil
}

// scanDocumentRow scans a document row.
func scanDocumentRow(row pgx.Row) (*domain.Document, error) {
	doc := &domain.Document{}
	var idStr, roomIDStr string
	var parentID *string
	var metadataJSON []byte

	err := row.Scan(
		&idStr,
		&roomIDStr,
		&parentID,
		&doc.DisplayName,
		&doc.OriginalFilename,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.ContentAddress,
		&doc.ContentURL,
		&doc.TempStoragePath,
		&doc.Description,
		&metadataJSON,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.ID = uuid.MustParse(idStr)
	doc.DataRoomID = uuid.MustParse(roomIDStr)
	if parentID != nil {
		pid := uuid.MustParse(*parentID)
		doc.ParentFolderID = &pid
	}
	if len(metadataJSON) > 0 && string(metadataJSON) != "{}" {
		json.Unmarshal(metadataJSON, &doc.Metadata)
	}

	return doc, nil
}

// Ensure documentRepository implements repository.DocumentRepository.
var _ repository.DocumentRepository = (*documentRepository)(nil)
