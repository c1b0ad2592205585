package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
)

// documentRepository implements repository.DocumentRepository for SQLite.
type documentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new SQLite document repository.
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var parentID *string
	if doc.ParentFolderID != nil {
		s := doc.ParentFolderID.String()
		parentID = &s
	}

	metadataJSON := "{}"
	if doc.Metadata != nil {
		data, _ := json.Marshal(doc.Metadata)
		metadataJSON = string(data)
	}

	_, err := r.db.ExecContext(ctx, query,
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
		doc.CreatedAt.UTC().Format(timeLayout),
		doc.UpdatedAt.UTC().Format(timeLayout),
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
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ? AND data_room_id = ?`

	row := r.db.QueryRowContext(ctx, query, docID.String(), roomID.String())
	doc, err := scanDocumentRow(row.Scan)
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
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE id = ? AND data_room_id = ?`,
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
	query := `SELECT ` + documentColumns + ` FROM documents WHERE data_room_id = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, roomID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows.Scan)
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

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		const subtreeQuery = `
			WITH RECURSIVE subtree(id, size_bytes) AS (
				SELECT id, size_bytes FROM documents WHERE id = ? AND data_room_id = ?
				UNION ALL
				SELECT d.id, d.size_bytes FROM documents d
				JOIN subtree s ON d.parent_folder_id = s.id
			)
			SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM subtree
		`

		err := tx.QueryRowContext(ctx, subtreeQuery, docID.String(), roomID.String()).Scan(&removed, &freed)
		if err != nil {
			return fmt.Errorf("failed to resolve document subtree: %w", err)
		}
		if removed == 0 {
			return domain.ErrDocumentNotFound
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE id = ? AND data_room_id = ?`,
			docID.String(), roomID.String())
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return domain.ErrDocumentNotFound
		}

		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return removed, freed, nil
}

// ListPendingPromotion returns documents still in the Received state, oldest
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
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows.Scan)
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
		SET content_address = ?, content_url = ?, temp_storage_path = NULL, updated_at = ?
		WHERE id = ? AND content_address IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		contentAddress, contentURL, time.Now().UTC().Format(timeLayout), docID.String())
	if err != nil {
		return fmt.Errorf("failed to mark document promoted: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, docID.String()).Scan(&one)
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
	rows, err := r.db.QueryContext(ctx,
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

// scanDocumentRow scans a document from a row-scanning function.
func scanDocumentRow(scan func(dest ...interface{}) error) (*domain.Document, error) {
	doc := &domain.Document{}
	var idStr, roomIDStr, createdAt, updatedAt string
	var parentID, mimeType, contentAddress, contentURL, tempPath, description sql.NullString
	var metadataJSON string

	err := scan(
		&idStr,
		&roomIDStr,
		&parentID,
		&doc.DisplayName,
		&doc.OriginalFilename,
		&mimeType,
		&doc.SizeBytes,
		&contentAddress,
		&contentURL,
		&tempPath,
		&description,
		&metadataJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.ID = uuid.MustParse(idStr)
	doc.DataRoomID = uuid.MustParse(roomIDStr)
	if parentID.Valid {
		pid := uuid.MustParse(parentID.String)
		doc.ParentFolderID = &pid
	}
	if mimeType.Valid {
		doc.MimeType = &mimeType.String
	}
	if contentAddress.Valid {
		doc.ContentAddress = &contentAddress.String
	}
	if contentURL.Valid {
		doc.ContentURL = &contentURL.String
	}
	if tempPath.Valid {
		doc.TempStoragePath = &tempPath.String
	}
	if description.Valid {
		doc.Description = &description.String
	}
	if metadataJSON != "" && metadataJSON != "{}" {
		json.Unmarshal([]byte(metadataJSON), &doc.Metadata)
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return doc, nil
}

// Ensure documentRepository implements repository.DocumentRepository.
var _ repository.DocumentRepository = (*documentRepository)(nil)
