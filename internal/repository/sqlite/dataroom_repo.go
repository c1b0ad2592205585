package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
)

// dataRoomRepository implements repository.DataRoomRepository for SQLite.
type dataRoomRepository struct {
	db *DB
}

// NewDataRoomRepository creates a new SQLite data room repository.
func NewDataRoomRepository(db *DB) repository.DataRoomRepository {
	return &dataRoomRepository{db: db}
}

const dataRoomColumns = `id, name, owner_user_id, owner_org_id, asset_id, listing_id,
	tier, access, status, document_count, total_size_bytes, created_at, updated_at`

// Create persists a new room.
func (r *dataRoomRepository) Create(ctx context.Context, room *domain.DataRoom) error {
	query := `
		INSERT INTO data_rooms (id, name, owner_user_id, owner_org_id, asset_id, listing_id,
			tier, access, status, document_count, total_size_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		room.ID.String(),
		room.Name,
		room.OwnerUserID,
		room.OwnerOrgID,
		room.AssetID,
		room.ListingID,
		string(room.Tier),
		string(room.Access),
		string(room.Status),
		room.DocumentCount,
		room.TotalSizeBytes,
		room.CreatedAt.UTC().Format(timeLayout),
		room.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create data room: %w", err)
	}

	return nil
}

// GetByIDForOwner retrieves a room by id, scoped to its owner in one query.
func (r *dataRoomRepository) GetByIDForOwner(ctx context.Context, id uuid.UUID, ownerUserID string) (*domain.DataRoom, error) {
	query := `SELECT ` + dataRoomColumns + ` FROM data_rooms WHERE id = ? AND owner_user_id = ?`
	return r.scanRoom(r.db.QueryRowContext(ctx, query, id.String(), ownerUserID))
}

// GetByListingIDForOwner retrieves the owner's room linked to a listing.
func (r *dataRoomRepository) GetByListingIDForOwner(ctx context.Context, listingID, ownerUserID string) (*domain.DataRoom, error) {
	query := `SELECT ` + dataRoomColumns + ` FROM data_rooms WHERE listing_id = ? AND owner_user_id = ?`
	return r.scanRoom(r.db.QueryRowContext(ctx, query, listingID, ownerUserID))
}

// GetByAssetIDForOwner retrieves the owner's room linked to an asset.
func (r *dataRoomRepository) GetByAssetIDForOwner(ctx context.Context, assetID, ownerUserID string) (*domain.DataRoom, error) {
	query := `SELECT ` + dataRoomColumns + ` FROM data_rooms WHERE asset_id = ? AND owner_user_id = ?`
	return r.scanRoom(r.db.QueryRowContext(ctx, query, assetID, ownerUserID))
}

// ListByOwner returns the owner's rooms, newest first.
func (r *dataRoomRepository) ListByOwner(ctx context.Context, ownerUserID string, filter repository.DataRoomFilter) ([]*domain.DataRoom, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + dataRoomColumns + ` FROM data_rooms WHERE owner_user_id = ?`)
	args := []interface{}{ownerUserID}

	if filter.ListingID != nil {
		sb.WriteString(` AND listing_id = ?`)
		args = append(args, *filter.ListingID)
	}
	if filter.AssetID != nil {
		sb.WriteString(` AND asset_id = ?`)
		args = append(args, *filter.AssetID)
	}
	if filter.Status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, string(*filter.Status))
	}
	sb.WriteString(` ORDER BY created_at DESC`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list data rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*domain.DataRoom
	for rows.Next() {
		room, err := r.scanRoomFromRows(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data rooms: %w", err)
	}

	return rooms, nil
}

// Update persists all mutable fields of an existing room.
func (r *dataRoomRepository) Update(ctx context.Context, room *domain.DataRoom) error {
	query := `
		UPDATE data_rooms
		SET name = ?, owner_org_id = ?, asset_id = ?, listing_id = ?,
			tier = ?, access = ?, status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		room.Name,
		room.OwnerOrgID,
		room.AssetID,
		room.ListingID,
		string(room.Tier),
		string(room.Access),
		string(room.Status),
		room.UpdatedAt.UTC().Format(timeLayout),
		room.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update data room: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrDataRoomNotFound
	}

	return nil
}

// Delete removes a room. The documents FK cascade removes its documents.
func (r *dataRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM data_rooms WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete data room: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrDataRoomNotFound
	}

	return nil
}

// AdjustStats applies a relative adjustment to the room's counters.
// The deltas are applied in the database, never computed from a value read
// into application code, so concurrent adjustments cannot lose updates.
func (r *dataRoomRepository) AdjustStats(ctx context.Context, id uuid.UUID, docDelta, sizeDelta int64) error {
	query := `
		UPDATE data_rooms
		SET document_count = document_count + ?,
			total_size_bytes = total_size_bytes + ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		docDelta, sizeDelta, time.Now().UTC().Format(timeLayout), id.String())
	if err != nil {
		return fmt.Errorf("failed to adjust data room stats: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrDataRoomNotFound
	}

	return nil
}

// ReconcileStats recomputes counters from document rows for every room whose
// counters have drifted. Idempotent.
func (r *dataRoomRepository) ReconcileStats(ctx context.Context) (int64, error) {
	query := `
		UPDATE data_rooms
		SET document_count = (
				SELECT COUNT(*) FROM documents d WHERE d.data_room_id = data_rooms.id
			),
			total_size_bytes = (
				SELECT COALESCE(SUM(size_bytes), 0) FROM documents d WHERE d.data_room_id = data_rooms.id
			)
		WHERE document_count <> (
				SELECT COUNT(*) FROM documents d WHERE d.data_room_id = data_rooms.id
			)
			OR total_size_bytes <> (
				SELECT COALESCE(SUM(size_bytes), 0) FROM documents d WHERE d.data_room_id = data_rooms.id
			)
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile data room stats: %w", err)
	}

	fixed, _ := result.RowsAffected()
	return fixed, nil
}

// scanRoom scans a single room row.
func (r *dataRoomRepository) scanRoom(row *sql.Row) (*domain.DataRoom, error) {
	room := &domain.DataRoom{}
	var idStr, tier, access, status, createdAt, updatedAt string
	var ownerOrgID, assetID, listingID sql.NullString

	err := row.Scan(
		&idStr,
		&room.Name,
		&room.OwnerUserID,
		&ownerOrgID,
		&assetID,
		&listingID,
		&tier,
		&access,
		&status,
		&room.DocumentCount,
		&room.TotalSizeBytes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrDataRoomNotFound
		}
		return nil, fmt.Errorf("failed to scan data room: %w", err)
	}

	fillRoom(room, idStr, ownerOrgID, assetID, listingID, tier, access, status, createdAt, updatedAt)
	return room, nil
}

// scanRoomFromRows scans a room from a multi-row result.
func (r *dataRoomRepository) scanRoomFromRows(rows *sql.Rows) (*domain.DataRoom, error) {
	room := &domain.DataRoom{}
	var idStr, tier, access, status, createdAt, updatedAt string
	var ownerOrgID, assetID, listingID sql.NullString

	err := rows.Scan(
		&idStr,
		&room.Name,
		&room.OwnerUserID,
		&ownerOrgID,
		&assetID,
		&listingID,
		&tier,
		&access,
		&status,
		&room.DocumentCount,
		&room.TotalSizeBytes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan data room: %w", err)
	}

	fillRoom(room, idStr, ownerOrgID, assetID, listingID, tier, access, status, createdAt, updatedAt)
	return room, nil
}

func fillRoom(room *domain.DataRoom, idStr string, ownerOrgID, assetID, listingID sql.NullString, tier, access, status, createdAt, updatedAt string) {
	room.ID = uuid.MustParse(idStr)
	if ownerOrgID.Valid {
		room.OwnerOrgID = &ownerOrgID.String
	}
	if assetID.Valid {
		room.AssetID = &assetID.String
	}
	if listingID.Valid {
		room.ListingID = &listingID.String
	}
	room.Tier = domain.Tier(tier)
	room.Access = domain.Access(access)
	room.Status = domain.Status(status)
	room.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	room.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
}

// Ensure dataRoomRepository implements repository.DataRoomRepository.
var _ repository.DataRoomRepository = (*dataRoomRepository)(nil)
