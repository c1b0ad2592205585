package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
)

// dataRoomRepository implements repository.DataRoomRepository for PostgreSQL.
type dataRoomRepository struct {
	db *DB
}

// NewDataRoomRepository creates a new PostgreSQL data room repository.
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool.Exec(ctx, query,
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
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create data room: %w", err)
	}

	return nil
}

// GetByIDForOwner retrieves a room by id, scoped to its owner in one query.
func (r *dataRoomRepository) GetByIDForOwner(ctx context.Context, id uuid.UUID, ownerUserID string) (*domain.DataRoom, error) {
	query := `SELECT ` + dataRoomColumns + ` FROM data_rooms WHERE id = $1 AND owner_user_id = $2`
	return scanRoomRow(r.db.Pool.QueryRow(ctx, query, id.String(), ownerUserID))
}

// GetByListingIDForOwner retrieves the owner's room linked to a listing.
func (r *dataRoomRepository) GetByListingIDForOwner(ctx context.Context, listingID, ownerUserID string) (*domain.DataRoom, error) {
	query := `SELECT ` + dataRoomColumns + ` FROM data_rooms WHERE listing_id = $1 AND owner_user_id = $2`
	return scanRoomRow(r.db.Pool.QueryRow(ctx, query, listingID, ownerUserID))
}

// GetByAssetIDForOwner retrieves the owner's room linked to an asset.
func (r *dataRoomRepository) GetByAssetIDForOwner(ctx context.Context, assetID, ownerUserID string) (*domain.DataRoom, error) {
	query := `SELECT ` + dataRoomColumns + ` FROM data_rooms WHERE asset_id = $1 AND owner_user_id = $2`
	return scanRoomRow(r.db.Pool.QueryRow(ctx, query, assetID, ownerUserID))
}

// ListByOwner returns the owner's rooms, newest first.
func (r *dataRoomRepository) ListByOwner(ctx context.Context, ownerUserID string, filter repository.DataRoomFilter) ([]*domain.DataRoom, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + dataRoomColumns + ` FROM data_rooms WHERE owner_user_id = $1`)
	args := []interface{}{ownerUserID}

	if filter.ListingID != nil {
		args = append(args, *filter.ListingID)
		fmt.Fprintf(&sb, ` AND listing_id = $%d`, len(args))
	}
	if filter.AssetID != nil {
		args = append(args, *filter.AssetID)
		fmt.Fprintf(&sb, ` AND asset_id = $%d`, len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		fmt.Fprintf(&sb, ` AND status = $%d`, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC`)

	rows, err := r.db.Pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list data rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*domain.DataRoom
	for rows.Next() {
		room, err := scanRoomRow(rows)
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
		SET name = $1, owner_org_id = $2, asset_id = $3, listing_id = $4,
			tier = $5, access = $6, status = $7, updated_at = $8
		WHERE id = $9
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		room.Name,
		room.OwnerOrgID,
		room.AssetID,
		room.ListingID,
		string(room.Tier),
		string(room.Access),
		string(room.Status),
		room.UpdatedAt,
		room.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update data room: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrDataRoomNotFound
	}

	return nil
}

// Delete removes a room. The documents FK cascade removes its documents.
func (r *dataRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM data_rooms WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete data room: %w", err)
	}

	if tag.RowsAffected() == 0 {
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
		SET document_count = document_count + $1,
			total_size_bytes = total_size_bytes + $2,
			updated_at = $3
		WHERE id = $4
	`

	tag, err := r.db.Pool.Exec(ctx, query, docDelta, sizeDelta, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failed to adjust data room stats: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrDataRoomNotFound
	}

	return nil
}

// ReconcileStats recomputes counters from document rows for every room whose
// counters have drifted. Idempotent.
func (r *dataRoomRepository) ReconcileStats(ctx context.Context) (int64, error) {
	query := `
		UPDATE data_rooms
		SET document_count = agg.doc_count,
			total_size_bytes = agg.total_size
		FROM (
			SELECT dr.id,
				COUNT(d.id) AS doc_count,
				COALESCE(SUM(d.size_bytes), 0) AS total_size
			FROM data_rooms dr
			LEFT JOIN documents d ON d.data_room_id = dr.id
			GROUP BY dr.id
		) agg
		WHERE data_rooms.id = agg.id
			AND (data_rooms.document_count <> agg.doc_count
				OR data_rooms.total_size_bytes <> agg.total_size)
	`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile data room stats: %w", err)
	}

	return tag.RowsAffected(), nil
}

// scanRoomRow scans a single room row.
func scanRoomRow(row pgx.Row) (*domain.DataRoom, error) {
	room := &domain.DataRoom{}
	var idStr, tier, access, status string
	var ownerOrgID, assetID, listingID *string

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
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrDataRoomNotFound
		}
		return nil, fmt.Errorf("failed to scan data room: %w", err)
	}

	room.ID = uuid.MustParse(idStr)
	room.OwnerOrgID = ownerOrgID
	room.AssetID = assetID
	room.ListingID = listingID
	room.Tier = domain.Tier(tier)
	room.Access = domain.Access(access)
	room.Status = domain.Status(status)
	return room, nil
}

// Ensure dataRoomRepository implements repository.DataRoomRepository.
var _ repository.DataRoomRepository = (*dataRoomRepository)(nil)
