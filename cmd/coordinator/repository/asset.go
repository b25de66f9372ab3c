package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/db"
)

const assetColumns = `
	id, path, filename, kind, size_bytes, width, height,
	file_modified_at, file_created_at, quick_hash, quick_hash_version,
	thumbnail_url, thumbnail_error, status, licensed,
	licensor_code, licensor_name, property_code, property_name,
	type_code, type_name, subtype_code, subtype_name, group_code, group_name,
	size_code, size_name, sequence_code, category, division,
	style_group_id, deleted, last_seen_at, created_at, updated_at
`

// AssetRepository handles database operations for assets
type AssetRepository struct {
	db *db.DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(database *db.DB) *AssetRepository {
	return &AssetRepository{db: database}
}

func scanAsset(row pgx.Row) (*models.Asset, error) {
	a := &models.Asset{}
	err := row.Scan(
		&a.ID, &a.Path, &a.Filename, &a.Kind, &a.SizeBytes, &a.Width, &a.Height,
		&a.FileModifiedAt, &a.FileCreatedAt, &a.QuickHash, &a.QuickHashVersion,
		&a.ThumbnailURL, &a.ThumbnailError, &a.Status, &a.Licensed,
		&a.LicensorCode, &a.LicensorName, &a.PropertyCode, &a.PropertyName,
		&a.Taxonomy.TypeCode, &a.Taxonomy.TypeName,
		&a.Taxonomy.SubtypeCode, &a.Taxonomy.SubtypeName,
		&a.Taxonomy.GroupCode, &a.Taxonomy.GroupName,
		&a.Taxonomy.SizeCode, &a.Taxonomy.SizeName,
		&a.Taxonomy.SequenceCode, &a.Taxonomy.Category, &a.Taxonomy.Division,
		&a.StyleGroupID, &a.Deleted, &a.LastSeenAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new asset
func (r *AssetRepository) Create(ctx context.Context, a *models.Asset) error {
	query := `
		INSERT INTO assets (
			id, path, filename, kind, size_bytes, width, height,
			file_modified_at, file_created_at, quick_hash, quick_hash_version,
			thumbnail_url, thumbnail_error, status, licensed,
			licensor_code, licensor_name, property_code, property_name,
			type_code, type_name, subtype_code, subtype_name, group_code, group_name,
			size_code, size_name, sequence_code, category, division,
			style_group_id, last_seen_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, now())
	`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.Path, a.Filename, a.Kind, a.SizeBytes, a.Width, a.Height,
		a.FileModifiedAt, a.FileCreatedAt, a.QuickHash, a.QuickHashVersion,
		a.ThumbnailURL, a.ThumbnailError, a.Status, a.Licensed,
		a.LicensorCode, a.LicensorName, a.PropertyCode, a.PropertyName,
		a.Taxonomy.TypeCode, a.Taxonomy.TypeName,
		a.Taxonomy.SubtypeCode, a.Taxonomy.SubtypeName,
		a.Taxonomy.GroupCode, a.Taxonomy.GroupName,
		a.Taxonomy.SizeCode, a.Taxonomy.SizeName,
		a.Taxonomy.SequenceCode, a.Taxonomy.Category, a.Taxonomy.Division,
		a.StyleGroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

// GetByID retrieves an asset by id, nil when not found
func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	query := `SELECT` + assetColumns + `FROM assets WHERE id = $1`

	a, err := scanAsset(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return a, nil
}

// GetLiveByPath finds the non-deleted asset at a canonical path
func (r *AssetRepository) GetLiveByPath(ctx context.Context, path string) (*models.Asset, error) {
	query := `SELECT` + assetColumns + `FROM assets WHERE path = $1 AND NOT deleted`

	a, err := scanAsset(r.db.QueryRow(ctx, query, path))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset by path: %w", err)
	}
	return a, nil
}

// GetLiveByHash finds a non-deleted asset with the given content
// fingerprint. Used for move detection; when several share a hash the
// most recently seen one is the move candidate.
func (r *AssetRepository) GetLiveByHash(ctx context.Context, quickHash string) (*models.Asset, error) {
	query := `SELECT` + assetColumns + `
		FROM assets WHERE quick_hash = $1 AND NOT deleted
		ORDER BY last_seen_at DESC
		LIMIT 1`

	a, err := scanAsset(r.db.QueryRow(ctx, query, quickHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset by hash: %w", err)
	}
	return a, nil
}

// Update persists all mutable asset columns and touches last_seen_at
func (r *AssetRepository) Update(ctx context.Context, a *models.Asset) error {
	query := `
		UPDATE assets SET
			path = $2, filename = $3, kind = $4, size_bytes = $5, width = $6, height = $7,
			file_modified_at = $8, file_created_at = $9, quick_hash = $10, quick_hash_version = $11,
			thumbnail_url = $12, thumbnail_error = $13, status = $14, licensed = $15,
			licensor_code = $16, licensor_name = $17, property_code = $18, property_name = $19,
			type_code = $20, type_name = $21, subtype_code = $22, subtype_name = $23,
			group_code = $24, group_name = $25, size_code = $26, size_name = $27,
			sequence_code = $28, category = $29, division = $30,
			style_group_id = $31, last_seen_at = now(), updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.Path, a.Filename, a.Kind, a.SizeBytes, a.Width, a.Height,
		a.FileModifiedAt, a.FileCreatedAt, a.QuickHash, a.QuickHashVersion,
		a.ThumbnailURL, a.ThumbnailError, a.Status, a.Licensed,
		a.LicensorCode, a.LicensorName, a.PropertyCode, a.PropertyName,
		a.Taxonomy.TypeCode, a.Taxonomy.TypeName,
		a.Taxonomy.SubtypeCode, a.Taxonomy.SubtypeName,
		a.Taxonomy.GroupCode, a.Taxonomy.GroupName,
		a.Taxonomy.SizeCode, a.Taxonomy.SizeName,
		a.Taxonomy.SequenceCode, a.Taxonomy.Category, a.Taxonomy.Division,
		a.StyleGroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return nil
}

// UpdateThumbnail sets the thumbnail reference or failure reason. The
// preservation rule (never clobber a good thumbnail with an error) is
// decided by the caller; the columns stay mutually exclusive here.
func (r *AssetRepository) UpdateThumbnail(ctx context.Context, id uuid.UUID, url, failure *string) error {
	query := `
		UPDATE assets SET thumbnail_url = $2, thumbnail_error = $3, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, id, url, failure)
	if err != nil {
		return fmt.Errorf("failed to update asset thumbnail: %w", err)
	}
	return nil
}

// SetStyleGroup assigns (or clears, with nil) an asset's group
func (r *AssetRepository) SetStyleGroup(ctx context.Context, id uuid.UUID, groupID *uuid.UUID) error {
	query := `UPDATE assets SET style_group_id = $2, updated_at = now() WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, groupID)
	if err != nil {
		return fmt.Errorf("failed to set asset style group: %w", err)
	}
	return nil
}

// RecordMove appends a path-history entry for a detected move
func (r *AssetRepository) RecordMove(ctx context.Context, assetID uuid.UUID, oldPath, newPath string) error {
	query := `
		INSERT INTO asset_path_history (id, asset_id, old_path, new_path)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Exec(ctx, query, uuid.New(), assetID, oldPath, newPath)
	if err != nil {
		return fmt.Errorf("failed to record asset move: %w", err)
	}
	return nil
}

// ListPathHistory returns the move history of an asset, oldest first
func (r *AssetRepository) ListPathHistory(ctx context.Context, assetID uuid.UUID) ([]*models.PathHistoryEntry, error) {
	query := `
		SELECT id, asset_id, old_path, new_path, moved_at
		FROM asset_path_history
		WHERE asset_id = $1
		ORDER BY moved_at ASC
	`

	rows, err := r.db.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list path history: %w", err)
	}
	defer rows.Close()

	var entries []*models.PathHistoryEntry
	for rows.Next() {
		e := &models.PathHistoryEntry{}
		if err := rows.Scan(&e.ID, &e.AssetID, &e.OldPath, &e.NewPath, &e.MovedAt); err != nil {
			return nil, fmt.Errorf("failed to scan path history: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating path history: %w", err)
	}

	return entries, nil
}

// ListByStyleGroup returns the live members of a group
func (r *AssetRepository) ListByStyleGroup(ctx context.Context, groupID uuid.UUID) ([]*models.Asset, error) {
	query := `SELECT` + assetColumns + `
		FROM assets WHERE style_group_id = $1 AND NOT deleted
		ORDER BY created_at ASC`

	return r.queryAssets(ctx, query, groupID)
}

// ListLiveChunk returns a stable chunk of live assets for batch
// operations (rebuild, reclassify).
func (r *AssetRepository) ListLiveChunk(ctx context.Context, offset, limit int) ([]*models.Asset, error) {
	query := `SELECT` + assetColumns + `
		FROM assets WHERE NOT deleted
		ORDER BY id ASC
		OFFSET $1 LIMIT $2`

	return r.queryAssets(ctx, query, offset, limit)
}

// ListNotSeenSince returns a chunk of live assets last seen before the
// cutoff, for the retention purge.
func (r *AssetRepository) ListNotSeenSince(ctx context.Context, cutoff time.Time, offset, limit int) ([]*models.Asset, error) {
	query := `SELECT` + assetColumns + `
		FROM assets WHERE NOT deleted AND last_seen_at < $1
		ORDER BY id ASC
		OFFSET $2 LIMIT $3`

	return r.queryAssets(ctx, query, cutoff, offset, limit)
}

// SoftDelete marks an asset deleted. The core never hard-deletes.
func (r *AssetRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE assets SET deleted = TRUE, style_group_id = NULL, updated_at = now() WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete asset: %w", err)
	}
	return nil
}

func (r *AssetRepository) queryAssets(ctx context.Context, query string, args ...any) ([]*models.Asset, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}
