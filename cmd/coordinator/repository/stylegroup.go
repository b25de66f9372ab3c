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

const styleGroupColumns = `
	id, group_key, folder_path, licensed, licensor_code, property_code,
	type_code, type_name, subtype_code, subtype_name, group_code, group_name,
	size_code, size_name, sequence_code, category, division,
	primary_asset_id, member_count, best_status, latest_file_at,
	created_at, updated_at
`

// StyleGroupRepository handles database operations for style groups
type StyleGroupRepository struct {
	db *db.DB
}

// NewStyleGroupRepository creates a new style group repository
func NewStyleGroupRepository(database *db.DB) *StyleGroupRepository {
	return &StyleGroupRepository{db: database}
}

func scanStyleGroup(row pgx.Row) (*models.StyleGroup, error) {
	g := &models.StyleGroup{}
	err := row.Scan(
		&g.ID, &g.GroupKey, &g.FolderPath, &g.Licensed, &g.LicensorCode, &g.PropertyCode,
		&g.Taxonomy.TypeCode, &g.Taxonomy.TypeName,
		&g.Taxonomy.SubtypeCode, &g.Taxonomy.SubtypeName,
		&g.Taxonomy.GroupCode, &g.Taxonomy.GroupName,
		&g.Taxonomy.SizeCode, &g.Taxonomy.SizeName,
		&g.Taxonomy.SequenceCode, &g.Taxonomy.Category, &g.Taxonomy.Division,
		&g.PrimaryAssetID, &g.MemberCount, &g.BestStatus, &g.LatestFileAt,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetByID retrieves a style group, nil when not found
func (r *StyleGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StyleGroup, error) {
	query := `SELECT` + styleGroupColumns + `FROM style_groups WHERE id = $1`

	g, err := scanStyleGroup(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get style group: %w", err)
	}
	return g, nil
}

// GetByKey retrieves a style group by its cluster key, nil when absent
func (r *StyleGroupRepository) GetByKey(ctx context.Context, key string) (*models.StyleGroup, error) {
	query := `SELECT` + styleGroupColumns + `FROM style_groups WHERE group_key = $1`

	g, err := scanStyleGroup(r.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get style group by key: %w", err)
	}
	return g, nil
}

// UpsertByKey inserts a group for a new cluster key or returns the
// existing one. The representative taxonomy is only written on first
// insert; aggregates are maintained separately.
func (r *StyleGroupRepository) UpsertByKey(ctx context.Context, g *models.StyleGroup) (*models.StyleGroup, error) {
	query := `
		INSERT INTO style_groups (
			id, group_key, folder_path, licensed, licensor_code, property_code,
			type_code, type_name, subtype_code, subtype_name, group_code, group_name,
			size_code, size_name, sequence_code, category, division
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (group_key) DO UPDATE SET updated_at = now()
		RETURNING` + styleGroupColumns

	row := r.db.QueryRow(ctx, query,
		g.ID, g.GroupKey, g.FolderPath, g.Licensed, g.LicensorCode, g.PropertyCode,
		g.Taxonomy.TypeCode, g.Taxonomy.TypeName,
		g.Taxonomy.SubtypeCode, g.Taxonomy.SubtypeName,
		g.Taxonomy.GroupCode, g.Taxonomy.GroupName,
		g.Taxonomy.SizeCode, g.Taxonomy.SizeName,
		g.Taxonomy.SequenceCode, g.Taxonomy.Category, g.Taxonomy.Division,
	)

	out, err := scanStyleGroup(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert style group: %w", err)
	}
	return out, nil
}

// UpdateAggregates persists the cached rollups for a group
func (r *StyleGroupRepository) UpdateAggregates(ctx context.Context, id uuid.UUID, primaryAssetID *uuid.UUID, memberCount int, bestStatus models.WorkflowStatus, latestFileAt *time.Time) error {
	query := `
		UPDATE style_groups SET
			primary_asset_id = $2, member_count = $3, best_status = $4,
			latest_file_at = $5, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, id, primaryAssetID, memberCount, bestStatus, latestFileAt)
	if err != nil {
		return fmt.Errorf("failed to update style group aggregates: %w", err)
	}
	return nil
}

// Delete removes a style group. Called when the last member leaves.
func (r *StyleGroupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM style_groups WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete style group: %w", err)
	}
	return nil
}
