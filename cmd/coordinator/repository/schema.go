package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/stylehub/coordinator/common/db"
)

//go:embed schema.sql
var schemaSQL string

// ApplySchema applies the embedded schema. Wired as the bootstrap
// db-init hook so the coordinator is a single self-contained binary.
func ApplySchema(database *db.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := database.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
