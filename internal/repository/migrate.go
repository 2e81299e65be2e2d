package repository

import (
	"context"
	_ "embed"

	apperrors "leak-audit/internal/common/errors"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the audit tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return apperrors.NewQueryExecutionFailedError("migrate", err)
	}
	return nil
}
