package data

import (
	"context"
	"database/sql"

	"github.com/target/specops-api/internal/migrate"
)

// RunMigrations applies the delivery-log schema by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
