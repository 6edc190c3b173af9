package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

// gooseUpContext is a test seam.
var gooseUpContext = goose.UpContext

// Up applies every pending migration to a SQLite database.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
