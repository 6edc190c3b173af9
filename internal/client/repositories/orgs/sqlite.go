package orgs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, o *models.Organization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, owner_uid, name, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_uid = excluded.owner_uid,
			name = excluded.name,
			address = excluded.address,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, o.ID, o.OwnerUID, o.Name, o.Address, dbx.UnixNano(o.CreatedAt), dbx.UnixNano(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert organization[%s]: %w", o.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Organization, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_uid, name, address, created_at, updated_at
		FROM organizations ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var result []*models.Organization
	for rows.Next() {
		var (
			o                    models.Organization
			createdAt, updatedAt sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.OwnerUID, &o.Name, &o.Address, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization row: %w", err)
		}
		o.CreatedAt = dbx.Time(createdAt)
		o.UpdatedAt = dbx.Time(updatedAt)
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organization rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete organization[%s]: %w", id, err)
	}
	return nil
}
