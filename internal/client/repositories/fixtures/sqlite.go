package fixtures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/dbx"
)

const fixtureColumns = `id, project_id, label, short_address, groups_mask, room, serial,
	dt_type, notes, commissioned_at, updated_at, updated_by, remote_doc_id`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, f *models.Fixture) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fixtures (`+fixtureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			label = excluded.label,
			short_address = excluded.short_address,
			groups_mask = excluded.groups_mask,
			room = excluded.room,
			serial = excluded.serial,
			dt_type = excluded.dt_type,
			notes = excluded.notes,
			commissioned_at = excluded.commissioned_at,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by,
			remote_doc_id = excluded.remote_doc_id
	`, f.ID, f.ProjectID, f.Label, f.ShortAddress, int64(f.GroupsMask), f.Room, f.Serial,
		string(f.DTType), f.Notes, dbx.UnixNanoPtr(f.CommissionedAt), dbx.UnixNano(f.UpdatedAt),
		f.UpdatedBy, f.RemoteDocID)
	if err != nil {
		return fmt.Errorf("failed to upsert fixture[%s]: %w", f.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFixture(s scanner) (*models.Fixture, error) {
	var (
		f                       models.Fixture
		groups                  int64
		dtType                  string
		commissioned, updatedAt sql.NullInt64
	)
	err := s.Scan(&f.ID, &f.ProjectID, &f.Label, &f.ShortAddress, &groups, &f.Room, &f.Serial,
		&dtType, &f.Notes, &commissioned, &updatedAt, &f.UpdatedBy, &f.RemoteDocID)
	if err != nil {
		return nil, err
	}
	f.GroupsMask = uint16(groups)
	f.DTType = models.ParseDTType(dtType)
	f.CommissionedAt = dbx.TimePtr(commissioned)
	f.UpdatedAt = dbx.Time(updatedAt)
	return &f, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Fixture, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fixtureColumns+` FROM fixtures WHERE id = ?`, id)
	f, err := scanFixture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fixture[%s]: %w", id, err)
	}
	return f, nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]*models.Fixture, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	defer rows.Close()

	var result []*models.Fixture
	for rows.Next() {
		f, err := scanFixture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixture row: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fixture rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Fixture, error) {
	return r.query(ctx, `SELECT `+fixtureColumns+` FROM fixtures WHERE project_id = ? ORDER BY rowid`, projectID)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Fixture, error) {
	return r.query(ctx, `SELECT `+fixtureColumns+` FROM fixtures ORDER BY rowid`)
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM fixtures WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete fixture[%s]: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fixtures WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete fixtures of project[%s]: %w", projectID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
