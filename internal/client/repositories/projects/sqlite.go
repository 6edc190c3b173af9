package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/dbx"
)

const projectColumns = `id, title, contact_first_name, contact_last_name, site_address,
	control_system, created_at, updated_at, updated_by, archived_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			contact_first_name = excluded.contact_first_name,
			contact_last_name = excluded.contact_last_name,
			site_address = excluded.site_address,
			control_system = excluded.control_system,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by,
			archived_at = excluded.archived_at
	`, p.ID, p.Title, p.ContactFirstName, p.ContactLastName, p.SiteAddress,
		string(p.ControlSystem), dbx.UnixNano(p.CreatedAt), dbx.UnixNano(p.UpdatedAt),
		p.UpdatedBy, dbx.UnixNanoPtr(p.ArchivedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert project[%s]: %w", p.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*models.Project, error) {
	var (
		p                              models.Project
		controlSystem                  string
		createdAt, updatedAt, archived sql.NullInt64
	)
	err := s.Scan(&p.ID, &p.Title, &p.ContactFirstName, &p.ContactLastName, &p.SiteAddress,
		&controlSystem, &createdAt, &updatedAt, &p.UpdatedBy, &archived)
	if err != nil {
		return nil, err
	}
	p.ControlSystem = models.ParseControlSystem(controlSystem)
	p.CreatedAt = dbx.Time(createdAt)
	p.UpdatedAt = dbx.Time(updatedAt)
	p.ArchivedAt = dbx.TimePtr(archived)
	return &p, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project[%s]: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var result []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project[%s]: %w", id, err)
	}
	return nil
}
