// Package projects persists Project records in the local SQLite store.
package projects

import (
	"context"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
)

// Repository describes storage operations for projects.
type Repository interface {
	// Upsert inserts the project or overwrites every column of the existing row.
	Upsert(ctx context.Context, p *models.Project) error

	// GetByID returns common.ErrorNotFound when the project does not exist.
	GetByID(ctx context.Context, id string) (*models.Project, error)

	// List returns every project ordered by creation time.
	List(ctx context.Context) ([]*models.Project, error)

	// DeleteByID removes the row. Missing rows are not an error.
	DeleteByID(ctx context.Context, id string) error
}
