// Package fixtures persists Fixture records in the local SQLite store.
package fixtures

import (
	"context"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
)

// Repository describes storage operations for fixtures. Lists keep insertion
// order.
type Repository interface {
	Upsert(ctx context.Context, f *models.Fixture) error
	GetByID(ctx context.Context, id string) (*models.Fixture, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.Fixture, error)
	List(ctx context.Context) ([]*models.Fixture, error)
	DeleteByID(ctx context.Context, id string) error
	// DeleteByProject removes every fixture of a project and reports how many.
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
}
