// Package orgs persists the local Organization profile.
package orgs

import (
	"context"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
)

type Repository interface {
	Upsert(ctx context.Context, o *models.Organization) error
	List(ctx context.Context) ([]*models.Organization, error)
	DeleteByID(ctx context.Context, id string) error
}
