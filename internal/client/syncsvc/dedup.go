package syncsvc

import (
	"context"

	"github.com/dmitrijs2005/commissionsync/internal/client/localstore"
	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/docid"
)

// DedupSerials collapses fixtures of one project that share a normalized,
// non-blank serial. The one with the greatest UpdatedAt survives; on a tie
// the first in store order does. Deletes are staged in tx and the number of
// removed fixtures is returned.
func DedupSerials(ctx context.Context, tx *localstore.Tx, projectID string) (int, error) {
	list, err := tx.Fixtures(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return dedupList(tx, list), nil
}

// dedupAll runs the same pass over the fixtures of every project, reading
// them in one go.
func dedupAll(ctx context.Context, tx *localstore.Tx) (int, error) {
	all, err := tx.AllFixtures(ctx)
	if err != nil {
		return 0, err
	}

	var order []string
	byProject := make(map[string][]*models.Fixture)
	for _, f := range all {
		if _, ok := byProject[f.ProjectID]; !ok {
			order = append(order, f.ProjectID)
		}
		byProject[f.ProjectID] = append(byProject[f.ProjectID], f)
	}

	total := 0
	for _, pid := range order {
		total += dedupList(tx, byProject[pid])
	}
	return total, nil
}

func dedupList(tx *localstore.Tx, list []*models.Fixture) int {
	keep := make(map[string]*models.Fixture)
	removed := 0
	for _, f := range list {
		serial := docid.NormalizeSerial(f.Serial)
		if serial == "" {
			continue
		}
		cur, ok := keep[serial]
		if !ok {
			keep[serial] = f
			continue
		}
		if f.UpdatedAt.After(cur.UpdatedAt) {
			tx.DeleteFixture(cur.ID)
			keep[serial] = f
		} else {
			tx.DeleteFixture(f.ID)
		}
		removed++
	}
	return removed
}
