package fixtures

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/migrations"
	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	for _, id := range []string{"p1", "p2"} {
		_, err = db.Exec(`INSERT INTO projects (id, title) VALUES (?, ?)`, id, id)
		require.NoError(t, err)
	}
	return db
}

func TestUpsertGetRoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	commissioned := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	f := &models.Fixture{
		ID:             "f1",
		ProjectID:      "p1",
		Label:          "Pendant",
		ShortAddress:   12,
		GroupsMask:     0xFFFF,
		Room:           "Kitchen",
		Serial:         "SN001",
		DTType:         models.DTTypeDT8,
		Notes:          "dimmable",
		CommissionedAt: &commissioned,
		UpdatedAt:      commissioned.Add(time.Second),
		UpdatedBy:      "u1",
		RemoteDocID:    "fixture-p1-ser-sn001",
	}
	require.NoError(t, r.Upsert(ctx, f))

	got, err := r.GetByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, f, got)

	_, err = r.GetByID(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListKeepsInsertionOrder(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for _, id := range []string{"z", "a", "m"} {
		require.NoError(t, r.Upsert(ctx, &models.Fixture{ID: id, ProjectID: "p1", Label: id, DTType: models.DTTypeDT6}))
	}
	require.NoError(t, r.Upsert(ctx, &models.Fixture{ID: "other", ProjectID: "p2", Label: "o", DTType: models.DTTypeDT6}))
	// update keeps position
	require.NoError(t, r.Upsert(ctx, &models.Fixture{ID: "z", ProjectID: "p1", Label: "z2", DTType: models.DTTypeDT6}))

	list, err := r.ListByProject(ctx, "p1")
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, f := range list {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"z", "a", "m"}, ids)
	assert.Equal(t, "z2", list[0].Label)

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestDeleteByIDAndProject(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for _, id := range []string{"f1", "f2", "f3"} {
		require.NoError(t, r.Upsert(ctx, &models.Fixture{ID: id, ProjectID: "p1", Label: id}))
	}
	require.NoError(t, r.DeleteByID(ctx, "f1"))

	n, err := r.DeleteByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := r.ListByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())
	ctx := context.Background()

	require.ErrorContains(t, r.Upsert(ctx, &models.Fixture{ID: "f"}), "failed to upsert fixture[f]")
	_, err := r.GetByID(ctx, "f")
	require.ErrorContains(t, err, "failed to get fixture[f]")
	_, err = r.List(ctx)
	require.ErrorContains(t, err, "failed to list fixtures")
	require.ErrorContains(t, r.DeleteByID(ctx, "f"), "failed to delete fixture[f]")
	_, err = r.DeleteByProject(ctx, "p1")
	require.ErrorContains(t, err, "failed to delete fixtures of project[p1]")
}
