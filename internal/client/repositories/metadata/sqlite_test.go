package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

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

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB NOT NULL);`)
	require.NoError(t, err)
	return db
}

func TestSetGetOverwrite(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyAccessToken, []byte("tok-1")))
	require.NoError(t, r.Set(ctx, KeyAccessToken, []byte("tok-2")))

	v, err := r.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("tok-2"), v)
}

func TestGet_Missing_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), KeyLastPullAt)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestListDeleteClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyAccessToken, []byte("t")))
	require.NoError(t, r.Set(ctx, KeyLastPullAt, []byte("1700000000")))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, m, 2)

	require.NoError(t, r.Delete(ctx, KeyAccessToken))
	require.NoError(t, r.Delete(ctx, KeyAccessToken), "delete is idempotent")

	m, err = r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{KeyLastPullAt: []byte("1700000000")}, m)

	require.NoError(t, r.Clear(ctx))
	m, err = r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get metadata[k]")
	require.ErrorContains(t, r.Set(ctx, "k", nil), "failed to set metadata[k]")
	require.ErrorContains(t, r.Delete(ctx, "k"), "failed to delete metadata[k]")
	require.ErrorContains(t, r.Clear(ctx), "failed to clear metadata")
	_, err = r.List(ctx)
	require.ErrorContains(t, err, "failed to list metadata")
}

func TestTimeAndStringHelpers(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	got, err := GetTime(ctx, r, KeyLastPullAt)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	ts := time.Date(2025, 7, 1, 9, 30, 0, 42, time.UTC)
	require.NoError(t, SetTime(ctx, r, KeyLastPullAt, ts))
	got, err = GetTime(ctx, r, KeyLastPullAt)
	require.NoError(t, err)
	assert.Equal(t, ts, got)

	require.NoError(t, r.Set(ctx, KeyLastPullAt, []byte("garbage")))
	got, err = GetTime(ctx, r, KeyLastPullAt)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	s, err := GetString(ctx, r, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "", s)
}
