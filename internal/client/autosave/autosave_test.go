package autosave

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/identity"
	"github.com/dmitrijs2005/commissionsync/internal/client/localstore"
	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

func newStore(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "a.db"), nopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTouchProject_OfflineReadBack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fixed := time.Date(2025, 9, 5, 10, 0, 0, 0, time.UTC)
	c := New(store, identity.Static(""), nopLogger{}, WithInterval(time.Hour), WithClock(func() time.Time { return fixed }))
	defer c.Stop()

	p := models.NewProject("Smith Residence", fixed)
	require.NoError(t, c.TouchProject(ctx, p))

	got, err := store.Project(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Smith Residence", got.Title)
	assert.Equal(t, fixed, got.UpdatedAt)
	assert.Empty(t, got.UpdatedBy)
	assert.Equal(t, fixed, p.UpdatedAt, "caller's copy is stamped too")
}

func TestTouch_CoalescesIntoOneSave(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := New(store, identity.Static("u1"), nopLogger{}, WithInterval(40*time.Millisecond))
	defer c.Stop()

	p := models.NewProject("", time.Now())
	for _, title := range []string{"S", "Sm", "Smi", "Smith"} {
		p.Title = title
		require.NoError(t, c.TouchProject(ctx, p))
	}
	f := models.NewFixture(p.ID, "Cove", 1)
	require.NoError(t, c.TouchFixture(ctx, f))

	require.Eventually(t, func() bool { return store.SaveCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, store.SaveCount())
	assert.False(t, store.HasChanges())

	got, err := store.Project(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Smith", got.Title)
	assert.Equal(t, "u1", got.UpdatedBy)

	fx, err := store.Fixture(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", fx.UpdatedBy)
	assert.False(t, fx.UpdatedAt.IsZero())
}

func TestFlush_SavesImmediately(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := New(store, identity.Static(""), nopLogger{}, WithInterval(time.Hour))

	require.NoError(t, c.TouchProject(ctx, models.NewProject("A", time.Now())))
	require.True(t, store.HasChanges())

	require.NoError(t, c.Flush(ctx))
	assert.False(t, store.HasChanges())
	assert.Equal(t, 1, store.SaveCount())
}

func TestStop_LeavesChangesPending(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := New(store, identity.Static(""), nopLogger{}, WithInterval(20*time.Millisecond))

	require.NoError(t, c.TouchProject(ctx, models.NewProject("A", time.Now())))
	c.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, store.SaveCount())
	assert.True(t, store.HasChanges())
}

func TestTouchFixture_RequiresProject(t *testing.T) {
	store := newStore(t)
	c := New(store, identity.Static(""), nopLogger{}, WithInterval(time.Hour))
	defer c.Stop()

	err := c.TouchFixture(context.Background(), models.NewFixture("missing", "x", 0))
	require.ErrorIs(t, err, common.ErrNoProject)
}
