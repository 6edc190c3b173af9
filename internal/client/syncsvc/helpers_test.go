package syncsvc

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/identity"
	"github.com/dmitrijs2005/commissionsync/internal/client/localstore"
	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/dmitrijs2005/commissionsync/internal/remote/memstore"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	local    *localstore.Store
	remote   *memstore.Store
	clock    *fakeClock
	projects *ProjectService
	fixtures *FixtureService
	orgs     *OrgService
}

var epoch = time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)

func newEnv(t *testing.T, id identity.Provider) *testEnv {
	t.Helper()

	local, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "sync.db"), nopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	clock := newClock(epoch)
	rs := memstore.New(memstore.WithClock(clock.Now))
	opts := []Option{WithClock(clock.Now)}

	return &testEnv{
		local:    local,
		remote:   rs,
		clock:    clock,
		projects: NewProjectService(local, rs, id, nopLogger{}, opts...),
		fixtures: NewFixtureService(local, rs, id, nopLogger{}, opts...),
		orgs:     NewOrgService(local, rs, id, nopLogger{}, opts...),
	}
}

// seed commits records straight into the local store.
func (e *testEnv) seed(t *testing.T, projects []*models.Project, fixtures ...*models.Fixture) {
	t.Helper()
	require.NoError(t, e.local.Write(context.Background(), func(ctx context.Context, tx *localstore.Tx) error {
		for _, p := range projects {
			if err := tx.PutProject(p); err != nil {
				return err
			}
		}
		for _, f := range fixtures {
			if err := tx.PutFixture(ctx, f); err != nil {
				return err
			}
		}
		return tx.Save(ctx)
	}))
}

func (e *testEnv) put(t *testing.T, collection, id string, data map[string]any) {
	t.Helper()
	require.NoError(t, e.remote.SetFields(context.Background(), collection, id, data, false))
}

func ts(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9)).UTC()
}
