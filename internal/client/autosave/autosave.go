// Package autosave coalesces rapid local edits into one local-store commit.
package autosave

import (
	"context"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/debounce"
	"github.com/dmitrijs2005/commissionsync/internal/client/identity"
	"github.com/dmitrijs2005/commissionsync/internal/client/localstore"
	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
)

const DefaultInterval = 350 * time.Millisecond

type Option func(*Coordinator)

func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator stamps every touched record and schedules one save after the
// edits go quiet.
type Coordinator struct {
	store    *localstore.Store
	identity identity.Provider
	logger   logging.Logger
	now      func() time.Time
	interval time.Duration
	saver    *debounce.Debouncer
}

func New(store *localstore.Store, id identity.Provider, logger logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		identity: id,
		logger:   logger.With("module", "autosave"),
		now:      time.Now,
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(c)
	}
	c.saver = debounce.New(c.interval, func() { _ = c.save(context.Background()) })
	return c
}

func (c *Coordinator) stamp() (time.Time, string) {
	uid, _ := c.identity.CurrentUID()
	return c.now().UTC(), uid
}

// TouchProject stamps p in place, stages it and schedules a save. The staged
// state is readable from the store immediately.
func (c *Coordinator) TouchProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt, p.UpdatedBy = c.stamp()
	if err := c.store.Write(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		return tx.PutProject(p)
	}); err != nil {
		return err
	}
	c.saver.Trigger()
	return nil
}

// TouchFixture is TouchProject for fixtures. It fails with common.ErrNoProject
// when the parent project is unknown.
func (c *Coordinator) TouchFixture(ctx context.Context, f *models.Fixture) error {
	f.UpdatedAt, f.UpdatedBy = c.stamp()
	if err := c.store.Write(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		return tx.PutFixture(ctx, f)
	}); err != nil {
		return err
	}
	c.saver.Trigger()
	return nil
}

// Flush cancels the pending timer and saves now.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.saver.Stop()
	return c.save(ctx)
}

// Stop cancels a scheduled save. Staged edits stay pending in the store.
func (c *Coordinator) Stop() {
	c.saver.Stop()
}

func (c *Coordinator) save(ctx context.Context) error {
	if err := c.store.Save(ctx); err != nil {
		c.logger.Error(ctx, "autosave failed", "error", err)
		return err
	}
	return nil
}
