// Package livesync keeps the local store current while the client is online.
//
// A Center holds one subscription per collection for the signed-in identity.
// Change signals carry no payload, so they only restart a debouncer; once the
// signals settle the Center pulls projects and then fixtures.
package livesync

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/debounce"
	"github.com/dmitrijs2005/commissionsync/internal/client/syncsvc"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
)

const DefaultPullDebounce = 400 * time.Millisecond

// Puller is one entity sync service as seen by the Center.
type Puller interface {
	PullAllForCurrentUser(ctx context.Context) (syncsvc.PullStats, error)
}

type Option func(*Center)

func WithDebounce(d time.Duration) Option {
	return func(c *Center) { c.interval = d }
}

// WithPullTimeout bounds one project-then-fixture pull.
func WithPullTimeout(d time.Duration) Option {
	return func(c *Center) { c.pullTimeout = d }
}

type Center struct {
	remote      remote.Store
	projects    Puller
	fixtures    Puller
	logger      logging.Logger
	interval    time.Duration
	pullTimeout time.Duration

	mu      sync.Mutex
	uid     string
	subs    []remote.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	puller  *debounce.Debouncer
	pullMu  sync.Mutex
	pulls   int
	lastErr error
}

func New(rs remote.Store, projects, fixtures Puller, logger logging.Logger, opts ...Option) *Center {
	c := &Center{
		remote:      rs,
		projects:    projects,
		fixtures:    fixtures,
		logger:      logger.With("module", "livesync"),
		interval:    DefaultPullDebounce,
		pullTimeout: time.Minute,
	}
	for _, o := range opts {
		o(c)
	}
	c.puller = debounce.New(c.interval, c.pull)
	return c
}

// Start subscribes for uid. It is a no-op while already running for the same
// uid; otherwise previous subscriptions are stopped first.
func (c *Center) Start(ctx context.Context, uid string) error {
	if uid == "" {
		return common.ErrAuthRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uid == uid && c.cancel != nil {
		return nil
	}
	c.stopLocked()

	filter := remote.Where(common.OwnerField, uid)
	var subs []remote.Subscription
	for _, coll := range []string{common.CollectionProjects, common.CollectionFixtures} {
		sub, err := c.remote.Subscribe(ctx, coll, filter)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return err
		}
		subs = append(subs, sub)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	c.uid, c.subs, c.cancel = uid, subs, cancel
	for _, sub := range subs {
		c.wg.Add(1)
		go c.watch(watchCtx, sub)
	}

	c.logger.Info(ctx, "live sync started", "uid", uid)
	return nil
}

// watch turns change signals into debounced pulls. A closed channel means
// the transport dropped the subscription; the Center then reports not
// running so the next Start resubscribes.
func (c *Center) watch(ctx context.Context, sub remote.Subscription) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Changes():
			if !ok {
				c.dropped(ctx)
				return
			}
			c.puller.Trigger()
		}
	}
}

func (c *Center) dropped(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.logger.Warn(ctx, "subscription closed by remote")

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() == nil && c.cancel != nil {
		c.cancel()
		c.cancel = nil
		for _, s := range c.subs {
			_ = s.Close()
		}
		c.subs = nil
		c.uid = ""
		c.puller.Stop()
	}
}

func (c *Center) pull() {
	c.pullMu.Lock()
	defer c.pullMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.pullTimeout)
	defer cancel()

	_, err := c.projects.PullAllForCurrentUser(ctx)
	if err == nil {
		_, err = c.fixtures.PullAllForCurrentUser(ctx)
	}

	c.mu.Lock()
	c.pulls++
	c.lastErr = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn(ctx, "live pull failed", "error", err)
		return
	}
	c.logger.Debug(ctx, "live pull applied")
}

// Stop closes subscriptions, cancels a pending pull and waits for the
// watchers. It is safe to call at any time, any number of times.
func (c *Center) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()

	c.wg.Wait()
	// a watcher may have triggered between stopLocked and its exit
	c.puller.Stop()
}

func (c *Center) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.logger.Info(context.Background(), "live sync stopped", "uid", c.uid)
	}
	for _, s := range c.subs {
		_ = s.Close()
	}
	c.subs = nil
	c.uid = ""
	c.puller.Stop()
}

// Running reports whether subscriptions are open and for whom.
func (c *Center) Running() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uid, c.cancel != nil
}

// Stats returns the number of completed pulls and the last pull error.
func (c *Center) Stats() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pulls, c.lastErr
}
