// Package syncsvc moves projects, fixtures and the organization profile
// between the local store and the remote document store.
//
// Pulls reconcile with last-writer-wins on updatedAt: a remote document
// replaces the local record only when it is newer by more than the drift
// tolerance. Pushes stamp and commit locally first, then merge-write the
// remote document; callers usually run them in the background and only log
// failures. Every remote operation requires a signed-in identity and fails
// with common.ErrAuthRequired otherwise.
package syncsvc

import (
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/identity"
	"github.com/dmitrijs2005/commissionsync/internal/common"
)

// DefaultDriftTolerance is how much newer a remote timestamp must be before
// it wins over a local one.
const DefaultDriftTolerance = 250 * time.Millisecond

type options struct {
	now       func() time.Time
	tolerance time.Duration
}

type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithDriftTolerance(d time.Duration) Option {
	return func(o *options) { o.tolerance = d }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, tolerance: DefaultDriftTolerance}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// PullStats summarizes one pull.
type PullStats struct {
	Fetched int
	Created int
	Updated int
	Skipped int
	Removed int
}

// ShouldApplyServer decides whether a remote updatedAt wins over the local
// one. A remote document without a timestamp never wins; a local record
// without one always loses. Equal timestamps keep the local record.
func ShouldApplyServer(local time.Time, remote *time.Time, tolerance time.Duration) bool {
	if remote == nil || remote.IsZero() {
		return false
	}
	if local.IsZero() {
		return true
	}
	return remote.After(local.Add(tolerance))
}

func currentUID(p identity.Provider) (string, error) {
	uid, ok := p.CurrentUID()
	if !ok || uid == "" {
		return "", common.ErrAuthRequired
	}
	return uid, nil
}
