package syncsvc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/commissionsync/internal/client/identity"
	"github.com/dmitrijs2005/commissionsync/internal/client/localstore"
	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/docid"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
)

type FixtureService struct {
	local    *localstore.Store
	remote   remote.Store
	identity identity.Provider
	logger   logging.Logger
	opts     options
	locks    *keyedMutex
	wg       sync.WaitGroup
}

func NewFixtureService(local *localstore.Store, rs remote.Store, id identity.Provider, logger logging.Logger, opts ...Option) *FixtureService {
	return &FixtureService{
		local:    local,
		remote:   rs,
		identity: id,
		logger:   logger.With("module", "fixturesync"),
		opts:     newOptions(opts),
		locks:    newKeyedMutex(),
	}
}

// PullAllForCurrentUser reconciles every fixture document owned by the
// current identity, collapses serial duplicates and commits once.
//
// Documents carrying a serial are processed before address-only ones so a
// physical fixture known under both ids resolves to its serial record first.
// Documents whose project is not local yet are skipped.
func (s *FixtureService) PullAllForCurrentUser(ctx context.Context) (PullStats, error) {
	var stats PullStats

	uid, err := currentUID(s.identity)
	if err != nil {
		return stats, err
	}

	docs, err := s.remote.Query(ctx, common.CollectionFixtures, remote.Where(common.OwnerField, uid))
	if err != nil {
		return stats, fmt.Errorf("query fixtures: %w", err)
	}
	stats.Fetched = len(docs)

	decoded := make([]*fixtureDoc, 0, len(docs))
	for _, doc := range docs {
		rf, ok := decodeFixture(doc)
		if !ok {
			s.logger.Debug(ctx, "skipping undecodable fixture document", "doc_id", doc.ID)
			stats.Skipped++
			continue
		}
		decoded = append(decoded, rf)
	}
	sort.SliceStable(decoded, func(i, j int) bool {
		si, sj := docid.NormalizeSerial(decoded[i].Serial) != "", docid.NormalizeSerial(decoded[j].Serial) != ""
		if si != sj {
			return si
		}
		return decoded[i].DocID < decoded[j].DocID
	})

	err = s.local.Atomic(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		for _, rf := range decoded {
			if _, err := tx.Project(ctx, rf.ProjectID); err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					s.logger.Debug(ctx, "skipping fixture without local project", "doc_id", rf.DocID, "project_id", rf.ProjectID)
					stats.Skipped++
					continue
				}
				return err
			}

			siblings, err := tx.Fixtures(ctx, rf.ProjectID)
			if err != nil {
				return err
			}

			local := matchFixture(siblings, rf)
			if local == nil {
				if err := tx.PutFixture(ctx, rf.newFixture(s.opts.now().UTC())); err != nil {
					return err
				}
				stats.Created++
				continue
			}

			if !ShouldApplyServer(local.UpdatedAt, rf.UpdatedAt, s.opts.tolerance) {
				continue
			}
			rf.applyTo(local, s.opts.now().UTC())
			if err := tx.PutFixture(ctx, local); err != nil {
				return err
			}
			stats.Updated++
		}

		removed, err := dedupAll(ctx, tx)
		if err != nil {
			return err
		}
		stats.Removed = removed
		return tx.Save(ctx)
	})
	if err != nil {
		return stats, err
	}

	if err := metadata.SetTime(ctx, s.local.Metadata(), metadata.KeyLastPullAt, s.opts.now()); err != nil {
		s.logger.Warn(ctx, "failed to record pull time", "error", err)
	}
	s.logger.Info(ctx, "fixtures pulled", "fetched", stats.Fetched, "created", stats.Created,
		"updated", stats.Updated, "skipped", stats.Skipped, "removed", stats.Removed)
	return stats, nil
}

// matchFixture finds the local fixture a document describes: same normalized
// serial, then the document it was last pushed under, then same short
// address as long as the serials cannot disagree.
func matchFixture(siblings []*models.Fixture, rf *fixtureDoc) *models.Fixture {
	serial := docid.NormalizeSerial(rf.Serial)
	if serial != "" {
		for _, f := range siblings {
			if docid.NormalizeSerial(f.Serial) == serial {
				return f
			}
		}
	}
	for _, f := range siblings {
		if f.RemoteDocID != "" && f.RemoteDocID == rf.DocID {
			return f
		}
	}
	for _, f := range siblings {
		if f.ShortAddress != rf.ShortAddress {
			continue
		}
		if serial == "" || docid.NormalizeSerial(f.Serial) == "" {
			return f
		}
	}
	return nil
}

// Push stamps f, commits it locally and merge-writes it under its current
// document id. A stale address-form or previously used document is then
// deleted best-effort. Pushes of the same fixture run one at a time in call
// order.
func (s *FixtureService) Push(ctx context.Context, f *models.Fixture) error {
	unlock := s.locks.Lock(f.ID)
	defer unlock()
	return s.push(ctx, f)
}

func (s *FixtureService) push(ctx context.Context, f *models.Fixture) error {
	uid, err := currentUID(s.identity)
	if err != nil {
		return err
	}

	previous := f.RemoteDocID
	f.UpdatedAt = s.opts.now().UTC()
	f.UpdatedBy = uid
	if err := s.local.Write(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		if err := tx.PutFixture(ctx, f); err != nil {
			return err
		}
		return tx.Save(ctx)
	}); err != nil {
		return err
	}

	docID := docid.FixtureDocID(f.ProjectID, f.Serial, f.ShortAddress)
	if err := s.remote.SetFields(ctx, common.CollectionFixtures, docID, encodeFixture(f, uid, docID), true); err != nil {
		return fmt.Errorf("push fixture %s: %w", docID, err)
	}
	s.logger.Debug(ctx, "fixture pushed", "doc_id", docID)

	for _, old := range []string{docid.AddressDocID(f.ProjectID, f.ShortAddress), previous} {
		if old != "" && old != docID {
			deleteRemote(ctx, s.remote, s.logger, common.CollectionFixtures, old)
		}
	}
	f.RemoteDocID = docID

	return s.local.Write(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		cur, err := tx.Fixture(ctx, f.ID)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur.RemoteDocID != docID {
			cur.RemoteDocID = docID
			if err := tx.PutFixture(ctx, cur); err != nil {
				return err
			}
		}
		if _, err := DedupSerials(ctx, tx, cur.ProjectID); err != nil {
			return err
		}
		return tx.Save(ctx)
	})
}

// PushInBackground pushes a copy of f on its own goroutine and logs failures.
// Background pushes of one fixture land in call order.
func (s *FixtureService) PushInBackground(f *models.Fixture) {
	f = f.Clone()
	wait := s.locks.Reserve(f.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		unlock := wait()
		defer unlock()

		ctx := context.Background()
		if err := s.push(ctx, f); err != nil {
			s.logger.Warn(ctx, "background fixture push failed", "fixture_id", f.ID, "error", err)
		}
	}()
}

// Wait blocks until background pushes have finished.
func (s *FixtureService) Wait() {
	s.wg.Wait()
}

// Delete removes the fixture locally, then deletes every document id it may
// have been stored under. Remote failures are logged, not returned. Without
// an identity only the local delete happens and common.ErrAuthRequired is
// returned.
func (s *FixtureService) Delete(ctx context.Context, f *models.Fixture) error {
	unlock := s.locks.Lock(f.ID)
	defer unlock()

	var variants []string
	err := s.local.Write(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		cur := f
		if stored, err := tx.Fixture(ctx, f.ID); err == nil {
			cur = stored
		}
		variants = docid.FixtureDocIDVariants(cur.ProjectID, cur.Serial, cur.ShortAddress, cur.RemoteDocID)
		if cur.RemoteDocID != f.RemoteDocID && f.RemoteDocID != "" {
			variants = append(variants, f.RemoteDocID)
		}
		tx.DeleteFixture(f.ID)
		return tx.Save(ctx)
	})
	if err != nil {
		return err
	}

	if _, err := currentUID(s.identity); err != nil {
		return err
	}
	for _, id := range variants {
		deleteRemote(ctx, s.remote, s.logger, common.CollectionFixtures, id)
	}
	return nil
}
