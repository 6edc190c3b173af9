package syncsvc

import (
	"context"
	"errors"
	"fmt"
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

type ProjectService struct {
	local    *localstore.Store
	remote   remote.Store
	identity identity.Provider
	logger   logging.Logger
	opts     options
	locks    *keyedMutex
	wg       sync.WaitGroup

	purgedMu sync.Mutex
	purged   map[string]struct{}
}

func NewProjectService(local *localstore.Store, rs remote.Store, id identity.Provider, logger logging.Logger, opts ...Option) *ProjectService {
	return &ProjectService{
		local:    local,
		remote:   rs,
		identity: id,
		logger:   logger.With("module", "projectsync"),
		opts:     newOptions(opts),
		locks:    newKeyedMutex(),
		purged:   make(map[string]struct{}),
	}
}

// PullAllForCurrentUser reconciles every project document owned by the
// current identity into the local store and commits once.
func (s *ProjectService) PullAllForCurrentUser(ctx context.Context) (PullStats, error) {
	var stats PullStats

	uid, err := currentUID(s.identity)
	if err != nil {
		return stats, err
	}

	docs, err := s.remote.Query(ctx, common.CollectionProjects, remote.Where(common.OwnerField, uid))
	if err != nil {
		return stats, fmt.Errorf("query projects: %w", err)
	}
	stats.Fetched = len(docs)

	err = s.local.Atomic(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		for _, doc := range docs {
			rp, ok := decodeProject(doc)
			if !ok {
				s.logger.Debug(ctx, "skipping undecodable project document", "doc_id", doc.ID)
				stats.Skipped++
				continue
			}

			local, err := tx.Project(ctx, rp.ID)
			switch {
			case errors.Is(err, common.ErrorNotFound):
				if err := tx.PutProject(rp.newProject(s.opts.now().UTC())); err != nil {
					return err
				}
				stats.Created++
				continue
			case err != nil:
				return err
			}

			if !ShouldApplyServer(local.UpdatedAt, rp.UpdatedAt, s.opts.tolerance) {
				continue
			}
			rp.applyTo(local)
			if err := tx.PutProject(local); err != nil {
				return err
			}
			stats.Updated++
		}
		return tx.Save(ctx)
	})
	if err != nil {
		return stats, err
	}

	if err := metadata.SetTime(ctx, s.local.Metadata(), metadata.KeyLastPullAt, s.opts.now()); err != nil {
		s.logger.Warn(ctx, "failed to record pull time", "error", err)
	}
	s.logger.Info(ctx, "projects pulled", "fetched", stats.Fetched, "created", stats.Created, "updated", stats.Updated, "skipped", stats.Skipped)
	return stats, nil
}

// commit stamps p and saves it locally.
func (s *ProjectService) commit(ctx context.Context, p *models.Project, uid string) error {
	p.UpdatedAt = s.opts.now().UTC()
	p.UpdatedBy = uid
	return s.local.Write(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		if err := tx.PutProject(p); err != nil {
			return err
		}
		return tx.Save(ctx)
	})
}

func (s *ProjectService) send(ctx context.Context, p *models.Project, uid string) error {
	id := docid.ProjectDocID(p.ID)
	if err := s.remote.SetFields(ctx, common.CollectionProjects, id, encodeProject(p, uid), true); err != nil {
		return fmt.Errorf("push project %s: %w", id, err)
	}
	s.logger.Debug(ctx, "project pushed", "doc_id", id)
	return nil
}

// Push stamps p, commits it locally and merge-writes its document. Pushes of
// the same project run one at a time in call order. A project purged through
// this service is never written again; pushing it fails with
// common.ErrNoProject.
func (s *ProjectService) Push(ctx context.Context, p *models.Project) error {
	unlock := s.locks.Lock(p.ID)
	defer unlock()
	return s.push(ctx, p)
}

func (s *ProjectService) push(ctx context.Context, p *models.Project) error {
	uid, err := currentUID(s.identity)
	if err != nil {
		return err
	}
	if s.isPurged(p.ID) {
		return fmt.Errorf("project %s was purged: %w", p.ID, common.ErrNoProject)
	}

	if err := s.commit(ctx, p, uid); err != nil {
		return err
	}
	return s.send(ctx, p, uid)
}

// PushInBackground pushes a copy of p on its own goroutine and logs failures.
// The push takes its place in the project's queue before returning, so
// background pushes land in call order.
func (s *ProjectService) PushInBackground(p *models.Project) {
	p = p.Clone()
	wait := s.locks.Reserve(p.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		unlock := wait()
		defer unlock()

		ctx := context.Background()
		if err := s.push(ctx, p); err != nil {
			s.logger.Warn(ctx, "background project push failed", "project_id", p.ID, "error", err)
		}
	}()
}

// Wait blocks until background pushes have finished.
func (s *ProjectService) Wait() {
	s.wg.Wait()
}

// Archive soft-deletes the project. The local change is committed even when
// nobody is signed in, in which case common.ErrAuthRequired is returned.
func (s *ProjectService) Archive(ctx context.Context, id string) (*models.Project, error) {
	return s.setArchived(ctx, id, true)
}

// Restore clears the archive mark, with the same rules as Archive.
func (s *ProjectService) Restore(ctx context.Context, id string) (*models.Project, error) {
	return s.setArchived(ctx, id, false)
}

func (s *ProjectService) setArchived(ctx context.Context, id string, archived bool) (*models.Project, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.local.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	if archived {
		now := s.opts.now().UTC()
		p.ArchivedAt = &now
	} else {
		p.ArchivedAt = nil
	}

	uid, authErr := currentUID(s.identity)
	if err := s.commit(ctx, p, uid); err != nil {
		return nil, err
	}
	if authErr != nil {
		return p, authErr
	}
	return p, s.send(ctx, p, uid)
}

// Purge hard-deletes the project and its fixtures locally, then removes the
// project document and every fixture document of the project remotely.
// Remote failures are logged, not returned.
func (s *ProjectService) Purge(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	var docIDs []string
	err := s.local.Write(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		children, err := tx.Fixtures(ctx, id)
		if err != nil {
			return err
		}
		for _, f := range children {
			docIDs = append(docIDs, docid.FixtureDocIDVariants(f.ProjectID, f.Serial, f.ShortAddress, f.RemoteDocID)...)
		}
		if err := tx.DeleteProject(ctx, id); err != nil {
			return err
		}
		return tx.Save(ctx)
	})
	if err != nil {
		return err
	}
	s.markPurged(id)

	uid, err := currentUID(s.identity)
	if err != nil {
		return err
	}

	pid := docid.ProjectDocID(id)
	docs, err := s.remote.Query(ctx, common.CollectionFixtures, remote.Where(common.OwnerField, uid))
	if err != nil {
		s.logger.Warn(ctx, "purge: listing remote fixtures failed", "project_id", pid, "error", err)
	}
	for _, d := range docs {
		if docid.ProjectDocID(str(d.Data, "projectId")) == pid {
			docIDs = append(docIDs, d.ID)
		}
	}

	seen := make(map[string]struct{}, len(docIDs))
	for _, docID := range docIDs {
		if _, ok := seen[docID]; ok {
			continue
		}
		seen[docID] = struct{}{}
		s.deleteDoc(ctx, common.CollectionFixtures, docID)
	}
	s.deleteDoc(ctx, common.CollectionProjects, pid)
	return nil
}

func (s *ProjectService) markPurged(id string) {
	s.purgedMu.Lock()
	defer s.purgedMu.Unlock()
	s.purged[id] = struct{}{}
}

func (s *ProjectService) isPurged(id string) bool {
	s.purgedMu.Lock()
	defer s.purgedMu.Unlock()
	_, ok := s.purged[id]
	return ok
}

func (s *ProjectService) deleteDoc(ctx context.Context, collection, docID string) {
	deleteRemote(ctx, s.remote, s.logger, collection, docID)
}

// deleteRemote removes a document best-effort. Not-found and
// permission-denied count as done.
func deleteRemote(ctx context.Context, rs remote.Store, logger logging.Logger, collection, docID string) {
	err := rs.Delete(ctx, collection, docID)
	switch {
	case err == nil, remote.IsIgnorableDeleteError(err):
	default:
		logger.Warn(ctx, "remote delete failed", "collection", collection, "doc_id", docID, "error", err)
	}
}
