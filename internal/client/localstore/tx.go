package localstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/client/repositories/fixtures"
	"github.com/dmitrijs2005/commissionsync/internal/client/repositories/orgs"
	"github.com/dmitrijs2005/commissionsync/internal/client/repositories/projects"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/dbx"
)

// Tx is the view handed to Write callbacks. Returned records are copies;
// changes take effect through the Put and Delete methods.
type Tx struct {
	s *Store
}

func (tx *Tx) pending() *changeset { return tx.s.pending }

func (tx *Tx) projectRepo() projects.Repository { return projects.NewSQLiteRepository(tx.s.db) }
func (tx *Tx) fixtureRepo() fixtures.Repository { return fixtures.NewSQLiteRepository(tx.s.db) }
func (tx *Tx) orgRepo() orgs.Repository         { return orgs.NewSQLiteRepository(tx.s.db) }

// HasChanges reports whether anything is staged.
func (tx *Tx) HasChanges() bool { return !tx.pending().empty() }

// Project returns common.ErrorNotFound for missing or staged-deleted projects.
func (tx *Tx) Project(ctx context.Context, id string) (*models.Project, error) {
	c := tx.pending()
	if p, ok := c.projects[id]; ok {
		return p.Clone(), nil
	}
	if c.deletedProjects.has(id) {
		return nil, common.ErrorNotFound
	}
	return tx.projectRepo().GetByID(ctx, id)
}

// Projects returns all projects ordered by creation time, then id.
func (tx *Tx) Projects(ctx context.Context) ([]*models.Project, error) {
	persisted, err := tx.projectRepo().List(ctx)
	if err != nil {
		return nil, err
	}
	c := tx.pending()

	out := make([]*models.Project, 0, len(persisted)+len(c.projects))
	seen := make(set, len(persisted))
	for _, p := range persisted {
		if c.deletedProjects.has(p.ID) {
			continue
		}
		if staged, ok := c.projects[p.ID]; ok {
			p = staged.Clone()
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	for id, p := range c.projects {
		if !seen.has(id) {
			out = append(out, p.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindProjects is a predicate fetch over Projects.
func (tx *Tx) FindProjects(ctx context.Context, match func(*models.Project) bool) ([]*models.Project, error) {
	all, err := tx.Projects(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// PutProject stages an insert or a full update.
func (tx *Tx) PutProject(p *models.Project) error {
	if p == nil || p.ID == "" {
		return errors.New("project id is required")
	}
	tx.pending().putProject(p)
	return nil
}

// DeleteProject stages the deletion of a project and of every fixture that
// belongs to it.
func (tx *Tx) DeleteProject(ctx context.Context, id string) error {
	children, err := tx.Fixtures(ctx, id)
	if err != nil {
		return fmt.Errorf("list fixtures of project %s: %w", id, err)
	}
	for _, f := range children {
		tx.pending().deleteFixture(f.ID)
	}
	tx.pending().deleteProject(id)
	return nil
}

func (tx *Tx) Fixture(ctx context.Context, id string) (*models.Fixture, error) {
	c := tx.pending()
	if f, ok := c.fixtures[id]; ok {
		return f.Clone(), nil
	}
	if c.deletedFixtures.has(id) {
		return nil, common.ErrorNotFound
	}
	return tx.fixtureRepo().GetByID(ctx, id)
}

// Fixtures lists the fixtures of one project: persisted rows in insertion
// order, then staged new ones in staging order.
func (tx *Tx) Fixtures(ctx context.Context, projectID string) ([]*models.Fixture, error) {
	persisted, err := tx.fixtureRepo().ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return tx.overlayFixtures(persisted, func(f *models.Fixture) bool { return f.ProjectID == projectID }), nil
}

// AllFixtures lists fixtures of every project.
func (tx *Tx) AllFixtures(ctx context.Context) ([]*models.Fixture, error) {
	persisted, err := tx.fixtureRepo().List(ctx)
	if err != nil {
		return nil, err
	}
	return tx.overlayFixtures(persisted, func(*models.Fixture) bool { return true }), nil
}

func (tx *Tx) overlayFixtures(persisted []*models.Fixture, in func(*models.Fixture) bool) []*models.Fixture {
	c := tx.pending()
	out := make([]*models.Fixture, 0, len(persisted))
	seen := make(set, len(persisted))
	for _, f := range persisted {
		if c.deletedFixtures.has(f.ID) {
			continue
		}
		if staged, ok := c.fixtures[f.ID]; ok {
			f = staged.Clone()
		}
		if !in(f) {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	for _, f := range c.stagedFixtures() {
		if !seen.has(f.ID) && in(f) {
			out = append(out, f.Clone())
		}
	}
	return out
}

// FindFixtures is a predicate fetch over the fixtures of a project.
func (tx *Tx) FindFixtures(ctx context.Context, projectID string, match func(*models.Fixture) bool) ([]*models.Fixture, error) {
	all, err := tx.Fixtures(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, f := range all {
		if match(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// PutFixture stages an insert or update. The parent project must exist.
func (tx *Tx) PutFixture(ctx context.Context, f *models.Fixture) error {
	if f == nil || f.ID == "" {
		return errors.New("fixture id is required")
	}
	if _, err := tx.Project(ctx, f.ProjectID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("fixture %s: %w", f.ID, common.ErrNoProject)
		}
		return err
	}
	tx.pending().putFixture(f)
	return nil
}

func (tx *Tx) DeleteFixture(id string) {
	tx.pending().deleteFixture(id)
}

func (tx *Tx) Organizations(ctx context.Context) ([]*models.Organization, error) {
	persisted, err := tx.orgRepo().List(ctx)
	if err != nil {
		return nil, err
	}
	c := tx.pending()
	out := make([]*models.Organization, 0, len(persisted))
	seen := make(set, len(persisted))
	for _, o := range persisted {
		if c.deletedOrgs.has(o.ID) {
			continue
		}
		if staged, ok := c.orgs[o.ID]; ok {
			cp := *staged
			o = &cp
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	for _, o := range c.stagedOrgs() {
		if !seen.has(o.ID) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (tx *Tx) PutOrganization(o *models.Organization) error {
	if o == nil || o.ID == "" {
		return errors.New("organization id is required")
	}
	tx.pending().putOrg(o)
	return nil
}

func (tx *Tx) DeleteOrganization(id string) {
	tx.pending().deleteOrg(id)
}

// Save commits every staged change in one transaction. On failure nothing is
// written and the changes stay staged.
func (tx *Tx) Save(ctx context.Context) error {
	c := tx.pending()
	if c.empty() {
		return nil
	}

	err := dbx.WithTx(ctx, tx.s.db, nil, func(ctx context.Context, db dbx.DBTX) error {
		pr := projects.NewSQLiteRepository(db)
		fr := fixtures.NewSQLiteRepository(db)
		or := orgs.NewSQLiteRepository(db)

		for _, o := range c.stagedOrgs() {
			if err := or.Upsert(ctx, o); err != nil {
				return err
			}
		}
		for _, p := range sortedProjects(c.projects) {
			if err := pr.Upsert(ctx, p); err != nil {
				return err
			}
		}
		for _, f := range c.stagedFixtures() {
			if err := fr.Upsert(ctx, f); err != nil {
				return err
			}
		}
		for id := range c.deletedFixtures {
			if err := fr.DeleteByID(ctx, id); err != nil {
				return err
			}
		}
		for id := range c.deletedProjects {
			if err := pr.DeleteByID(ctx, id); err != nil {
				return err
			}
		}
		for id := range c.deletedOrgs {
			if err := or.DeleteByID(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tx.s.logger.Error(ctx, "save failed", "error", err)
		return fmt.Errorf("save local store: %w", err)
	}

	tx.s.pending = newChangeset()
	tx.s.saves++
	return nil
}

// Discard drops every staged change.
func (tx *Tx) Discard() {
	tx.s.pending = newChangeset()
}

func sortedProjects(m map[string]*models.Project) []*models.Project {
	out := make([]*models.Project, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
