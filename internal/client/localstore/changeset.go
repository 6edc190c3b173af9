package localstore

import "github.com/dmitrijs2005/commissionsync/internal/client/models"

type set map[string]struct{}

func (s set) has(id string) bool {
	_, ok := s[id]
	return ok
}

// changeset holds staged mutations between saves.
type changeset struct {
	projects map[string]*models.Project
	fixtures map[string]*models.Fixture
	orgs     map[string]*models.Organization

	// staging order of fixtures and orgs, so new rows keep creation order
	fixtureOrder []string
	orgOrder     []string

	deletedProjects set
	deletedFixtures set
	deletedOrgs     set
}

func newChangeset() *changeset {
	return &changeset{
		projects:        make(map[string]*models.Project),
		fixtures:        make(map[string]*models.Fixture),
		orgs:            make(map[string]*models.Organization),
		deletedProjects: make(set),
		deletedFixtures: make(set),
		deletedOrgs:     make(set),
	}
}

// clone copies the bookkeeping. Staged records are shared; they are
// replaced on put and never modified in place.
func (c *changeset) clone() *changeset {
	out := &changeset{
		projects:        make(map[string]*models.Project, len(c.projects)),
		fixtures:        make(map[string]*models.Fixture, len(c.fixtures)),
		orgs:            make(map[string]*models.Organization, len(c.orgs)),
		fixtureOrder:    append([]string(nil), c.fixtureOrder...),
		orgOrder:        append([]string(nil), c.orgOrder...),
		deletedProjects: make(set, len(c.deletedProjects)),
		deletedFixtures: make(set, len(c.deletedFixtures)),
		deletedOrgs:     make(set, len(c.deletedOrgs)),
	}
	for k, v := range c.projects {
		out.projects[k] = v
	}
	for k, v := range c.fixtures {
		out.fixtures[k] = v
	}
	for k, v := range c.orgs {
		out.orgs[k] = v
	}
	for k := range c.deletedProjects {
		out.deletedProjects[k] = struct{}{}
	}
	for k := range c.deletedFixtures {
		out.deletedFixtures[k] = struct{}{}
	}
	for k := range c.deletedOrgs {
		out.deletedOrgs[k] = struct{}{}
	}
	return out
}

func (c *changeset) empty() bool {
	return len(c.projects) == 0 && len(c.fixtures) == 0 && len(c.orgs) == 0 &&
		len(c.deletedProjects) == 0 && len(c.deletedFixtures) == 0 && len(c.deletedOrgs) == 0
}

func (c *changeset) putProject(p *models.Project) {
	c.projects[p.ID] = p.Clone()
	delete(c.deletedProjects, p.ID)
}

func (c *changeset) deleteProject(id string) {
	delete(c.projects, id)
	c.deletedProjects[id] = struct{}{}
}

func (c *changeset) putFixture(f *models.Fixture) {
	if _, ok := c.fixtures[f.ID]; !ok {
		c.fixtureOrder = append(c.fixtureOrder, f.ID)
	}
	c.fixtures[f.ID] = f.Clone()
	delete(c.deletedFixtures, f.ID)
}

func (c *changeset) deleteFixture(id string) {
	delete(c.fixtures, id)
	c.deletedFixtures[id] = struct{}{}
}

func (c *changeset) putOrg(o *models.Organization) {
	if _, ok := c.orgs[o.ID]; !ok {
		c.orgOrder = append(c.orgOrder, o.ID)
	}
	cp := *o
	c.orgs[o.ID] = &cp
	delete(c.deletedOrgs, o.ID)
}

func (c *changeset) deleteOrg(id string) {
	delete(c.orgs, id)
	c.deletedOrgs[id] = struct{}{}
}

// stagedFixtures returns staged fixtures in staging order.
func (c *changeset) stagedFixtures() []*models.Fixture {
	out := make([]*models.Fixture, 0, len(c.fixtures))
	for _, id := range c.fixtureOrder {
		if f, ok := c.fixtures[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (c *changeset) stagedOrgs() []*models.Organization {
	out := make([]*models.Organization, 0, len(c.orgs))
	for _, id := range c.orgOrder {
		if o, ok := c.orgs[id]; ok {
			out = append(out, o)
		}
	}
	return out
}
