package syncsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/commissionsync/internal/client/identity"
	"github.com/dmitrijs2005/commissionsync/internal/client/localstore"
	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OrgService keeps exactly one organization profile in the local store.
type OrgService struct {
	local    *localstore.Store
	remote   remote.Store
	identity identity.Provider
	logger   logging.Logger
	opts     options
}

func NewOrgService(local *localstore.Store, rs remote.Store, id identity.Provider, logger logging.Logger, opts ...Option) *OrgService {
	return &OrgService{
		local:    local,
		remote:   rs,
		identity: id,
		logger:   logger.With("module", "orgsync"),
		opts:     newOptions(opts),
	}
}

// DefaultOrgName derives a name from the e-mail handle: "ann@x.io" gives
// "Ann Org".
func DefaultOrgName(email string) string {
	handle, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if handle == "" {
		return models.DefaultOrgName
	}
	return cases.Title(language.Und).String(handle) + " Org"
}

type emailer interface {
	Email() string
}

// EnsureLocal makes sure one organization exists locally and returns it.
//
// Signed in, the remote org of the owner is read, created with the owner uid
// as id when missing, and mirrored locally in place of any other. Signed out,
// or when the remote is unreachable, an existing local org is kept or a
// default one is created.
func (s *OrgService) EnsureLocal(ctx context.Context) (*models.Organization, error) {
	uid, ok := s.identity.CurrentUID()
	if !ok {
		return s.ensureOffline(ctx, "")
	}

	name, err := s.remoteName(ctx, uid)
	if err != nil {
		s.logger.Warn(ctx, "organization lookup failed, keeping local", "error", err)
		return s.ensureOffline(ctx, uid)
	}

	now := s.opts.now().UTC()
	var org *models.Organization
	err = s.local.Atomic(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		all, err := tx.Organizations(ctx)
		if err != nil {
			return err
		}
		org = &models.Organization{ID: uid, OwnerUID: uid, Name: name, CreatedAt: now, UpdatedAt: now}
		for _, o := range all {
			if o.ID == uid {
				org.CreatedAt, org.Address = o.CreatedAt, o.Address
				if o.Name == name {
					org.UpdatedAt = o.UpdatedAt
				}
				continue
			}
			tx.DeleteOrganization(o.ID)
		}
		if err := tx.PutOrganization(org); err != nil {
			return err
		}
		return tx.Save(ctx)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// remoteName returns the name of the owner's org, creating the document
// first when there is none.
func (s *OrgService) remoteName(ctx context.Context, uid string) (string, error) {
	docs, err := s.remote.Query(ctx, common.CollectionOrgs, remote.Where(common.OwnerField, uid))
	if err != nil {
		return "", fmt.Errorf("query orgs: %w", err)
	}

	var email string
	if e, ok := s.identity.(emailer); ok {
		email = e.Email()
	}

	if len(docs) > 0 {
		if name, ok := remote.StringField(docs[0].Data, "name"); ok && name != "" {
			return name, nil
		}
		return DefaultOrgName(email), nil
	}

	name := DefaultOrgName(email)
	err = s.remote.SetFields(ctx, common.CollectionOrgs, uid, map[string]any{
		"id":              uid,
		"name":            name,
		common.OwnerField: uid,
		"createdAt":       remote.ServerTimestamp,
		"updatedAt":       remote.ServerTimestamp,
	}, true)
	if err != nil {
		return "", fmt.Errorf("create org: %w", err)
	}
	s.logger.Info(ctx, "created remote organization", "name", name)
	return name, nil
}

func (s *OrgService) ensureOffline(ctx context.Context, owner string) (*models.Organization, error) {
	var org *models.Organization
	err := s.local.Write(ctx, func(ctx context.Context, tx *localstore.Tx) error {
		all, err := tx.Organizations(ctx)
		if err != nil {
			return err
		}
		if len(all) > 0 {
			org = all[0]
			return nil
		}
		now := s.opts.now().UTC()
		org = &models.Organization{
			ID:        uuid.NewString(),
			OwnerUID:  owner,
			Name:      models.DefaultOrgName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.PutOrganization(org); err != nil {
			return err
		}
		return tx.Save(ctx)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}
