// Package models defines the records kept in the local store: organizations,
// projects and the fixtures that belong to them.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ControlSystem is the lighting control platform a project is commissioned for.
type ControlSystem string

const (
	ControlSystemUnknown  ControlSystem = ""
	ControlSystemControl4 ControlSystem = "control4"
	ControlSystemCrestron ControlSystem = "crestron"
	ControlSystemLutron   ControlSystem = "lutron"
)

// ParseControlSystem maps a raw value to a known ControlSystem. Unknown values
// yield ControlSystemUnknown.
func ParseControlSystem(s string) ControlSystem {
	switch cs := ControlSystem(strings.ToLower(strings.TrimSpace(s))); cs {
	case ControlSystemControl4, ControlSystemCrestron, ControlSystemLutron:
		return cs
	default:
		return ControlSystemUnknown
	}
}

// Project is a commissioning job. ID is assigned locally at creation and is
// the join key with the remote document.
type Project struct {
	ID               string
	Title            string
	ContactFirstName string
	ContactLastName  string
	SiteAddress      string
	ControlSystem    ControlSystem

	CreatedAt time.Time
	// UpdatedAt is the timestamp of the last accepted write. Zero means unknown.
	UpdatedAt time.Time
	// UpdatedBy is the editing identity, empty for offline edits.
	UpdatedBy string
	// ArchivedAt marks a soft-deleted project when non-nil.
	ArchivedAt *time.Time
}

// NewProject returns a project with a fresh lowercase UUID.
func NewProject(title string, now time.Time) *Project {
	return &Project{
		ID:        strings.ToLower(uuid.NewString()),
		Title:     title,
		CreatedAt: now,
	}
}

func (p *Project) IsArchived() bool {
	return p.ArchivedAt != nil
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	if p.ArchivedAt != nil {
		t := *p.ArchivedAt
		c.ArchivedAt = &t
	}
	return &c
}
