package syncsvc

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/docid"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
)

const untitled = "Untitled"

// projectDoc is a decoded project document.
type projectDoc struct {
	ID               string
	OwnerUID         string
	Title            string
	CreatedAt        *time.Time
	UpdatedAt        *time.Time
	UpdatedBy        string
	ArchivedAt       *time.Time
	ContactFirstName string
	ContactLastName  string
	SiteAddress      string
	ControlSystemRaw string
}

// fixtureDoc is a decoded fixture document. DocID is the document's own id,
// which is not a local key.
type fixtureDoc struct {
	DocID          string
	OwnerUID       string
	ProjectID      string
	Label          string
	ShortAddress   int
	Groups         *int64
	Room           string
	Serial         string
	DTTypeRaw      string
	CommissionedAt *time.Time
	Notes          string
	UpdatedAt      *time.Time
	UpdatedBy      string
}

func timePtr(data map[string]any, key string) *time.Time {
	t, ok := remote.TimeField(data, key)
	if !ok {
		return nil
	}
	t = t.UTC()
	return &t
}

func str(data map[string]any, key string) string {
	s, _ := remote.StringField(data, key)
	return s
}

func decodeProject(doc remote.Document) (*projectDoc, bool) {
	d := doc.Data
	if d == nil {
		return nil, false
	}

	id, ok := docid.ParseProjectDocID(str(d, "id"))
	if !ok {
		id, ok = docid.ParseProjectDocID(doc.ID)
	}
	owner := str(d, common.OwnerField)
	if !ok || owner == "" {
		return nil, false
	}

	title, ok := remote.StringField(d, "title")
	if !ok {
		title = untitled
	}

	return &projectDoc{
		ID:               id,
		OwnerUID:         owner,
		Title:            title,
		CreatedAt:        timePtr(d, "createdAt"),
		UpdatedAt:        timePtr(d, "updatedAt"),
		UpdatedBy:        str(d, "updatedBy"),
		ArchivedAt:       timePtr(d, "archivedAt"),
		ContactFirstName: str(d, "contactFirstName"),
		ContactLastName:  str(d, "contactLastName"),
		SiteAddress:      str(d, "siteAddress"),
		ControlSystemRaw: str(d, "controlSystemRaw"),
	}, true
}

// applyTo overwrites every synced field of p. Missing timestamps keep the
// local value.
func (d *projectDoc) applyTo(p *models.Project) {
	p.Title = d.Title
	if d.CreatedAt != nil {
		p.CreatedAt = *d.CreatedAt
	}
	if d.UpdatedAt != nil {
		p.UpdatedAt = *d.UpdatedAt
	}
	p.UpdatedBy = d.UpdatedBy
	p.ArchivedAt = d.ArchivedAt
	p.ContactFirstName = d.ContactFirstName
	p.ContactLastName = d.ContactLastName
	p.SiteAddress = d.SiteAddress
	p.ControlSystem = models.ParseControlSystem(d.ControlSystemRaw)
}

func (d *projectDoc) newProject(now time.Time) *models.Project {
	p := &models.Project{ID: d.ID, CreatedAt: now}
	d.applyTo(p)
	return p
}

// setOrDelete writes v, or removes the field when v is empty so a cleared
// value does not survive a merge write.
func setOrDelete(fields map[string]any, key, v string) {
	if v == "" {
		fields[key] = remote.DeleteField
		return
	}
	fields[key] = v
}

func encodeProject(p *models.Project, uid string) map[string]any {
	fields := map[string]any{
		"id":              docid.ProjectDocID(p.ID),
		common.OwnerField: uid,
		"title":           p.Title,
		"updatedAt":       remote.ServerTimestamp,
		"updatedBy":       uid,
	}
	if p.ArchivedAt != nil {
		fields["archivedAt"] = p.ArchivedAt.UTC()
	} else {
		fields["archivedAt"] = remote.DeleteField
	}
	if p.CreatedAt.IsZero() {
		fields["createdAt"] = remote.ServerTimestamp
	} else {
		fields["createdAt"] = p.CreatedAt.UTC()
	}
	setOrDelete(fields, "contactFirstName", p.ContactFirstName)
	setOrDelete(fields, "contactLastName", p.ContactLastName)
	setOrDelete(fields, "siteAddress", p.SiteAddress)
	setOrDelete(fields, "controlSystemRaw", string(p.ControlSystem))
	return fields
}

func decodeFixture(doc remote.Document) (*fixtureDoc, bool) {
	d := doc.Data
	if d == nil {
		return nil, false
	}

	id := str(d, "id")
	if id == "" {
		id = doc.ID
	}
	owner := str(d, common.OwnerField)

	// Older documents may lack projectId or shortAddress; both can be read
	// back from the document id.
	parent, kind, key, parsed := docid.ParseFixtureDocID(doc.ID)
	projectID := docid.ProjectDocID(str(d, "projectId"))
	if projectID == "" && parsed {
		projectID = parent
	}
	if id == "" || owner == "" || projectID == "" {
		return nil, false
	}

	label, ok := remote.StringField(d, "label")
	if !ok {
		label = untitled
	}
	addr, ok := remote.IntField(d, "shortAddress")
	if !ok && parsed && kind == docid.KindAddress {
		n, _ := strconv.Atoi(key)
		addr = int64(n)
	}

	var groups *int64
	if g, ok := remote.IntField(d, "groups"); ok {
		groups = &g
	}

	docID := doc.ID
	if docID == "" {
		docID = id
	}

	return &fixtureDoc{
		DocID:          docID,
		OwnerUID:       owner,
		ProjectID:      projectID,
		Label:          label,
		ShortAddress:   int(addr),
		Groups:         groups,
		Room:           str(d, "room"),
		Serial:         str(d, "serial"),
		DTTypeRaw:      str(d, "dtTypeRaw"),
		CommissionedAt: timePtr(d, "commissionedAt"),
		Notes:          str(d, "notes"),
		UpdatedAt:      timePtr(d, "updatedAt"),
		UpdatedBy:      str(d, "updatedBy"),
	}, true
}

// applyTo overwrites the synced fields of f. A document without a serial
// never clears a serial the fixture already has.
func (d *fixtureDoc) applyTo(f *models.Fixture, now time.Time) {
	f.Label = d.Label
	f.ShortAddress = d.ShortAddress
	if d.Groups != nil {
		f.GroupsMask = uint16(*d.Groups)
	}
	f.Room = d.Room
	if d.Serial != "" {
		f.Serial = d.Serial
	}
	f.DTType = models.ParseDTType(d.DTTypeRaw)
	f.CommissionedAt = d.CommissionedAt
	f.Notes = d.Notes
	if d.UpdatedAt != nil {
		f.UpdatedAt = *d.UpdatedAt
	} else {
		f.UpdatedAt = now
	}
	f.UpdatedBy = d.UpdatedBy
}

func (d *fixtureDoc) newFixture(now time.Time) *models.Fixture {
	f := models.NewFixture(d.ProjectID, d.Label, d.ShortAddress)
	d.applyTo(f, now)
	f.RemoteDocID = d.DocID
	return f
}

func encodeFixture(f *models.Fixture, uid, docID string) map[string]any {
	fields := map[string]any{
		"id":              docID,
		common.OwnerField: uid,
		"projectId":       docid.ProjectDocID(f.ProjectID),
		"label":           f.Label,
		"shortAddress":    f.ShortAddress,
		"groups":          int(f.GroupsMask),
		"updatedAt":       remote.ServerTimestamp,
		"updatedBy":       uid,
	}
	setOrDelete(fields, "room", f.Room)
	setOrDelete(fields, "serial", f.Serial)
	setOrDelete(fields, "dtTypeRaw", string(f.DTType))
	setOrDelete(fields, "notes", f.Notes)
	if f.CommissionedAt != nil {
		fields["commissionedAt"] = f.CommissionedAt.UTC()
	} else {
		fields["commissionedAt"] = remote.DeleteField
	}
	return fields
}
