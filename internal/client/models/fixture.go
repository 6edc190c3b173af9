package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DTType is the DALI device type of a fixture.
type DTType string

const (
	DTTypeDT6 DTType = "DT6"
	DTTypeDT8 DTType = "DT8"
	DTTypeD4i DTType = "D4i"
)

// ParseDTType maps a raw value to a DTType, defaulting to DT6.
func ParseDTType(s string) DTType {
	switch DTType(s) {
	case DTTypeDT8:
		return DTTypeDT8
	case DTTypeD4i:
		return DTTypeD4i
	default:
		return DTTypeDT6
	}
}

const (
	// MaxShortAddress is the highest DALI short address.
	MaxShortAddress = 63
	// GroupCount is the number of DALI groups a fixture can belong to.
	GroupCount = 16
)

// Fixture is a single luminaire inside a project.
//
// ID is a local surrogate key and never leaves the device. The remote identity
// is derived from ProjectID plus Serial or ShortAddress, see package docid.
type Fixture struct {
	ID           string
	ProjectID    string
	Label        string
	ShortAddress int
	GroupsMask   uint16
	Room         string
	Serial       string
	DTType       DTType
	Notes        string

	CommissionedAt *time.Time
	UpdatedAt      time.Time
	UpdatedBy      string

	// RemoteDocID is the document id the fixture was last pushed under.
	RemoteDocID string
}

// NewFixture returns a fixture with a fresh local id.
func NewFixture(projectID, label string, shortAddress int) *Fixture {
	return &Fixture{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Label:        label,
		ShortAddress: shortAddress,
		DTType:       DTTypeDT6,
	}
}

// ValidateShortAddress reports whether addr fits the DALI short address range.
func ValidateShortAddress(addr int) error {
	if addr < 0 || addr > MaxShortAddress {
		return fmt.Errorf("short address %d out of range 0..%d", addr, MaxShortAddress)
	}
	return nil
}

// InGroup reports group membership. Out of range groups are never set.
func (f *Fixture) InGroup(g int) bool {
	if g < 0 || g >= GroupCount {
		return false
	}
	return f.GroupsMask&(1<<uint(g)) != 0
}

func (f *Fixture) SetGroup(g int, on bool) {
	if g < 0 || g >= GroupCount {
		return
	}
	if on {
		f.GroupsMask |= 1 << uint(g)
	} else {
		f.GroupsMask &^= 1 << uint(g)
	}
}

// Groups lists the groups the fixture belongs to in ascending order.
func (f *Fixture) Groups() []int {
	var out []int
	for g := 0; g < GroupCount; g++ {
		if f.InGroup(g) {
			out = append(out, g)
		}
	}
	return out
}

// Clone returns a deep copy of f.
func (f *Fixture) Clone() *Fixture {
	if f == nil {
		return nil
	}
	c := *f
	if f.CommissionedAt != nil {
		t := *f.CommissionedAt
		c.CommissionedAt = &t
	}
	return &c
}
