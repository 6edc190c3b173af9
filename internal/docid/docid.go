// Package docid derives remote document ids from local natural keys.
//
// Everything here is pure: the same inputs always give the same id. Callers
// recompute the id whenever a fixture's serial or short address changes and
// migrate the remote document when the result differs.
package docid

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	fixturePrefix = "fixture-"
	serialInfix   = "-ser-"
	addressInfix  = "-addr-"
)

// Kind tells which natural key a fixture document id was built from.
type Kind int

const (
	KindUnknown Kind = iota
	KindSerial
	KindAddress
)

// ProjectDocID returns the canonical document id of a project.
func ProjectDocID(projectID string) string {
	return strings.ToLower(strings.TrimSpace(projectID))
}

// ParseProjectDocID recovers a project id from a document id. The whole id is
// tried first, then its UUID-sized prefix.
func ParseProjectDocID(docID string) (string, bool) {
	docID = strings.TrimSpace(docID)
	if u, err := uuid.Parse(docID); err == nil {
		return strings.ToLower(u.String()), true
	}
	if len(docID) > 36 {
		if u, err := uuid.Parse(docID[:36]); err == nil {
			return strings.ToLower(u.String()), true
		}
	}
	return "", false
}

// NormalizeSerial is the identity form of a serial used for matching and
// dedup: trimmed and lowercased. Blank serials normalize to "".
func NormalizeSerial(serial string) string {
	return strings.ToLower(strings.TrimSpace(serial))
}

// SerialSlug turns a serial into a document id fragment: lowercase, only
// [a-z0-9-], runs of anything else collapsed to a single '-', no leading or
// trailing '-'.
func SerialSlug(serial string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(serial) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			dash = r == '-'
		default:
			if !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// AddressDocID is the fallback id used while a fixture has no serial.
func AddressDocID(projectID string, shortAddress int) string {
	return fixturePrefix + ProjectDocID(projectID) + addressInfix + strconv.Itoa(shortAddress)
}

// SerialDocID returns the serial-based id, or "" when the serial has no
// usable characters.
func SerialDocID(projectID, serial string) string {
	slug := SerialSlug(strings.TrimSpace(serial))
	if slug == "" {
		return ""
	}
	return fixturePrefix + ProjectDocID(projectID) + serialInfix + slug
}

// FixtureDocID prefers the serial and falls back to the short address when the
// serial is blank or slugs to nothing.
func FixtureDocID(projectID, serial string, shortAddress int) string {
	if id := SerialDocID(projectID, serial); id != "" {
		return id
	}
	return AddressDocID(projectID, shortAddress)
}

// FixtureDocIDVariants lists every id a fixture may have been stored under:
// its current id, the address form, and previous when it is set. Duplicates
// are removed and order is stable.
func FixtureDocIDVariants(projectID, serial string, shortAddress int, previous string) []string {
	ids := []string{FixtureDocID(projectID, serial, shortAddress), AddressDocID(projectID, shortAddress)}
	if previous != "" {
		ids = append(ids, previous)
	}

	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ParseFixtureDocID splits a fixture document id into its project id, kind
// and key (slug or address digits).
func ParseFixtureDocID(docID string) (projectID string, kind Kind, key string, ok bool) {
	rest, found := strings.CutPrefix(docID, fixturePrefix)
	if !found {
		return "", KindUnknown, "", false
	}

	si := strings.Index(rest, serialInfix)
	ai := strings.Index(rest, addressInfix)

	switch {
	case si > 0 && (ai < 0 || si < ai):
		key = rest[si+len(serialInfix):]
		if key == "" {
			return "", KindUnknown, "", false
		}
		return rest[:si], KindSerial, key, true
	case ai > 0:
		key = rest[ai+len(addressInfix):]
		if _, err := strconv.Atoi(key); err != nil {
			return "", KindUnknown, "", false
		}
		return rest[:ai], KindAddress, key, true
	default:
		return "", KindUnknown, "", false
	}
}
