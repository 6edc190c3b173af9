package remote

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Sentinel is a write-time placeholder resolved by the store.
type Sentinel string

const (
	// ServerTimestamp is replaced with the store's clock at write time.
	ServerTimestamp Sentinel = "serverTimestamp"
	// DeleteField removes the field from the stored document.
	DeleteField Sentinel = "delete"
)

// Merge applies a write to existing and returns the resulting document data.
// existing is not modified.
func Merge(existing, fields map[string]any, merge bool, now time.Time) map[string]any {
	out := make(map[string]any, len(existing)+len(fields))
	if merge {
		for k, v := range existing {
			out[k] = v
		}
	}
	for k, v := range fields {
		switch v {
		case DeleteField:
			delete(out, k)
		case ServerTimestamp:
			out[k] = now.UTC()
		default:
			out[k] = normalize(v)
		}
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// Matches reports whether data satisfies f. An empty filter matches everything.
func Matches(data map[string]any, f Filter) bool {
	if f.Field == "" {
		return true
	}
	v, ok := data[f.Field]
	if !ok {
		return false
	}
	return valuesEqual(v, f.Value)
}

func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if fa, ok := Float(a); ok {
		fb, ok := Float(b)
		return ok && fa == fb
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA || okB {
		return okA && okB && sa == sb
	}
	ba, okA := a.(bool)
	bb, okB := b.(bool)
	return okA && okB && ba == bb
}

// Float converts any numeric representation a store may hand back.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// StringField returns data[key] when it is a string.
func StringField(data map[string]any, key string) (string, bool) {
	s, ok := data[key].(string)
	return s, ok
}

// IntField accepts any integral number and numeric strings.
func IntField(data map[string]any, key string) (int64, bool) {
	v, ok := data[key]
	if !ok || v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	f, ok := Float(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// TimeField accepts time values, RFC 3339 strings and unix seconds.
func TimeField(data map[string]any, key string) (time.Time, bool) {
	switch t := data[key].(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		f, ok := Float(t)
		if !ok {
			return time.Time{}, false
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
}
