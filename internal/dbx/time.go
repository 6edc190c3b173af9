package dbx

import (
	"database/sql"
	"time"
)

// UnixNano converts t for an INTEGER column. The zero time is stored as NULL.
func UnixNano(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

// UnixNanoPtr is UnixNano for optional timestamps.
func UnixNanoPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return UnixNano(*t)
}

// Time reverses UnixNano. NULL yields the zero time.
func Time(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}

// TimePtr reverses UnixNanoPtr.
func TimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
