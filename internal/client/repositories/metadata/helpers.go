package metadata

import (
	"context"
	"strconv"
	"time"
)

// GetString reads a UTF-8 value, "" when absent.
func GetString(ctx context.Context, r Repository, key string) (string, error) {
	v, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// GetTime reads a value written by SetTime. Absent or malformed values give
// the zero time.
func GetTime(ctx context.Context, r Repository, key string) (time.Time, error) {
	v, err := r.Get(ctx, key)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.Unix(0, n).UTC(), nil
}

// SetTime stores t as unix nanoseconds.
func SetTime(ctx context.Context, r Repository, key string, t time.Time) error {
	return r.Set(ctx, key, []byte(strconv.FormatInt(t.UnixNano(), 10)))
}
