package remote

import (
	"fmt"
	"time"
)

// Wire tags for values JSON cannot express directly.
const (
	wireTimestamp = "$ts"
	wireSentinel  = "$sentinel"
)

// EncodeFields converts document data into JSON-compatible values. Timestamps
// become {"$ts": RFC3339Nano} and sentinels {"$sentinel": name}.
func EncodeFields(data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		ev, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = ev
	}
	return out, nil
}

func encodeValue(v any) (any, error) {
	switch t := normalize(v).(type) {
	case nil, string, bool, float64:
		return t, nil
	case int64:
		return float64(t), nil
	case time.Time:
		return map[string]any{wireTimestamp: t.UTC().Format(time.RFC3339Nano)}, nil
	case Sentinel:
		return map[string]any{wireSentinel: string(t)}, nil
	case map[string]any:
		return EncodeFields(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			ev, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidArgument, v)
	}
}

// DecodeFields reverses EncodeFields. Numbers stay float64; use IntField to
// read integers back.
func DecodeFields(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if s, ok := t[wireTimestamp].(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return ts.UTC()
				}
			}
			if s, ok := t[wireSentinel].(string); ok {
				return Sentinel(s)
			}
		}
		return DecodeFields(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = decodeValue(item)
		}
		return out
	default:
		return v
	}
}
