package store

import (
	"encoding/json"
	"math"
	"time"
)

// Document is a schemaless record keyed by field name.
type Document map[string]any

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's clock when the write is applied.
var ServerTimestamp = serverTimestamp{}

// Incr is an atomic numeric increment inside Update.
type Incr struct {
	Delta int64
}

// Inc returns an increment sentinel for Update.
func Inc(delta int64) Incr {
	return Incr{Delta: delta}
}

// timeLayout is fixed-width so that lexical order equals chronological order
// for backends that keep timestamps as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Copy returns a shallow copy of the document.
func (d Document) Copy() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d Document) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Int reads any integer or float representation a driver may produce.
func (d Document) Int(key string) int64 {
	n, _ := toInt64(d[key])
	return n
}

// Bool accepts real booleans and the 0/1 integers some backends return.
func (d Document) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	default:
		n, ok := toInt64(v)
		return ok && n != 0
	}
}

// Time returns the zero time when the field is absent or unparsable.
func (d Document) Time(key string) time.Time {
	switch v := d[key].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		if t, err := time.Parse(timeLayout, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	i, ok := toInt64(v)
	return float64(i), ok
}

// compareValues orders two field values of compatible kinds. ok is false
// when the kinds differ, which excludes the document from range filters and
// orderings the same way Firestore does.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}

	if ai, ok := toInt64Exact(a); ok {
		if bi, ok := toInt64Exact(b); ok {
			switch {
			case ai < bi:
				return -1, true
			case ai > bi:
				return 1, true
			}
			return 0, true
		}
	}
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toInt64Exact(v any) (int64, bool) {
	switch v.(type) {
	case float32, float64, json.Number:
		return 0, false
	}
	return toInt64(v)
}
