package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	// KindOther holds lists, objects, timestamps and anything else that is
	// always considered present.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "other"
	}
}

// Value is one attribute value of a Snapshot.
type Value struct {
	kind  Kind
	str   string
	num   float64
	b     bool
	other any
}

func Null() Value { return Value{kind: KindNull} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Other(v any) Value { return Value{kind: KindOther, other: v} }

func (v Value) Kind() Kind { return v.kind }

// NumberVal returns the numeric payload, or 0 for non-number kinds.
func (v Value) NumberVal() float64 { return v.num }

// IsBlank reports whether the value counts as missing: null, or a string
// that is empty after trimming whitespace. Zero, false and empty lists are
// present.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	default:
		return false
	}
}

// Text returns a scalar value as text, or "" for null and KindOther.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Interface returns the plain Go value, for expression environments and JSON.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindOther:
		return v.other
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

// ValueOf converts a decoded JSON or database value into a Value.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case *string:
		if t == nil {
			return Null()
		}
		return String(*t)
	case []byte:
		return String(string(t))
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	default:
		return Other(t)
	}
}

// Snapshot is the merged view of a property record: persisted values
// overlaid with pending edits, keyed by attribute identifier.
type Snapshot map[string]Value

// SnapshotFromMap converts a decoded record into a Snapshot.
func SnapshotFromMap(m map[string]any) Snapshot {
	s := make(Snapshot, len(m))
	for k, v := range m {
		s[k] = ValueOf(v)
	}
	return s
}

// Merge overlays pending on existing. Pending values win, including
// explicit nulls that clear a persisted value.
func Merge(existing, pending Snapshot) Snapshot {
	merged := make(Snapshot, len(existing)+len(pending))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range pending {
		merged[k] = v
	}
	return merged
}

// Get returns the value of attr and whether it is present in the snapshot.
func (s Snapshot) Get(attr string) (Value, bool) {
	v, ok := s[attr]
	return v, ok
}

// Missing reports whether attr is absent or blank.
func (s Snapshot) Missing(attr string) bool {
	v, ok := s[attr]
	return !ok || v.IsBlank()
}

// Env returns the snapshot as a plain map for expression evaluation.
func (s Snapshot) Env() map[string]any {
	env := make(map[string]any, len(s))
	for k, v := range s {
		env[k] = v.Interface()
	}
	return env
}

func (s Snapshot) String() string {
	return fmt.Sprintf("Snapshot(%d attributes)", len(s))
}
