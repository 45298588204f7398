package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// Value is a tagged recursive variant representing one node of the free-form
// clinical payload: a scalar, a list, or a nested object.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Str    string
	List   []Value
	Map    map[string]Value
}

func NullValue() Value                  { return Value{Kind: KindNull} }
func BoolValue(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func NumberValue(n float64) Value       { return Value{Kind: KindNumber, Number: n} }
func StringValue(s string) Value        { return Value{Kind: KindString, Str: s} }
func ListValue(items ...Value) Value    { return Value{Kind: KindList, List: items} }
func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsTrue reports whether the value is the boolean true.
func (v Value) IsTrue() bool { return v.Kind == KindBool && v.Bool }

// UnmarshalJSON decodes arbitrary JSON into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = Value{Kind: KindNull}
		return nil
	}
	switch trimmed[0] {
	case '{':
		m := make(map[string]Value)
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return err
		}
		*v = Value{Kind: KindMap, Map: m}
	case '[':
		var list []Value
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*v = Value{Kind: KindList, List: list}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = Value{Kind: KindString, Str: s}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = Value{Kind: KindBool, Bool: b}
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*v = Value{Kind: KindNumber, Number: n}
	}
	return nil
}

// MarshalJSON encodes the variant back to plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.Bool)
	case KindNumber:
		return json.Marshal(v.Number)
	case KindString:
		return json.Marshal(v.Str)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindMap:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// Equal performs a deep comparison that ignores map key ordering.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Number == other.Number
	case KindString:
		return v.Str == other.Str
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for key, val := range v.Map {
			otherVal, ok := other.Map[key]
			if !ok || !val.Equal(otherVal) {
				return false
			}
		}
		return true
	}
	return false
}

// Canonical renders a deterministic serialization with sorted map keys, used
// for opaque comparisons and integrity hashing.
func (v Value) Canonical() string {
	var sb strings.Builder
	v.writeCanonical(&sb)
	return sb.String()
}

func (v Value) writeCanonical(sb *strings.Builder) {
	switch v.Kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.Bool))
	case KindNumber:
		sb.WriteString(strconv.FormatFloat(v.Number, 'g', -1, 64))
	case KindString:
		encoded, _ := json.Marshal(v.Str)
		sb.Write(encoded)
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.writeCanonical(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for key := range v.Map {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			encoded, _ := json.Marshal(key)
			sb.Write(encoded)
			sb.WriteByte(':')
			val := v.Map[key]
			val.writeCanonical(sb)
		}
		sb.WriteByte('}')
	}
}

// Display renders a human-readable representation for diff listings.
func (v Value) Display() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "Sí"
		}
		return "No"
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindList:
		return fmt.Sprintf("%d elemento(s)", len(v.List))
	case KindMap:
		return v.Canonical()
	}
	return ""
}
