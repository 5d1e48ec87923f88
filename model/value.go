package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	NullValue ValueKind = iota
	StringValue
	NumberValue
	BoolValue
	MapValue
)

func (k ValueKind) String() string {
	switch k {
	case NullValue:
		return "null"
	case StringValue:
		return "string"
	case NumberValue:
		return "number"
	case BoolValue:
		return "bool"
	case MapValue:
		return "map"
	}
	return "unknown"
}

// Value is an attribute value. The zero Value is null, which stands for
// "attribute not set" in attribute operations.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	m    map[string]Value
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: StringValue, str: s} }
func Number(n float64) Value { return Value{kind: NumberValue, num: n} }
func Bool(b bool) Value { return Value{kind: BoolValue, b: b} }
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: MapValue, m: cp}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == NullValue }

// AsString returns the string payload and whether v is a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == StringValue }

// AsNumber returns the number payload and whether v is a number.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == NumberValue }

// AsBool returns the bool payload and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == BoolValue }

// AsMap returns a copy of the map payload and whether v is a map.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != MapValue {
		return nil, false
	}
	cp := make(map[string]Value, len(v.m))
	for k, e := range v.m {
		cp[k] = e
	}
	return cp, true
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NullValue:
		return true
	case StringValue:
		return v.str == o.str
	case NumberValue:
		return v.num == o.num
	case BoolValue:
		return v.b == o.b
	case MapValue:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, e := range v.m {
			oe, ok := o.m[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v as JSON text.
func (v Value) String() string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case NullValue:
		return []byte("null"), nil
	case StringValue:
		return json.Marshal(v.str)
	case NumberValue:
		return []byte(strconv.FormatFloat(v.num, 'g', -1, 64)), nil
	case BoolValue:
		return json.Marshal(v.b)
	case MapValue:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil
	}
	return nil, fmt.Errorf("marshal value: unknown kind %d", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func valueFromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case float64:
		return Number(x), nil
	case bool:
		return Bool(x), nil
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			ev, err := valueFromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = ev
		}
		return Value{kind: MapValue, m: m}, nil
	}
	return Value{}, fmt.Errorf("unsupported attribute value %T", raw)
}

// ParseValue reads a JSON literal; anything that is not valid JSON is taken
// as a plain string.
func ParseValue(s string) Value {
	var v Value
	if err := v.UnmarshalJSON([]byte(s)); err != nil {
		return String(s)
	}
	return v
}
