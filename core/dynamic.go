package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// DynamicValue is the tagged union accepted in AgentInput.Context and
// AgentOutput.StructuredData. The source framework carries these as
// interface{} boxes pulled out of JSON; here they're a closed sum type so
// callers pattern-match on Kind instead of type-asserting blindly.
type DynamicValue struct {
	Kind DynamicKind

	str  string
	i    int64
	f    float64
	b    bool
	arr  []DynamicValue
	obj  map[string]DynamicValue
}

// DynamicKind enumerates the variants of DynamicValue.
type DynamicKind int

const (
	KindNull DynamicKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindArray
	KindObject
)

func NewStringValue(v string) DynamicValue { return DynamicValue{Kind: KindString, str: v} }
func NewIntValue(v int64) DynamicValue      { return DynamicValue{Kind: KindInt, i: v} }
func NewFloatValue(v float64) DynamicValue  { return DynamicValue{Kind: KindFloat, f: v} }
func NewBoolValue(v bool) DynamicValue      { return DynamicValue{Kind: KindBool, b: v} }

func NewArrayValue(v []DynamicValue) DynamicValue {
	return DynamicValue{Kind: KindArray, arr: v}
}

func NewObjectValue(v map[string]DynamicValue) DynamicValue {
	return DynamicValue{Kind: KindObject, obj: v}
}

// String returns the string payload and whether Kind was KindString.
func (d DynamicValue) String() (string, bool) { return d.str, d.Kind == KindString }

// Int returns the integer payload and whether Kind was KindInt.
func (d DynamicValue) Int() (int64, bool) { return d.i, d.Kind == KindInt }

// Float returns the float payload and whether Kind was KindFloat.
func (d DynamicValue) Float() (float64, bool) { return d.f, d.Kind == KindFloat }

// Bool returns the bool payload and whether Kind was KindBool.
func (d DynamicValue) Bool() (bool, bool) { return d.b, d.Kind == KindBool }

// Array returns the element slice and whether Kind was KindArray.
func (d DynamicValue) Array() ([]DynamicValue, bool) { return d.arr, d.Kind == KindArray }

// Object returns the field map and whether Kind was KindObject.
func (d DynamicValue) Object() (map[string]DynamicValue, bool) { return d.obj, d.Kind == KindObject }

// IsNull reports whether this value carries no payload.
func (d DynamicValue) IsNull() bool { return d.Kind == KindNull }

// Native unwraps a DynamicValue into the nearest plain Go value (string,
// int64, float64, bool, []interface{}, map[string]interface{}, or nil).
// Used when handing context variables to a prompt renderer or a JSON
// encoder that doesn't know about DynamicValue.
func (d DynamicValue) Native() interface{} {
	switch d.Kind {
	case KindString:
		return d.str
	case KindInt:
		return d.i
	case KindFloat:
		return d.f
	case KindBool:
		return d.b
	case KindArray:
		out := make([]interface{}, len(d.arr))
		for i, v := range d.arr {
			out[i] = v.Native()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(d.obj))
		for k, v := range d.obj {
			out[k] = v.Native()
		}
		return out
	default:
		return nil
	}
}

// AsPrimitiveString renders a value as a single-line primitive string when
// possible (string/int/float/bool), or falls back to its JSON form for
// arrays and objects. Mirrors the LLM-backed agent's "Context Variables"
// block rendering rule in spec.md §4.3.
func (d DynamicValue) AsPrimitiveString() string {
	switch d.Kind {
	case KindString:
		return d.str
	case KindInt:
		return strconv.FormatInt(d.i, 10)
	case KindFloat:
		return strconv.FormatFloat(d.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(d.b)
	case KindNull:
		return "null"
	default:
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprintf("%v", d.Native())
		}
		return string(data)
	}
}

// FromNative converts a plain Go value (as produced by encoding/json
// Unmarshal into interface{}, or constructed directly) into a DynamicValue.
// Unsupported types (channels, funcs, complex...) produce KindNull.
func FromNative(v interface{}) DynamicValue {
	switch t := v.(type) {
	case nil:
		return DynamicValue{Kind: KindNull}
	case string:
		return NewStringValue(t)
	case bool:
		return NewBoolValue(t)
	case int:
		return NewIntValue(int64(t))
	case int64:
		return NewIntValue(t)
	case float64:
		return NewFloatValue(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return NewIntValue(i)
		}
		f, _ := t.Float64()
		return NewFloatValue(f)
	case []interface{}:
		out := make([]DynamicValue, len(t))
		for i, e := range t {
			out[i] = FromNative(e)
		}
		return NewArrayValue(out)
	case map[string]interface{}:
		out := make(map[string]DynamicValue, len(t))
		for k, e := range t {
			out[k] = FromNative(e)
		}
		return NewObjectValue(out)
	case []DynamicValue:
		return NewArrayValue(t)
	case map[string]DynamicValue:
		return NewObjectValue(t)
	case DynamicValue:
		return t
	default:
		return DynamicValue{Kind: KindNull}
	}
}

// MarshalJSON implements json.Marshaler so DynamicValue round-trips through
// JSON the way spec.md §3 requires.
func (d DynamicValue) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(d.str)
	case KindInt:
		return json.Marshal(d.i)
	case KindFloat:
		b, err := json.Marshal(d.f)
		if err != nil {
			return nil, err
		}
		// Keep integral floats recognisable as floats ("3.0", not "3") so
		// UnmarshalJSON decodes them back as KindFloat.
		if !bytes.ContainsAny(b, ".eE") {
			b = append(b, ".0"...)
		}
		return b, nil
	case KindBool:
		return json.Marshal(d.b)
	case KindArray:
		return json.Marshal(d.arr)
	case KindObject:
		return json.Marshal(d.obj)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler, using json.Number to preserve
// the int/float distinction that plain interface{} decoding loses.
func (d *DynamicValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*d = FromNative(raw)
	return nil
}

// SortedKeys returns an object's field names in deterministic order, used
// by anything that renders a DynamicValue object as text (prompt assembly,
// logging) so output doesn't jitter across runs.
func (d DynamicValue) SortedKeys() []string {
	if d.Kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(d.obj))
	for k := range d.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
