// Package canon implements the canonical value model and hashing used
// everywhere the substrate needs a stable byte representation: rule-module
// rules-state, event/command params, and the top-level save-hash.
//
// A Value is the tagged union design notes §9 asks for (null/bool/int/float/
// string/array/object) rather than a bare interface{}, so encoding never has
// to guess whether a JSON number was meant to be an integer or a float.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind tags which alternative of Value is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

// Value is a JSON-safe value: null, bool, a 64-bit signed integer, a finite
// float64, a string, an ordered array of Value, or an object with string keys
// (canonically encoded in sorted key order regardless of insertion order).
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

func Null() Value            { return Value{kind: KindNull} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func Array(vs []Value) Value { return Value{kind: KindArray, arr: vs} }

// Object builds an object Value from a map; the map is copied so later
// mutation of the caller's map does not alias the Value.
func Object(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) Float() (float64, bool) {
	return v.f, v.kind == KindFloat
}

func (v Value) String() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) Array() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

func (v Value) Object() (map[string]Value, bool) {
	return v.obj, v.kind == KindObject
}

// Validate confirms v (and everything nested in it) is JSON-safe: finite
// numbers only, string keys only, no cycles (Value is acyclic by
// construction since it holds values, not pointers).
func (v Value) Validate() error {
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("canon: non-finite float is not JSON-safe")
		}
	case KindArray:
		for i, e := range v.arr {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("canon: array[%d]: %w", i, err)
			}
		}
	case KindObject:
		for k, e := range v.obj {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("canon: object[%q]: %w", k, err)
			}
		}
	}
	return nil
}

// Encode writes the canonical byte form of v: UTF-8, sorted object keys,
// stable number formatting, no trailing whitespace.
func (v Value) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encodeInto(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encodeInto(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("canon: cannot encode non-finite float")
		}
		buf.WriteString(formatFloat(v.f))
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encodeInto(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj[k].encodeInto(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canon: unknown value kind %d", v.kind)
	}
	return nil
}

// formatFloat picks the shortest decimal that round-trips back to f,
// resolving the "exact numeric format" open question (spec §9b) in favor
// of Go's shortest round-trip algorithm, tagged so 1.0 never collapses to
// the integer literal "1" (which would collide with an int-kinded Value).
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Ensure float-ness is visible in the canonical text even when the
	// shortest form happens to be integral (e.g. 2 instead of 2e0).
	hasDotOrExp := false
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' {
			hasDotOrExp = true
			break
		}
	}
	if !hasDotOrExp {
		s += ".0"
	}
	return s
}

// FromJSON decodes raw JSON bytes into a Value, using json.Number to
// distinguish integers from floats: a number with no '.', 'e' or 'E' that
// fits in an int64 becomes KindInt; otherwise KindFloat.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("canon: decode: %w", err)
	}
	if dec.More() {
		return Value{}, fmt.Errorf("canon: trailing data after JSON value")
	}
	return fromAny(raw)
}

func fromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return numberToValue(t)
	case string:
		return String(t), nil
	case []interface{}:
		out := make([]Value, 0, len(t))
		for _, e := range t {
			v, err := fromAny(e)
			if err != nil {
				return Value{}, err
			}
			out = append(out, v)
		}
		return Array(out), nil
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := fromAny(e)
			if err != nil {
				return Value{}, err
			}
			out[k] = v
		}
		return Object(out), nil
	default:
		return Value{}, fmt.Errorf("canon: unsupported decoded type %T", raw)
	}
}

func numberToValue(n json.Number) (Value, error) {
	s := n.String()
	isFloatLiteral := false
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' {
			isFloatLiteral = true
			break
		}
	}
	if !isFloatLiteral {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("canon: invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// MarshalJSON implements json.Marshaler so a Value can live inside ordinary
// Go structs (e.g. SimEvent.Params) and round-trip through encoding/json.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.Encode()
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dv, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = dv
	return nil
}

// Equal reports deep structural equality (used by absent-vs-empty parity
// tests and command/event comparisons).
func (v Value) Equal(other Value) bool {
	a, _ := v.Encode()
	b, _ := other.Encode()
	return bytes.Equal(a, b)
}
