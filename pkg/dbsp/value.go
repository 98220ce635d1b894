package dbsp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar stored in a row column. The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	s    string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// ValueOf converts a native Go scalar into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint32:
		return Int(int64(x)), nil
	case float64:
		// JSON and YAML decoders hand numbers over as float64
		if x != float64(int64(x)) {
			return Value{}, fmt.Errorf("%w: non-integral number %v", ErrInvalidValue, x)
		}
		return Int(int64(x)), nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Int(i), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the integer payload and whether the value is an integer.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsText returns the string payload and whether the value is a string.
func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// Equal is structural equality, Null equals Null.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.i == o.i && v.s == o.s
}

// Compare orders values as Null < Int < Text, then by payload.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		if v.kind < o.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case KindInt:
		switch {
		case v.i < o.i:
			return -1
		case v.i > o.i:
			return 1
		}
		return 0
	case KindText:
		return strings.Compare(v.s, o.s)
	}
	return 0
}

// Native returns the value as nil, int64 or string.
func (v Value) Native() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindText:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return strconv.Quote(v.s)
	}
	return "NULL"
}

// MarshalJSON encodes the value as a JSON number, string or null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// UnmarshalJSON decodes a JSON number, string or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}
