package xvalue

import (
	"fmt"
	"strconv"
)

// Type is the tag byte written in front of every encoded Value.
type Type byte

const (
	Unknown Type = iota
	TypeInt
	TypeUInt
	TypeFloat
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeUInt:
		return "UInt"
	case TypeFloat:
		return "Float"
	case TypeString:
		return "String"
	default:
		return "Unknown"
	}
}

// Value holds exactly one primitive of one of the supported types. The zero Value is Unknown.
type Value struct {
	typ Type
	i   int32
	u   uint32
	f   float32
	s   string
}

func Int(v int32) Value {
	return Value{typ: TypeInt, i: v}
}

func UInt(v uint32) Value {
	return Value{typ: TypeUInt, u: v}
}

func Float(v float32) Value {
	return Value{typ: TypeFloat, f: v}
}

func String(v string) Value {
	return Value{typ: TypeString, s: v}
}

// Type returns the tag of the value.
func (v Value) Type() Type {
	return v.typ
}

func (v Value) Int() (int32, bool) {
	return v.i, v.typ == TypeInt
}

func (v Value) UInt() (uint32, bool) {
	return v.u, v.typ == TypeUInt
}

func (v Value) Float() (float32, bool) {
	return v.f, v.typ == TypeFloat
}

func (v Value) Str() (string, bool) {
	return v.s, v.typ == TypeString
}

// Equal reports whether both values have the same type and content.
func (v Value) Equal(other Value) bool {
	return v == other
}

// String formats the value for display. Numbers are always formatted with the "C" conventions
// regardless of the process locale.
func (v Value) String() string {
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(int64(v.i), 10)
	case TypeUInt:
		return strconv.FormatUint(uint64(v.u), 10)
	case TypeFloat:
		return fmt.Sprintf("%f", v.f)
	case TypeString:
		return v.s
	default:
		return "Unknown"
	}
}
