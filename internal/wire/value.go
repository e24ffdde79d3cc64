package wire

import (
	"strconv"
	"time"
)

// Kind discriminates the literal held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a typed scalar, optionally stamped with the time it was recorded.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Time  time.Time
}

func NilValue() Value {
	return Value{Kind: KindNil}
}

func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

func IntValue(n int64) Value {
	return Value{Kind: KindInt, Int: n}
}

func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// At returns a copy of v stamped with t.
func (v Value) At(t time.Time) Value {
	v.Time = t
	return v
}

func (v Value) HasTime() bool {
	return !v.Time.IsZero()
}

func (v Value) IsNil() bool {
	return v.Kind == KindNil
}

// Float64 returns the numeric value of v, if it has one.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// Equal compares literals and timestamps, ignoring time zone and monotonic readings.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || !v.Time.Equal(o.Time) {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	default:
		return true
	}
}

// Literal renders the value without its timestamp.
func (v Value) Literal() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindString:
		return v.Str
	default:
		return "nil"
	}
}

func (v Value) String() string {
	if !v.HasTime() {
		return v.Literal()
	}
	return v.Literal() + " @ " + v.Time.Format(time.RFC3339Nano)
}
