package storage

import (
	"strconv"
)

// Kind tags the alternative held by a Value.
type Kind uint8

const (
	NullKind Kind = iota
	IntKind
	DoubleKind
	TextKind
)

var kindNames = [...]string{
	NullKind:   "NULL",
	IntKind:    "INTEGER",
	DoubleKind: "DOUBLE",
	TextKind:   "TEXT",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Value is a dynamically typed cell: exactly one of Integer, Double, Text or
// Null. Values are comparable with ==; two values of different kinds are never
// equal. The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Null returns the Null value.
func Null() Value { return Value{} }

// Int returns an Integer value.
func Int(v int64) Value { return Value{kind: IntKind, i: v} }

// Double returns a Double value.
func Double(v float64) Value { return Value{kind: DoubleKind, f: v} }

// Text returns a Text value.
func Text(v string) Value { return Value{kind: TextKind, s: v} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == NullKind }

// AsInt returns the Integer payload; ok is false for any other kind.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == IntKind }

// AsDouble returns the Double payload; ok is false for any other kind.
func (v Value) AsDouble() (float64, bool) { return v.f, v.kind == DoubleKind }

// AsText returns the Text payload; ok is false for any other kind.
func (v Value) AsText() (string, bool) { return v.s, v.kind == TextKind }

// Equal reports tagged equality. Cross-kind pairs are unequal, Null equals Null.
func (v Value) Equal(o Value) bool { return v == o }

// Native converts the value to the Go type used at API boundaries:
// int64, float64, string or nil.
func (v Value) Native() any {
	switch v.kind {
	case IntKind:
		return v.i
	case DoubleKind:
		return v.f
	case TextKind:
		return v.s
	default:
		return nil
	}
}

// String renders the value for display. Text is returned unquoted.
func (v Value) String() string {
	switch v.kind {
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case DoubleKind:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TextKind:
		return v.s
	default:
		return "NULL"
	}
}

// SQL renders the value as a literal. Text containing a quote does not
// survive a round trip because the lexer keeps escapes undecoded.
func (v Value) SQL() string {
	switch v.kind {
	case TextKind:
		return "'" + v.s + "'"
	case DoubleKind:
		s := strconv.FormatFloat(v.f, 'f', -1, 64)
		for i := 0; i < len(s); i++ {
			if s[i] == '.' {
				return s
			}
		}
		return s + ".0"
	default:
		return v.String()
	}
}

// FromNative converts a Go value into a Value. Integer and float widths are
// normalized to int64 and float64; bools become Integer 0/1.
func FromNative(x any) (Value, bool) {
	switch t := x.(type) {
	case nil:
		return Null(), true
	case Value:
		return t, true
	case int:
		return Int(int64(t)), true
	case int8:
		return Int(int64(t)), true
	case int16:
		return Int(int64(t)), true
	case int32:
		return Int(int64(t)), true
	case int64:
		return Int(t), true
	case uint8:
		return Int(int64(t)), true
	case uint16:
		return Int(int64(t)), true
	case uint32:
		return Int(int64(t)), true
	case float32:
		return Double(float64(t)), true
	case float64:
		return Double(t), true
	case string:
		return Text(t), true
	case []byte:
		return Text(string(t)), true
	case bool:
		if t {
			return Int(1), true
		}
		return Int(0), true
	}
	return Null(), false
}

// Row is an ordered list of values aligned with a table's columns.
type Row []Value

// Native converts every cell with Value.Native.
func (r Row) Native() []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v.Native()
	}
	return out
}
