package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrType is returned when a value does not fit the column's type.
	ErrType = errors.New("type mismatch")
	// ErrConstraint is returned when a value violates a column constraint.
	ErrConstraint = errors.New("constraint violation")
)

// Accepts reports whether v may be stored in a column of type t. Null is
// accepted by every type; nullability is a constraint, not a type property.
func (t ColType) Accepts(v Value) bool {
	switch v.Kind() {
	case NullKind:
		return true
	case IntKind:
		n, _ := v.AsInt()
		switch t {
		case IntType, DoubleType:
			return true
		case BoolType:
			return n == 0 || n == 1
		}
	case DoubleKind:
		return t == DoubleType
	case TextKind:
		return t == StringType
	}
	return false
}

// coerce widens an Integer stored in a DOUBLE column.
func (t ColType) coerce(v Value) Value {
	if n, ok := v.AsInt(); ok && t == DoubleType {
		return Double(float64(n))
	}
	return v
}

// ValidateRow checks row against t's schema and existing rows and returns the
// row as it should be stored.
func ValidateRow(t *Table, row Row) (Row, error) {
	if len(row) != len(t.Cols) {
		return nil, fmt.Errorf("%w: table %q has %d columns but %d values were supplied",
			ErrType, t.Name, len(t.Cols), len(row))
	}
	out := make(Row, len(row))
	for i, c := range t.Cols {
		v := row[i]
		if !c.Type.Accepts(v) {
			return nil, fmt.Errorf("%w: column %q is %s, got %s %s", ErrType, c.Name, c.Type, v.Kind(), v.SQL())
		}
		if v.IsNull() {
			if !c.Nullable() {
				return nil, fmt.Errorf("%w: column %q may not be NULL", ErrConstraint, c.Name)
			}
			continue
		}
		v = c.Type.coerce(v)
		if c.Distinct() {
			for _, r := range t.Rows {
				if i < len(r) && r[i] == v {
					return nil, fmt.Errorf("%w: duplicate value %s in column %q", ErrConstraint, v.SQL(), c.Name)
				}
			}
		}
		out[i] = v
	}
	return out, nil
}
