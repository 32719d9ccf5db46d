package storage

import "strings"

// ColType enumerates the declared column types.
type ColType int

const (
	IntType ColType = iota
	DoubleType
	StringType
	BoolType
)

var colTypeToString = map[ColType]string{
	IntType:    "INT",
	DoubleType: "DOUBLE",
	StringType: "STRING",
	BoolType:   "BOOLEAN",
}

func (t ColType) String() string {
	if s, ok := colTypeToString[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ConstraintType enumerates supported column constraints.
type ConstraintType int

const (
	NotNull ConstraintType = iota
	Unique
	PrimaryKey
)

func (c ConstraintType) String() string {
	switch c {
	case NotNull:
		return "NOT NULL"
	case Unique:
		return "UNIQUE"
	case PrimaryKey:
		return "PRIMARY KEY"
	default:
		return ""
	}
}

// Column holds column schema information in a table.
type Column struct {
	Name        string
	Type        ColType
	Constraints []ConstraintType
}

// Has reports whether the column declares constraint c.
func (c Column) Has(ct ConstraintType) bool {
	for _, x := range c.Constraints {
		if x == ct {
			return true
		}
	}
	return false
}

// Nullable reports whether Null may be stored in the column.
func (c Column) Nullable() bool { return !c.Has(NotNull) && !c.Has(PrimaryKey) }

// Distinct reports whether non-null values must be unique in the column.
func (c Column) Distinct() bool { return c.Has(Unique) || c.Has(PrimaryKey) }

// String renders the column the way CREATE TABLE declares it.
func (c Column) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(c.Type.String())
	for _, ct := range c.Constraints {
		b.WriteByte(' ')
		b.WriteString(ct.String())
	}
	return b.String()
}

// Schema is a table name plus its ordered column list.
type Schema struct {
	Table string
	Cols  []Column
}

// ColIndex resolves name to its position with a first-match linear scan.
// Names compare case-sensitively; duplicates resolve to the earliest column.
func ColIndex(cols []Column, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// String renders the schema as a CREATE TABLE statement.
func (s Schema) String() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(s.Table)
	b.WriteString(" (")
	for i, c := range s.Cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteString(")")
	return b.String()
}
