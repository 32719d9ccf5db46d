// Package storage provides the in-memory data structures for parallaxdb.
//
// What: A catalog of tables keyed by name, each holding its column schema and
// an append-only list of rows made of tagged values (Integer, Double, Text,
// Null). Inserted rows are validated against the declared column types and
// constraints.
// How: Tables store rows as []Row in insertion order; the catalog is a plain
// map. Column lookup is a first-match linear scan so duplicate names resolve
// to the earliest column, which is what the query evaluator relies on.
// Why: The SQL front-end only needs an ordered column list and an ordered row
// list; everything else (durability, indexing, locking) is out of scope and
// kept out of this package.
package storage

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoSuchTable is returned when a statement names an unknown table.
	ErrNoSuchTable = errors.New("no such table")
	// ErrTableExists is returned by CreateTable for a taken name.
	ErrTableExists = errors.New("table already exists")
)

// Table stores rows along with column metadata.
type Table struct {
	Name string
	Cols []Column
	Rows []Row
}

// NewTable creates an empty table.
func NewTable(name string, cols []Column) *Table {
	return &Table{Name: name, Cols: cols}
}

// ColIndex returns the zero-based index of the named column, or -1.
func (t *Table) ColIndex(name string) int { return ColIndex(t.Cols, name) }

// ColNames returns the column names in declaration order.
func (t *Table) ColNames() []string {
	out := make([]string, len(t.Cols))
	for i, c := range t.Cols {
		out[i] = c.Name
	}
	return out
}

// Schema returns the table's schema.
func (t *Table) Schema() Schema { return Schema{Table: t.Name, Cols: t.Cols} }

// Append validates row against the schema and the existing rows and appends
// it. The stored row may differ from the argument where a value is widened
// (Integer into a DOUBLE column).
func (t *Table) Append(row Row) error {
	r, err := ValidateRow(t, row)
	if err != nil {
		return err
	}
	t.Rows = append(t.Rows, r)
	return nil
}

// DB is an in-memory catalog of tables keyed by their exact name.
// It performs no locking; callers serialize access.
type DB struct {
	tables map[string]*Table
}

// NewDB creates a new empty database catalog.
func NewDB() *DB {
	return &DB{tables: map[string]*Table{}}
}

// Exists reports whether a table with that name exists.
func (db *DB) Exists(name string) bool {
	_, ok := db.tables[name]
	return ok
}

// Table returns a table by name.
func (db *DB) Table(name string) (*Table, error) {
	t, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoSuchTable, name)
	}
	return t, nil
}

// CreateTable adds a new empty table for the schema.
func (db *DB) CreateTable(s Schema) (*Table, error) {
	if s.Table == "" {
		return nil, errors.New("create table: empty table name")
	}
	if db.Exists(s.Table) {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, s.Table)
	}
	cols := make([]Column, len(s.Cols))
	copy(cols, s.Cols)
	t := NewTable(s.Table, cols)
	db.tables[s.Table] = t
	return t, nil
}

// DropTable removes a table.
func (db *DB) DropTable(name string) error {
	if !db.Exists(name) {
		return fmt.Errorf("%w %q", ErrNoSuchTable, name)
	}
	delete(db.tables, name)
	return nil
}

// Insert appends one row to the named table. When cols is non-empty the
// values are matched to those columns by name and the remaining columns
// receive Null.
func (db *DB) Insert(name string, cols []string, vals Row) error {
	t, err := db.Table(name)
	if err != nil {
		return err
	}
	row := vals
	if len(cols) > 0 {
		if row, err = arrange(t, cols, vals); err != nil {
			return err
		}
	}
	return t.Append(row)
}

func arrange(t *Table, cols []string, vals Row) (Row, error) {
	if len(cols) != len(vals) {
		return nil, fmt.Errorf("insert into %q: %d columns but %d values", t.Name, len(cols), len(vals))
	}
	row := make(Row, len(t.Cols))
	seen := make(map[int]bool, len(cols))
	for i, c := range cols {
		idx := t.ColIndex(c)
		if idx < 0 {
			return nil, fmt.Errorf("insert into %q: unknown column %q", t.Name, c)
		}
		if seen[idx] {
			return nil, fmt.Errorf("insert into %q: column %q listed twice", t.Name, c)
		}
		seen[idx] = true
		row[idx] = vals[i]
	}
	return row, nil
}

// TableNames returns the table names sorted.
func (db *DB) TableNames() []string {
	names := make([]string, 0, len(db.tables))
	for k := range db.tables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Tables returns the tables sorted by name.
func (db *DB) Tables() []*Table {
	names := db.TableNames()
	if len(names) == 0 {
		return nil
	}
	out := make([]*Table, len(names))
	for i, n := range names {
		out[i] = db.tables[n]
	}
	return out
}
