package engine

import (
	"iter"
	"slices"

	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// ResultSet holds the column order and the rows returned by a query.
type ResultSet struct {
	Cols []string
	Rows []storage.Row
}

// Rows streams the rows a plan emits in table order. Nothing is buffered;
// the table must not change while the sequence is being consumed.
func Rows(p Plan) iter.Seq[storage.Row] {
	switch n := p.(type) {
	case *Scan:
		return scanRows(n)
	case *Filter:
		return filterRows(n)
	}
	return func(func(storage.Row) bool) {}
}

func scanRows(s *Scan) iter.Seq[storage.Row] {
	return func(yield func(storage.Row) bool) {
		for _, r := range s.table.Rows {
			if s.projected {
				out := make(storage.Row, len(s.proj))
				for i, idx := range s.proj {
					if idx < len(r) {
						out[i] = r[idx]
					}
				}
				r = out
			}
			if !yield(r) {
				return
			}
		}
	}
}

// filterRows emits whole table rows; the scan's projection is not applied.
func filterRows(f *Filter) iter.Seq[storage.Row] {
	t := f.scan.table
	return func(yield func(storage.Row) bool) {
		for _, r := range t.Rows {
			if Eval(f.expr, r, t.Cols) && !yield(r) {
				return
			}
		}
	}
}

// Run executes p and collects its output.
func Run(p Plan) *ResultSet {
	rows := slices.Collect(Rows(p))
	if rows == nil {
		rows = []storage.Row{}
	}
	return &ResultSet{Cols: p.Columns(), Rows: rows}
}
