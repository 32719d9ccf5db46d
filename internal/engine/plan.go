package engine

import (
	"fmt"
	"strings"

	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// Plan is an executable query tree: a *Scan, or a *Filter over a Scan.
// Plans borrow their table; it must outlive the plan and must not change
// while the plan runs.
type Plan interface {
	plan()
	// Table returns the table the plan reads.
	Table() *storage.Table
	// Columns names the columns of the rows the plan emits.
	Columns() []string
}

// Scan emits the rows of a table in insertion order, optionally projected.
type Scan struct {
	table     *storage.Table
	proj      []int
	projected bool
}

// Filter emits the table rows for which its expression holds. It holds its
// Scan by value, so a Filter over anything but a Scan cannot be built.
type Filter struct {
	scan Scan
	expr Expr
}

func (*Scan) plan()   {}
func (*Filter) plan() {}

// NewScan resolves cols against t once. Names that do not resolve are
// dropped; when none resolve the scan emits every column.
func NewScan(t *storage.Table, cols []string) *Scan {
	s := &Scan{table: t}
	for _, c := range cols {
		if i := t.ColIndex(c); i >= 0 {
			s.proj = append(s.proj, i)
		}
	}
	s.projected = len(s.proj) > 0
	return s
}

// NewFilter wraps scan; the filter reads the same table as the scan.
func NewFilter(scan *Scan, e Expr) *Filter {
	return &Filter{scan: *scan, expr: e}
}

func (s *Scan) Table() *storage.Table { return s.table }

// Projection returns the resolved column indices; empty means all columns.
func (s *Scan) Projection() []int { return append([]int(nil), s.proj...) }

func (s *Scan) Columns() []string {
	if !s.projected {
		return s.table.ColNames()
	}
	out := make([]string, len(s.proj))
	for i, idx := range s.proj {
		out[i] = s.table.Cols[idx].Name
	}
	return out
}

func (f *Filter) Table() *storage.Table { return f.scan.table }
func (f *Filter) Scan() *Scan           { s := f.scan; return &s }
func (f *Filter) Expr() Expr            { return f.expr }

// Columns is always the full column list: a Filter emits whole rows.
func (f *Filter) Columns() []string { return f.scan.table.ColNames() }

// BuildPlan turns a parsed SELECT into Scan or Filter(Scan) over t.
func BuildPlan(sel *Select, t *storage.Table) Plan {
	var cols []string
	if !sel.Star {
		cols = sel.Columns
		if cols == nil {
			cols = []string{}
		}
	}
	scan := NewScan(t, cols)
	if sel.Where == nil {
		return scan
	}
	return NewFilter(scan, sel.Where)
}

// TableSource resolves table names for the plan builder. *storage.DB
// implements it.
type TableSource interface {
	Table(name string) (*storage.Table, error)
}

// PlanQuery parses a SELECT and builds its plan against the table it names.
// On any failure no plan is returned.
func PlanQuery(sql string, src TableSource) (Plan, error) {
	st, err := ParseSQL(sql)
	if err != nil {
		return nil, err
	}
	sel, ok := st.(*Select)
	if !ok {
		return nil, fmt.Errorf("plan: %T is not a query", st)
	}
	t, err := src.Table(sel.Table)
	if err != nil {
		return nil, err
	}
	return BuildPlan(sel, t), nil
}

// Explain renders the plan tree, one node per line.
func Explain(p Plan) string {
	var b strings.Builder
	switch n := p.(type) {
	case *Scan:
		writeScan(&b, n, "")
	case *Filter:
		fmt.Fprintf(&b, "Filter %s WHERE %s\n", n.Table().Name, n.expr)
		writeScan(&b, &n.scan, "  ")
	}
	return b.String()
}

func writeScan(b *strings.Builder, s *Scan, indent string) {
	cols := "*"
	if s.projected {
		cols = strings.Join(s.Columns(), ", ")
	}
	fmt.Fprintf(b, "%sScan %s [%s]\n", indent, s.table.Name, cols)
}
