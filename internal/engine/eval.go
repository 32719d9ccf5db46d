package engine

import (
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// Eval reports whether e holds for row, whose layout is described by cols.
// Evaluation never fails: an unknown column, a short row or a comparison
// between values that cannot be ordered all yield false.
func Eval(e Expr, row storage.Row, cols []storage.Column) bool {
	switch n := e.(type) {
	case *Comparison:
		idx := storage.ColIndex(cols, n.Column)
		if idx < 0 || idx >= len(row) {
			return false
		}
		return compareValues(n.Op, row[idx], n.Value)
	case *Logical:
		switch n.Op {
		case OpAnd:
			return Eval(n.Left, row, cols) && Eval(n.Right, row, cols)
		case OpOr:
			return Eval(n.Left, row, cols) || Eval(n.Right, row, cols)
		}
		return false
	case *Paren:
		return Eval(n.Inner, row, cols)
	}
	return false
}

func compareValues(op CmpOp, a, b storage.Value) bool {
	switch op {
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	}
	if x, ok := a.AsInt(); ok {
		if y, ok := b.AsInt(); ok {
			return order(op, x, y)
		}
		return false
	}
	if x, ok := a.AsDouble(); ok {
		if y, ok := b.AsDouble(); ok {
			return order(op, x, y)
		}
	}
	return false
}

func order[T int64 | float64](op CmpOp, a, b T) bool {
	switch op {
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	case OpGE:
		return a >= b
	case OpLE:
		return a <= b
	}
	return false
}
