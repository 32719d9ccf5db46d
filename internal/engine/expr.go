package engine

import (
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// Expr is a WHERE-clause expression: *Comparison, *Logical or *Paren.
// Nodes are never modified after the parser builds them.
type Expr interface {
	expr()
	String() string
}

// CmpOp is one of the six comparison operators.
type CmpOp string

const (
	OpGT CmpOp = ">"
	OpLT CmpOp = "<"
	OpEQ CmpOp = "="
	OpGE CmpOp = ">="
	OpLE CmpOp = "<="
	OpNE CmpOp = "!="
)

var cmpOps = map[TokenKind]CmpOp{
	GreaterThan:  OpGT,
	LessThan:     OpLT,
	Equals:       OpEQ,
	GreaterEqual: OpGE,
	LessEqual:    OpLE,
	NotEquals:    OpNE,
}

// LogicOp combines two boolean expressions.
type LogicOp string

const (
	OpAnd LogicOp = "AND"
	OpOr  LogicOp = "OR"
)

type (
	// Comparison compares a column of the current row with a literal.
	Comparison struct {
		Column string
		Op     CmpOp
		Value  storage.Value
	}
	// Logical joins two expressions with AND or OR.
	Logical struct {
		Op          LogicOp
		Left, Right Expr
	}
	// Paren keeps explicit parentheses so the expression prints as written.
	// Grouping itself is already encoded in the tree shape.
	Paren struct{ Inner Expr }
)

func (*Comparison) expr() {}
func (*Logical) expr()    {}
func (*Paren) expr()      {}

func (c *Comparison) String() string {
	return c.Column + " " + string(c.Op) + " " + c.Value.SQL()
}

func (l *Logical) String() string {
	return l.Left.String() + " " + string(l.Op) + " " + l.Right.String()
}

func (p *Paren) String() string { return "(" + p.Inner.String() + ")" }

// ParseExpr parses a standalone WHERE expression; the whole input must be
// consumed.
func ParseExpr(text string) (Expr, error) {
	p := NewParser(text)
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(EOF) {
		return nil, p.errf("unexpected %s after expression", p.cur().describe())
	}
	return e, nil
}

// Expressions, lowest to highest binding: OR, AND, primary.
func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(KwOr) {
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &Logical{Op: OpOr, Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	l, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.accept(KwAnd) {
		r, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		l = &Logical{Op: OpAnd, Left: l, Right: r}
	}
	return l, nil
}

// parsePrimary parses '(' expr ')' or column op literal.
func (p *Parser) parsePrimary() (Expr, error) {
	if p.accept(LeftParen) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RightParen, "')'"); err != nil {
			return nil, err
		}
		return &Paren{Inner: e}, nil
	}
	col, err := p.expect(Identifier, "column name or '('")
	if err != nil {
		return nil, err
	}
	op, ok := cmpOps[p.cur().Kind]
	if !ok {
		return nil, p.errf("expected comparison operator, found %s", p.cur().describe())
	}
	p.next()
	v, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &Comparison{Column: col.Lexeme, Op: op, Value: v}, nil
}
