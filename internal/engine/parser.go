// Package engine provides a hand-written SQL parser for parallaxdb.
//
// What: It parses SELECT, INSERT, CREATE TABLE and DROP TABLE into statement
// records, and WHERE clauses into a small boolean expression tree.
// How: A recursive-descent parser over the lexer's token slice with a single
// token of lookahead and no backtracking. Every failure is an *Error carrying
// the byte offset of the offending token.
// Why: The grammar is LL(1), so a parser that owns its tokens and a cursor
// that only moves forward stays short and keeps error positions exact.
package engine

import (
	"fmt"
	"strconv"

	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// Parser holds the token stream and the cursor for recursive-descent parsing.
type Parser struct {
	toks []Token
	pos  int
}

// NewParser tokenizes sql and returns a parser positioned at the first token.
func NewParser(sql string) *Parser {
	return &Parser{toks: Tokenize(sql)}
}

// ParseSQL parses a single statement.
func ParseSQL(sql string) (Statement, error) {
	return NewParser(sql).ParseStatement()
}

func (p *Parser) cur() Token { return p.toks[p.pos] }

// next advances the cursor; it never moves past EOF.
func (p *Parser) next() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
}

func (p *Parser) at(k TokenKind) bool { return p.cur().Kind == k }

func (p *Parser) accept(k TokenKind) bool {
	if p.at(k) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(k TokenKind, what string) (Token, error) {
	t := p.cur()
	if t.Kind != k {
		return t, p.errf("expected %s, found %s", what, t.describe())
	}
	p.next()
	return t, nil
}

// errf reports an error at the current token. Reaching an ErrorToken is
// reported as the lexical problem it stands for.
func (p *Parser) errf(format string, a ...any) error {
	t := p.cur()
	if t.Kind == ErrorToken {
		msg := t.Lexeme
		if msg != "unterminated string" {
			msg = fmt.Sprintf("unexpected character %q", t.Lexeme)
		}
		return &Error{Kind: LexError, Msg: msg, Pos: t.Pos, Lexeme: t.Lexeme}
	}
	return &Error{Kind: SyntaxError, Msg: fmt.Sprintf(format, a...), Pos: t.Pos, Lexeme: t.Lexeme}
}

// ------------------------------ AST ------------------------------

// Statement is one of *Select, *Insert, *CreateTable or *DropTable.
type Statement interface{ stmt() }

// Select is a parsed query. It is consumed by BuildPlan.
type Select struct {
	Star    bool
	Columns []string
	Table   string
	Where   Expr // nil without WHERE
}

// Insert represents INSERT INTO t [(cols)] VALUES (...), (...).
type Insert struct {
	Table   string
	Columns []string
	Rows    []storage.Row
}

// CreateTable represents a CREATE TABLE statement.
type CreateTable struct {
	Table  string
	Schema storage.Schema
}

// DropTable represents a DROP TABLE statement.
type DropTable struct{ Table string }

func (*Select) stmt()      {}
func (*Insert) stmt()      {}
func (*CreateTable) stmt() {}
func (*DropTable) stmt()   {}

// ------------------------------ Parse ------------------------------

// ParseStatement parses a single SQL statement. A trailing semicolon is
// allowed; anything else after the statement is an error.
func (p *Parser) ParseStatement() (Statement, error) {
	var (
		st  Statement
		err error
	)
	switch p.cur().Kind {
	case KwSelect:
		st, err = p.parseSelect()
	case KwInsert:
		st, err = p.parseInsert()
	case KwCreate:
		st, err = p.parseCreate()
	case KwDrop:
		st, err = p.parseDrop()
	default:
		return nil, p.errf("expected SELECT, INSERT, CREATE or DROP, found %s", p.cur().describe())
	}
	if err != nil {
		return nil, err
	}
	p.accept(Semicolon)
	if !p.at(EOF) {
		return nil, p.errf("unexpected %s after end of statement", p.cur().describe())
	}
	return st, nil
}

func (p *Parser) parseSelect() (*Select, error) {
	p.next()
	sel := &Select{}
	if p.accept(Star) {
		sel.Star = true
	} else {
		cols, err := p.parseIdentList("column name or '*'")
		if err != nil {
			return nil, err
		}
		sel.Columns = cols
	}
	if _, err := p.expect(KwFrom, "FROM"); err != nil {
		return nil, err
	}
	t, err := p.expect(Identifier, "table name")
	if err != nil {
		return nil, err
	}
	sel.Table = t.Lexeme
	if p.accept(KwWhere) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = e
	}
	return sel, nil
}

// parseIdentList parses ident (',' ident)*.
func (p *Parser) parseIdentList(what string) ([]string, error) {
	var out []string
	for {
		t, err := p.expect(Identifier, what)
		if err != nil {
			return nil, err
		}
		out = append(out, t.Lexeme)
		if !p.accept(Comma) {
			return out, nil
		}
	}
}

// parseLiteral parses a NUMBER, STRING or NULL value.
func (p *Parser) parseLiteral() (storage.Value, error) {
	t := p.cur()
	switch t.Kind {
	case Number:
		v, err := parseNumber(t)
		if err != nil {
			return storage.Value{}, err
		}
		p.next()
		return v, nil
	case StringLiteral:
		p.next()
		return storage.Text(t.Lexeme), nil
	case KwNull:
		p.next()
		return storage.Null(), nil
	}
	return storage.Value{}, p.errf("expected value, found %s", t.describe())
}

// parseNumber tries an integer first and falls back to a double.
func parseNumber(t Token) (storage.Value, error) {
	if n, err := strconv.ParseInt(t.Lexeme, 10, 64); err == nil {
		return storage.Int(n), nil
	}
	if f, err := strconv.ParseFloat(t.Lexeme, 64); err == nil {
		return storage.Double(f), nil
	}
	return storage.Value{}, &Error{Kind: FormatError, Msg: fmt.Sprintf("invalid number %q", t.Lexeme), Pos: t.Pos, Lexeme: t.Lexeme}
}
