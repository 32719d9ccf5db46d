package engine

import (
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// typeKeywords maps type keywords to the value family a column accepts.
var typeKeywords = map[TokenKind]storage.ColType{
	KwInt:     storage.IntType,
	KwDouble:  storage.DoubleType,
	KwString:  storage.StringType,
	KwBoolean: storage.BoolType,
}

func (p *Parser) parseCreate() (*CreateTable, error) {
	p.next()
	if _, err := p.expect(KwTable, "TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expect(Identifier, "table name")
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnDefs()
	if err != nil {
		return nil, err
	}
	return &CreateTable{Table: name.Lexeme, Schema: storage.Schema{Table: name.Lexeme, Cols: cols}}, nil
}

func (p *Parser) parseDrop() (*DropTable, error) {
	p.next()
	if _, err := p.expect(KwTable, "TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expect(Identifier, "table name")
	if err != nil {
		return nil, err
	}
	return &DropTable{Table: name.Lexeme}, nil
}

func (p *Parser) parseColumnDefs() ([]storage.Column, error) {
	if _, err := p.expect(LeftParen, "'('"); err != nil {
		return nil, err
	}
	cols := make([]storage.Column, 0, 8)
	for {
		col, err := p.parseSingleColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.accept(Comma) {
			continue
		}
		if _, err := p.expect(RightParen, "',' or ')'"); err != nil {
			return nil, err
		}
		return cols, nil
	}
}

func (p *Parser) parseSingleColumnDef() (storage.Column, error) {
	name, err := p.expect(Identifier, "column name")
	if err != nil {
		return storage.Column{}, err
	}
	typ, ok := typeKeywords[p.cur().Kind]
	if !ok {
		if p.at(Identifier) {
			return storage.Column{}, p.errf("unknown type %q for column %q", p.cur().Lexeme, name.Lexeme)
		}
		return storage.Column{}, p.errf("expected type for column %q, found %s", name.Lexeme, p.cur().describe())
	}
	p.next()
	col := storage.Column{Name: name.Lexeme, Type: typ}
	p.parseColumnConstraints(&col)
	return col, nil
}

// parseColumnConstraints consumes every word up to the next ',' or ')'.
// NOT NULL, UNIQUE and PRIMARY KEY are recorded; any other word is dropped.
func (p *Parser) parseColumnConstraints(col *storage.Column) {
	add := func(c storage.ConstraintType) {
		if !col.Has(c) {
			col.Constraints = append(col.Constraints, c)
		}
	}
	for p.at(Identifier) || p.cur().Kind.IsKeyword() {
		switch p.cur().Kind {
		case KwNot:
			p.next()
			if p.accept(KwNull) {
				add(storage.NotNull)
			}
		case KwUnique:
			p.next()
			add(storage.Unique)
		case KwPrimary:
			p.next()
			if p.accept(KwKey) {
				add(storage.PrimaryKey)
			}
		default:
			p.next()
		}
	}
}
