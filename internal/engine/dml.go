package engine

import (
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

func (p *Parser) parseInsert() (*Insert, error) {
	p.next()
	if _, err := p.expect(KwInto, "INTO"); err != nil {
		return nil, err
	}
	name, err := p.expect(Identifier, "table name")
	if err != nil {
		return nil, err
	}
	ins := &Insert{Table: name.Lexeme}
	if p.accept(LeftParen) {
		if ins.Columns, err = p.parseIdentList("column name"); err != nil {
			return nil, err
		}
		if _, err := p.expect(RightParen, "',' or ')'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(KwValues, "VALUES"); err != nil {
		return nil, err
	}
	for {
		row, err := p.parseValueList()
		if err != nil {
			return nil, err
		}
		ins.Rows = append(ins.Rows, row)
		if !p.accept(Comma) {
			return ins, nil
		}
	}
}

// parseValueList parses '(' literal (',' literal)* ')'.
func (p *Parser) parseValueList() (storage.Row, error) {
	if _, err := p.expect(LeftParen, "'('"); err != nil {
		return nil, err
	}
	var row storage.Row
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		row = append(row, v)
		if p.accept(Comma) {
			continue
		}
		if _, err := p.expect(RightParen, "',' or ')'"); err != nil {
			return nil, err
		}
		return row, nil
	}
}
