// Package engine contains the SQL lexer used by the parser.
//
// What: A single-pass tokenizer that recognizes identifiers, keywords,
// numeric and string literals, comparison operators and punctuation, and
// always terminates the stream with exactly one EOF token.
// How: A byte scanner with one character of lookahead. Two-character
// operators (>=, <=, !=) are resolved here so the parser never needs more
// than one token of lookahead. Keywords come from a single static table
// consulted once per identifier.
// Why: The lexer never fails. Malformed input becomes an ErrorToken carrying
// the offending text and offset, and only turns into an error when the parser
// actually reaches it.
package engine

import "unicode/utf8"

type lexer struct {
	s   string
	pos int
}

func newLexer(s string) *lexer { return &lexer{s: s} }

// Tokenize splits text into tokens. The result always ends with a single EOF
// token whose Pos equals len(text).
func Tokenize(text string) []Token {
	lx := newLexer(text)
	toks := make([]Token, 0, len(text)/4+1)
	for {
		t := lx.nextToken()
		toks = append(toks, t)
		if t.Kind == EOF {
			return toks
		}
	}
}

func (lx *lexer) peek() byte { return lx.peekN(0) }

func (lx *lexer) peekN(n int) byte {
	p := lx.pos + n
	if p >= len(lx.s) {
		return 0
	}
	return lx.s[p]
}

func (lx *lexer) skipWS() {
	for lx.pos < len(lx.s) && isSpace(lx.s[lx.pos]) {
		lx.pos++
	}
}

func (lx *lexer) nextToken() Token {
	lx.skipWS()
	start := lx.pos
	if start >= len(lx.s) {
		return Token{Kind: EOF, Pos: start}
	}
	c := lx.peek()
	switch {
	case c == '\'':
		return lx.tokenizeString(start)
	case isDigit(c):
		return lx.tokenizeNumber(start)
	case isLetter(c):
		return lx.tokenizeIdentOrKeyword(start)
	}
	return lx.tokenizeSymbol(start)
}

// tokenizeString scans '...'. A backslash skips the following character; the
// lexeme is the raw text between the quotes with escapes left as written.
func (lx *lexer) tokenizeString(start int) Token {
	lx.pos++ // opening quote
	for lx.pos < len(lx.s) && lx.s[lx.pos] != '\'' {
		if lx.s[lx.pos] == '\\' && lx.pos+1 < len(lx.s) {
			lx.pos += 2
			continue
		}
		lx.pos++
	}
	if lx.pos >= len(lx.s) {
		return Token{Kind: ErrorToken, Lexeme: "unterminated string", Pos: start}
	}
	lx.pos++ // closing quote
	return Token{Kind: StringLiteral, Lexeme: lx.s[start+1 : lx.pos-1], Pos: start}
}

// tokenizeNumber scans digits with at most one decimal point. Signs and
// exponents are not part of a number.
func (lx *lexer) tokenizeNumber(start int) Token {
	dot := false
	for lx.pos < len(lx.s) {
		c := lx.s[lx.pos]
		if c == '.' && !dot {
			dot = true
		} else if !isDigit(c) {
			break
		}
		lx.pos++
	}
	return Token{Kind: Number, Lexeme: lx.s[start:lx.pos], Pos: start}
}

func (lx *lexer) tokenizeIdentOrKeyword(start int) Token {
	for lx.pos < len(lx.s) {
		c := lx.s[lx.pos]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			break
		}
		lx.pos++
	}
	word := lx.s[start:lx.pos]
	return Token{Kind: lookupKeyword(word), Lexeme: word, Pos: start}
}

func (lx *lexer) tokenizeSymbol(start int) Token {
	c := lx.peek()
	single := func(k TokenKind) Token {
		lx.pos++
		return Token{Kind: k, Lexeme: lx.s[start:lx.pos], Pos: start}
	}
	pair := func(one, two TokenKind) Token {
		if lx.peekN(1) == '=' {
			lx.pos += 2
			return Token{Kind: two, Lexeme: lx.s[start:lx.pos], Pos: start}
		}
		return single(one)
	}
	switch c {
	case '*':
		return single(Star)
	case ',':
		return single(Comma)
	case ';':
		return single(Semicolon)
	case '(':
		return single(LeftParen)
	case ')':
		return single(RightParen)
	case '=':
		return single(Equals)
	case '>':
		return pair(GreaterThan, GreaterEqual)
	case '<':
		return pair(LessThan, LessEqual)
	case '!':
		// a lone '!' is not an operator
		return pair(ErrorToken, NotEquals)
	}
	_, size := utf8.DecodeRuneInString(lx.s[start:])
	lx.pos += size
	return Token{Kind: ErrorToken, Lexeme: lx.s[start:lx.pos], Pos: start}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func isDigit(c byte) bool  { return '0' <= c && c <= '9' }
func isLetter(c byte) bool { return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') }
