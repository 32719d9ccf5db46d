package engine

import "fmt"

// TokenKind classifies a lexical unit.
type TokenKind int

const (
	EOF TokenKind = iota
	ErrorToken

	Identifier
	StringLiteral
	Number

	GreaterThan
	LessThan
	Equals
	GreaterEqual
	LessEqual
	NotEquals

	Star
	Comma
	Semicolon
	LeftParen
	RightParen

	// keywords
	KwSelect
	KwFrom
	KwWhere
	KwAnd
	KwOr
	KwCreate
	KwDrop
	KwTable
	KwInsert
	KwInto
	KwValues
	KwInt
	KwDouble
	KwString
	KwBoolean
	KwNot
	KwNull
	KwUnique
	KwPrimary
	KwKey
)

var tokenNames = [...]string{
	EOF:           "END_OF_INPUT",
	ErrorToken:    "ERROR",
	Identifier:    "IDENTIFIER",
	StringLiteral: "STRING_LITERAL",
	Number:        "NUMBER",
	GreaterThan:   "GREATER_THAN",
	LessThan:      "LESS_THAN",
	Equals:        "EQUALS",
	GreaterEqual:  "GREATER_EQUAL",
	LessEqual:     "LESS_EQUAL",
	NotEquals:     "NOT_EQUALS",
	Star:          "STAR",
	Comma:         "COMMA",
	Semicolon:     "SEMICOLON",
	LeftParen:     "LEFT_PAREN",
	RightParen:    "RIGHT_PAREN",
	KwSelect:      "SELECT",
	KwFrom:        "FROM",
	KwWhere:       "WHERE",
	KwAnd:         "AND",
	KwOr:          "OR",
	KwCreate:      "CREATE",
	KwDrop:        "DROP",
	KwTable:       "TABLE",
	KwInsert:      "INSERT",
	KwInto:        "INTO",
	KwValues:      "VALUES",
	KwInt:         "INT",
	KwDouble:      "DOUBLE",
	KwString:      "STRING",
	KwBoolean:     "BOOLEAN",
	KwNot:         "NOT",
	KwNull:        "NULL",
	KwUnique:      "UNIQUE",
	KwPrimary:     "PRIMARY",
	KwKey:         "KEY",
}

func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(tokenNames) && tokenNames[k] != "" {
		return tokenNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// IsKeyword reports whether k is a reserved word.
func (k TokenKind) IsKeyword() bool { return k >= KwSelect && k <= KwKey }

// keywords maps the upper-cased spelling of every reserved word to its kind.
// Type names share a kind per value family.
var keywords = map[string]TokenKind{
	"SELECT":  KwSelect,
	"FROM":    KwFrom,
	"WHERE":   KwWhere,
	"AND":     KwAnd,
	"OR":      KwOr,
	"CREATE":  KwCreate,
	"DROP":    KwDrop,
	"TABLE":   KwTable,
	"INSERT":  KwInsert,
	"INTO":    KwInto,
	"VALUES":  KwValues,
	"INT":     KwInt,
	"INTEGER": KwInt,
	"DOUBLE":  KwDouble,
	"FLOAT":   KwDouble,
	"REAL":    KwDouble,
	"STRING":  KwString,
	"VARCHAR": KwString,
	"TEXT":    KwString,
	"BOOLEAN": KwBoolean,
	"BOOL":    KwBoolean,
	"NOT":     KwNot,
	"NULL":    KwNull,
	"UNIQUE":  KwUnique,
	"PRIMARY": KwPrimary,
	"KEY":     KwKey,
}

// lookupKeyword returns the keyword kind for word, or Identifier.
func lookupKeyword(word string) TokenKind {
	if k, ok := keywords[upper(word)]; ok {
		return k
	}
	return Identifier
}

// Token is a classified lexeme tagged with its byte offset in the source.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Pos    int
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return t.Kind.String()
	case Identifier, Number, ErrorToken:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Lexeme)
	case StringLiteral:
		return fmt.Sprintf("%s('%s')", t.Kind, t.Lexeme)
	}
	return t.Kind.String()
}

// describe names the token for error messages.
func (t Token) describe() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case StringLiteral:
		return fmt.Sprintf("string '%s'", t.Lexeme)
	case Identifier:
		return fmt.Sprintf("identifier %q", t.Lexeme)
	case Number:
		return fmt.Sprintf("number %s", t.Lexeme)
	}
	return fmt.Sprintf("%q", t.Lexeme)
}
