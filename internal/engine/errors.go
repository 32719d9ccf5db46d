package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a parse failure.
type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	LexError
	FormatError
)

var (
	ErrSyntax = errors.New("syntax error")
	ErrLex    = errors.New("lexical error")
	ErrFormat = errors.New("invalid number")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case LexError:
		return ErrLex
	case FormatError:
		return ErrFormat
	default:
		return ErrSyntax
	}
}

func (k ErrorKind) String() string { return k.sentinel().Error() }

// Error is a parse failure tagged with the byte offset of the offending token,
// so callers can point at it in the original query text.
type Error struct {
	Kind   ErrorKind
	Msg    string
	Pos    int
	Lexeme string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Pos, e.Msg)
}

// Unwrap exposes ErrSyntax, ErrLex or ErrFormat to errors.Is.
func (e *Error) Unwrap() error { return e.Kind.sentinel() }

// Caret returns the line of src containing the error followed by a line with
// a caret under the offending byte. Tabs are kept so the caret stays aligned.
func (e *Error) Caret(src string) string {
	pos := min(max(e.Pos, 0), len(src))
	start := strings.LastIndexByte(src[:pos], '\n') + 1
	end := len(src)
	if i := strings.IndexByte(src[pos:], '\n'); i >= 0 {
		end = pos + i
	}
	var b strings.Builder
	b.WriteString(src[start:end])
	b.WriteByte('\n')
	for _, r := range src[start:pos] {
		if r == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte('^')
	return b.String()
}

// Position extracts the offset from a parse error anywhere in err's chain.
func Position(err error) (int, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Pos, true
	}
	return 0, false
}
