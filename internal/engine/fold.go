package engine

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// upper is the one case-folding rule for keyword matching. Casers are
// stateful and not safe for concurrent use, so each call builds its own.
func upper(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; 'a' <= c && c <= 'z' {
			return cases.Upper(language.Und).String(s)
		}
	}
	return s
}
