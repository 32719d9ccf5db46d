package importer

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/SimonWaldherr/parallaxdb/internal/engine"
)

// decode unwraps gzip and converts BOM-marked input to UTF-8.
func decode(src io.Reader) ([]byte, string, error) {
	br := bufio.NewReader(src)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1F && magic[1] == 0x8B {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("importer: gzip: %w", err)
		}
		defer gr.Close()
		r = gr
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("importer: read: %w", err)
	}
	enc := detectEncoding(raw)
	if enc == "utf-8" {
		return raw, enc, nil
	}
	out, _, err := transform.Bytes(xunicode.BOMOverride(xunicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return nil, "", fmt.Errorf("importer: decode %s: %w", enc, err)
	}
	return out, enc, nil
}

func detectEncoding(b []byte) string {
	switch {
	case bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}):
		return "utf-8-bom"
	case bytes.HasPrefix(b, []byte{0xFF, 0xFE}):
		return "utf-16le"
	case bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		return "utf-16be"
	}
	return "utf-8"
}

func candidateDelims(c []rune) []rune {
	out := make([]rune, 0, len(c))
	for _, r := range c {
		if r != 0 {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return []rune{',', ';', '\t', '|'}
	}
	return out
}

func newReader(data []byte, delim rune) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1 // allow ragged rows
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r
}

// detectDelimiter picks the candidate whose field counts over the first
// records vary least, preferring more fields on ties.
func detectDelimiter(data []byte, cands []rune, maxRecs int) rune {
	best, bestSD, bestFields := ',', math.Inf(1), 0
	for _, cand := range cands {
		r := newReader(data, cand)
		var counts []int
		for len(counts) < maxRecs {
			rec, err := r.Read()
			if err != nil {
				break
			}
			counts = append(counts, len(rec))
		}
		if len(counts) == 0 {
			continue
		}
		fields := mode(counts)
		if fields <= 1 {
			continue
		}
		_, sd := meanStd(counts)
		if sd < bestSD || (math.Abs(sd-bestSD) < 1e-9 && fields > bestFields) {
			best, bestSD, bestFields = cand, sd, fields
		}
	}
	return best
}

func readRecords(data []byte, delim rune) ([][]string, error) {
	r := newReader(data, delim)
	var out [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("importer: %w", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		out = append(out, rec)
	}
}

// decideHeader treats the first record as a header when most of its cells
// are non-numeric above mostly numeric columns. For all-text data the first
// record counts as a header when it holds distinct identifiers that no body
// row repeats in the same column.
func decideHeader(records [][]string, headerMode string) bool {
	switch strings.ToLower(strings.TrimSpace(headerMode)) {
	case "present":
		return true
	case "absent":
		return false
	}
	if len(records) < 2 {
		return false
	}
	first, body := records[0], records[1:]
	headerish := 0
	for c := range first {
		if looksNumeric(first[c]) {
			continue
		}
		dataNum, rows := 0, 0
		for _, r := range body {
			if c >= len(r) {
				continue
			}
			if looksNumeric(r[c]) {
				dataNum++
			}
			rows++
		}
		if rows > 0 && float64(dataNum)/float64(rows) > 0.6 {
			headerish++
		}
	}
	if float64(headerish)/float64(len(first)) >= 0.5 {
		return true
	}
	// All-text files: a header is a row of valid, distinct names.
	seen := make(map[string]bool, len(first))
	for _, h := range first {
		if !validIdentifier(strings.TrimSpace(h)) || seen[h] {
			return false
		}
		seen[h] = true
	}
	for _, r := range body {
		for c, v := range r {
			if c < len(first) && v == first[c] {
				return false
			}
		}
	}
	return true
}

func looksNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func meanStd(vals []int) (float64, float64) {
	var sum float64
	for _, v := range vals {
		sum += float64(v)
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		d := float64(v) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(vals)))
}

func mode(vals []int) int {
	freq := make(map[int]int)
	best, bestN := 0, 0
	for _, v := range vals {
		freq[v]++
		if n := freq[v]; n > bestN || (n == bestN && v > best) {
			best, bestN = v, n
		}
	}
	return best
}

// validIdentifier reports whether s lexes as one plain identifier, so the
// column can be named in later queries.
func validIdentifier(s string) bool {
	toks := engine.Tokenize(s)
	return len(toks) == 2 && toks[0].Kind == engine.Identifier && toks[0].Lexeme == s
}

// sanitizeColumnNames turns header cells into distinct identifiers.
func sanitizeColumnNames(h []string) []string {
	out := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, raw := range h {
		var b strings.Builder
		for _, r := range strings.TrimSpace(raw) {
			switch {
			case r == '_', r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
				b.WriteRune(r)
			default:
				b.WriteByte('_')
			}
		}
		name := strings.ToLower(strings.Trim(b.String(), "_"))
		switch {
		case name == "":
			name = fmt.Sprintf("col_%d", i+1)
		case !validIdentifier(name):
			name = "c_" + name
		}
		if n := seen[name]; n > 0 {
			seen[name]++
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

func generateColumnNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("col_%d", i+1)
	}
	return out
}
