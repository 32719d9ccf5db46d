// Package exporter renders query results in the text formats the REPL and
// server offer: aligned table, markdown, CSV/TSV, JSON, YAML and XML.
//
// Rows arrive as scanned from database/sql: each cell is int64, float64,
// string or nil.
package exporter

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formats lists the accepted format names.
var Formats = []string{"table", "markdown", "csv", "tsv", "json", "yaml", "xml"}

// Valid reports whether format names a known output format.
func Valid(format string) bool {
	switch strings.ToLower(format) {
	case "table", "csv", "tsv", "json", "yaml", "xml", "markdown", "md":
		return true
	}
	return false
}

// Write renders cols and rows to w in the named format. Unknown names fall
// back to the table layout.
func Write(w io.Writer, format string, cols []string, rows [][]any) error {
	switch strings.ToLower(format) {
	case "json":
		return ExportJSON(w, cols, rows)
	case "yaml":
		return ExportYAML(w, cols, rows)
	case "xml":
		return ExportXML(w, cols, rows)
	case "csv":
		return ExportCSV(w, cols, rows, Options{})
	case "tsv":
		return ExportCSV(w, cols, rows, Options{CSVDelimiter: '\t'})
	case "markdown", "md":
		return ExportMarkdown(w, cols, rows)
	}
	return ExportTable(w, cols, rows)
}

// Options controls the delimited writers.
type Options struct {
	CSVNoHeader  bool
	CSVDelimiter rune
}

// valueToString renders a cell; nil becomes the empty string.
func valueToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// display is valueToString with NULL spelled out, for the aligned layouts.
func display(v any) string {
	if v == nil {
		return "NULL"
	}
	return valueToString(v)
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func widths(cols []string, rows [][]any) []int {
	width := make([]int, len(cols))
	for i, c := range cols {
		width[i] = len(c)
	}
	for _, r := range rows {
		for i := range cols {
			width[i] = max(width[i], len(display(r[i])))
		}
	}
	return width
}

// ExportTable writes space-aligned columns, a dashed rule and a row count.
func ExportTable(w io.Writer, cols []string, rows [][]any) error {
	width := widths(cols, rows)
	var b strings.Builder
	line := func(cell func(i int) string) {
		parts := make([]string, len(cols))
		for i := range cols {
			parts[i] = padRight(cell(i), width[i])
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}
	line(func(i int) string { return cols[i] })
	line(func(i int) string { return strings.Repeat("-", width[i]) })
	for _, r := range rows {
		line(func(i int) string { return display(r[i]) })
	}
	fmt.Fprintf(&b, "(%d row(s))\n", len(rows))
	_, err := io.WriteString(w, b.String())
	return err
}

// ExportMarkdown writes a GitHub-flavored markdown table.
func ExportMarkdown(w io.Writer, cols []string, rows [][]any) error {
	width := widths(cols, rows)
	var b strings.Builder
	b.WriteString("|")
	for i, c := range cols {
		fmt.Fprintf(&b, " %s |", padRight(c, width[i]))
	}
	b.WriteString("\n|")
	for i := range cols {
		fmt.Fprintf(&b, "%s|", strings.Repeat("-", width[i]+2))
	}
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString("|")
		for i := range cols {
			fmt.Fprintf(&b, " %s |", padRight(display(r[i]), width[i]))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ExportCSV writes rows as CSV to w. Column order is preserved.
func ExportCSV(w io.Writer, cols []string, rows [][]any, opts Options) error {
	csvw := csv.NewWriter(w)
	if opts.CSVDelimiter != 0 {
		csvw.Comma = opts.CSVDelimiter
	}
	if !opts.CSVNoHeader {
		if err := csvw.Write(cols); err != nil {
			return err
		}
	}
	rec := make([]string, len(cols))
	for _, r := range rows {
		for i := range cols {
			rec[i] = valueToString(r[i])
		}
		if err := csvw.Write(rec); err != nil {
			return err
		}
	}
	csvw.Flush()
	return csvw.Error()
}

// ExportJSON writes one object per row with keys in column order.
func ExportJSON(w io.Writer, cols []string, rows [][]any) error {
	var b strings.Builder
	b.WriteString("[")
	for ri, r := range rows {
		if ri > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  {")
		for i, c := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			k, err := json.Marshal(c)
			if err != nil {
				return err
			}
			v, err := json.Marshal(r[i])
			if err != nil {
				return err
			}
			b.Write(k)
			b.WriteString(": ")
			b.Write(v)
		}
		b.WriteString("}")
	}
	if len(rows) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// ExportYAML writes a sequence of mappings, keeping column order.
func ExportYAML(w io.Writer, cols []string, rows [][]any) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for i, c := range cols {
			var v yaml.Node
			if err := v.Encode(r[i]); err != nil {
				return err
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c}, &v)
		}
		seq.Content = append(seq.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return err
	}
	return enc.Close()
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
	Null    bool   `xml:"null,attr,omitempty"`
}

type xmlRow struct {
	Fields []xmlField `xml:",any"`
}

type xmlRows struct {
	XMLName xml.Name `xml:"rows"`
	Rows    []xmlRow `xml:"row"`
}

// ExportXML writes <rows><row><col>value</col>...</row>...</rows>. NULL cells
// are empty elements marked null="true".
func ExportXML(w io.Writer, cols []string, rows [][]any) error {
	xr := xmlRows{Rows: make([]xmlRow, 0, len(rows))}
	for _, r := range rows {
		row := xmlRow{Fields: make([]xmlField, 0, len(cols))}
		for i, c := range cols {
			row.Fields = append(row.Fields, xmlField{XMLName: xml.Name{Local: c}, Value: valueToString(r[i]), Null: r[i] == nil})
		}
		xr.Rows = append(xr.Rows, row)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(xr); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
