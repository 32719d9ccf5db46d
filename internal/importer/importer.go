// Package importer loads delimited text files into parallaxdb tables.
//
// Features:
//   - Auto-detect delimiter: ',', ';', '\t', '|' (configurable)
//   - Auto-detect header row (configurable override)
//   - Encoding: UTF-8, UTF-8 BOM, UTF-16LE/BE (BOM-based)
//   - Transparent GZIP input
//   - Type inference onto INT, DOUBLE, BOOLEAN and STRING columns
//   - Creates the target table or appends to an existing one
//
// The importer writes straight into a *storage.DB, so callers that share the
// catalog must hold its lock (for a database/sql handle, use
// driver.WithCatalog).
//
// Example:
//
//	f, _ := os.Open("data.csv")
//	res, err := importer.ImportCSV(ctx, cat, "mytable", f, nil)
//	fmt.Printf("Imported %d rows with %d columns\n", res.RowsInserted, len(res.ColumnNames))
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// Options configures the importer. The zero value is usable.
type Options struct {
	// NullLiterals are treated as NULL (case-insensitive, trimmed).
	// Defaults: "", "null", "na", "n/a", "none", "#n/a"
	NullLiterals []string

	// HeaderMode controls header detection:
	//   "auto" (default)  → heuristic decides based on data analysis
	//   "present"         → first row is always treated as header
	//   "absent"          → first row is data, columns are named col_1, col_2, ...
	HeaderMode string

	// DelimiterCandidates tested during auto-detection. Default: , ; \t |
	DelimiterCandidates []rune

	// SampleRecords caps the records analyzed for detection (default 500).
	SampleRecords int

	// NoTypeInference stores every column as STRING.
	NoTypeInference bool

	// Strict fails the import on the first row that cannot be stored
	// instead of skipping it.
	Strict bool
}

// Result describes a finished import.
type Result struct {
	RowsInserted int64             // rows stored
	RowsSkipped  int64             // rows rejected when Strict is false
	Delimiter    rune              // detected or configured delimiter
	HadHeader    bool              // whether the first record named the columns
	Encoding     string            // "utf-8", "utf-8-bom", "utf-16le" or "utf-16be"
	Created      bool              // whether the table was created by this import
	ColumnNames  []string          // column names used
	ColumnTypes  []storage.ColType // column types used
	Errors       []string          // per-row problems, when Strict is false
}

// ErrEmptyInput is returned when the source holds no records.
var ErrEmptyInput = errors.New("importer: empty input")

func (o *Options) defaults() {
	if o.NullLiterals == nil {
		o.NullLiterals = []string{"", "null", "na", "n/a", "none", "#n/a"}
	}
	if o.SampleRecords <= 0 {
		o.SampleRecords = 500
	}
}

// ImportCSV reads delimited records from src into table. A missing table is
// created from the header and the inferred types; an existing table keeps
// its schema and receives values by column name.
func ImportCSV(ctx context.Context, db *storage.DB, table string, src io.Reader, opts *Options) (*Result, error) {
	if table == "" {
		return nil, fmt.Errorf("importer: table name is required")
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	o.defaults()

	data, enc, err := decode(src)
	if err != nil {
		return nil, err
	}
	res := &Result{Encoding: enc}
	res.Delimiter = detectDelimiter(data, candidateDelims(o.DelimiterCandidates), o.SampleRecords)

	records, err := readRecords(data, res.Delimiter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	res.HadHeader = decideHeader(records[:min(len(records), o.SampleRecords)], o.HeaderMode)

	var names []string
	if res.HadHeader {
		names = sanitizeColumnNames(records[0])
		records = records[1:]
	} else {
		names = generateColumnNames(len(records[0]))
	}

	var types []storage.ColType
	if t, err := db.Table(table); err == nil {
		if types, err = existingTypes(t, names); err != nil {
			return nil, err
		}
	} else {
		types = make([]storage.ColType, len(names))
		if !o.NoTypeInference {
			types = inferColumnTypes(records[:min(len(records), o.SampleRecords)], len(names), o.NullLiterals)
		} else {
			for i := range types {
				types[i] = storage.StringType
			}
		}
		cols := make([]storage.Column, len(names))
		for i, n := range names {
			cols[i] = storage.Column{Name: n, Type: types[i]}
		}
		if _, err := db.CreateTable(storage.Schema{Table: table, Cols: cols}); err != nil {
			return nil, fmt.Errorf("importer: %w", err)
		}
		res.Created = true
	}
	res.ColumnNames = names
	res.ColumnTypes = types

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := i + 1
		if res.HadHeader {
			line++
		}
		row, err := convertRecord(rec, types, o.NullLiterals)
		if err == nil {
			err = db.Insert(table, names, row)
		}
		if err != nil {
			if o.Strict {
				return res, fmt.Errorf("importer: record %d: %w", line, err)
			}
			res.RowsSkipped++
			res.Errors = append(res.Errors, fmt.Sprintf("record %d: %v", line, err))
			continue
		}
		res.RowsInserted++
	}
	return res, nil
}

// existingTypes maps the file's columns onto an existing table.
func existingTypes(t *storage.Table, names []string) ([]storage.ColType, error) {
	types := make([]storage.ColType, len(names))
	for i, n := range names {
		idx := t.ColIndex(n)
		if idx < 0 {
			return nil, fmt.Errorf("importer: table %q has no column %q", t.Name, n)
		}
		types[i] = t.Cols[idx].Type
	}
	return types, nil
}
