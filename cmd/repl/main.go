package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/SimonWaldherr/parallaxdb/internal/driver"
	"github.com/SimonWaldherr/parallaxdb/internal/engine"
	"github.com/SimonWaldherr/parallaxdb/internal/exporter"
	"github.com/SimonWaldherr/parallaxdb/internal/importer"
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

var flagEcho = flag.Bool("echo", false, "Echo SQL statements before execution")
var flagFormat = flag.String("format", "table", "Output format: "+strings.Join(exporter.Formats, ", "))
var flagInit = flag.String("init", "", "SQL script to run before reading stdin")
var flagErrorsOnly = flag.Bool("errors-only", false, "Only print statements that fail")

func main() {
	flag.Parse()

	db := driver.OpenDB(storage.NewDB())
	defer db.Close()

	r := &repl{
		db:         db,
		out:        os.Stdout,
		errOut:     os.Stderr,
		format:     *flagFormat,
		echo:       *flagEcho,
		errorsOnly: *flagErrorsOnly,
	}
	if *flagInit != "" {
		f, err := os.Open(*flagInit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(1)
		}
		err = r.run(f, false)
		f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(1)
		}
	}

	// If stdin is not a terminal (e.g., redirected from a file) suppress
	// interactive prompts to keep non-interactive output clean.
	interactive := false
	if fi, err := os.Stdin.Stat(); err == nil {
		interactive = (fi.Mode() & os.ModeCharDevice) != 0
	}
	if interactive {
		fmt.Println("parallaxdb REPL. End statements with ';'. Type .help for help.")
	}
	if err := r.run(os.Stdin, interactive); err != nil {
		fmt.Fprintln(os.Stderr, "read error:", err)
		os.Exit(1)
	}
}

type repl struct {
	db         *sql.DB
	out        io.Writer
	errOut     io.Writer
	format     string
	echo       bool
	errorsOnly bool
	failures   int
}

// errQuit stops the input loop after .quit.
var errQuit = errors.New("quit")

// run reads ';'-terminated statements and meta commands from in until EOF
// or .quit.
func (r *repl) run(in io.Reader, interactive bool) error {
	sc := bufio.NewScanner(in)
	// Scanner token limit is 64K by default; allow larger statements/files.
	sc.Buffer(make([]byte, 1024), 4*1024*1024)

	var buf strings.Builder
	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Fprint(r.out, "sql> ")
			} else {
				fmt.Fprint(r.out, " ... ")
			}
		}
		if !sc.Scan() {
			if q := strings.TrimSpace(buf.String()); q != "" {
				r.statement(q)
			}
			return sc.Err()
		}
		line := strings.TrimRight(sc.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)

		if buf.Len() == 0 {
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			if strings.HasPrefix(trimmed, ".") {
				if err := r.meta(trimmed); errors.Is(err, errQuit) {
					return nil
				}
				continue
			}
		}

		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		if strings.HasSuffix(trimmed, ";") {
			r.statement(strings.TrimSpace(buf.String()))
			buf.Reset()
		}
	}
}

// statement parses q to decide between Query and Exec, then runs it through
// database/sql.
func (r *repl) statement(q string) {
	if r.echo && !r.errorsOnly {
		fmt.Fprintln(r.out, "--", q)
	}
	st, err := engine.ParseSQL(q)
	if err != nil {
		r.fail(q, err)
		return
	}
	ctx := context.Background()
	if _, ok := st.(*engine.Select); ok {
		rows, err := r.db.QueryContext(ctx, q)
		if err != nil {
			r.fail(q, err)
			return
		}
		defer rows.Close()
		cols, data, err := collect(rows)
		if err != nil {
			r.fail(q, err)
			return
		}
		if !r.errorsOnly {
			if err := exporter.Write(r.out, r.format, cols, data); err != nil {
				r.fail(q, err)
			}
		}
		return
	}
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		r.fail(q, err)
		return
	}
	if r.errorsOnly {
		return
	}
	switch s := st.(type) {
	case *engine.CreateTable:
		fmt.Fprintf(r.out, "Created table '%s' with %d columns\n", s.Table, len(s.Schema.Cols))
	case *engine.DropTable:
		fmt.Fprintf(r.out, "Dropped table '%s'\n", s.Table)
	case *engine.Insert:
		n, _ := res.RowsAffected()
		fmt.Fprintf(r.out, "Inserted %d row(s) into %s\n", n, s.Table)
	}
}

// fail reports err; parse errors also get the query with a caret under the
// offending position.
func (r *repl) fail(q string, err error) {
	r.failures++
	if r.errorsOnly {
		fmt.Fprintln(r.errOut, "--", q)
	}
	fmt.Fprintln(r.errOut, "ERR:", err)
	var pe *engine.Error
	if errors.As(err, &pe) {
		fmt.Fprintln(r.errOut, pe.Caret(q))
	}
}

func (r *repl) meta(line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case ".help":
		fmt.Fprintln(r.out, `.meta:
  .help                 Show this help
  .tables               List tables
  .schema [table]       Show CREATE TABLE statements
  .explain <select>     Show the query plan
  .tokens <sql>         Show the token stream
  .import <file> <tbl>  Load a CSV/TSV file into a table
  .format <name>        ` + strings.Join(exporter.Formats, ", ") + `
  .quit                 Exit`)
	case ".tables":
		r.catalog(func(cat *storage.DB) error {
			for _, name := range cat.TableNames() {
				fmt.Fprintln(r.out, name)
			}
			return nil
		})
	case ".schema":
		r.catalog(func(cat *storage.DB) error {
			if arg == "" {
				for _, t := range cat.Tables() {
					fmt.Fprintln(r.out, t.Schema().String()+";")
				}
				return nil
			}
			t, err := cat.Table(arg)
			if err != nil {
				return err
			}
			fmt.Fprintln(r.out, t.Schema().String()+";")
			return nil
		})
	case ".explain":
		var plan string
		err := r.catalog(func(cat *storage.DB) error {
			p, err := engine.PlanQuery(arg, cat)
			if err != nil {
				return err
			}
			plan = engine.Explain(p)
			return nil
		})
		if err != nil {
			var pe *engine.Error
			if errors.As(err, &pe) {
				fmt.Fprintln(r.errOut, pe.Caret(arg))
			}
			return nil
		}
		fmt.Fprint(r.out, plan)
	case ".tokens":
		for _, tok := range engine.Tokenize(arg) {
			fmt.Fprintf(r.out, "%4d  %s\n", tok.Pos, tok)
		}
	case ".format":
		if !exporter.Valid(arg) {
			fmt.Fprintf(r.errOut, "ERR: unknown format %q\n", arg)
			return nil
		}
		r.format = arg
	case ".import":
		r.importFile(arg)
	case ".quit", ".exit":
		return errQuit
	default:
		fmt.Fprintf(r.errOut, "ERR: unknown command %s (try .help)\n", cmd)
	}
	return nil
}

// catalog runs fn under the driver's lock and reports its error.
func (r *repl) catalog(fn func(*storage.DB) error) error {
	err := driver.WithCatalog(context.Background(), r.db, fn)
	if err != nil {
		r.failures++
		fmt.Fprintln(r.errOut, "ERR:", err)
	}
	return err
}

// importFile handles ".import <file> <table>".
func (r *repl) importFile(arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		r.failures++
		fmt.Fprintln(r.errOut, "ERR: usage: .import <file> <table>")
		return
	}
	f, err := os.Open(fields[0])
	if err != nil {
		r.failures++
		fmt.Fprintln(r.errOut, "ERR:", err)
		return
	}
	defer f.Close()
	var res *importer.Result
	err = r.catalog(func(cat *storage.DB) error {
		var err error
		res, err = importer.ImportCSV(context.Background(), cat, fields[1], f, nil)
		return err
	})
	if err != nil {
		return
	}
	for _, e := range res.Errors {
		fmt.Fprintln(r.errOut, "WARN:", e)
	}
	if !r.errorsOnly {
		fmt.Fprintf(r.out, "Imported %d row(s) into %s (%d skipped)\n", res.RowsInserted, fields[1], res.RowsSkipped)
	}
}

// collect reads all rows so they can be rendered in any format.
func collect(rows *sql.Rows) ([]string, [][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]any
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, cells)
	}
	return cols, out, rows.Err()
}
