package engine

import (
	"context"
	"fmt"

	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// Result is the outcome of one statement. Set is non-nil only for SELECT;
// Affected counts inserted rows.
type Result struct {
	Set      *ResultSet
	Affected int
	Message  string
}

// Execute runs a parsed statement against db. The context is checked
// before each inserted row so long VALUES lists can be cancelled.
//
// A multi-row INSERT stops at the first row that fails validation. The rows
// before it stay inserted and are counted in Affected; later rows are not
// attempted.
func Execute(ctx context.Context, db *storage.DB, stmt Statement) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch s := stmt.(type) {
	case *CreateTable:
		if _, err := db.CreateTable(s.Schema); err != nil {
			return nil, err
		}
		return &Result{Message: fmt.Sprintf("Created table '%s' with %d columns", s.Table, len(s.Schema.Cols))}, nil
	case *DropTable:
		if err := db.DropTable(s.Table); err != nil {
			return nil, err
		}
		return &Result{Message: fmt.Sprintf("Dropped table '%s'", s.Table)}, nil
	case *Insert:
		return executeInsert(ctx, db, s)
	case *Select:
		t, err := db.Table(s.Table)
		if err != nil {
			return nil, err
		}
		rs := Run(BuildPlan(s, t))
		return &Result{Set: rs, Message: fmt.Sprintf("%d row(s)", len(rs.Rows))}, nil
	}
	return nil, fmt.Errorf("execute: unsupported statement %T", stmt)
}

// executeInsert stops at the first failing row; rows before it stay
// inserted and are reported in Affected.
func executeInsert(ctx context.Context, db *storage.DB, s *Insert) (*Result, error) {
	res := &Result{}
	for _, row := range s.Rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := db.Insert(s.Table, s.Columns, row); err != nil {
			return res, err
		}
		res.Affected++
	}
	res.Message = fmt.Sprintf("Inserted %d row(s) into %s", res.Affected, s.Table)
	return res, nil
}

// Exec parses and executes a single statement.
func Exec(ctx context.Context, db *storage.DB, sql string) (*Result, error) {
	st, err := ParseSQL(sql)
	if err != nil {
		return nil, err
	}
	return Execute(ctx, db, st)
}
