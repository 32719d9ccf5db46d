// Package parallaxdb is a small in-memory SQL front-end for Go programs.
//
// It tokenizes and parses a subset of SQL, builds a query plan for SELECT
// statements and runs it against an in-memory catalog:
//   - CREATE TABLE name (col TYPE [NOT NULL] [UNIQUE] [PRIMARY KEY], ...)
//   - DROP TABLE name
//   - INSERT INTO name [(c1, c2, ...)] VALUES (v1, v2, ...)[, (...)]
//   - SELECT * | c1, c2, ... FROM name [WHERE expr]
//
// WHERE expressions compare a column with a literal using = != < > <= >=
// and combine comparisons with AND, OR and parentheses. Types are INT
// (INTEGER), DOUBLE (FLOAT, REAL), STRING (VARCHAR, TEXT) and BOOLEAN (BOOL).
//
// # Basic Usage
//
//	db := parallaxdb.NewDB()
//	ctx := context.Background()
//
//	parallaxdb.Exec(ctx, db, "CREATE TABLE users (id INT, name TEXT)")
//	parallaxdb.Exec(ctx, db, "INSERT INTO users VALUES (1, 'Alice')")
//
//	res, _ := parallaxdb.Exec(ctx, db, "SELECT * FROM users WHERE id = 1")
//	for _, row := range res.Set.Rows {
//	    fmt.Println(row)
//	}
//
// # Plans
//
// A SELECT can be planned once and run many times, as long as the table
// is not modified in between:
//
//	plan, err := parallaxdb.PlanQuery("SELECT name FROM users", db)
//	for row := range parallaxdb.Rows(plan) {
//	    fmt.Println(row)
//	}
//
// Parse failures are *Error values carrying the byte offset of the
// offending token; Error.Caret renders it under the query text.
//
// For database/sql access register the driver by importing
// github.com/SimonWaldherr/parallaxdb/driver.
package parallaxdb

import (
	"context"
	"iter"

	"github.com/SimonWaldherr/parallaxdb/internal/engine"
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// ============================================================================
// Core Types - Re-exported from internal packages for public API
// ============================================================================

// DB is an in-memory catalog of tables. It does no locking; serialize
// access when sharing one between goroutines.
type DB = storage.DB

// Table holds a schema and its rows in insertion order.
type Table = storage.Table

// Column is a named, typed column with its constraints.
type Column = storage.Column

// Schema is a table name with its column list.
type Schema = storage.Schema

// ColType enumerates column types (INT, DOUBLE, STRING, BOOLEAN).
type ColType = storage.ColType

// Value is a tagged scalar: Integer, Double, Text or Null.
type Value = storage.Value

// Row is one tuple of values.
type Row = storage.Row

// Token is a lexical unit with its byte offset.
type Token = engine.Token

// Statement is a parsed SELECT, INSERT, CREATE TABLE or DROP TABLE.
type Statement = engine.Statement

// Expr is a parsed WHERE expression.
type Expr = engine.Expr

// Plan is an executable SELECT: a Scan, or a Filter over a Scan.
type Plan = engine.Plan

// ResultSet holds the column names and rows produced by a query.
type ResultSet = engine.ResultSet

// Result is the outcome of executing one statement.
type Result = engine.Result

// Error is a position-tagged parse error.
type Error = engine.Error

// Column types.
const (
	IntType    = storage.IntType
	DoubleType = storage.DoubleType
	StringType = storage.StringType
	BoolType   = storage.BoolType
)

// Sentinel errors, for use with errors.Is.
var (
	ErrSyntax      = engine.ErrSyntax
	ErrLex         = engine.ErrLex
	ErrFormat      = engine.ErrFormat
	ErrNoSuchTable = storage.ErrNoSuchTable
	ErrTableExists = storage.ErrTableExists
	ErrType        = storage.ErrType
	ErrConstraint  = storage.ErrConstraint
)

// ============================================================================
// Functions
// ============================================================================

// NewDB creates an empty database.
func NewDB() *DB { return storage.NewDB() }

// Tokenize splits sql into tokens. It never fails; malformed input shows up
// as error tokens.
func Tokenize(sql string) []Token { return engine.Tokenize(sql) }

// ParseSQL parses one statement.
func ParseSQL(sql string) (Statement, error) { return engine.ParseSQL(sql) }

// ParseExpr parses a standalone WHERE expression.
func ParseExpr(expr string) (Expr, error) { return engine.ParseExpr(expr) }

// PlanQuery parses a SELECT and plans it against db.
func PlanQuery(sql string, db *DB) (Plan, error) { return engine.PlanQuery(sql, db) }

// Explain renders a plan tree.
func Explain(p Plan) string { return engine.Explain(p) }

// Rows streams the rows of a plan.
func Rows(p Plan) iter.Seq[Row] { return engine.Rows(p) }

// Run executes a plan and collects its rows.
func Run(p Plan) *ResultSet { return engine.Run(p) }

// Execute runs a parsed statement against db.
func Execute(ctx context.Context, db *DB, stmt Statement) (*Result, error) {
	return engine.Execute(ctx, db, stmt)
}

// Exec parses and runs one statement.
func Exec(ctx context.Context, db *DB, sql string) (*Result, error) {
	return engine.Exec(ctx, db, sql)
}
