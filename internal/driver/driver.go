// Package driver implements a database/sql driver for parallaxdb.
//
// What: A minimal driver that exposes the in-memory engine through the
// standard database/sql interfaces. DSNs of the form mem://?name=<db> select
// a named catalog shared by every connection that opens the same name;
// OpenDB wraps a catalog the caller already holds.
// How: Each catalog is owned by a small server holding a one-slot lock that
// honours context cancellation and an optional busy timeout. Every statement
// runs under that lock, so the engine, which does no locking of its own,
// always sees exclusive access. Placeholders (?) are bound by substituting
// literals the lexer can read back unchanged.
// Why: database/sql gives the REPL, the network server and tests one
// familiar API, and the lock keeps concurrency concerns out of the engine.
package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SimonWaldherr/parallaxdb/internal/engine"
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// DriverName is the name registered with database/sql.
const DriverName = "parallaxdb"

// ErrTxUnsupported is returned by Begin; the engine has no transactions.
var ErrTxUnsupported = errors.New("parallaxdb: transactions are not supported")

var defaultDrv = &drv{servers: map[string]*server{}}

func init() {
	sql.Register(DriverName, defaultDrv)
}

// cfg stores the connection parameters derived from a parsed DSN.
type cfg struct {
	name        string
	busyTimeout time.Duration
}

// parseDSN parses mem://?name=<db>&busy_timeout=<dur>. An empty DSN selects
// the database named "default". The busy timeout belongs to the connections
// opened with this DSN, not to the shared database.
func parseDSN(dsn string) (cfg, error) {
	c := cfg{name: "default", busyTimeout: 250 * time.Millisecond}
	if dsn == "" {
		return c, nil
	}
	if !strings.HasPrefix(dsn, "mem://") {
		return c, fmt.Errorf("parallaxdb: unsupported DSN %q", dsn)
	}
	rest := strings.TrimPrefix(dsn, "mem://")
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = ""
	}
	q, err := url.ParseQuery(rest)
	if err != nil {
		return c, fmt.Errorf("parallaxdb: invalid DSN %q: %w", dsn, err)
	}
	for key, vals := range q {
		if err := applyDSNOption(&c, key, vals[len(vals)-1]); err != nil {
			return c, err
		}
	}
	return c, nil
}

// applyDSNOption mutates the configuration in place for a single DSN option.
func applyDSNOption(c *cfg, key, value string) error {
	switch strings.ToLower(key) {
	case "name", "db":
		if value != "" {
			c.name = value
		}
	case "busy_timeout", "busytimeout":
		dur, err := parseBusyTimeout(value)
		if err != nil {
			return err
		}
		c.busyTimeout = dur
	default:
		return fmt.Errorf("parallaxdb: unknown DSN parameter %q", key)
	}
	return nil
}

// parseBusyTimeout accepts plain milliseconds or a time.Duration string.
func parseBusyTimeout(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("parallaxdb: busy_timeout must be >= 0")
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parallaxdb: invalid busy_timeout value %q", value)
	}
	if dur < 0 {
		return 0, fmt.Errorf("parallaxdb: busy_timeout must be >= 0")
	}
	return dur, nil
}

// server owns one catalog and serializes every statement against it.
type server struct {
	db   *storage.DB
	lock chan struct{}
}

func newServer(db *storage.DB) *server {
	return &server{db: db, lock: make(chan struct{}, 1)}
}

// acquire takes the lock, giving up when ctx ends or timeout passes. A zero
// timeout waits for ctx alone.
func (s *server) acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if timeout <= 0 {
		select {
		case s.lock <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("parallaxdb: busy timeout after %s", timeout)
	}
}

func (s *server) release() { <-s.lock }

// run executes one parsed statement under the lock.
func (s *server) run(ctx context.Context, timeout time.Duration, st engine.Statement) (*engine.Result, error) {
	if err := s.acquire(ctx, timeout); err != nil {
		return nil, err
	}
	defer s.release()
	return engine.Execute(ctx, s.db, st)
}

// columnTypes reports the declared type of each named column of table.
func (s *server) columnTypes(ctx context.Context, timeout time.Duration, table string, cols []string) []string {
	if err := s.acquire(ctx, timeout); err != nil {
		return nil
	}
	defer s.release()
	t, err := s.db.Table(table)
	if err != nil {
		return nil
	}
	out := make([]string, len(cols))
	for i, name := range cols {
		if idx := t.ColIndex(name); idx >= 0 {
			out[i] = t.Cols[idx].Type.String()
		}
	}
	return out
}

type drv struct {
	mu      sync.Mutex
	servers map[string]*server
}

// lookup returns the server for a named database, creating it on first use.
func (d *drv) lookup(c cfg) *server {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.servers[c.name]
	if !ok {
		s = newServer(storage.NewDB())
		d.servers[c.name] = s
	}
	return s
}

func (d *drv) Open(name string) (driver.Conn, error) {
	c, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

func (d *drv) OpenConnector(name string) (driver.Connector, error) {
	c, err := parseDSN(name)
	if err != nil {
		return nil, err
	}
	return &connector{srv: d.lookup(c), busyTimeout: c.busyTimeout}, nil
}

type connector struct {
	srv         *server
	busyTimeout time.Duration
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{id: uuid.New(), srv: c.srv, busyTimeout: c.busyTimeout}, nil
}

func (c *connector) Driver() driver.Driver { return defaultDrv }

// OpenDB returns a *sql.DB whose connections all run against db. Statements
// issued through it are serialized with each other, but not with direct
// use of db.
func OpenDB(db *storage.DB) *sql.DB {
	return sql.OpenDB(&connector{srv: newServer(db)})
}

// OpenInMemory opens the named shared in-memory database. An empty name
// selects "default".
func OpenInMemory(name string) (*sql.DB, error) {
	dsn := "mem://"
	if name != "" {
		dsn += "?name=" + url.QueryEscape(name)
	}
	return sql.Open(DriverName, dsn)
}

// ------------------- connection -------------------

type conn struct {
	id          uuid.UUID
	srv         *server
	busyTimeout time.Duration
}

func (c *conn) Prepare(query string) (driver.Stmt, error) { return &stmt{c: c, sql: query}, nil }
func (c *conn) Close() error                              { return nil }
func (c *conn) Begin() (driver.Tx, error)                 { return nil, ErrTxUnsupported }

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return nil, ErrTxUnsupported
}

// Ping implements driver.Pinger so database/sql can health-check the connection.
func (c *conn) Ping(ctx context.Context) error {
	if c.srv == nil {
		return fmt.Errorf("parallaxdb: connection %s has no database", c.id)
	}
	if err := c.srv.acquire(ctx, c.busyTimeout); err != nil {
		return err
	}
	c.srv.release()
	return nil
}

// withCatalog runs fn with exclusive access to the connection's catalog.
func (c *conn) withCatalog(ctx context.Context, fn func(*storage.DB) error) error {
	if err := c.srv.acquire(ctx, c.busyTimeout); err != nil {
		return err
	}
	defer c.srv.release()
	return fn(c.srv.db)
}

// WithCatalog runs fn against the catalog behind db while holding the same
// lock statements run under. db must have been opened by this driver.
func WithCatalog(ctx context.Context, db *sql.DB, fn func(*storage.DB) error) error {
	sc, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer sc.Close()
	return sc.Raw(func(dc any) error {
		c, ok := dc.(*conn)
		if !ok {
			return fmt.Errorf("parallaxdb: %T is not a parallaxdb connection", dc)
		}
		return c.withCatalog(ctx, fn)
	})
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	st, err := parseBound(query, args)
	if err != nil {
		return nil, err
	}
	res, err := c.srv.run(ctx, c.busyTimeout, st)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(res.Affected), nil
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	st, err := parseBound(query, args)
	if err != nil {
		return nil, err
	}
	res, err := c.srv.run(ctx, c.busyTimeout, st)
	if err != nil {
		return nil, err
	}
	if res.Set == nil {
		return &rows{rs: &engine.ResultSet{Cols: []string{}}}, nil
	}
	r := &rows{rs: res.Set}
	if sel, ok := st.(*engine.Select); ok {
		r.types = c.srv.columnTypes(ctx, c.busyTimeout, sel.Table, res.Set.Cols)
	}
	return r, nil
}

// CheckNamedValue accepts every type the binder can render and leaves the
// rest to database/sql's default conversion.
func (c *conn) CheckNamedValue(nv *driver.NamedValue) error {
	if t, ok := nv.Value.(time.Time); ok {
		nv.Value = t.UTC().Format(time.RFC3339Nano)
		return nil
	}
	if _, ok := storage.FromNative(nv.Value); ok {
		return nil
	}
	return driver.ErrSkip
}

func parseBound(query string, args []driver.NamedValue) (engine.Statement, error) {
	sqlStr, err := bindPlaceholders(query, args)
	if err != nil {
		return nil, err
	}
	return engine.ParseSQL(sqlStr)
}

// ------------------- stmt / rows -------------------

type stmt struct {
	c   *conn
	sql string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.c.ExecContext(ctx, s.sql, args)
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.c.QueryContext(ctx, s.sql, args)
}

func named(args []driver.Value) []driver.NamedValue {
	n := make([]driver.NamedValue, len(args))
	for i, v := range args {
		n[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return n
}

type rows struct {
	rs    *engine.ResultSet
	types []string
	i     int
}

func (r *rows) Columns() []string { return r.rs.Cols }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.i >= len(r.rs.Rows) {
		return io.EOF
	}
	row := r.rs.Rows[r.i]
	for i := range dest {
		dest[i] = nil
		if i < len(row) {
			dest[i] = row[i].Native()
		}
	}
	r.i++
	return nil
}

func (r *rows) ColumnTypeDatabaseTypeName(i int) string {
	if i < len(r.types) {
		return r.types[i]
	}
	return ""
}

func (r *rows) ColumnTypeNullable(int) (bool, bool) { return true, true }

// ------------------- placeholders -------------------

// bindPlaceholders substitutes each ? outside a string literal with the
// literal form of the next argument.
func bindPlaceholders(sqlStr string, args []driver.NamedValue) (string, error) {
	var sb strings.Builder
	sb.Grow(len(sqlStr) + len(args)*8)
	argi := 0
	for i := 0; i < len(sqlStr); i++ {
		ch := sqlStr[i]
		if ch == '\'' {
			j := i + 1
			for j < len(sqlStr) && sqlStr[j] != '\'' {
				if sqlStr[j] == '\\' {
					j++
				}
				j++
			}
			end := min(j+1, len(sqlStr))
			sb.WriteString(sqlStr[i:end])
			i = end - 1
			continue
		}
		if ch != '?' {
			sb.WriteByte(ch)
			continue
		}
		if argi >= len(args) {
			return "", fmt.Errorf("parallaxdb: not enough args for placeholders")
		}
		lit, err := sqlLiteral(args[argi].Value)
		if err != nil {
			return "", fmt.Errorf("parallaxdb: arg %d: %w", argi+1, err)
		}
		sb.WriteString(lit)
		argi++
	}
	if argi != len(args) {
		return "", fmt.Errorf("parallaxdb: %d args for %d placeholders", len(args), argi)
	}
	return sb.String(), nil
}

// sqlLiteral renders v so the lexer reads back the same value. Negative
// numbers and text containing quotes or backslashes have no literal form.
func sqlLiteral(v any) (string, error) {
	val, ok := storage.FromNative(v)
	if !ok {
		return "", fmt.Errorf("unsupported type %T", v)
	}
	if n, ok := val.AsInt(); ok && n < 0 {
		return "", fmt.Errorf("negative number %d cannot be written as a literal", n)
	}
	if f, ok := val.AsDouble(); ok && (math.Signbit(f) || math.IsNaN(f) || math.IsInf(f, 0)) {
		return "", fmt.Errorf("number %v cannot be written as a literal", f)
	}
	if s, ok := val.AsText(); ok && strings.ContainsAny(s, `'\`) {
		return "", fmt.Errorf("text %q contains a quote or backslash", s)
	}
	return val.SQL(), nil
}
