package driver

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SimonWaldherr/parallaxdb/internal/engine"
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

func TestParseDSN(t *testing.T) {
	c, err := parseDSN("mem://?name=shop&busy_timeout=750ms")
	if err != nil {
		t.Fatalf("parseDSN returned error: %v", err)
	}
	if c.name != "shop" {
		t.Fatalf("expected name shop, got %q", c.name)
	}
	if c.busyTimeout != 750*time.Millisecond {
		t.Fatalf("expected busyTimeout=750ms, got %s", c.busyTimeout)
	}

	c, err = parseDSN("")
	if err != nil || c.name != "default" {
		t.Fatalf("empty DSN: %+v, %v", c, err)
	}
	c, err = parseDSN("mem://?busy_timeout=40")
	if err != nil || c.busyTimeout != 40*time.Millisecond || c.name != "default" {
		t.Fatalf("numeric busy_timeout: %+v, %v", c, err)
	}
}

func TestParseDSNErrors(t *testing.T) {
	for _, dsn := range []string{"file:./x.db", "custom://path", "mem://?busy_timeout=nope", "mem://?busy_timeout=-5", "mem://?name=x&bogus=1"} {
		if _, err := parseDSN(dsn); err == nil {
			t.Errorf("expected error for %q", dsn)
		}
	}
}

func openTest(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := OpenInMemory(name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestExecAndQuery(t *testing.T) {
	db := openTest(t, t.Name())
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE users (id INT PRIMARY KEY, name TEXT, score DOUBLE)"); err != nil {
		t.Fatal(err)
	}
	res, err := db.ExecContext(ctx, "INSERT INTO users VALUES (?, ?, ?), (?, ?, ?)", 1, "Alice", 9.5, 2, "Bob", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := res.RowsAffected(); n != 2 {
		t.Fatalf("RowsAffected = %d", n)
	}

	rows, err := db.QueryContext(ctx, "SELECT id, name, score FROM users WHERE id >= ?", 1)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	types, err := rows.ColumnTypes()
	if err != nil {
		t.Fatal(err)
	}
	if types[0].DatabaseTypeName() != "INT" || types[2].DatabaseTypeName() != "DOUBLE" {
		t.Fatalf("column types %s %s", types[0].DatabaseTypeName(), types[2].DatabaseTypeName())
	}
	type user struct {
		id    int64
		name  string
		score sql.NullFloat64
	}
	var got []user
	for rows.Next() {
		var u user
		if err := rows.Scan(&u.id, &u.name, &u.score); err != nil {
			t.Fatal(err)
		}
		got = append(got, u)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].name != "Alice" || got[0].score.Float64 != 9.5 || got[1].score.Valid {
		t.Fatalf("rows = %+v", got)
	}
}

func TestSharedNamedDatabase(t *testing.T) {
	a := openTest(t, "shared_"+t.Name())
	b := openTest(t, "shared_"+t.Name())
	other := openTest(t, "other_"+t.Name())
	if _, err := a.Exec("CREATE TABLE t (v INT)"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Exec("INSERT INTO t VALUES (1)"); err != nil {
		t.Fatalf("second handle should see the table: %v", err)
	}
	if _, err := other.Exec("INSERT INTO t VALUES (1)"); !errors.Is(err, storage.ErrNoSuchTable) {
		t.Fatalf("other database: %v", err)
	}
}

func TestOpenDBWrapsCatalog(t *testing.T) {
	cat := storage.NewDB()
	if _, err := engine.Exec(context.Background(), cat, "CREATE TABLE t (v INT)"); err != nil {
		t.Fatal(err)
	}
	db := OpenDB(cat)
	defer db.Close()
	if _, err := db.Exec("INSERT INTO t VALUES (5)"); err != nil {
		t.Fatal(err)
	}
	tbl, _ := cat.Table("t")
	if len(tbl.Rows) != 1 || tbl.Rows[0][0] != storage.Int(5) {
		t.Fatalf("rows = %v", tbl.Rows)
	}
	var v int
	if err := db.QueryRow("SELECT v FROM t").Scan(&v); err != nil || v != 5 {
		t.Fatalf("scan: %d, %v", v, err)
	}
}

func TestErrorsPassThrough(t *testing.T) {
	db := openTest(t, t.Name())
	_, err := db.Exec("SELECT * users")
	var pe *engine.Error
	if !errors.As(err, &pe) || pe.Pos != 9 {
		t.Fatalf("err = %v", err)
	}
	if _, err := db.Exec("SELECT * FROM t WHERE a = ?", -1); err == nil {
		t.Fatal("negative argument should be rejected")
	}
	if _, err := db.Begin(); !errors.Is(err, ErrTxUnsupported) {
		t.Fatalf("Begin: %v", err)
	}
}

func TestQueryNonSelect(t *testing.T) {
	db := openTest(t, t.Name())
	rows, err := db.Query("CREATE TABLE t (v INT)")
	if err != nil {
		t.Fatal(err)
	}
	if rows.Next() {
		t.Fatal("DDL returned rows")
	}
	rows.Close()
}

func TestConcurrentInserts(t *testing.T) {
	db := openTest(t, t.Name())
	if _, err := db.Exec("CREATE TABLE t (v INT)"); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 25 {
				if _, err := db.Exec("INSERT INTO t VALUES (?)", i*100+j); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	var n int
	rows, err := db.Query("SELECT * FROM t")
	if err != nil {
		t.Fatal(err)
	}
	for rows.Next() {
		n++
	}
	rows.Close()
	if n != 200 {
		t.Fatalf("got %d rows", n)
	}
}

func TestBusyTimeout(t *testing.T) {
	const timeout = 20 * time.Millisecond
	s := newServer(storage.NewDB())
	if err := s.acquire(context.Background(), timeout); err != nil {
		t.Fatal(err)
	}
	if err := s.acquire(context.Background(), timeout); err == nil {
		t.Fatal("second acquire should time out")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.acquire(ctx, timeout); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled acquire: %v", err)
	}
	s.release()
	if err := s.acquire(context.Background(), timeout); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestBusyTimeoutPerConnection(t *testing.T) {
	name := url.QueryEscape(t.Name())
	patient, err := sql.Open(DriverName, "mem://?name="+name+"&busy_timeout=0")
	if err != nil {
		t.Fatal(err)
	}
	defer patient.Close()
	hasty, err := sql.Open(DriverName, "mem://?name="+name+"&busy_timeout=20ms")
	if err != nil {
		t.Fatal(err)
	}
	defer hasty.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := patient.ExecContext(ctx, "CREATE TABLE t (v INT)"); err != nil {
		t.Fatal(err)
	}
	err = WithCatalog(ctx, patient, func(*storage.DB) error {
		_, err := hasty.ExecContext(ctx, "INSERT INTO t VALUES (1)")
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "busy timeout after 20ms") {
		t.Fatalf("second DSN should use its own timeout: %v", err)
	}
	var n int
	rows, err := hasty.QueryContext(ctx, "SELECT * FROM t")
	if err != nil {
		t.Fatal(err)
	}
	for rows.Next() {
		n++
	}
	rows.Close()
	if n != 0 {
		t.Fatalf("rows = %d", n)
	}
}

func TestWithCatalog(t *testing.T) {
	db := openTest(t, t.Name())
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE b (v INT)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE a (v INT)"); err != nil {
		t.Fatal(err)
	}
	var names []string
	err := WithCatalog(ctx, db, func(cat *storage.DB) error {
		names = cat.TableNames()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names = %v", names)
	}
	boom := errors.New("boom")
	if err := WithCatalog(ctx, db, func(*storage.DB) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
