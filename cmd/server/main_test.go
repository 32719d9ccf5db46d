package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/SimonWaldherr/parallaxdb/driver"
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

func newTestServer(t *testing.T, init ...string) *server {
	t.Helper()
	db := driver.OpenDB(storage.NewDB())
	t.Cleanup(func() { db.Close() })
	if err := runInit(context.Background(), db, init); err != nil {
		t.Fatal(err)
	}
	return newServer(db, Config{Database: "test"})
}

func post(t *testing.T, h http.Handler, path, body string, out any) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	res := rec.Result()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
	}
	return res
}

var seed = []string{
	"CREATE TABLE users (id INT PRIMARY KEY, name TEXT)",
	"INSERT INTO users VALUES (1, 'Alice'), (2, 'Bob')",
}

func TestHTTPExecAndQuery(t *testing.T) {
	s := newTestServer(t)
	h := s.mux()

	var ex execResponse
	post(t, h, "/api/exec", `{"sql":"CREATE TABLE t (v INT)"}`, &ex)
	if !ex.Success || ex.RequestID == "" {
		t.Fatalf("create: %+v", ex)
	}
	res := post(t, h, "/api/exec", `{"sql":"INSERT INTO t VALUES (1), (2), (3)","request_id":"abc"}`, &ex)
	if !ex.Success || ex.RowsAffected != 3 || ex.RequestID != "abc" {
		t.Fatalf("insert: %+v", ex)
	}
	if got := res.Header.Get("X-Request-Id"); got != "abc" {
		t.Fatalf("X-Request-Id = %q", got)
	}

	var q queryResponse
	post(t, h, "/api/query", `{"sql":"SELECT v FROM t WHERE v > 1"}`, &q)
	if q.Error != "" || q.Count != 2 || len(q.Columns) != 1 || q.Columns[0] != "v" {
		t.Fatalf("query: %+v", q)
	}
	if q.Rows[0][0] != float64(2) || q.Rows[1][0] != float64(3) {
		t.Fatalf("rows = %v", q.Rows)
	}
}

func TestHTTPErrorsCarryPosition(t *testing.T) {
	s := newTestServer(t, seed...)
	h := s.mux()

	var q queryResponse
	post(t, h, "/api/query", `{"sql":"SELECT * users"}`, &q)
	if q.Error == "" || q.Position == nil || *q.Position != 9 {
		t.Fatalf("query error: %+v", q)
	}
	if len(q.Rows) != 0 {
		t.Fatalf("rows on error: %v", q.Rows)
	}

	var ex execResponse
	post(t, h, "/api/exec", `{"sql":"INSERT INTO users VALUES (1, 'Dup')"}`, &ex)
	if ex.Success || !strings.Contains(ex.Error, "constraint") || ex.Position != nil {
		t.Fatalf("exec error: %+v", ex)
	}
}

func TestHTTPBadRequests(t *testing.T) {
	s := newTestServer(t)
	h := s.mux()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/query", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/query = %d", rec.Code)
	}
	if res := post(t, h, "/api/exec", `{`, nil); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json = %d", res.StatusCode)
	}
	if res := post(t, h, "/api/federated/query", `{"sql":"SELECT * FROM users"}`, nil); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("federation without peers = %d", res.StatusCode)
	}
}

func TestHTTPStatus(t *testing.T) {
	s := newTestServer(t, seed...)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var st struct {
		OK       bool     `json:"ok"`
		Database string   `json:"database"`
		Tables   []string `json:"tables"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.OK || st.Database != "test" || len(st.Tables) != 1 || st.Tables[0] != "users" {
		t.Fatalf("status = %+v", st)
	}
}

// startPeer serves s over an in-memory gRPC listener and returns dial
// options that reach it.
func startPeer(t *testing.T, s *server) []grpc.DialOption {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	registerParallaxDBServer(gs, s)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)
	return []grpc.DialOption{grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})}
}

func TestGRPCQuery(t *testing.T) {
	peer := newTestServer(t, seed...)
	client := newTestServer(t)
	client.dialOpts = startPeer(t, peer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.grpcQuery(ctx, "passthrough:///bufnet", &queryRequest{RequestID: "r1", SQL: "SELECT name FROM users WHERE id = 2"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RequestID != "r1" || resp.Count != 1 || resp.Rows[0][1] != "Bob" {
		t.Fatalf("resp = %+v", resp)
	}
	if _, err := client.grpcQuery(ctx, "passthrough:///bufnet", &queryRequest{SQL: "SELECT * FROM nope"}); err == nil {
		t.Fatal("expected peer error")
	}
}

func TestFederatedQuery(t *testing.T) {
	peer := newTestServer(t, seed...)
	local := newTestServer(t,
		"CREATE TABLE users (id INT PRIMARY KEY, name TEXT)",
		"INSERT INTO users VALUES (3, 'Carol')",
	)
	local.dialOpts = startPeer(t, peer)
	local.peers = []string{"passthrough:///bufnet"}

	var q queryResponse
	post(t, local.mux(), "/api/federated/query", `{"sql":"SELECT id, name FROM users"}`, &q)
	if q.Error != "" || q.Count != 3 {
		t.Fatalf("federated: %+v", q)
	}
	if q.Rows[0][1] != "Carol" {
		t.Fatalf("local rows should come first: %v", q.Rows)
	}
}

func TestEqualStringSlices(t *testing.T) {
	tests := []struct {
		a, b []string
		want bool
	}{
		{[]string{"a", "b"}, []string{"a", "b"}, true},
		{[]string{"a", "b"}, []string{"b", "a"}, false},
		{[]string{"a"}, []string{"a", "b"}, false},
		{[]string{"a", "b"}, []string{"a"}, false},
		{[]string{}, []string{}, true},
	}
	for _, tt := range tests {
		if got := equalStringSlices(tt.a, tt.b); got != tt.want {
			t.Errorf("equalStringSlices(%v, %v) = %v; want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSplitPeers(t *testing.T) {
	got := splitPeers(" a:1, ,b:2,")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("splitPeers = %q", got)
	}
	if splitPeers("") != nil {
		t.Fatal("empty peers should be nil")
	}
}

func TestConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yml")
	yml := "database: shop\nbusy_timeout: 1s\npeers: [\"x:9090\"]\ninit:\n  - CREATE TABLE t (v INT)\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c, err := parseFlags(fs, []string{"-http", ":1", "-peers", "a:1", "-config", path})
	if err != nil {
		t.Fatal(err)
	}
	if c.HTTP != ":1" || c.GRPC != ":9090" || c.Database != "shop" || c.BusyTimeout != time.Second {
		t.Fatalf("config = %+v", c)
	}
	if len(c.Peers) != 1 || c.Peers[0] != "x:9090" || len(c.Init) != 1 {
		t.Fatalf("config = %+v", c)
	}
	if c.DSN() != "mem://?name=shop&busy_timeout=1s" {
		t.Fatalf("DSN = %q", c.DSN())
	}

	fs = flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := parseFlags(fs, []string{"-config", filepath.Join(t.TempDir(), "missing.yml")}); err == nil {
		t.Fatal("missing config file should fail")
	}
}

func TestHTTPQueryFormat(t *testing.T) {
	s := newTestServer(t, seed...)
	h := s.mux()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query?format=csv", strings.NewReader(`{"sql":"SELECT * FROM users"}`)))
	if rec.Body.String() != "id,name\n1,Alice\n2,Bob\n" {
		t.Fatalf("csv body = %q", rec.Body.String())
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query?format=html", strings.NewReader(`{"sql":"SELECT * FROM users"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown format = %d", rec.Code)
	}
}

func TestFederatedQueryRequestIDHeader(t *testing.T) {
	peer := newTestServer(t, seed...)
	local := newTestServer(t, seed...)
	local.dialOpts = startPeer(t, peer)
	local.peers = []string{"passthrough:///bufnet"}

	req := httptest.NewRequest(http.MethodPost, "/api/federated/query", strings.NewReader(`{"sql":"SELECT * FROM users"}`))
	req.Header.Set("X-Request-Id", "fed-1")
	rec := httptest.NewRecorder()
	local.mux().ServeHTTP(rec, req)
	var q queryResponse
	if err := json.NewDecoder(rec.Body).Decode(&q); err != nil {
		t.Fatal(err)
	}
	if q.RequestID != "fed-1" || rec.Header().Get("X-Request-Id") != "fed-1" || q.Count != 4 {
		t.Fatalf("federated = %+v, header %q", q, rec.Header().Get("X-Request-Id"))
	}
}
