package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/SimonWaldherr/parallaxdb/driver"
	id "github.com/SimonWaldherr/parallaxdb/internal/driver"
	"github.com/SimonWaldherr/parallaxdb/internal/engine"
	"github.com/SimonWaldherr/parallaxdb/internal/exporter"
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// HTTP and gRPC message types
type execRequest struct {
	RequestID string `json:"request_id,omitempty"`
	SQL       string `json:"sql"`
}
type execResponse struct {
	RequestID    string `json:"request_id"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	Position     *int   `json:"position,omitempty"`
	RowsAffected int64  `json:"rows_affected"`
	Duration     string `json:"duration"`
}

type queryRequest struct {
	RequestID string `json:"request_id,omitempty"`
	SQL       string `json:"sql"`
}
type queryResponse struct {
	RequestID string   `json:"request_id"`
	SQL       string   `json:"sql"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Error     string   `json:"error,omitempty"`
	Position  *int     `json:"position,omitempty"`
	Duration  string   `json:"duration"`
	Count     int      `json:"count"`
}

// gRPC JSON codec
type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() { encoding.RegisterCodec(jsonCodec{}) }

const serviceName = "parallaxdb.ParallaxDB"

// ParallaxDBServer is the gRPC service; descriptors are written by hand,
// there is no protobuf schema.
type ParallaxDBServer interface {
	Exec(context.Context, *execRequest) (*execResponse, error)
	Query(context.Context, *queryRequest) (*queryResponse, error)
}

func registerParallaxDBServer(s *grpc.Server, srv ParallaxDBServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*ParallaxDBServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Exec", Handler: execHandler},
			{MethodName: "Query", Handler: queryHandler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "parallaxdb",
	}, srv)
}

func execHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(execRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParallaxDBServer).Exec(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Exec"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(ParallaxDBServer).Exec(ctx, req.(*execRequest)) }
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(queryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParallaxDBServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Query"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(ParallaxDBServer).Query(ctx, req.(*queryRequest)) }
	return interceptor(ctx, in, info, handler)
}

// server state
type server struct {
	db       *sql.DB
	name     string
	peers    []string
	verbose  bool
	dialOpts []grpc.DialOption
	jobs     *scheduler
}

func newServer(db *sql.DB, c Config) *server {
	return &server{db: db, name: c.Database, peers: c.Peers, verbose: c.Verbose}
}

func (s *server) jobStatus() []JobStatus {
	if s.jobs == nil {
		return []JobStatus{}
	}
	return s.jobs.Status()
}

func requestID(v string) string {
	if strings.TrimSpace(v) == "" {
		return uuid.NewString()
	}
	return v
}

// errPosition returns the source offset of a parse error, if any.
func errPosition(err error) *int {
	if pos, ok := engine.Position(err); ok {
		return &pos
	}
	return nil
}

func (s *server) logf(format string, args ...any) {
	if s.verbose {
		log.Printf(format, args...)
	}
}

// ParallaxDBServer implementation
func (s *server) Exec(ctx context.Context, req *execRequest) (*execResponse, error) {
	start := time.Now()
	resp := &execResponse{RequestID: requestID(req.RequestID)}
	res, err := s.db.ExecContext(ctx, req.SQL)
	resp.Duration = time.Since(start).String()
	if err != nil {
		s.logf("[%s] exec %q: %v", resp.RequestID, req.SQL, err)
		resp.Error = err.Error()
		resp.Position = errPosition(err)
		return resp, nil
	}
	resp.Success = true
	resp.RowsAffected, _ = res.RowsAffected()
	s.logf("[%s] exec ok (%d rows, %s)", resp.RequestID, resp.RowsAffected, resp.Duration)
	return resp, nil
}

func (s *server) Query(ctx context.Context, req *queryRequest) (*queryResponse, error) {
	start := time.Now()
	resp := &queryResponse{RequestID: requestID(req.RequestID), SQL: req.SQL, Columns: []string{}, Rows: [][]any{}}
	err := s.query(ctx, req.SQL, resp)
	resp.Duration = time.Since(start).String()
	if err != nil {
		s.logf("[%s] query %q: %v", resp.RequestID, req.SQL, err)
		resp.Error = err.Error()
		resp.Position = errPosition(err)
		return resp, nil
	}
	resp.Count = len(resp.Rows)
	s.logf("[%s] query ok (%d rows, %s)", resp.RequestID, resp.Count, resp.Duration)
	return resp, nil
}

func (s *server) query(ctx context.Context, q string, resp *queryResponse) error {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	resp.Columns = cols
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		resp.Rows = append(resp.Rows, cells)
	}
	return rows.Err()
}

// HTTP handlers
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("X-Request-Id")
	}
	resp, _ := s.Exec(r.Context(), &req)
	w.Header().Set("X-Request-Id", resp.RequestID)
	writeJSON(w, resp)
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("X-Request-Id")
	}
	format := r.URL.Query().Get("format")
	if format != "" && !exporter.Valid(format) {
		http.Error(w, "Unknown format: "+format, http.StatusBadRequest)
		return
	}
	resp, _ := s.Query(r.Context(), &req)
	w.Header().Set("X-Request-Id", resp.RequestID)
	if format == "" || resp.Error != "" {
		writeJSON(w, resp)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := exporter.Write(w, format, resp.Columns, resp.Rows); err != nil {
		log.Printf("[%s] render %s: %v", resp.RequestID, format, err)
	}
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var tables []string
	err := id.WithCatalog(r.Context(), s.db, func(cat *storage.DB) error {
		tables = cat.TableNames()
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"ok":       true,
		"time":     time.Now().Format(time.RFC3339),
		"database": s.name,
		"tables":   tables,
		"peers":    s.peers,
		"jobs":     s.jobStatus(),
	})
}

// handleFederatedQuery runs the query locally and on every peer over gRPC,
// concatenating rows from peers whose columns match the local result.
func (s *server) handleFederatedQuery(w http.ResponseWriter, r *http.Request) {
	if len(s.peers) == 0 {
		http.Error(w, "No peers configured", http.StatusBadRequest)
		return
	}
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("X-Request-Id")
	}
	req.RequestID = requestID(req.RequestID)
	start := time.Now()
	local, _ := s.Query(r.Context(), &req)
	if local.Error != "" {
		writeJSON(w, local)
		return
	}
	cols := local.Columns
	rows := slices.Clone(local.Rows)

	type peerRes struct {
		rows [][]any
		err  error
	}
	ch := make(chan peerRes, len(s.peers))
	var wg sync.WaitGroup
	for _, addr := range s.peers {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			out, err := s.grpcQuery(r.Context(), addr, &queryRequest{RequestID: req.RequestID, SQL: req.SQL})
			if err != nil {
				ch <- peerRes{nil, fmt.Errorf("peer %s: %w", addr, err)}
				return
			}
			if !equalStringSlices(cols, out.Columns) {
				ch <- peerRes{nil, fmt.Errorf("peer %s columns mismatch", addr)}
				return
			}
			ch <- peerRes{out.Rows, nil}
		}(addr)
	}
	wg.Wait()
	close(ch)
	for res := range ch {
		if res.err != nil {
			log.Printf("[%s] federation: %v", req.RequestID, res.err)
			continue
		}
		rows = append(rows, res.rows...)
	}
	w.Header().Set("X-Request-Id", req.RequestID)
	writeJSON(w, &queryResponse{
		RequestID: req.RequestID,
		SQL:       req.SQL,
		Columns:   cols,
		Rows:      rows,
		Duration:  time.Since(start).String(),
		Count:     len(rows),
	})
}

// equalStringSlices reports whether a and b hold the same names in the same order.
func equalStringSlices(a, b []string) bool { return slices.Equal(a, b) }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// gRPC JSON client helper
func (s *server) grpcQuery(ctx context.Context, addr string, req *queryRequest) (*queryResponse, error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, s.dialOpts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	var resp queryResponse
	if err := conn.Invoke(ctx, "/"+serviceName+"/Query", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return &resp, errors.New(resp.Error)
	}
	return &resp, nil
}

func (s *server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/exec", s.handleExec)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/federated/query", s.handleFederatedQuery)
	return mux
}

// runInit executes the configured startup statements in order.
func runInit(ctx context.Context, db *sql.DB, stmts []string) error {
	for i, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init statement %d: %w", i+1, err)
		}
	}
	return nil
}

func splitPeers(s string) []string {
	var peers []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("flags: %v", err)
	}

	db, err := driver.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("open error: %v", err)
	}
	defer db.Close()
	if err := runInit(context.Background(), db, cfg.Init); err != nil {
		log.Fatalf("%v", err)
	}

	srv := newServer(db, cfg)
	if len(cfg.Jobs) > 0 {
		srv.jobs = newScheduler(db, cfg.Verbose)
		for _, j := range cfg.Jobs {
			if err := srv.jobs.Add(j); err != nil {
				log.Fatalf("%v", err)
			}
		}
		srv.jobs.Start()
		log.Printf("scheduled %d job(s)", len(cfg.Jobs))
	}

	grpcErr := make(chan error, 1)
	if cfg.GRPC != "" {
		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC)
			if err != nil {
				grpcErr <- err
				return
			}
			gs := grpc.NewServer()
			registerParallaxDBServer(gs, srv)
			log.Printf("gRPC listening on %s", cfg.GRPC)
			grpcErr <- gs.Serve(lis)
		}()
	}

	if cfg.HTTP == "" {
		if err := <-grpcErr; err != nil {
			log.Fatalf("gRPC serve error: %v", err)
		}
		return
	}
	log.Printf("HTTP listening on %s", cfg.HTTP)
	if err := http.ListenAndServe(cfg.HTTP, srv.mux()); err != nil {
		log.Fatalf("HTTP serve error: %v", err)
	}
}
