package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a statement run on a schedule. Schedule accepts six-field cron
// expressions (with seconds) and descriptors such as "@every 30s".
type Job struct {
	Name     string        `yaml:"name"`
	Schedule string        `yaml:"schedule"`
	SQL      string        `yaml:"sql"`
	Timeout  time.Duration `yaml:"timeout"`
}

// JobStatus is the last known outcome of a job, reported by /api/status.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Runs     int       `json:"runs"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_error,omitempty"`
	NextRun  time.Time `json:"next_run,omitzero"`
	Duration string    `json:"duration,omitempty"`
}

const defaultJobTimeout = 5 * time.Minute

var jobParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// scheduler runs jobs against db. A run still in progress when the next
// tick arrives causes that tick to be skipped.
type scheduler struct {
	db      *sql.DB
	cron    *cron.Cron
	verbose bool

	mu     sync.Mutex
	status map[string]*JobStatus
	ids    map[string]cron.EntryID
}

func newScheduler(db *sql.DB, verbose bool) *scheduler {
	return &scheduler{
		db: db,
		cron: cron.New(
			cron.WithParser(jobParser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		verbose: verbose,
		status:  make(map[string]*JobStatus),
		ids:     make(map[string]cron.EntryID),
	}
}

// Add registers j. Names must be unique.
func (s *scheduler) Add(j Job) error {
	if j.Name == "" || j.SQL == "" {
		return errors.New("job needs a name and sql")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.ids[j.Name]; dup {
		return fmt.Errorf("job %q already exists", j.Name)
	}
	entry, err := s.cron.AddFunc(j.Schedule, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", j.Name, j.Schedule, err)
	}
	s.ids[j.Name] = entry
	s.status[j.Name] = &JobStatus{Name: j.Name, Schedule: j.Schedule}
	return nil
}

// Remove unregisters the named job and reports whether it existed.
func (s *scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.ids[name]
	if !ok {
		return false
	}
	s.cron.Remove(entry)
	delete(s.ids, name)
	delete(s.status, name)
	return true
}

func (s *scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs to finish or ctx to end.
func (s *scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *scheduler) run(j Job) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, j.SQL)
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("job %q failed: %v", j.Name, err)
	} else if s.verbose {
		log.Printf("job %q done in %s", j.Name, elapsed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[j.Name]
	if !ok {
		return
	}
	st.Runs++
	st.LastRun = start
	st.Duration = elapsed.String()
	st.LastErr = ""
	if err != nil {
		st.LastErr = err.Error()
	}
}

// Status returns a snapshot of every job ordered by name.
func (s *scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.status))
	for name, st := range s.status {
		cp := *st
		cp.NextRun = s.cron.Entry(s.ids[name]).Next
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
