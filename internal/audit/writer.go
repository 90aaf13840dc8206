package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tkingovr/roochguard/api"
)

const (
	dateLayout       = "2006-01-02"
	defaultMaxMemory = 10000
	maxLineBytes     = 1 << 20
)

// JSONLStore appends records to one JSONL file per day (UTC date of the
// record timestamp) and serves queries from a bounded in-memory window.
type JSONLStore struct {
	dir    string
	maxMem int
	now    func() time.Time

	mu     sync.Mutex
	day    string
	file   *os.File
	out    *bufio.Writer
	recent *ring

	live fanout
}

// Option configures a JSONLStore.
type Option func(*JSONLStore)

// WithMaxMemory bounds how many records are kept for Query and Stats.
func WithMaxMemory(n int) Option {
	return func(s *JSONLStore) {
		if n > 0 {
			s.maxMem = n
		}
	}
}

// NewJSONLStore opens a store in dir, creating it if needed. Records already
// in today's file are loaded so queries survive a restart.
func NewJSONLStore(dir string, opts ...Option) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	s := &JSONLStore{
		dir:    dir,
		maxMem: defaultMaxMemory,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recent = newRing(s.maxMem)
	if err := s.loadDay(dayOf(s.now())); err != nil {
		return nil, err
	}
	return s, nil
}

// Write assigns an id and timestamp when missing, appends the record to
// its day file and publishes it to subscribers.
func (s *JSONLStore) Write(_ context.Context, record *api.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = s.now()
	}

	if day := dayOf(record.Timestamp); day != s.day {
		if err := s.openDay(day); err != nil {
			return err
		}
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling audit record: %w", err)
	}
	if _, err := s.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	if err := s.out.Flush(); err != nil {
		return fmt.Errorf("flushing audit log: %w", err)
	}

	s.recent.push(record)
	s.live.publish(record)
	return nil
}

// Query returns matching records newest first. Offset skips that many of
// the newest matches.
func (s *JSONLStore) Query(_ context.Context, filter api.QueryFilter) ([]*api.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []*api.AuditRecord
	skip := filter.Offset
	s.recent.newestFirst(func(r *api.AuditRecord) bool {
		if !matchesFilter(r, filter) {
			return true
		}
		if skip > 0 {
			skip--
			return true
		}
		results = append(results, r)
		return filter.Limit <= 0 || len(results) < filter.Limit
	})
	return results, nil
}

func (s *JSONLStore) Stats(_ context.Context) (*api.AuditStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &api.AuditStats{
		ByMethod:  make(map[string]int),
		ByOutcome: make(map[string]int),
	}
	s.recent.each(func(r *api.AuditRecord) bool {
		stats.TotalRequests++
		switch r.Verdict {
		case api.VerdictAllow:
			stats.AllowCount++
		case api.VerdictDeny:
			stats.DenyCount++
		case api.VerdictAsk:
			stats.AskCount++
		case api.VerdictLog:
			stats.LogCount++
		}
		switch r.Outcome {
		case api.OutcomeSubmitted, api.OutcomeRecovered:
			stats.SubmittedCount++
		case api.OutcomeFailed:
			stats.FailedCount++
		}
		if r.Method != "" {
			stats.ByMethod[r.Method]++
		}
		if r.Outcome != "" {
			stats.ByOutcome[string(r.Outcome)]++
		}
		return true
	})
	return stats, nil
}

func (s *JSONLStore) Subscribe(_ context.Context) (<-chan *api.AuditRecord, func()) {
	return s.live.subscribe()
}

// Close flushes and closes the current day file. Subscriptions stay open
// until their owners cancel them.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeDay()
}

func (s *JSONLStore) openDay(day string) error {
	if err := s.closeDay(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("opening audit log file: %w", err)
	}
	s.file, s.out, s.day = f, bufio.NewWriter(f), day
	return nil
}

func (s *JSONLStore) closeDay() error {
	if s.file == nil {
		return nil
	}
	err := errors.Join(s.out.Flush(), s.file.Close())
	s.file, s.out, s.day = nil, nil, ""
	return err
}

// loadDay reads an existing day file into memory. Malformed lines are skipped.
func (s *JSONLStore) loadDay(day string) error {
	f, err := os.Open(s.path(day))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening audit log file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		var rec api.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		s.recent.push(&rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading audit log file: %w", err)
	}
	return nil
}

func (s *JSONLStore) path(day string) string {
	return filepath.Join(s.dir, day+".jsonl")
}

func dayOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func matchesFilter(r *api.AuditRecord, f api.QueryFilter) bool {
	switch {
	case !f.Since.IsZero() && r.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && r.Timestamp.After(f.Until):
		return false
	case f.Method != "" && r.Method != f.Method:
		return false
	case f.Verdict != "" && r.Verdict != f.Verdict:
		return false
	case f.Outcome != "" && r.Outcome != f.Outcome:
		return false
	}
	return true
}
