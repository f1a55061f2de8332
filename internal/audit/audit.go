// Package audit provides the append-only compliance record of every
// analysis and comparison outcome. Writes are buffered and retried in
// the background; an audit failure escalates as a reportable error but
// never rolls back or hides the result it describes.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/signumlab/sigengine/internal/analyze"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	entry_id   TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	source_id  TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

// Entry is one append-only audit row.
type Entry struct {
	EntryID   string
	Kind      string // "analysis" or "comparison"
	SourceID  string
	Payload   string
	CreatedAt int64
}

// Sink writes audit entries to SQLite through a buffered background
// writer. It implements analyze.Recorder.
type Sink struct {
	db      *sql.DB
	retries int
	log     *slog.Logger

	buf  chan Entry
	wg   sync.WaitGroup
	once sync.Once

	written   atomic.Int64
	escalated atomic.Int64
}

// Open opens (or creates) the audit database and starts the writer.
// Use DSN ":memory:" for tests.
func Open(dsn string, writeRetries, bufferSize int, logger *slog.Logger) (*Sink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// The writer goroutine is the only connection user; a single conn
	// keeps :memory: databases coherent and avoids SQLite write races.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		// Journal mode is a durability tuning, not a correctness
		// requirement; the sink still runs in the default mode.
		logger.Warn("audit journal mode pragma failed", "error", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 1024
	}

	s := &Sink{
		db:      db,
		retries: writeRetries,
		log:     logger.With("component", "audit"),
		buf:     make(chan Entry, bufferSize),
	}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

// RecordAnalysis enqueues an analysis result. Never blocks the caller:
// a full buffer escalates immediately rather than stalling analysis.
func (s *Sink) RecordAnalysis(res analyze.AnalysisResult) {
	s.enqueue("analysis", res.SourceID, res)
}

// RecordComparison enqueues a comparison result.
func (s *Sink) RecordComparison(res analyze.ComparisonResult) {
	s.enqueue("comparison", res.SourceA+"|"+res.SourceB, res)
}

func (s *Sink) enqueue(kind, sourceID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.escalate(kind, sourceID, fmt.Errorf("encode payload: %w", err))
		return
	}
	entry := Entry{
		EntryID:   uuid.NewString(),
		Kind:      kind,
		SourceID:  sourceID,
		Payload:   string(data),
		CreatedAt: time.Now().UTC().UnixNano(),
	}
	select {
	case s.buf <- entry:
	default:
		s.escalate(kind, sourceID, fmt.Errorf("audit buffer full"))
	}
}

func (s *Sink) writer() {
	defer s.wg.Done()
	for entry := range s.buf {
		s.write(entry)
	}
}

// write inserts one entry with bounded retries and linear-doubling
// backoff, then escalates.
func (s *Sink) write(entry Entry) {
	delay := 50 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		_, err := s.db.Exec(
			"INSERT INTO audit_log (entry_id, kind, source_id, payload, created_at) VALUES (?, ?, ?, ?, ?)",
			entry.EntryID, entry.Kind, entry.SourceID, entry.Payload, entry.CreatedAt,
		)
		if err == nil {
			s.written.Add(1)
			return
		}
		lastErr = err
	}
	s.escalate(entry.Kind, entry.SourceID, lastErr)
}

func (s *Sink) escalate(kind, sourceID string, err error) {
	s.escalated.Add(1)
	s.log.Error("audit write escalated", "kind", kind, "source", sourceID, "error", err)
}

// Written reports successfully persisted entries.
func (s *Sink) Written() int64 { return s.written.Load() }

// Escalated reports entries abandoned after exhausting write retries.
// A non-zero value is a reportable compliance condition; the results
// themselves were still returned to their callers.
func (s *Sink) Escalated() int64 { return s.escalated.Load() }

// Close flushes the buffer and closes the database.
func (s *Sink) Close() error {
	s.once.Do(func() {
		close(s.buf)
	})
	s.wg.Wait()
	return s.db.Close()
}
