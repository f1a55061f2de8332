package audit

import (
	"image"
	"testing"
	"time"

	"github.com/signumlab/sigengine/internal/analyze"
	"github.com/signumlab/sigengine/internal/model"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(":memory:", 2, 16, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func analysisFixture(id string) analyze.AnalysisResult {
	return analyze.AnalysisResult{
		ID:           id,
		SourceID:     "doc-1",
		Bounds:       image.Rect(10, 20, 200, 90),
		Label:        model.StyleHandwritten,
		Quality:      0.82,
		Confidence:   0.91,
		ModelVersion: "fv1",
		Timestamp:    time.Now().UTC(),
	}
}

func TestSinkPersistsBothKinds(t *testing.T) {
	s := openTestSink(t)

	s.RecordAnalysis(analysisFixture("a-1"))
	s.RecordComparison(analyze.ComparisonResult{
		ID:         "c-1",
		SourceA:    "doc-1",
		SourceB:    "doc-2",
		Similarity: 0.93,
		Verdict:    analyze.VerdictMatch,
		Timestamp:  time.Now().UTC(),
	})

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := s.Written(); got != 2 {
		t.Errorf("written = %d, want 2", got)
	}
	if got := s.Escalated(); got != 0 {
		t.Errorf("escalated = %d, want 0", got)
	}
}

func TestSinkRowsQueryable(t *testing.T) {
	s := openTestSink(t)

	for i := 0; i < 5; i++ {
		s.RecordAnalysis(analysisFixture("a"))
	}
	// Drain the writer before querying; Close is the flush barrier but
	// we still need the db, so wait on the counter instead.
	deadline := time.Now().Add(2 * time.Second)
	for s.Written() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE kind = 'analysis'").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 5 {
		t.Errorf("rows = %d, want 5", count)
	}

	var payload string
	if err := s.db.QueryRow("SELECT payload FROM audit_log LIMIT 1").Scan(&payload); err != nil {
		t.Fatalf("payload query failed: %v", err)
	}
	if payload == "" || payload[0] != '{' {
		t.Errorf("payload not JSON: %q", payload)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestSinkRecoversFromTransientWriteFailure(t *testing.T) {
	s, err := Open(":memory:", 5, 16, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Break the writer's target table, enqueue, then restore it while
	// the bounded retry loop is still backing off.
	if _, err := s.db.Exec("DROP TABLE audit_log"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	s.RecordAnalysis(analysisFixture("a-1"))

	time.Sleep(20 * time.Millisecond)
	if _, err := s.db.Exec(schema); err != nil {
		t.Fatalf("restore table: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.Written() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := s.Written(); got != 1 {
		t.Errorf("written = %d, want 1 after retry", got)
	}
	if got := s.Escalated(); got != 0 {
		t.Errorf("escalated = %d, want 0 (failure was transient)", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestSinkFullBufferEscalates(t *testing.T) {
	s, err := Open(":memory:", 0, 1, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Flood far past the buffer; some enqueues must take the escalation
	// path instead of blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			s.RecordAnalysis(analysisFixture("flood"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RecordAnalysis blocked the caller")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s.Written()+s.Escalated() != 500 {
		t.Errorf("written %d + escalated %d != 500", s.Written(), s.Escalated())
	}
}

func TestSinkCloseIdempotent(t *testing.T) {
	s := openTestSink(t)
	s.RecordAnalysis(analysisFixture("a"))
	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	// Second close must not panic on the already-closed buffer.
	s.Close()
}
