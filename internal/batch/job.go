package batch

import (
	"sync"
	"time"

	"github.com/signumlab/sigengine/internal/analyze"
	"github.com/signumlab/sigengine/internal/document"
)

// Mode selects what the orchestrator does with each document.
type Mode string

const (
	// ModeAnalyze runs the single-document pipeline per item.
	ModeAnalyze Mode = "analyze"
	// ModeCompareBaseline additionally compares each item's primary
	// signature against a baseline document's signature.
	ModeCompareBaseline Mode = "compare-baseline"
)

// ItemState is the per-item state machine:
// pending -> running -> {succeeded, failed}, with failed items looping
// back to pending while retry budget remains.
type ItemState string

const (
	ItemPending   ItemState = "pending"
	ItemRunning   ItemState = "running"
	ItemSucceeded ItemState = "succeeded"
	ItemFailed    ItemState = "failed"
)

// JobState is the aggregate view. A job is succeeded only when every
// item succeeded; any terminal failure makes it partially-failed.
type JobState string

const (
	JobRunning         JobState = "running"
	JobSucceeded       JobState = "succeeded"
	JobPartiallyFailed JobState = "partially-failed"
)

// Handle identifies a submitted job for status polls and cancellation.
type Handle string

// BatchJob is a bulk submission: a set of documents, a processing
// mode, and for compare mode the baseline document to compare against.
type BatchJob struct {
	Documents []document.Document
	Mode      Mode
	Baseline  *document.Document
}

// item tracks one document through the state machine. The orchestrator
// is the single writer; status polls read under the job lock.
type item struct {
	index    int
	doc      document.Document
	state    ItemState
	attempts int
	lastErr  string
	errKind  string

	results    []analyze.AnalysisResult
	comparison *analyze.ComparisonResult
}

type job struct {
	id        Handle
	mode      Mode
	submitted time.Time

	mu       sync.RWMutex
	items    []*item
	finished time.Time
	cancel   bool

	done chan struct{}
}

// setState transitions one item. Transitions are monotonic per attempt
// and observed under the lock, so a poller can never see an item move
// backwards within an attempt.
func (j *job) setState(i int, state ItemState) {
	j.mu.Lock()
	j.items[i].state = state
	j.mu.Unlock()
}

func (j *job) markRetry(i int, err error, kind string) {
	j.mu.Lock()
	it := j.items[i]
	it.attempts++
	it.lastErr = err.Error()
	it.errKind = kind
	it.state = ItemPending
	j.mu.Unlock()
}

func (j *job) markFailed(i int, err error, kind string) {
	j.mu.Lock()
	it := j.items[i]
	it.attempts++
	it.lastErr = err.Error()
	it.errKind = kind
	it.state = ItemFailed
	j.mu.Unlock()
}

func (j *job) markSucceeded(i int, results []analyze.AnalysisResult, cmp *analyze.ComparisonResult) {
	j.mu.Lock()
	it := j.items[i]
	it.attempts++
	it.results = results
	it.comparison = cmp
	it.state = ItemSucceeded
	j.mu.Unlock()
}

func (j *job) cancelled() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.cancel
}

// ItemStatus is the per-item view returned by status polls.
type ItemStatus struct {
	Index      int
	SourceID   string
	State      ItemState
	Attempts   int
	ErrorKind  string
	LastError  string
	Results    []analyze.AnalysisResult
	Comparison *analyze.ComparisonResult
}

// Summary aggregates a job's outcomes, mirroring the per-batch
// processing metrics of the compliance report.
type Summary struct {
	Total          int
	Succeeded      int
	Failed         int
	Pending        int
	Running        int
	MeanQuality    float64
	MeanConfidence float64
	Elapsed        time.Duration
}

// Status is the aggregate plus per-item view of a job.
type Status struct {
	Job       Handle
	Mode      Mode
	State     JobState
	Submitted time.Time
	Items     []ItemStatus
	Summary   Summary
}

// snapshot builds a consistent status view under the read lock.
func (j *job) snapshot() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()

	st := Status{
		Job:       j.id,
		Mode:      j.mode,
		Submitted: j.submitted,
		Items:     make([]ItemStatus, len(j.items)),
	}

	var qualitySum, confidenceSum float64
	var scored int

	terminal := true
	allSucceeded := true
	for i, it := range j.items {
		st.Items[i] = ItemStatus{
			Index:      it.index,
			SourceID:   it.doc.SourceID,
			State:      it.state,
			Attempts:   it.attempts,
			ErrorKind:  it.errKind,
			LastError:  it.lastErr,
			Results:    it.results,
			Comparison: it.comparison,
		}
		switch it.state {
		case ItemSucceeded:
			st.Summary.Succeeded++
			for _, r := range it.results {
				qualitySum += r.Quality
				confidenceSum += r.Confidence
				scored++
			}
		case ItemFailed:
			st.Summary.Failed++
			allSucceeded = false
		case ItemPending:
			st.Summary.Pending++
			terminal = false
		case ItemRunning:
			st.Summary.Running++
			terminal = false
		}
	}

	st.Summary.Total = len(j.items)
	if scored > 0 {
		st.Summary.MeanQuality = qualitySum / float64(scored)
		st.Summary.MeanConfidence = confidenceSum / float64(scored)
	}

	switch {
	case !terminal:
		st.State = JobRunning
		st.Summary.Elapsed = time.Since(j.submitted)
	case allSucceeded:
		st.State = JobSucceeded
		st.Summary.Elapsed = j.finished.Sub(j.submitted)
	default:
		st.State = JobPartiallyFailed
		st.Summary.Elapsed = j.finished.Sub(j.submitted)
	}
	return st
}
