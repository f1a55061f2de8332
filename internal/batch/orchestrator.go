// Package batch schedules bulk document work across a bounded worker
// pool shared by all jobs. Excess items queue on the pool semaphore
// rather than spawning unbounded workers; that queueing is the
// backpressure protecting the scoring model from overload.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/signumlab/sigengine/internal/analyze"
	"github.com/signumlab/sigengine/internal/config"
	"github.com/signumlab/sigengine/internal/feature"
)

// Orchestrator owns the worker pool and the process-scoped job
// registry. Jobs are garbage-collected from the registry a retention
// window after reaching a terminal state.
type Orchestrator struct {
	pipeline *analyze.Pipeline
	cfg      config.BatchConfig
	sem      *semaphore.Weighted
	log      *slog.Logger

	mu   sync.RWMutex
	jobs map[Handle]*job

	rootCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an orchestrator and starts its registry janitor.
func New(pipeline *analyze.Pipeline, cfg config.BatchConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	rootCtx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		pipeline: pipeline,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		log:      logger.With("component", "batch"),
		jobs:     make(map[Handle]*job),
		rootCtx:  rootCtx,
		stop:     stop,
	}
	o.wg.Add(1)
	go o.janitor()
	return o
}

// Submit registers a job and starts driving its items. The returned
// handle serves status polls and cancellation.
func (o *Orchestrator) Submit(bj BatchJob) (Handle, error) {
	if len(bj.Documents) == 0 {
		return "", fmt.Errorf("batch job contains no documents")
	}
	if bj.Mode == "" {
		bj.Mode = ModeAnalyze
	}
	if bj.Mode == ModeCompareBaseline && bj.Baseline == nil {
		return "", fmt.Errorf("compare-baseline job needs a baseline document")
	}
	if bj.Mode != ModeAnalyze && bj.Mode != ModeCompareBaseline {
		return "", fmt.Errorf("unknown batch mode %q", bj.Mode)
	}
	if o.cfg.QueueDepth > 0 {
		if queued := o.queuedItems(); queued+len(bj.Documents) > o.cfg.QueueDepth {
			return "", fmt.Errorf("batch queue full: %d items queued, depth %d", queued, o.cfg.QueueDepth)
		}
	}

	j := &job{
		id:        Handle(uuid.NewString()),
		mode:      bj.Mode,
		submitted: time.Now().UTC(),
		items:     make([]*item, len(bj.Documents)),
		done:      make(chan struct{}),
	}
	for i, doc := range bj.Documents {
		j.items[i] = &item{index: i, doc: doc, state: ItemPending}
	}

	o.mu.Lock()
	o.jobs[j.id] = j
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(j, bj)

	o.log.Info("job submitted", "job", string(j.id), "mode", string(bj.Mode), "items", len(bj.Documents))
	return j.id, nil
}

// queuedItems counts items not yet terminal across all registered
// jobs. Submit refuses work that would push the count past the
// configured queue depth, so callers see backpressure instead of an
// unbounded registry.
func (o *Orchestrator) queuedItems() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := 0
	for _, j := range o.jobs {
		j.mu.RLock()
		for _, it := range j.items {
			if it.state == ItemPending || it.state == ItemRunning {
				n++
			}
		}
		j.mu.RUnlock()
	}
	return n
}

// Status returns the aggregate and per-item view of a job.
func (o *Orchestrator) Status(h Handle) (Status, error) {
	o.mu.RLock()
	j, ok := o.jobs[h]
	o.mu.RUnlock()
	if !ok {
		return Status{}, fmt.Errorf("unknown job %s", h)
	}
	return j.snapshot(), nil
}

// Cancel marks a job for cooperative cancellation: no further pending
// items dispatch, and in-flight items stop at their next checkpoint.
func (o *Orchestrator) Cancel(h Handle) error {
	o.mu.RLock()
	j, ok := o.jobs[h]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %s", h)
	}
	j.mu.Lock()
	j.cancel = true
	j.mu.Unlock()
	o.log.Info("job cancelled", "job", string(h))
	return nil
}

// Wait blocks until the job reaches a terminal aggregate state.
func (o *Orchestrator) Wait(h Handle) error {
	o.mu.RLock()
	j, ok := o.jobs[h]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %s", h)
	}
	<-j.done
	return nil
}

// Close stops dispatching, waits for in-flight work and the janitor.
func (o *Orchestrator) Close() {
	o.stop()
	o.wg.Wait()
}

// run drives one job: resolves the baseline for compare mode, then
// feeds items through the shared pool.
func (o *Orchestrator) run(j *job, bj BatchJob) {
	defer o.wg.Done()
	defer o.finish(j)

	var baseline *feature.Vector
	var baselineID string
	if j.mode == ModeCompareBaseline {
		vec, err := o.pipeline.PrimaryVector(o.rootCtx, *bj.Baseline)
		if err != nil {
			// Without a baseline no item can be compared; fail the
			// whole job with the baseline's error kind.
			kind, _ := classify(err)
			o.log.Warn("baseline extraction failed", "job", string(j.id), "error", err)
			for i := range j.items {
				j.markFailed(i, fmt.Errorf("baseline %s: %w", bj.Baseline.SourceID, err), kind)
			}
			return
		}
		baseline = &vec
		baselineID = bj.Baseline.SourceID
	}

	var g errgroup.Group
	for i := range j.items {
		if j.cancelled() {
			j.markFailed(i, errCancelled, "cancelled")
			continue
		}
		if err := o.sem.Acquire(o.rootCtx, 1); err != nil {
			j.markFailed(i, errCancelled, "cancelled")
			continue
		}
		idx := i
		g.Go(func() error {
			defer o.sem.Release(1)
			o.processItem(j, idx, baselineID, baseline)
			return nil
		})
	}
	g.Wait()
}

func (o *Orchestrator) finish(j *job) {
	j.mu.Lock()
	j.finished = time.Now().UTC()
	j.mu.Unlock()
	close(j.done)

	st := j.snapshot()
	o.log.Info("job finished",
		"job", string(j.id), "state", string(st.State),
		"succeeded", st.Summary.Succeeded, "failed", st.Summary.Failed,
		"elapsed", st.Summary.Elapsed)
}

// processItem runs the retry loop for one item. An item makes at most
// 1+MaxRetries attempts; only transient failures consume retries.
func (o *Orchestrator) processItem(j *job, i int, baselineID string, baseline *feature.Vector) {
	maxAttempts := o.cfg.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Cancellation checkpoint before the attempt starts.
		if j.cancelled() {
			j.markFailed(i, errCancelled, "cancelled")
			return
		}

		j.setState(i, ItemRunning)

		ctx, cancel := context.WithTimeout(o.rootCtx, o.cfg.ItemTimeout)
		results, cmp, err := o.attempt(ctx, j, i, baselineID, baseline)
		cancel()

		if err == nil {
			// The attempt ran to completion; a cancel arriving during
			// classification does not discard finished work.
			j.markSucceeded(i, results, cmp)
			return
		}

		kind, transient := classify(err)
		if !transient || attempt == maxAttempts {
			j.markFailed(i, err, kind)
			o.log.Warn("item failed",
				"job", string(j.id), "item", i, "kind", kind,
				"attempts", attempt, "error", err)
			return
		}

		j.markRetry(i, err, kind)
		o.log.Info("item retrying",
			"job", string(j.id), "item", i, "kind", kind, "attempt", attempt)

		select {
		case <-time.After(backoff(o.cfg.BackoffBase, o.cfg.BackoffCap, attempt)):
		case <-o.rootCtx.Done():
			j.markFailed(i, errCancelled, "cancelled")
			return
		}
	}
}

// attempt runs one pass of the item's pipeline work.
func (o *Orchestrator) attempt(ctx context.Context, j *job, i int, baselineID string, baseline *feature.Vector) ([]analyze.AnalysisResult, *analyze.ComparisonResult, error) {
	j.mu.RLock()
	doc := j.items[i].doc
	j.mu.RUnlock()

	regionResults, err := o.pipeline.Analyze(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	results := make([]analyze.AnalysisResult, len(regionResults))
	for k, rr := range regionResults {
		results[k] = rr.Result
	}

	if j.mode != ModeCompareBaseline {
		return results, nil, nil
	}

	cmp, err := o.pipeline.CompareToBaseline(ctx, doc, baselineID, *baseline)
	if err != nil {
		return nil, nil, err
	}
	return results, &cmp, nil
}

// janitor sweeps terminal jobs out of the registry after the retention
// window so the process-scoped map cannot grow without bound.
func (o *Orchestrator) janitor() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.rootCtx.Done():
			return
		case <-ticker.C:
			o.sweep(time.Now().UTC())
		}
	}
}

func (o *Orchestrator) sweep(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for h, j := range o.jobs {
		select {
		case <-j.done:
		default:
			continue
		}
		j.mu.RLock()
		expired := now.Sub(j.finished) > o.cfg.JobRetention
		j.mu.RUnlock()
		if expired {
			delete(o.jobs, h)
			o.log.Debug("job swept from registry", "job", string(h))
		}
	}
}
