// Package jobs implements the async job runtime of the sidecar: a FIFO
// queue drained by a single worker goroutine, with progress reporting,
// cooperative cancellation, and a bounded terminal-job history.
//
// One worker is a deliberate choice: the storage layer serializes writers
// anyway, so parallel workers would only contend on the same lock and
// complicate cancellation semantics.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/logger"
)

// DefaultRetention is how many terminal jobs the manager keeps.
const DefaultRetention = 100

// queueCapacity bounds the pending queue. Far above any realistic backlog
// for a localhost sidecar.
const queueCapacity = 1024

// ProgressFunc reports job progress: a 0..100 percentage and a short
// human-readable message.
type ProgressFunc func(pct int, message string)

// Runner executes one job kind. The context is canceled when the job is
// canceled; runners observe it at their natural checkpoints. Returning
// domain.ErrJobCanceled (or the context error) keeps the job canceled
// rather than errored.
type Runner func(ctx context.Context, kind domain.JobKind, params map[string]any, progress ProgressFunc) (map[string]any, error)

// record pairs a job with its cancellation handle.
type record struct {
	job    domain.Job
	cancel context.CancelFunc
}

// Manager owns the job table and the single worker.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*record
	order     []string
	queue     chan string
	runner    Runner
	retention int

	closeOnce sync.Once
	done      chan struct{}
}

// NewManager creates a manager and starts its worker goroutine.
func NewManager(runner Runner) *Manager {
	m := &Manager{
		jobs:      map[string]*record{},
		queue:     make(chan string, queueCapacity),
		runner:    runner,
		retention: DefaultRetention,
		done:      make(chan struct{}),
	}
	go m.work()
	return m
}

// Submit enqueues a new job and returns its snapshot.
func (m *Manager) Submit(kind domain.JobKind, params map[string]any) (domain.Job, error) {
	job := domain.Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    domain.JobQueued,
		Params:    params,
		CreatedAt: utcNow(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = &record{job: job}
	m.order = append(m.order, job.ID)
	m.prune()
	m.mu.Unlock()

	select {
	case m.queue <- job.ID:
		return job, nil
	default:
		// Queue full: roll the record back so the table matches reality.
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.order = m.order[:len(m.order)-1]
		m.mu.Unlock()
		return domain.Job{}, errors.New("job queue is full")
	}
}

// Get returns a snapshot of one job.
func (m *Manager) Get(jobID string) (domain.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return rec.job, true
}

// List returns job snapshots in creation order, optionally filtered by
// status, paginated by offset/limit. Returns the page, the filtered total,
// and the has-more flag.
func (m *Manager) List(status domain.JobStatus, limit, offset int) ([]domain.Job, int, bool) {
	if limit < 1 {
		limit = 100
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var all []domain.Job
	for _, id := range m.order {
		rec, ok := m.jobs[id]
		if !ok {
			continue
		}
		if status != "" && rec.job.Status != status {
			continue
		}
		all = append(all, rec.job)
	}

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]domain.Job, end-offset)
	copy(page, all[offset:end])

	return page, total, end < total
}

// Cancel requests cancellation. Queued jobs become canceled immediately;
// running jobs get their context canceled and stay canceled regardless of
// what the runner returns. Terminal jobs are a no-op returning their
// current status. Returns ("", false) for unknown ids.
func (m *Manager) Cancel(jobID string) (domain.JobStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return "", false
	}
	if rec.job.Status.Terminal() {
		return rec.job.Status, true
	}

	rec.job.Status = domain.JobCanceled
	rec.job.FinishedAt = utcNow()
	if rec.job.ProgressMessage == "" {
		rec.job.ProgressMessage = "Canceled"
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	return domain.JobCanceled, true
}

// Close stops accepting jobs and lets the worker drain. Jobs still queued
// (and not canceled) are run before Close returns.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.queue)
		<-m.done
	})
}

// work is the single worker loop. Jobs complete in FIFO order.
func (m *Manager) work() {
	defer close(m.done)
	for jobID := range m.queue {
		m.runOne(jobID)
	}
}

func (m *Manager) runOne(jobID string) {
	m.mu.Lock()
	rec, ok := m.jobs[jobID]
	if !ok || rec.job.Status != domain.JobQueued {
		// Canceled (or pruned) before the worker got to it.
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rec.cancel = cancel
	rec.job.Status = domain.JobRunning
	rec.job.StartedAt = utcNow()
	rec.job.ProgressPct = 1
	rec.job.ProgressMessage = "Job started"
	kind := rec.job.Kind
	params := rec.job.Params
	m.mu.Unlock()

	progress := func(pct int, message string) {
		m.setProgress(jobID, pct, message)
	}

	result, err := m.runner(ctx, kind, params, progress)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok = m.jobs[jobID]
	if !ok {
		return
	}
	if rec.job.Status == domain.JobCanceled {
		// A cancel won the race: the runner's result is discarded.
		return
	}

	rec.job.FinishedAt = utcNow()
	switch {
	case err == nil:
		rec.job.Status = domain.JobDone
		rec.job.ProgressPct = 100
		if rec.job.ProgressMessage == "" {
			rec.job.ProgressMessage = "Completed"
		}
		rec.job.Result = result
	case errors.Is(err, domain.ErrJobCanceled) || errors.Is(err, context.Canceled):
		rec.job.Status = domain.JobCanceled
		if rec.job.ProgressMessage == "" {
			rec.job.ProgressMessage = "Canceled"
		}
	default:
		logger.Warn("job %s (%s) failed: %v", jobID, kind, err)
		rec.job.Status = domain.JobError
		rec.job.Error = err.Error()
		rec.job.ErrorCode = "INTERNAL_ERROR"
		if rec.job.ProgressMessage == "" {
			rec.job.ProgressMessage = "Failed"
		}
	}
}

// setProgress clamps the percentage to 0..100 and keeps it monotonic within
// one execution.
func (m *Manager) setProgress(jobID string, pct int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok || rec.job.Status != domain.JobRunning {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct > rec.job.ProgressPct {
		rec.job.ProgressPct = pct
	}
	if message != "" {
		rec.job.ProgressMessage = message
	}
}

// prune drops the oldest terminal jobs past the retention window.
// Non-terminal jobs are always kept. Caller holds the lock.
func (m *Manager) prune() {
	terminal := 0
	for _, id := range m.order {
		if rec, ok := m.jobs[id]; ok && rec.job.Status.Terminal() {
			terminal++
		}
	}
	if terminal <= m.retention {
		return
	}

	var kept []string
	toDrop := terminal - m.retention
	for _, id := range m.order {
		rec, ok := m.jobs[id]
		if !ok {
			continue
		}
		if toDrop > 0 && rec.job.Status.Terminal() {
			delete(m.jobs, id)
			toDrop--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func utcNow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
