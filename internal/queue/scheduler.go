// Package queue implements the conversion job queue: admission under a
// concurrency ceiling, the job lifecycle state machine, and snapshot
// persistence on every change.
package queue

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/sheet"
)

// ErrJobNotFound is returned when an operation addresses a job that is no
// longer in the queue.
var ErrJobNotFound = errors.New("job not found")

// ErrRetryUnavailable is returned when a retry is requested for a job whose
// source handle is gone or whose status is not error.
var ErrRetryUnavailable = errors.New("retry unavailable: job must be failed and still hold its source")

// DefaultMaxConcurrentJobs bounds how many jobs may be processing at once
// when no ceiling is configured.
const DefaultMaxConcurrentJobs = 3

// Publisher receives job change notifications. Implementations must not
// block: the queue calls them while reacting to completions.
type Publisher interface {
	JobUpdated(job domain.Job)
	JobRemoved(id string)
}

// Config holds queue settings.
type Config struct {
	MaxConcurrentJobs int
}

// Queue owns the job collection as its single source of truth. All mutations
// replace whole job values; in-flight pipelines never see a half-written job.
type Queue struct {
	logger    *observability.Logger
	store     domain.SnapshotStore
	publisher Publisher
	pipelines map[domain.ConversionMode]Pipeline
	baseCtx   context.Context

	// sem is the admission ceiling. A slot is acquired before dispatch and
	// released in a deferred block, so increments and decrements stay paired
	// regardless of how a pipeline ends.
	sem    *semaphore.Weighted
	active atomic.Int32
	wg     sync.WaitGroup

	mu         sync.Mutex
	jobs       []domain.Job
	changeHook func(existing map[string]struct{})
}

// Option configures optional queue collaborators.
type Option func(*Queue)

// WithStore attaches a snapshot store, persisted on every queue change.
func WithStore(s domain.SnapshotStore) Option {
	return func(q *Queue) { q.store = s }
}

// WithPublisher attaches a job change publisher.
func WithPublisher(p Publisher) Option {
	return func(q *Queue) { q.publisher = p }
}

// WithChangeHook registers a hook invoked with the surviving job ids after
// every collection change. Used to reconcile external selection state.
func WithChangeHook(hook func(existing map[string]struct{})) Option {
	return func(q *Queue) { q.changeHook = hook }
}

// New creates a queue with the given pipelines per conversion mode.
func New(ctx context.Context, cfg Config, logger *observability.Logger, pipelines map[domain.ConversionMode]Pipeline, opts ...Option) *Queue {
	ceiling := cfg.MaxConcurrentJobs
	if ceiling <= 0 {
		ceiling = DefaultMaxConcurrentJobs
	}

	q := &Queue{
		logger:    logger.WithComponent("queue"),
		pipelines: pipelines,
		baseCtx:   ctx,
		sem:       semaphore.NewWeighted(int64(ceiling)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Restore loads the persisted snapshot. Jobs that were queued or processing
// when the process stopped arrive already forced to error by the store; none
// of them holds a source handle, so nothing is re-admitted.
func (q *Queue) Restore(ctx context.Context) error {
	if q.store == nil {
		return nil
	}

	jobs, err := q.store.Load(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.jobs = jobs
	q.mu.Unlock()

	q.logger.Info().Int("jobs", len(jobs)).Msg("queue restored")
	q.afterChange()
	return nil
}

// Add enqueues a job. A job with the same id replaces its existing slot
// (last write wins) instead of duplicating; a brand-new id appends in
// insertion order. Admission runs immediately afterwards.
func (q *Queue) Add(job domain.Job) domain.Job {
	now := time.Now()
	job.Status = domain.StatusQueued
	job.ProgressMessage = "waiting for a free slot"
	job.ErrorDetail = ""
	job.ResultSheets = nil
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.OutputOptions == (domain.OutputOptions{}) {
		job.OutputOptions = domain.DefaultOutputOptions(job.Mode)
	}

	q.mu.Lock()
	replaced := false
	for i := range q.jobs {
		if q.jobs[i].ID == job.ID {
			old := q.jobs[i]
			if old.HasSource() && old.SourcePath != job.SourcePath {
				// Unlinking is safe even if the old run is still reading: its
				// open descriptor keeps the file alive until the run settles.
				os.Remove(old.SourcePath)
			}
			job.Attempt = old.Attempt + 1
			q.jobs[i] = job
			replaced = true
			break
		}
	}
	if !replaced {
		q.jobs = append(q.jobs, job)
	}
	q.mu.Unlock()

	q.logger.Info().Str("job_id", job.ID).Str("mode", string(job.Mode)).Bool("replaced", replaced).Msg("job enqueued")
	q.afterChange()
	q.publish(job)
	q.schedule()
	return job
}

// Retry re-admits a failed job. Retry is a manual action, allowed only while
// the job still holds its source handle; it clears the previous error and
// result before the job goes back to queued.
func (q *Queue) Retry(id string) error {
	q.mu.Lock()
	idx := q.indexOf(id)
	if idx < 0 {
		q.mu.Unlock()
		return ErrJobNotFound
	}
	job := q.jobs[idx]
	if !job.CanRetry() {
		q.mu.Unlock()
		return ErrRetryUnavailable
	}

	job.Status = domain.StatusQueued
	job.ErrorDetail = ""
	job.ResultSheets = nil
	job.ProgressMessage = "waiting for a free slot"
	job.Attempt++
	job.UpdatedAt = time.Now()
	q.jobs[idx] = job
	q.mu.Unlock()

	q.logger.Info().Str("job_id", id).Msg("job re-admitted for retry")
	q.afterChange()
	q.publish(job)
	q.schedule()
	return nil
}

// Delete removes a job and its uploaded source. A job deleted while
// processing keeps running; its completion is discarded by the existence
// check in the completion handler.
func (q *Queue) Delete(id string) error {
	q.mu.Lock()
	idx := q.indexOf(id)
	if idx < 0 {
		q.mu.Unlock()
		return ErrJobNotFound
	}
	job := q.jobs[idx]
	q.jobs = append(q.jobs[:idx], q.jobs[idx+1:]...)
	q.mu.Unlock()

	if job.HasSource() {
		os.Remove(job.SourcePath)
	}

	q.logger.Info().Str("job_id", id).Msg("job deleted")
	q.afterChange()
	if q.publisher != nil {
		q.publisher.JobRemoved(id)
	}
	q.schedule()
	return nil
}

// SetOutputOptions updates a job's rendering options. Allowed at any time
// before download.
func (q *Queue) SetOutputOptions(id string, opts domain.OutputOptions) error {
	return q.mutate(id, func(job *domain.Job) error {
		job.OutputOptions = opts
		return nil
	})
}

// SetPageRange updates a job's raw range expression. It is re-parsed on
// demand, so no validation happens here.
func (q *Queue) SetPageRange(id string, expr string) error {
	return q.mutate(id, func(job *domain.Job) error {
		job.PageRange = expr
		return nil
	})
}

// SetThumbnails records how many preview images are available for a job.
func (q *Queue) SetThumbnails(id string, count int) error {
	return q.mutate(id, func(job *domain.Job) error {
		job.ThumbnailCount = count
		job.ThumbnailCursor = 0
		return nil
	})
}

// AdvanceThumbnail moves the preview cycle cursor and returns its new value.
func (q *Queue) AdvanceThumbnail(id string) (int, error) {
	cursor := 0
	err := q.mutate(id, func(job *domain.Job) error {
		if job.ThumbnailCount > 0 {
			job.ThumbnailCursor = (job.ThumbnailCursor + 1) % job.ThumbnailCount
		}
		cursor = job.ThumbnailCursor
		return nil
	})
	return cursor, err
}

// CommitSheets atomically swaps a job's result sheets with an edited
// workbook. Editing never changes the job's status.
func (q *Queue) CommitSheets(id string, wb sheet.Workbook) error {
	return q.mutate(id, func(job *domain.Job) error {
		job.ResultSheets = wb.Sheets
		return nil
	})
}

// Get returns a deep copy of one job.
func (q *Queue) Get(id string) (domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if idx := q.indexOf(id); idx >= 0 {
		return q.jobs[idx].Clone(), true
	}
	return domain.Job{}, false
}

// Jobs returns a deep copy of the whole queue in insertion order.
func (q *Queue) Jobs() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Job, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = job.Clone()
	}
	return out
}

// ActiveCount reports how many jobs are currently processing.
func (q *Queue) ActiveCount() int {
	return int(q.active.Load())
}

// Shutdown waits for in-flight pipelines to settle or the context to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// schedule runs one admission pass: while a slot is free, the first queued
// job (insertion order, no priority) transitions to processing and its
// pipeline is dispatched. The transition happens under the lock before the
// goroutine starts, so a re-entrant pass never double-admits a job.
func (q *Queue) schedule() {
	for {
		var (
			failed []domain.Job
			next   domain.Job
			found  bool
		)

		q.mu.Lock()
		for i := range q.jobs {
			if q.jobs[i].Status != domain.StatusQueued {
				continue
			}

			// A queued job without its source handle can never run: fail it
			// before a slot is spent on it.
			if !q.jobs[i].HasSource() {
				q.jobs[i].Status = domain.StatusError
				q.jobs[i].ErrorDetail = "source file is no longer available; upload it again to retry"
				q.jobs[i].ProgressMessage = ""
				q.jobs[i].UpdatedAt = time.Now()
				failed = append(failed, q.jobs[i].Clone())
				continue
			}

			if found || !q.sem.TryAcquire(1) {
				continue // ceiling reached; keep scanning for source-less jobs
			}

			q.jobs[i].Status = domain.StatusProcessing
			q.jobs[i].ProgressMessage = "converting"
			q.jobs[i].UpdatedAt = time.Now()
			next = q.jobs[i].Clone()
			found = true
		}
		q.mu.Unlock()

		if len(failed) > 0 {
			q.afterChange()
			for _, job := range failed {
				q.publish(job)
			}
		}

		if !found {
			return
		}

		q.active.Add(1)
		q.wg.Add(1)
		q.afterChange()
		q.publish(next)

		go q.run(next)
	}
}

// run drives one dispatched pipeline. The slot release, the active-counter
// decrement and the follow-up admission pass all sit in the deferred block,
// so they fire exactly once per admission whatever the pipeline does.
func (q *Queue) run(job domain.Job) {
	defer func() {
		q.sem.Release(1)
		q.active.Add(-1)
		q.wg.Done()
		q.schedule()
	}()

	pipeline, ok := q.pipelines[job.Mode]
	if !ok {
		q.complete(job.ID, job.Attempt, nil, domain.StateError("no pipeline registered for mode "+string(job.Mode), nil))
		return
	}

	sheets, err := pipeline.Run(q.baseCtx, job)
	q.complete(job.ID, job.Attempt, sheets, err)
}

// complete applies a pipeline result to the job. A job deleted mid-flight,
// or replaced by a fresh enqueue of the same id, has the stale result
// silently discarded. The attempt check catches the case where the
// replacement is itself already processing: last write wins, so only the
// run dispatched for the current attempt may land.
func (q *Queue) complete(id string, attempt uint64, sheets []sheet.Sheet, err error) {
	q.mu.Lock()
	idx := q.indexOf(id)
	if idx < 0 || q.jobs[idx].Status != domain.StatusProcessing || q.jobs[idx].Attempt != attempt {
		q.mu.Unlock()
		q.logger.Info().Str("job_id", id).Msg("discarding completion for a deleted or replaced job")
		return
	}

	job := q.jobs[idx]
	job.ProgressMessage = ""
	job.UpdatedAt = time.Now()
	if err != nil {
		job.Status = domain.StatusError
		job.ErrorDetail = errorDetail(err)
		job.ResultSheets = nil
	} else {
		job.Status = domain.StatusSuccess
		job.ErrorDetail = ""
		job.ResultSheets = sheets
	}
	q.jobs[idx] = job
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn().Str("job_id", id).Err(err).Msg("job failed")
	} else {
		q.logger.Info().Str("job_id", id).Int("sheets", len(sheets)).Msg("job succeeded")
	}

	q.afterChange()
	q.publish(job)
}

// mutate applies fn to one job value and replaces it in the collection.
func (q *Queue) mutate(id string, fn func(job *domain.Job) error) error {
	q.mu.Lock()
	idx := q.indexOf(id)
	if idx < 0 {
		q.mu.Unlock()
		return ErrJobNotFound
	}
	job := q.jobs[idx].Clone()
	if err := fn(&job); err != nil {
		q.mu.Unlock()
		return err
	}
	job.UpdatedAt = time.Now()
	q.jobs[idx] = job
	q.mu.Unlock()

	q.afterChange()
	q.publish(job)
	return nil
}

// indexOf must be called with the lock held.
func (q *Queue) indexOf(id string) int {
	for i := range q.jobs {
		if q.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// afterChange persists the snapshot and runs the reconciliation hook.
func (q *Queue) afterChange() {
	q.mu.Lock()
	jobs := make([]domain.Job, len(q.jobs))
	for i, job := range q.jobs {
		jobs[i] = job.Clone()
	}
	q.mu.Unlock()

	if q.store != nil {
		if err := q.store.Save(context.Background(), jobs); err != nil {
			q.logger.Error().Err(err).Msg("failed to persist queue snapshot")
		}
	}

	if q.changeHook != nil {
		existing := make(map[string]struct{}, len(jobs))
		for _, job := range jobs {
			existing[job.ID] = struct{}{}
		}
		q.changeHook(existing)
	}
}

func (q *Queue) publish(job domain.Job) {
	if q.publisher != nil {
		q.publisher.JobUpdated(job)
	}
}

// errorDetail reduces a pipeline error to the human-readable message shown
// in the queue.
func errorDetail(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "conversion failed: " + err.Error()
}

// View is a derived filtered and paginated read view of the queue.
type View struct {
	Jobs       []domain.Job
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Filter narrows the queue to one conversion mode and an optional
// case-insensitive filename substring, then paginates. Pages are 1-based.
func (q *Queue) Filter(mode domain.ConversionMode, nameFilter string, page, pageSize int) View {
	all := q.Jobs()

	needle := strings.ToLower(strings.TrimSpace(nameFilter))
	matched := make([]domain.Job, 0, len(all))
	for _, job := range all {
		if job.Mode != mode {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(job.FileName), needle) {
			continue
		}
		matched = append(matched, job)
	}

	if pageSize <= 0 {
		pageSize = 10
	}
	totalPages := (len(matched) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	return View{
		Jobs:       matched[start:end],
		Total:      len(matched),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// SortedIDs returns the ids of all jobs, ascending. Used by tests and batch
// operations that need a stable order.
func (q *Queue) SortedIDs() []string {
	jobs := q.Jobs()
	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	sort.Strings(ids)
	return ids
}
