package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/voiceover/internal/align"
	"github.com/nikhilbhutani/voiceover/internal/metrics"
	"github.com/nikhilbhutani/voiceover/internal/models"
	"github.com/nikhilbhutani/voiceover/internal/queue"
	"github.com/nikhilbhutani/voiceover/internal/webhook"
)

// JobStore persists job state between the API and the worker.
type JobStore interface {
	Put(ctx context.Context, job models.AlignJob) error
	Get(ctx context.Context, id uuid.UUID) (*models.AlignJob, error)
}

// Notifier delivers job completion callbacks.
type Notifier interface {
	Notify(ctx context.Context, target, event string, payload interface{}) error
}

type AlignWorker struct {
	jobs     JobStore
	notifier Notifier
	metrics  *metrics.Metrics
	opts     align.BatchOptions
	attempt  func(ctx context.Context) (retry, maxRetry int, ok bool)
}

// NewAlignWorker builds the handler for TypeAlignBatch. notifier may be nil,
// in which case callback URLs are ignored.
func NewAlignWorker(jobs JobStore, notifier Notifier, m *metrics.Metrics, workers int) *AlignWorker {
	return &AlignWorker{
		jobs:     jobs,
		notifier: notifier,
		metrics:  m,
		opts:     align.BatchOptions{Workers: workers},
		attempt:  asynqAttempt,
	}
}

func asynqAttempt(ctx context.Context) (int, int, bool) {
	retry, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return 0, 0, false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return retry, maxRetry, ok
}

// lastAttempt reports whether asynq will not run the task again after an
// error. Outside a worker there are no retries.
func (w *AlignWorker) lastAttempt(ctx context.Context) bool {
	retry, maxRetry, ok := w.attempt(ctx)
	return !ok || retry >= maxRetry
}

func (w *AlignWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.AlignBatchPayload
	if err := sonic.Unmarshal(t.Payload(), &payload); err != nil {
		// Retrying cannot fix a bad payload.
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	job := models.AlignJob{
		ID:          payload.JobID,
		Examples:    len(payload.Examples),
		CallbackURL: payload.CallbackURL,
		CreatedAt:   time.Now().UTC(),
	}
	if prev, err := w.jobs.Get(ctx, payload.JobID); err == nil {
		job.CreatedAt = prev.CreatedAt
	}

	job.Status = models.JobStatusRunning
	if err := w.jobs.Put(ctx, job); err != nil {
		return w.fail(ctx, job, fmt.Errorf("mark job running: %w", err))
	}

	slog.Info("solving alignment batch", "job_id", job.ID, "examples", job.Examples)
	start := time.Now()

	results := models.SolveAlignExamples(func(examples []align.Example) []align.Result {
		return align.SolveBatch(ctx, examples, w.opts)
	}, payload.Examples)

	if err := ctx.Err(); err != nil {
		// Deadline or shutdown: the job stays running while a retry is pending.
		return w.fail(ctx, job, fmt.Errorf("align job %s: %w", job.ID, err))
	}

	failed := models.CountFailed(results)
	w.metrics.RecordAlignBatch(len(results)-failed, failed, models.AlignRequest{Examples: payload.Examples}.Cells(), time.Since(start).Seconds())

	now := time.Now().UTC()
	job.Status = models.JobStatusDone
	job.Results = results
	job.Failed = failed
	job.CompletedAt = &now

	if err := w.jobs.Put(ctx, job); err != nil {
		job.Results, job.Failed, job.CompletedAt = nil, 0, nil
		return w.fail(ctx, job, fmt.Errorf("store job results: %w", err))
	}

	slog.Info("alignment batch completed", "job_id", job.ID, "failed", failed, "duration", time.Since(start))

	// Results are already stored; a failed callback must not rerun the solve.
	w.notify(ctx, job, webhook.EventAlignJobCompleted)
	return nil
}

// fail returns cause unchanged. On the final attempt it first records the
// job as failed so pollers see a terminal state.
func (w *AlignWorker) fail(ctx context.Context, job models.AlignJob, cause error) error {
	if !w.lastAttempt(ctx) {
		return cause
	}

	// ctx may already be done; the terminal write must still happen.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.Error = cause.Error()
	job.CompletedAt = &now
	if err := w.jobs.Put(writeCtx, job); err != nil {
		slog.Error("mark align job failed", "job_id", job.ID, "error", err)
		return cause
	}

	slog.Warn("align job failed", "job_id", job.ID, "error", cause)
	w.notify(writeCtx, job, webhook.EventAlignJobFailed)
	return cause
}

func (w *AlignWorker) notify(ctx context.Context, job models.AlignJob, event string) {
	if job.CallbackURL == "" || w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, job.CallbackURL, event, job); err != nil {
		slog.Warn("align job callback failed", "job_id", job.ID, "event", event, "error", err)
	}
}
