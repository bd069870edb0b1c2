package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceover/internal/align"
	"github.com/nikhilbhutani/voiceover/internal/audit"
	"github.com/nikhilbhutani/voiceover/internal/cache"
	"github.com/nikhilbhutani/voiceover/internal/metrics"
	"github.com/nikhilbhutani/voiceover/internal/models"
	"github.com/nikhilbhutani/voiceover/internal/queue"
	"github.com/nikhilbhutani/voiceover/internal/webhook"
)

// JobStore holds asynchronous alignment job state.
type JobStore interface {
	Put(ctx context.Context, job models.AlignJob) error
	Get(ctx context.Context, id uuid.UUID) (*models.AlignJob, error)
}

type Enqueuer interface {
	EnqueueAlignBatch(ctx context.Context, payload queue.AlignBatchPayload) error
}

type AlignOptions struct {
	Workers  int
	MaxCells int
	// CallbackHosts may be targeted by callback_url despite being private.
	CallbackHosts []string
}

type AlignHandler struct {
	opts    AlignOptions
	jobs    JobStore
	queue   Enqueuer
	audit   AuditLogger
	metrics *metrics.Metrics
}

// NewAlignHandler serves synchronous solves. jobs and q may be nil, in which
// case the job endpoints answer 503.
func NewAlignHandler(opts AlignOptions, jobs JobStore, q Enqueuer, a AuditLogger, m *metrics.Metrics) *AlignHandler {
	return &AlignHandler{opts: opts, jobs: jobs, queue: q, audit: a, metrics: m}
}

// maxBodyBytes allows roughly 32 bytes of JSON per score cell.
func (h *AlignHandler) maxBodyBytes() int64 {
	return int64(h.opts.MaxCells)*32 + 1<<20
}

// decode reads and validates an align request, writing the error response
// itself when it returns false.
func (h *AlignHandler) decode(w http.ResponseWriter, r *http.Request) (models.AlignRequest, bool) {
	var req models.AlignRequest

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}

	if len(req.Examples) == 0 {
		writeError(w, http.StatusBadRequest, models.ErrEmptyAlignRequest.Error())
		return req, false
	}
	if h.opts.MaxCells > 0 && req.Cells() > h.opts.MaxCells {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request has %d score cells, limit is %d", req.Cells(), h.opts.MaxCells))
		return req, false
	}
	return req, true
}

// Solve aligns every example in the request. Examples fail independently:
// the response is 200 with an error entry at each failed index.
func (h *AlignHandler) Solve(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	start := time.Now()
	results := models.SolveAlignExamples(func(examples []align.Example) []align.Result {
		return align.SolveBatch(r.Context(), examples, align.BatchOptions{Workers: h.opts.Workers})
	}, req.Examples)

	if err := r.Context().Err(); err != nil {
		slog.Info("align request abandoned", "examples", len(req.Examples), "error", err)
		return
	}

	failed := models.CountFailed(results)
	h.metrics.RecordAlignBatch(len(results)-failed, failed, req.Cells(), time.Since(start).Seconds())
	recordAudit(r.Context(), h.audit, audit.LogEntry{
		Action:    models.ActionAlign,
		Units:     int64(req.Cells()),
		Latency:   time.Since(start),
		Success:   failed == 0,
		Details:   map[string]interface{}{"examples": len(results), "failed": failed},
		IPAddress: r.RemoteAddr,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "failed": failed})
}

// SubmitJob stores a pending job and hands the batch to the worker.
func (h *AlignHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil || h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "async alignment requires redis")
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.CallbackURL != "" {
		if err := webhook.ValidateURL(req.CallbackURL, h.opts.CallbackHosts...); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	job := models.AlignJob{
		ID:          uuid.New(),
		Status:      models.JobStatusPending,
		Examples:    len(req.Examples),
		CallbackURL: req.CallbackURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.jobs.Put(r.Context(), job); err != nil {
		slog.Error("store align job", "job_id", job.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store job")
		return
	}

	if err := h.queue.EnqueueAlignBatch(r.Context(), queue.AlignBatchPayload{
		JobID:       job.ID,
		Examples:    req.Examples,
		CallbackURL: req.CallbackURL,
	}); err != nil {
		slog.Error("enqueue align job", "job_id", job.ID, "error", err)
		job.Status = models.JobStatusFailed
		job.Error = "enqueue failed"
		if putErr := h.jobs.Put(r.Context(), job); putErr != nil {
			slog.Warn("mark align job failed", "job_id", job.ID, "error", putErr)
		}
		writeError(w, http.StatusBadGateway, "failed to enqueue job")
		return
	}

	recordAudit(r.Context(), h.audit, audit.LogEntry{
		Action:     models.ActionAlignJob,
		ResourceID: &job.ID,
		Units:      int64(req.Cells()),
		Success:    true,
		Details:    map[string]interface{}{"examples": job.Examples},
		IPAddress:  r.RemoteAddr,
	})

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID, "status": job.Status})
}

func (h *AlignHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "async alignment requires redis")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if errors.Is(err, cache.ErrMiss) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, job)
}
