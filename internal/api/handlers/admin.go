package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/voiceover/internal/audit"
	"github.com/nikhilbhutani/voiceover/internal/models"
)

type AuditReader interface {
	GetAuditLogs(ctx context.Context, q audit.AuditQuery) ([]models.AuditLog, error)
	GetUsageSummary(ctx context.Context, startDate, endDate *time.Time) ([]audit.UsageSummary, error)
}

type AdminHandler struct {
	auditSvc AuditReader
}

// NewAdminHandler accepts a nil reader when no database is configured.
func NewAdminHandler(auditSvc AuditReader) *AdminHandler {
	return &AdminHandler{auditSvc: auditSvc}
}

// parseDateRange reads RFC 3339 start_date and end_date. Malformed values
// are rejected rather than silently widening the range.
func parseDateRange(r *http.Request) (start, end *time.Time, errMsg string) {
	for _, p := range []struct {
		key  string
		dest **time.Time
	}{{"start_date", &start}, {"end_date", &end}} {
		s := r.URL.Query().Get(p.key)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, nil, p.key + " must be RFC 3339"
		}
		*p.dest = &t
	}
	return start, end, ""
}

func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	if h.auditSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log requires a database")
		return
	}

	startDate, endDate, msg := parseDateRange(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	summary, err := h.auditSvc.GetUsageSummary(r.Context(), startDate, endDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"usage": summary})
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.auditSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log requires a database")
		return
	}

	q := audit.AuditQuery{
		Action: r.URL.Query().Get("action"),
	}

	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var msg string
	q.StartDate, q.EndDate, msg = parseDateRange(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	logs, err := h.auditSvc.GetAuditLogs(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs, "count": len(logs)})
}
