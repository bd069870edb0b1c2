package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/voiceover/internal/auth"
	"github.com/nikhilbhutani/voiceover/internal/models"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type LogEntry struct {
	Action     string
	Provider   string
	ResourceID *uuid.UUID
	Units      int64
	Latency    time.Duration
	Success    bool
	Details    map[string]interface{}
	IPAddress  string
}

func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	if entry.Details == nil {
		details = []byte("{}")
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_logs (subject, action, provider, resource_id, units, latency_ms, success, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		auth.SubjectFromContext(ctx), entry.Action, entry.Provider, entry.ResourceID, entry.Units,
		int(entry.Latency.Milliseconds()), entry.Success, details, parseIP(entry.IPAddress),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

// parseIP accepts a bare address or host:port as found in RemoteAddr.
func parseIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		addr := ap.Addr()
		return &addr
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return &addr
	}
	return nil
}

type AuditQuery struct {
	StartDate *time.Time
	EndDate   *time.Time
	Action    string
	Limit     int
	Offset    int
}

// buildAuditQuery returns the SQL and arguments for q.
func buildAuditQuery(q AuditQuery) (string, []interface{}) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := `SELECT id, subject, action, provider, resource_id, units, latency_ms, success, details, ip_address, created_at
			  FROM audit_logs WHERE TRUE`
	var args []interface{}
	argIdx := 1

	if q.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, q.Action)
		argIdx++
	}
	query, args, argIdx = withDateRange(query, args, argIdx, q.StartDate, q.EndDate)

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)
	return query, args
}

func withDateRange(query string, args []interface{}, argIdx int, start, end *time.Time) (string, []interface{}, int) {
	if start != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *start)
		argIdx++
	}
	if end != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *end)
		argIdx++
	}
	return query, args, argIdx
}

func (s *Service) GetAuditLogs(ctx context.Context, q AuditQuery) ([]models.AuditLog, error) {
	query, args := buildAuditQuery(q)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.Subject, &l.Action, &l.Provider, &l.ResourceID, &l.Units,
			&l.LatencyMs, &l.Success, &l.Details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return logs, nil
}

type UsageSummary struct {
	Action       string  `json:"action"`
	Provider     string  `json:"provider"`
	TotalCalls   int     `json:"total_calls"`
	FailedCalls  int     `json:"failed_calls"`
	TotalUnits   int64   `json:"total_units"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

func buildUsageQuery(startDate, endDate *time.Time) (string, []interface{}) {
	query := `SELECT action, provider, COUNT(*) AS total_calls,
			         COUNT(*) FILTER (WHERE NOT success) AS failed_calls,
			         COALESCE(SUM(units), 0) AS total_units,
			         COALESCE(AVG(latency_ms), 0) AS avg_latency_ms
			  FROM audit_logs WHERE TRUE`
	query, args, _ := withDateRange(query, nil, 1, startDate, endDate)
	query += " GROUP BY action, provider ORDER BY total_calls DESC"
	return query, args
}

func (s *Service) GetUsageSummary(ctx context.Context, startDate, endDate *time.Time) ([]UsageSummary, error) {
	query, args := buildUsageQuery(startDate, endDate)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	defer rows.Close()

	summaries := []UsageSummary{}
	for rows.Next() {
		var us UsageSummary
		if err := rows.Scan(&us.Action, &us.Provider, &us.TotalCalls, &us.FailedCalls, &us.TotalUnits, &us.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		summaries = append(summaries, us)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage summary: %w", err)
	}
	return summaries, nil
}
