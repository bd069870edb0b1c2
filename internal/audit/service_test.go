package audit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceover/internal/audit"
	"github.com/nikhilbhutani/voiceover/internal/config"
	"github.com/nikhilbhutani/voiceover/internal/database"
	"github.com/nikhilbhutani/voiceover/internal/models"
)

func TestBuildAuditQuery(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := audit.BuildAuditQuery(audit.AuditQuery{Action: "align", StartDate: &start, Offset: 10})

	assert.Contains(t, query, "action = $1")
	assert.Contains(t, query, "created_at >= $2")
	assert.Contains(t, query, "LIMIT $3 OFFSET $4")
	assert.Equal(t, []interface{}{"align", start, 50, 10}, args)
}

func TestBuildUsageQuery(t *testing.T) {
	t.Parallel()

	query, args := audit.BuildUsageQuery(nil, nil)
	assert.NotContains(t, query, "$1")
	assert.Empty(t, args)

	end := time.Now()
	query, args = audit.BuildUsageQuery(nil, &end)
	assert.Contains(t, query, "created_at <= $1")
	assert.Len(t, args, 1)
}

func TestParseIP(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "10.0.0.1", audit.ParseIP("10.0.0.1:5123").String())
	assert.Equal(t, "::1", audit.ParseIP("::1").String())
	assert.Nil(t, audit.ParseIP("not-an-ip"))
	assert.Nil(t, audit.ParseIP(""))
}

// TestServiceAgainstPostgres runs only when TEST_DATABASE_URL points at a
// disposable database.
func TestServiceAgainstPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1})
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, database.RunMigrations(ctx, pool, "../../migrations"))

	svc := audit.NewService(pool)
	require.NoError(t, svc.Log(ctx, audit.LogEntry{
		Action:    models.ActionAlign,
		Units:     42,
		Latency:   15 * time.Millisecond,
		Success:   true,
		IPAddress: "127.0.0.1:9000",
	}))

	logs, err := svc.GetAuditLogs(ctx, audit.AuditQuery{Action: models.ActionAlign, Limit: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(42), logs[0].Units)

	summary, err := svc.GetUsageSummary(ctx, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, summary)
}
