package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/nikhilbhutani/voiceover/internal/metrics"
)

func TestRecordAlignBatch(t *testing.T) {
	t.Parallel()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	m.RecordAlignBatch(3, 1, 120, 0.01)
	m.RecordAlignBatch(1, 0, 4, 0.01)

	assert.InDelta(t, 4, testutil.ToFloat64(m.AlignSolves.WithLabelValues("success")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AlignSolves.WithLabelValues("failure")), 1e-9)
	assert.InDelta(t, 124, testutil.ToFloat64(m.AlignCells), 1e-9)
}

func TestStreamGauge(t *testing.T) {
	t.Parallel()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()

	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveStreams), 1e-9)
}

func TestRecordTranscriptionAndSynthesis(t *testing.T) {
	t.Parallel()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	m.RecordTranscription("fake", true, 2048, 0.2)
	m.RecordTranscription("fake", false, 10, 0.1)
	m.RecordSynthesis("styletts2", true, 3, 1.5)

	assert.InDelta(t, 1, testutil.ToFloat64(m.TranscriptionRequests.WithLabelValues("fake", "failure")), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(m.Sentences), 1e-9)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", "200", 0.1)
		m.StreamOpened()
		m.StreamClosed()
		m.RecordTranscription("x", true, 1, 0)
		m.RecordSynthesis("x", true, 1, 0)
		m.RecordAlignBatch(1, 0, 1, 0)
	})
}
