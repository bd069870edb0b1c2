package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus collectors for the voice service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Listen socket metrics
	ActiveStreams prometheus.Gauge

	// Transcription metrics
	TranscriptionRequests *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	ChunkSize             prometheus.Histogram

	// Synthesis metrics
	SynthesisRequests *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
	Sentences         prometheus.Counter

	// Alignment metrics
	AlignSolves   *prometheus.CounterVec
	AlignCells    prometheus.Counter
	AlignDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceover_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceover_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		ActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "voiceover_listen_active_streams",
			Help: "Current number of open listen sockets",
		}),

		TranscriptionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceover_transcriptions_total",
			Help: "Total number of transcribed chunks by outcome",
		}, []string{"provider", "outcome"}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceover_transcription_duration_seconds",
			Help:    "Duration of chunk transcriptions",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		ChunkSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceover_chunk_size_bytes",
			Help:    "Size of received audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		SynthesisRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceover_syntheses_total",
			Help: "Total number of synthesis requests by outcome",
		}, []string{"vocoder", "outcome"}),
		SynthesisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceover_synthesis_duration_seconds",
			Help:    "Duration of synthesis requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		Sentences: f.NewCounter(prometheus.CounterOpts{
			Name: "voiceover_synthesized_sentences_total",
			Help: "Total number of sentences synthesized",
		}),

		AlignSolves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceover_align_solves_total",
			Help: "Total number of alignment examples solved by outcome",
		}, []string{"outcome"}),
		AlignCells: f.NewCounter(prometheus.CounterOpts{
			Name: "voiceover_align_cells_total",
			Help: "Total number of score cells submitted for alignment",
		}),
		AlignDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceover_align_batch_duration_seconds",
			Help:    "Duration of alignment batches",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}),
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

// RecordTranscription records one transcribed chunk
func (m *Metrics) RecordTranscription(provider string, ok bool, sizeBytes int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionRequests.WithLabelValues(provider, outcome(ok)).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
}

func (m *Metrics) RecordSynthesis(vocoder string, ok bool, sentences int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SynthesisRequests.WithLabelValues(vocoder, outcome(ok)).Inc()
	m.SynthesisDuration.Observe(durationSeconds)
	m.Sentences.Add(float64(sentences))
}

// RecordAlignBatch records a solved batch: examples that succeeded and
// failed, and the padded cells submitted.
func (m *Metrics) RecordAlignBatch(succeeded, failed, cells int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.AlignSolves.WithLabelValues("success").Add(float64(succeeded))
	m.AlignSolves.WithLabelValues("failure").Add(float64(failed))
	m.AlignCells.Add(float64(cells))
	m.AlignDuration.Observe(durationSeconds)
}
