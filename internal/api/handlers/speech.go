package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/nikhilbhutani/voiceover/internal/audit"
	"github.com/nikhilbhutani/voiceover/internal/metrics"
	"github.com/nikhilbhutani/voiceover/internal/models"
	"github.com/nikhilbhutani/voiceover/internal/tempfiles"
	"github.com/nikhilbhutani/voiceover/internal/tts"
)

// streamChunkSize is the write size used when streaming synthesized audio.
const streamChunkSize = 8192

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.Synthesis, error)
	Vocoder() string
}

type SpeechHandler struct {
	synth   Synthesizer
	tmp     *tempfiles.Dir
	audit   AuditLogger
	metrics *metrics.Metrics
}

func NewSpeechHandler(synth Synthesizer, tmp *tempfiles.Dir, a AuditLogger, m *metrics.Metrics) *SpeechHandler {
	return &SpeechHandler{synth: synth, tmp: tmp, audit: a, metrics: m}
}

type speechRequest struct {
	Text string `json:"text"`
}

// Synthesize renders the text to a WAV file and streams it back. The file is
// deleted once streaming ends, whether or not the client read all of it.
func (h *SpeechHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	start := time.Now()
	res, err := h.synth.Synthesize(r.Context(), text)
	h.metrics.RecordSynthesis(h.synth.Vocoder(), err == nil, sentenceCount(res), time.Since(start).Seconds())
	if err != nil {
		recordAudit(r.Context(), h.audit, audit.LogEntry{
			Action:    models.ActionSynthesize,
			Provider:  h.synth.Vocoder(),
			Units:     int64(len(text)),
			Latency:   time.Since(start),
			Details:   map[string]interface{}{"error": err.Error()},
			IPAddress: r.RemoteAddr,
		})
		if errors.Is(err, tts.ErrEmptyText) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("synthesis failed", "vocoder", h.synth.Vocoder(), "error", err)
		writeError(w, http.StatusBadGateway, "synthesis failed: "+err.Error())
		return
	}
	defer h.tmp.Remove(res.Path)

	written, err := h.stream(w, res)
	if err != nil {
		slog.Warn("audio stream interrupted", "path", res.Path, "bytes", written, "error", err)
	}

	recordAudit(r.Context(), h.audit, audit.LogEntry{
		Action:   models.ActionSynthesize,
		Provider: h.synth.Vocoder(),
		Units:    int64(len(text)),
		Latency:  time.Since(start),
		Success:  true,
		Details: map[string]interface{}{
			"sentences":   len(res.Sentences),
			"samples":     res.Samples,
			"sample_rate": res.SampleRate,
			"durations":   res.Durations(),
		},
		IPAddress: r.RemoteAddr,
	})
}

func (h *SpeechHandler) stream(w http.ResponseWriter, res *tts.Synthesis) (int64, error) {
	f, err := os.Open(res.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "open synthesized audio")
		return 0, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", "audio/wav")
	hdr.Set("Content-Disposition", `inline; filename="speech.wav"`)
	hdr.Set("X-Sentence-Count", strconv.Itoa(len(res.Sentences)))
	if durations := res.Durations(); len(durations) > 0 {
		hdr.Set("X-Token-Count", strconv.Itoa(len(durations)))
		hdr.Set("X-Frame-Count", strconv.Itoa(res.Frames()))
	}
	if info, err := f.Stat(); err == nil {
		hdr.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	buf := make([]byte, streamChunkSize)
	var written int64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, err
			}
			// Not every writer can flush (e.g. recorders in tests).
			_ = rc.Flush()
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func sentenceCount(res *tts.Synthesis) int {
	if res == nil {
		return 0
	}
	return len(res.Sentences)
}
