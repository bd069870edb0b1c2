package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikhilbhutani/voiceover/internal/audio"
	"github.com/nikhilbhutani/voiceover/internal/audit"
	"github.com/nikhilbhutani/voiceover/internal/metrics"
	"github.com/nikhilbhutani/voiceover/internal/models"
	"github.com/nikhilbhutani/voiceover/internal/stt"
)

var errTextFrame = errors.New("expected binary audio frame")

type Transcriber interface {
	Transcribe(ctx context.Context, chunk []byte, format audio.Format) (string, error)
	Provider() string
}

type ListenHandler struct {
	transcriber Transcriber
	upgrader    websocket.Upgrader
	audit       AuditLogger
	metrics     *metrics.Metrics
}

// NewListenHandler accepts connections from any origin; CORS for the socket
// follows the same policy as the rest of the API.
func NewListenHandler(t Transcriber, a AuditLogger, m *metrics.Metrics) *ListenHandler {
	return &ListenHandler{
		transcriber: t,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		audit:   a,
		metrics: m,
	}
}

// Listen upgrades to a WebSocket and answers every binary frame (one audio
// chunk) with one text frame holding its transcript. A chunk that fails to
// transcribe yields stt.Failed and the loop continues; a broken connection
// ends it. The optional ?format= query names the container when it cannot be
// sniffed, as with headerless G.711.
func (h *ListenHandler) Listen(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	ctx := r.Context()
	format := audio.Format("")
	if f := r.URL.Query().Get("format"); f != "" {
		format = audio.ParseFormat(f)
	}

	slog.Info("listen stream opened", "remote", r.RemoteAddr, "provider", h.transcriber.Provider())
	var chunks int

	for {
		msgType, data, err := conn.ReadMessage()
		if err == nil && msgType != websocket.BinaryMessage {
			err = errTextFrame
		}
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.Info("listen stream closed", "remote", r.RemoteAddr, "chunks", chunks)
				return
			}
			slog.Error("listen stream error", "remote", r.RemoteAddr, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte("Error: "+err.Error()))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""), time.Now().Add(time.Second))
			return
		}
		chunks++

		start := time.Now()
		text, err := h.transcriber.Transcribe(ctx, data, format)
		h.metrics.RecordTranscription(h.transcriber.Provider(), err == nil, len(data), time.Since(start).Seconds())

		entry := audit.LogEntry{
			Action:    models.ActionTranscribe,
			Provider:  h.transcriber.Provider(),
			Units:     int64(len(data)),
			Latency:   time.Since(start),
			Success:   err == nil,
			IPAddress: r.RemoteAddr,
		}
		if err != nil {
			slog.Warn("chunk transcription failed", "chunk", chunks, "bytes", len(data), "error", err)
			entry.Details = map[string]interface{}{"error": err.Error()}
			text = stt.Failed
		}
		recordAudit(ctx, h.audit, entry)

		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			slog.Error("send transcript failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}
