package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceover/internal/api/handlers"
	"github.com/nikhilbhutani/voiceover/internal/audio"
	"github.com/nikhilbhutani/voiceover/internal/models"
	"github.com/nikhilbhutani/voiceover/internal/stt"
)

type scriptedTranscriber struct {
	mu      sync.Mutex
	formats []audio.Format
}

func (s *scriptedTranscriber) Provider() string { return "scripted" }

// Transcribe echoes the chunk, fails on "bad" and reports silence on "quiet".
func (s *scriptedTranscriber) Transcribe(_ context.Context, chunk []byte, format audio.Format) (string, error) {
	s.mu.Lock()
	s.formats = append(s.formats, format)
	s.mu.Unlock()

	switch string(chunk) {
	case "bad":
		return "", errors.New("decoder exploded")
	case "quiet":
		return stt.NoSpeech, nil
	}
	return "heard " + string(chunk), nil
}

func dial(t *testing.T, h *handlers.ListenHandler, query string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(h.Listen))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/listen" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msgType int, data string) string {
	t.Helper()
	require.NoError(t, conn.WriteMessage(msgType, []byte(data)))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(reply)
}

func TestListenTranscribesEachChunk(t *testing.T) {
	t.Parallel()

	tr := &scriptedTranscriber{}
	a := &recordingAudit{}
	conn := dial(t, handlers.NewListenHandler(tr, a, nil), "?format=ulaw")

	assert.Equal(t, "heard one", roundTrip(t, conn, websocket.BinaryMessage, "one"))
	assert.Equal(t, stt.Failed, roundTrip(t, conn, websocket.BinaryMessage, "bad"))
	assert.Equal(t, stt.NoSpeech, roundTrip(t, conn, websocket.BinaryMessage, "quiet"))
	assert.Equal(t, "heard two", roundTrip(t, conn, websocket.BinaryMessage, "two"))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Len(t, tr.formats, 4)
	assert.Equal(t, audio.FormatMulaw, tr.formats[0])

	assert.Equal(t, []string{
		models.ActionTranscribe, models.ActionTranscribe, models.ActionTranscribe, models.ActionTranscribe,
	}, a.actions())
}

func TestListenRejectsTextFrames(t *testing.T) {
	t.Parallel()

	conn := dial(t, handlers.NewListenHandler(&scriptedTranscriber{}, nil, nil), "")

	reply := roundTrip(t, conn, websocket.TextMessage, "hello")
	assert.True(t, strings.HasPrefix(reply, "Error: "), reply)

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), err.Error())
}
