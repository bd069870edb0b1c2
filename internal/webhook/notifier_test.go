package webhook_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceover/internal/webhook"
)

func TestNotifySignsPayload(t *testing.T) {
	t.Parallel()

	type seen struct {
		body      []byte
		event     string
		signature string
	}
	got := make(chan seen, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- seen{body: body, event: r.Header.Get("X-Webhook-Event"), signature: r.Header.Get("X-Webhook-Signature")}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := webhook.NewNotifier("shh", time.Second, serverHost(t, srv))
	require.NoError(t, n.Notify(context.Background(), srv.URL, webhook.EventAlignJobCompleted, map[string]string{"status": "done"}))

	s := <-got
	assert.Equal(t, webhook.EventAlignJobCompleted, s.event)
	assert.JSONEq(t, `{"status":"done"}`, string(s.body))
	assert.True(t, webhook.Verify(s.body, "shh", s.signature))
	assert.False(t, webhook.Verify(s.body, "other", s.signature))
}

func TestNotifyNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	err := webhook.NewNotifier("", time.Second, serverHost(t, srv)).Notify(context.Background(), srv.URL, "x", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}

func serverHost(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Hostname()
}

func TestNotifyRefusesPrivateAddress(t *testing.T) {
	t.Parallel()

	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := webhook.NewNotifier("", time.Second).Notify(context.Background(), srv.URL, "x", struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, webhook.ErrPrivateCallbackHost)
	assert.False(t, hit)
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	assert.NoError(t, webhook.ValidateURL("https://hooks.example.com/align"))
	assert.NoError(t, webhook.ValidateURL("http://93.184.216.34:8080/cb"))
	for _, bad := range []string{"", "ftp://x/y", "/relative", "https://", "::", "http://:80/x"} {
		assert.ErrorIs(t, webhook.ValidateURL(bad), webhook.ErrInvalidCallbackURL, bad)
	}
}

func TestValidateURLRejectsInternalHosts(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{
		"http://localhost:8080/cb",
		"http://api.localhost/cb",
		"http://127.0.0.1/cb",
		"http://10.0.0.5:8080/cb",
		"http://192.168.1.10/cb",
		"http://172.16.0.1/cb",
		"http://169.254.169.254/latest/meta-data",
		"http://0.0.0.0/cb",
		"http://[::1]:9000/cb",
		"http://[fd00::1]/cb",
		"http://[::ffff:127.0.0.1]/cb",
	} {
		assert.ErrorIs(t, webhook.ValidateURL(bad), webhook.ErrPrivateCallbackHost, bad)
	}
}

func TestValidateURLAllowList(t *testing.T) {
	t.Parallel()

	assert.NoError(t, webhook.ValidateURL("http://10.0.0.5:8080/cb", "10.0.0.5"))
	assert.NoError(t, webhook.ValidateURL("http://Callbacks.Internal/cb", "callbacks.internal"))
	assert.ErrorIs(t, webhook.ValidateURL("http://10.0.0.6/cb", "10.0.0.5"), webhook.ErrPrivateCallbackHost)
}
