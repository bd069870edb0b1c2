package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	EventAlignJobCompleted = "align.job.completed"
	EventAlignJobFailed    = "align.job.failed"
)

var (
	ErrInvalidCallbackURL  = errors.New("callback_url must be an absolute http or https URL")
	ErrPrivateCallbackHost = errors.New("callback_url must not target a loopback or private address")
)

// Notifier delivers signed JSON callbacks. Receivers verify the
// X-Webhook-Signature header with the shared secret.
//
// Hosts outside allowHosts are dialled through a guard that refuses
// loopback and private addresses after DNS resolution.
type Notifier struct {
	secret     string
	httpClient *http.Client
	trusted    *http.Client
	allowHosts []string
}

func NewNotifier(secret string, timeout time.Duration, allowHosts ...string) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	guarded := http.DefaultTransport.(*http.Transport).Clone()
	guarded.Proxy = nil
	guarded.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivate,
	}).DialContext

	return &Notifier{
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout, Transport: guarded},
		trusted:    &http.Client{Timeout: timeout},
		allowHosts: allowHosts,
	}
}

// ValidateURL checks a client-supplied callback address. Literal loopback
// and private IPs and localhost names are rejected unless the host is in
// allowHosts. Names are checked again when the Notifier dials.
func ValidateURL(raw string, allowHosts ...string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Hostname() == "" {
		return ErrInvalidCallbackURL
	}

	host := strings.ToLower(u.Hostname())
	if allowed(host, allowHosts) {
		return nil
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return ErrPrivateCallbackHost
	}
	if addr, err := netip.ParseAddr(host); err == nil && private(addr) {
		return ErrPrivateCallbackHost
	}
	return nil
}

func allowed(host string, allowHosts []string) bool {
	for _, h := range allowHosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

func private(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast()
}

func refusePrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if private(addr) {
		return fmt.Errorf("dial %s: %w", address, ErrPrivateCallbackHost)
	}
	return nil
}

// Notify POSTs payload as JSON to target. A non-2xx answer is an error.
func (n *Notifier) Notify(ctx context.Context, target, event string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-ID", uuid.NewString())
	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, n.secret))
	}

	client := n.httpClient
	if allowed(req.URL.Hostname(), n.allowHosts) {
		client = n.trusted
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook receiver answered %d", resp.StatusCode)
	}
	return nil
}

func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

// Verify reports whether signature matches payload under secret.
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
