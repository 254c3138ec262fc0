// Package webhook delivers signed event notifications to an external
// automation endpoint after successful mutations. Delivery is best-effort:
// an unconfigured notifier is a deliberate no-op, and exhausted retries are
// dropped silently after a console log.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 5 * time.Second
	maxRetries     = 3
	baseDelay      = 1 * time.Second
)

type Notifier struct {
	BaseURL string
	Secret  string
	Client  *http.Client
	// Sleep is swapped out in tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

func New(baseURL, secret string) *Notifier {
	return &Notifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Secret:  secret,
		Client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Configured reports whether deliveries will actually be sent.
func (n *Notifier) Configured() bool {
	return n != nil && strings.TrimSpace(n.BaseURL) != "" && strings.TrimSpace(n.Secret) != ""
}

// Deliver posts the event to {base}/webhook/{event} with an HMAC-SHA256
// signature header. One attempt plus up to 3 retries with delays 1s, 2s,
// 4s. Returns true on 2xx; an unconfigured notifier returns true without
// sending anything.
func (n *Notifier) Deliver(ctx context.Context, eventName string, payload map[string]any) bool {
	if !n.Configured() {
		return true
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("webhook: marshal %s payload: %v", eventName, err)
		return false
	}
	signature := n.sign(data)
	url := fmt.Sprintf("%s/webhook/%s", n.BaseURL, eventName)

	sleep := n.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sleep(baseDelay << (attempt - 1))
		}
		if err := n.post(ctx, url, eventName, signature, data); err != nil {
			log.Printf("webhook: deliver %s attempt %d failed: %v", eventName, attempt+1, err)
			continue
		}
		return true
	}
	log.Printf("webhook: deliver %s dropped after %d attempts", eventName, maxRetries+1)
	return false
}

func (n *Notifier) post(ctx context.Context, url, eventName, signature string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", "sha256="+signature)
	req.Header.Set("X-Gigline-Event", eventName)
	res, err := n.client().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

func (n *Notifier) client() *http.Client {
	if n.Client != nil {
		return n.Client
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (n *Notifier) sign(data []byte) string {
	mac := hmac.New(sha256.New, []byte(n.Secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
