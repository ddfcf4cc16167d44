// Package webhook delivers signed task status updates to an external endpoint.
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
	"net/http"
	"time"

	"aicoder/pkg/logx"
	"aicoder/pkg/metrics"
)

const (
	// DefaultTimeout bounds one delivery attempt end to end.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxRetries is the number of delivery attempts before giving up.
	DefaultMaxRetries = 5
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

// Payload is the wire format for one status update.
type Payload struct {
	TaskID    string         `json:"task_id"`
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Notifier sends status updates with HMAC signing and retry/backoff.
type Notifier struct {
	webhookURL string
	secret     string
	client     *http.Client
	maxRetries int
	logger     *logx.Logger
	sleep      func(time.Duration)
	now        func() time.Time
}

// NewNotifier creates a notifier for the given endpoint. webhookURL must be
// non-empty; secret may be empty, in which case payloads are unsigned.
func NewNotifier(webhookURL, secret string) (*Notifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("a webhook URL is required")
	}
	return &Notifier{
		webhookURL: webhookURL,
		secret:     secret,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		logger:     logx.NewLogger("webhook"),
		sleep:      time.Sleep,
		now:        time.Now,
	}, nil
}

// SendStatusUpdate delivers one status update. It retries transient failures
// with exponential backoff and returns the last error once the attempt
// budget is exhausted. Any HTTP response status >= 400 counts as a failure
// carrying the response body.
func (n *Notifier) SendStatusUpdate(ctx context.Context, taskID, status string, data map[string]any) error {
	payload := Payload{
		TaskID:    taskID,
		Status:    status,
		Timestamp: n.now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialise webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		if err := n.deliver(ctx, body); err != nil {
			metrics.WebhookAttempts.WithLabelValues("failure").Inc()
			lastErr = err
			n.logger.Warn("Webhook delivery attempt %d/%d failed: %v", attempt, n.maxRetries, err)
			if attempt < n.maxRetries {
				backoff := time.Duration(1<<(attempt-1)) * time.Second
				n.sleep(backoff)
			}
			continue
		}
		metrics.WebhookAttempts.WithLabelValues("success").Inc()
		return nil
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", n.maxRetries, lastErr)
}

// deliver performs one signed POST of the exact body bytes.
func (n *Notifier) deliver(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook responded with status %d: %s", resp.StatusCode, string(errText))
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
