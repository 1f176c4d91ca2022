package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSink POSTs every event as JSON, retrying twice with a short backoff.
type WebhookSink struct {
	url      string
	headers  map[string]string
	client   *http.Client
	backoffs []time.Duration
}

func NewWebhookSink(url string, headers map[string]string, timeout time.Duration) (*WebhookSink, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url is empty")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	hdr := make(map[string]string, len(headers))
	for k, v := range headers {
		hdr[k] = v
	}
	return &WebhookSink{
		url:      url,
		headers:  hdr,
		client:   &http.Client{Timeout: timeout},
		backoffs: []time.Duration{100 * time.Millisecond, 300 * time.Millisecond},
	}, nil
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, ev *Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(s.backoffs); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.backoffs[attempt-1])
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range s.headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("post: %w", err)
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("status %d body=%q", resp.StatusCode, truncate(body, 200))
	}
	return lastErr
}

func (s *WebhookSink) Close(context.Context) error { return nil }

func truncate(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
