package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single webhook request when the sink config leaves it unset.
const DefaultTimeout = 5 * time.Second

// maxErrorBody caps how much of a failed response is quoted in the returned error.
const maxErrorBody = 4 << 10

// Webhook posts JSON documents to a single endpoint with linear retry.
type Webhook struct {
	Name     string
	URL      string
	Client   *http.Client
	Retries  int
	Interval time.Duration
}

// NewHTTPClient returns a client with the given timeout, or DefaultTimeout when it is not positive.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// PostJSON encodes v and delivers it, retrying up to w.Retries more times on any failure.
// The last delivery error is returned; a cancelled context stops retrying immediately.
func (w Webhook) PostJSON(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", w.Name, err)
	}

	interval := w.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= max(w.Retries, 0); attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(attempt)*interval); err != nil {
				return err
			}
		}
		if lastErr = w.post(ctx, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (w Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", w.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := w.Client
	if hc == nil {
		hc = NewHTTPClient(0)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", w.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("drain %s response: %w", w.Name, err)
		}
		return nil
	}

	snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := fmt.Errorf("%s responded %s: %s", w.Name, resp.Status, strings.TrimSpace(string(snippet)))
	if readErr != nil {
		return errors.Join(statusErr, fmt.Errorf("read %s response: %w", w.Name, readErr))
	}
	return statusErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Or returns value, or fallback when value is blank.
func Or(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
