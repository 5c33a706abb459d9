// Package httpx provides the outbound HTTP executor every other component
// routes its network calls through. It owns the retry policy: nothing else
// in the codebase retries a request on its own.
package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Request describes one logical outbound call. The body is held as bytes so
// the executor can rebuild the underlying request on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response carries the terminal status and the fully-read body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ExhaustedError is returned when every attempt came back retryable.
type ExhaustedError struct {
	Attempts int
	// Status of the last retryable response, 0 if the last attempt failed
	// at the transport level.
	Status int
	Err    error
}

func (e *ExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("request failed after %d attempts: last status %d", e.Attempts, e.Status)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Executor performs HTTP calls with bounded retries and exponential backoff.
type Executor struct {
	client  *http.Client
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// New builds an executor. retries is the number of retries after the first
// attempt; backoff is the base for the exponential schedule.
func New(client *http.Client, retries int, backoff time.Duration, logger *zap.Logger) *Executor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, retries: retries, backoff: backoff, logger: logger}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter reads the rate-limit wait from a 429 response. Returns false
// when no header is present or it is not a plain seconds value.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// Do performs the call, retrying 429s, {500,502,503,504}s and transport
// failures. Any other status is returned to the caller as-is, success or
// not. After retries are exhausted it returns *ExhaustedError.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt <= e.retries; attempt++ {
		resp, err := e.attempt(ctx, req)
		if err != nil {
			lastStatus, lastErr = 0, err
			e.logger.Warn("request attempt failed",
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt < e.retries {
				if serr := e.sleep(ctx, e.backoff<<uint(attempt)); serr != nil {
					return nil, serr
				}
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait, ok := retryAfter(resp.Header)
			if !ok {
				wait = e.backoff << uint(attempt)
			}
			lastStatus, lastErr = resp.StatusCode, nil
			e.logger.Warn("rate limited",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))
			if attempt < e.retries {
				if serr := e.sleep(ctx, wait); serr != nil {
					return nil, serr
				}
			}
		case retryableStatus(resp.StatusCode):
			lastStatus, lastErr = resp.StatusCode, nil
			e.logger.Warn("retryable upstream status",
				zap.String("url", req.URL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt))
			if attempt < e.retries {
				if serr := e.sleep(ctx, e.backoff<<uint(attempt)); serr != nil {
					return nil, serr
				}
			}
		default:
			return resp, nil
		}
	}

	return nil, &ExhaustedError{Attempts: e.retries + 1, Status: lastStatus, Err: lastErr}
}

func (e *Executor) attempt(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
