// Package backend talks to the chat REST backend. One Client implements the
// message, conversation, token and profile collaborators.
package backend

import (
	"bytes"
	"chat-sync/errors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type Client struct {
	log          *slog.Logger
	baseURL      string
	sessionToken string
	httpClient   *http.Client
	maxRetries   int
	backoff      time.Duration
}

// NewClient builds a client for baseURL. Every call is bounded by timeout;
// idempotent calls are retried up to maxRetries times, waiting backoff*attempt² plus jitter.
func NewClient(log *slog.Logger, baseURL, sessionToken string, timeout time.Duration, maxRetries int, backoff time.Duration) *Client {
	return &Client{
		log:          log,
		baseURL:      strings.TrimRight(baseURL, "/"),
		sessionToken: sessionToken,
		httpClient:   sharedHTTPClient(timeout),
		maxRetries:   maxRetries,
		backoff:      backoff,
	}
}

func sharedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

type call struct {
	method     string
	path       string
	body       any
	out        any
	idempotent bool
}

// do executes c and decodes a 2xx body into c.out. Non-2xx responses come back
// as *errors.Envelope.
func (c *Client) do(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		encoded, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = encoded
	}
	requestID := uuid.NewString()
	build := func() (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set(requestIDHeader, requestID)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.sessionToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.sessionToken)
		}
		return req, nil
	}

	attempts := 0
	if cl.idempotent {
		attempts = c.maxRetries
	}
	resp, err := c.doWithRetry(ctx, build, attempts)
	if err != nil {
		return fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeEnvelope(resp.StatusCode, raw)
	}
	if cl.out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, cl.out); err != nil {
		return fmt.Errorf("failed to parse %s %s response: %w", cl.method, cl.path, err)
	}
	return nil
}

// doWithRetry retries network failures, 5xx and 429 with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error), retries int) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			base := time.Duration(attempt*attempt) * c.backoff
			wait := base + time.Duration(rand.Int64N(int64(base/2+1)))
			c.log.Debug("Retrying backend call", "attempt", attempt+1, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < retries {
				c.log.Warn("Backend call failed, will retry", "error", err)
			}
			continue
		}
		if (resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests) && attempt < retries {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = decodeEnvelope(resp.StatusCode, raw)
			c.log.Warn("Backend error, will retry", "status", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func decodeEnvelope(status int, raw []byte) error {
	envelope := &errors.Envelope{}
	if err := json.Unmarshal(raw, envelope); err != nil || envelope.Message == "" {
		envelope.Message = strings.TrimSpace(string(raw))
	}
	if envelope.Status == 0 {
		envelope.Status = status
	}
	return envelope
}

func isNotFound(err error) bool {
	return errors.StatusOf(err) == http.StatusNotFound
}
