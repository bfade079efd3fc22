package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// maxErrorBody bounds how much of an error response is kept in errors and
// logs.
const maxErrorBody = 4 << 10

// jsonClient performs JSON requests against one REST API with bounded
// retries on transport errors, 429 and 5xx. POST is never retried: the
// upstream may have applied it before the response was lost.
type jsonClient struct {
	baseURL    string
	authorize  func(req *http.Request)
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func newJSONClient(baseURL string, httpClient *http.Client, logger *slog.Logger, authorize func(*http.Request)) *jsonClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if authorize == nil {
		authorize = func(*http.Request) {}
	}
	return &jsonClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		authorize:  authorize,
		httpClient: httpClient,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
}

// doJSON sends body (if non-nil) as JSON and decodes a 2xx response into out
// (if non-nil). Any other status yields a *models.UpstreamError. requestURL
// may be absolute, which pagination links from Paperless are.
func (c *jsonClient) doJSON(ctx context.Context, op, method, requestURL string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
	}
	if !strings.HasPrefix(requestURL, "http://") && !strings.HasPrefix(requestURL, "https://") {
		requestURL = c.baseURL + requestURL
	}

	retries := 0
	if idempotent(method) {
		retries = c.maxRetries
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Correlation-Id", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil && attempt < retries && !isCredentialFailure(err) {
				c.logger.Debug("retrying request", "op", op, "attempt", attempt+1, "error", err)
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("%s: reading response: %w", op, readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("%s: decoding response: %w", op, err)
			}
			return nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < retries {
			c.logger.Debug("retrying request", "op", op, "attempt", attempt+1, "status", resp.StatusCode)
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		snippet := payload
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		c.logger.Warn("upstream request failed", "op", op, "method", method, "status", resp.StatusCode, "body", string(snippet))
		return &models.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// isCredentialFailure reports whether a transport error came from the token
// source. Those need re-authorization, not a retry.
func isCredentialFailure(err error) bool {
	if errors.Is(err, models.ErrCredential) {
		return true
	}
	var retrieve *oauth2.RetrieveError
	return errors.As(err, &retrieve)
}

func (c *jsonClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
