package hemat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// sanitizeParams drops nil values and lowercases booleans into the string
// form the upstream API expects. Other values pass through untouched.
func sanitizeParams(params Params) Params {
	if len(params) == 0 {
		return Params{}
	}
	sanitized := make(Params, len(params))
	for key, value := range params {
		if value == nil {
			continue
		}
		if b, ok := value.(bool); ok {
			sanitized[key] = strconv.FormatBool(b)
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

// paramString renders a parameter value for the query string.
func paramString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (c *Client) buildURL(endpoint string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// methodHasBody reports whether params travel as a JSON body instead of query
// parameters. The upstream expects a body even on DELETE calls.
func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params Params) (*http.Request, error) {
	var body io.Reader
	if methodHasBody(method) && len(params) > 0 {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(endpoint), body)
	if err != nil {
		return nil, err
	}

	if !methodHasBody(method) && len(params) > 0 {
		query := url.Values{}
		for key, value := range params {
			query.Set(key, paramString(value))
		}
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// execute sends the call, retrying transient failures with exponential
// backoff. When the upstream supplies a rate limit reset or Retry-After hint
// further out than the computed backoff, the hint wins. Authentication,
// not-found, and validation failures return immediately.
func (c *Client) execute(ctx context.Context, method, endpoint string, params Params, requestID string, start time.Time) (Response, error) {
	var lastErr *APIError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff.Calculate(attempt-1, c.initialBackoff, c.maxBackoff, c.jitter)
			if hint := resetDelay(lastErr, c.clock.Now()); hint > delay {
				delay = hint
			}

			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", attempt, "maxRetries", c.maxRetries, "backoff", delay, "endpoint", endpoint)
			}
			if c.metrics != nil {
				c.metrics.RecordRetry(method, endpoint, attempt)
			}

			if err := c.clock.Sleep(ctx, delay); err != nil {
				return nil, c.transportError(ErrorTypeConnection, "retry wait interrupted", err, requestID, method, endpoint, attempt, start)
			}
		}

		if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
			if c.debug != nil && c.debug.Enabled && c.logger != nil {
				c.logger.Warn("Circuit breaker open", "requestID", requestID, "endpoint", endpoint)
			}
			if c.metrics != nil {
				c.metrics.RecordError(string(ErrorTypeCircuitOpen), method, endpoint)
			}
			return nil, c.transportError(ErrorTypeCircuitOpen, "circuit breaker is open", ErrCircuitOpen, requestID, method, endpoint, attempt, start)
		}

		payload, apiErr := c.attempt(ctx, method, endpoint, params, requestID, attempt, start)
		if apiErr == nil {
			if c.circuitBreaker != nil {
				c.circuitBreaker.RecordSuccess()
				if c.metrics != nil {
					c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
				}
			}
			return c.normalizers.Apply(endpoint, payload), nil
		}

		switch apiErr.Type {
		case ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeServer:
			if c.circuitBreaker != nil {
				c.circuitBreaker.RecordFailure()
				if c.metrics != nil {
					c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
				}
			}
		}
		if c.metrics != nil {
			c.metrics.RecordError(string(apiErr.Type), method, endpoint)
		}

		if !IsRetryable(apiErr) {
			return nil, apiErr
		}
		lastErr = apiErr
	}

	return nil, lastErr
}

// attempt performs a single round trip and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, endpoint string, params Params, requestID string, attempt int, start time.Time) (Response, *APIError) {
	req, err := c.newRequest(ctx, method, endpoint, params)
	if err != nil {
		return nil, c.transportError(ErrorTypeValidation, "building request failed", err, requestID, method, endpoint, attempt, start)
	}

	resp, err := c.executeMiddleware(req)
	if err != nil {
		errorType := ErrorTypeConnection
		message := "request failed"
		var netErr net.Error
		if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			errorType = ErrorTypeTimeout
			message = "request timed out"
		}
		return nil, c.transportError(errorType, message, err, requestID, method, endpoint, attempt, start)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ErrorTypeConnection, "reading response failed", err, requestID, method, endpoint, attempt, start)
	}

	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp, body, requestID, method, endpoint, attempt, start)
	}

	payload, decodeErr := decodePayload(body)
	if decodeErr != nil {
		apiErr := c.transportError(ErrorTypeAPI, "invalid JSON in response", decodeErr, requestID, method, endpoint, attempt, start)
		apiErr.StatusCode = resp.StatusCode
		apiErr.Body = string(body)
		return nil, apiErr
	}

	// Some endpoints report failure in the payload of an HTTP 200.
	if payload.Status() == "error" {
		message := payload.ErrorMessage()
		if message == "" {
			message = "API returned error status"
		}
		apiErr := c.transportError(ErrorTypeAPI, message, nil, requestID, method, endpoint, attempt, start)
		apiErr.StatusCode = resp.StatusCode
		apiErr.Body = string(body)
		return nil, apiErr
	}

	return payload, nil
}

// statusError maps an HTTP error status to its failure family. Rate limit
// and server responses carry the upstream's reset hint when one is present.
func (c *Client) statusError(resp *http.Response, body []byte, requestID, method, endpoint string, attempt int, start time.Time) *APIError {
	var errorType ErrorType
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		errorType = ErrorTypeAuth
	case resp.StatusCode == http.StatusNotFound:
		errorType = ErrorTypeNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		errorType = ErrorTypeRateLimit
	case resp.StatusCode >= 500:
		errorType = ErrorTypeServer
	default:
		errorType = ErrorTypeValidation
	}

	apiErr := c.transportError(errorType, extractErrorMessage(body, resp.StatusCode), nil, requestID, method, endpoint, attempt, start)
	apiErr.StatusCode = resp.StatusCode
	apiErr.Body = string(body)
	if errorType == ErrorTypeRateLimit || errorType == ErrorTypeServer {
		apiErr.ResetAt = parseResetHint(resp.Header, c.clock.Now())
	}
	return apiErr
}

func (c *Client) transportError(errorType ErrorType, message string, cause error, requestID, method, endpoint string, attempt int, start time.Time) *APIError {
	now := c.clock.Now()
	return &APIError{
		Type:       errorType,
		Message:    message,
		Cause:      cause,
		RequestID:  requestID,
		Method:     method,
		Endpoint:   endpoint,
		Attempt:    attempt,
		MaxRetries: c.maxRetries,
		Timestamp:  now,
		Duration:   now.Sub(start),
	}
}

// decodePayload decodes a response body. Empty and null bodies decode to an
// empty payload as some endpoints return nothing on success.
func decodePayload(body []byte) (Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Response{}, nil
	}
	var payload Response
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return Response{}, nil
	}
	return payload, nil
}

// extractErrorMessage pulls a human readable message out of an error body,
// trying the keys upstream error payloads are known to use.
func extractErrorMessage(body []byte, statusCode int) string {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, key := range []string{"error", "message", "msg"} {
			value, ok := decoded[key]
			if !ok || value == nil {
				continue
			}
			if s, ok := value.(string); ok {
				if s != "" {
					return s
				}
				continue
			}
			return fmt.Sprintf("%v", value)
		}
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}

// parseResetHint reads the moment the upstream wants the client to pause
// until, preferring the X-Rate-Limit-Reset epoch over Retry-After. Hints
// further than an hour out are capped.
func parseResetHint(h http.Header, now time.Time) time.Time {
	if raw := h.Get("X-Rate-Limit-Reset"); raw != "" {
		if epoch, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && epoch > 0 {
			reset := time.Unix(epoch, 0)
			if reset.After(now.Add(time.Hour)) {
				reset = now.Add(time.Hour)
			}
			if reset.After(now) {
				return reset
			}
		}
	}
	if delay := parseRetryAfter(h.Get("Retry-After"), now); delay > 0 {
		return now.Add(delay)
	}
	return time.Time{}
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form, capped at one hour.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		delay := time.Duration(seconds) * time.Second
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := t.Sub(now)
		if delay > time.Hour {
			return time.Hour
		}
		if delay > 0 {
			return delay
		}
	}

	return 0
}

// resetDelay converts an error's reset hint into a wait measured from now.
func resetDelay(lastErr *APIError, now time.Time) time.Duration {
	if lastErr == nil || lastErr.ResetAt.IsZero() {
		return 0
	}
	delay := lastErr.ResetAt.Sub(now)
	if delay <= 0 {
		return 0
	}
	if delay > time.Hour {
		return time.Hour
	}
	return delay
}
