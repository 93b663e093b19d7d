package engine

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-coders/modelbench/pkg/logger"
)

// Transport status-retry policy. This layer only absorbs the cheapest class
// of transient failures; the invoker's backoff ladder sits above it.
const (
	transportAttempts     = 3
	transportBackoffUnit  = time.Second
	maxIdleConns          = 20
	maxIdleConnsPerHost   = 10
	responseHeaderTimeout = 30 * time.Second
)

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Transport is a connection-pooled POST client with a bounded automatic retry
// on transient upstream status codes. It knows nothing about streaming or
// model semantics.
type Transport struct {
	client     HTTPClient
	attempts   int
	retryDelay time.Duration
}

// NewTransport builds a Transport whose pooled connections are reused across
// all concurrent case executions. The timeout bounds the whole exchange,
// streamed body included; the upstream model can be slow, so callers pass a
// generous value.
func NewTransport(timeout time.Duration) *Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = maxIdleConns
	t.MaxIdleConnsPerHost = maxIdleConnsPerHost
	t.ResponseHeaderTimeout = responseHeaderTimeout
	return &Transport{
		client:     &http.Client{Transport: t, Timeout: timeout},
		attempts:   transportAttempts,
		retryDelay: transportBackoffUnit,
	}
}

// Post sends a JSON body, retrying 429/5xx responses up to the attempt budget
// with a linear delay. Connection errors, timeouts and non-retryable HTTP
// statuses surface to the caller unchanged; the final response is returned
// whatever its status.
func (t *Transport) Post(ctx context.Context, endpoint string, header http.Header, body []byte) (*http.Response, error) {
	var resp *http.Response
	for attempt := 0; attempt < t.attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * t.retryDelay
			logger.Debug("transport: status %d from %s, retrying in %s", resp.StatusCode, endpoint, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, err
		}
		if !retryableStatus(resp.StatusCode) || attempt == t.attempts-1 {
			return resp, nil
		}
		resp.Body.Close()
	}
	return resp, nil
}
