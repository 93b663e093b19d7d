package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// errRetriesExhausted marks a call that burned its whole retry budget. The
// streaming path surfacing it is what triggers the non-streaming fallback.
var errRetriesExhausted = errors.New("retries exhausted")

// apiError is a non-2xx upstream response.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func (e *apiError) retryable() bool {
	return retryableStatus(e.status)
}

// isStreamError reports whether the failure is specific to the streaming
// protocol itself, meaning a retry on the same path is pointless and the
// non-streaming fallback should be tried instead.
func isStreamError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "stream") && strings.Contains(msg, "not") {
		return true
	}
	for _, marker := range []string{"sse", "event-stream", "invalid chunk"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isPrematureEnd detects transport-reset / truncated-body failures. These
// are usually the upstream buckling under load, so the retry backoff doubles
// its base delay for them.
func isPrematureEnd(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"ended prematurely", "unexpected eof", "broken pipe", "reset by peer", "incomplete"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isTimeout reports whether the failure is a request timeout, which the
// orchestrator counts separately in the category stats.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
