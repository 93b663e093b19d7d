package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// Retry policy for the resilient call ladder. Truncation (finish_reason ==
// "length") is deliberately outside it: retrying would reproduce the same
// truncation, so it goes through the continuation protocol instead.
const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 30 * time.Second

	// DefaultRequestTimeout bounds one full request/response exchange.
	// Large generations stream for many minutes, hence the generous cap.
	DefaultRequestTimeout = 20 * time.Minute

	continuationMaxRounds  = 3
	continuationMaxRetries = 2
	continuationDelayUnit  = 5 * time.Second

	finishReasonLength = "length"
)

const (
	continuePrompt = "Please continue from where the output was cut off. " +
		"Do not repeat content that was already produced; output only the remaining part."
	continueAgainPrompt = "Please continue from where you left off."
)

// InvokerConfig holds the endpoint settings shared by every call.
type InvokerConfig struct {
	APIURL         string
	APIKey         string
	MaxTokens      int
	EnableThinking bool
}

// ChatInvoker issues chat-completion requests with a streaming-first,
// fallback-on-stream-failure strategy and exponential-backoff retries.
// It is stateless per call; all mutable state lives in the outcome it
// returns.
type ChatInvoker struct {
	transport *Transport
	builder   *requestBuilder
	failures  *FailureLog
	obs       Observer

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	continueRounds    int
	continueRetries   int
	continueDelayUnit time.Duration
}

// NewChatInvoker builds an invoker on the shared transport. A nil observer
// is replaced with a no-op one.
func NewChatInvoker(transport *Transport, cfg InvokerConfig, failures *FailureLog, obs Observer) *ChatInvoker {
	if obs == nil {
		obs = nopObserver{}
	}
	return &ChatInvoker{
		transport:         transport,
		builder:           newRequestBuilder(strings.TrimRight(cfg.APIURL, "/"), cfg.APIKey, cfg.MaxTokens, cfg.EnableThinking),
		failures:          failures,
		obs:               obs,
		maxRetries:        defaultMaxRetries,
		baseDelay:         defaultBaseDelay,
		maxDelay:          defaultMaxDelay,
		continueRounds:    continuationMaxRounds,
		continueRetries:   continuationMaxRetries,
		continueDelayUnit: continuationDelayUnit,
	}
}

// Invoke turns one prompt into an InvocationOutcome. The streaming path runs
// first; if it fails with a stream-specific error or exhausts its retry
// budget, the non-streaming path gets one full retry ladder of its own.
// A truncated outcome whose artifact is verifiably incomplete then goes
// through the continuation protocol.
func (inv *ChatInvoker) Invoke(ctx context.Context, req InvokeRequest) (*InvocationOutcome, error) {
	out, err := inv.callWithRetry(ctx, req, true)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if !isStreamError(err) && !errors.Is(err, errRetriesExhausted) {
			return nil, err
		}
		inv.obs.Log(fmt.Sprintf("    [%s] streaming path failed, trying non-streaming mode...", req.CaseID))
		fallback, fallbackErr := inv.callWithRetry(ctx, req, false)
		if fallbackErr != nil {
			return nil, fmt.Errorf("streaming and non-streaming paths both failed. streaming: %s; non-streaming: %s",
				excerpt(err.Error(), 100), excerpt(fallbackErr.Error(), 100))
		}
		out = fallback
	}

	if out.IsIncomplete && req.Verify != nil && !req.Verify(out.Content) {
		inv.continueTruncated(ctx, req, out)
	}
	return out, nil
}

// callWithRetry runs the retry ladder for one path. Non-retryable HTTP
// errors fail immediately without consuming budget; exhausting the budget
// records the call in the failure log.
func (inv *ChatInvoker) callWithRetry(ctx context.Context, req InvokeRequest, stream bool) (*InvocationOutcome, error) {
	start := time.Now()
	messages := []ChatMessage{{Role: "user", Content: req.Prompt}}

	var lastErr error
	retries := 0
	for attempt := 0; attempt <= inv.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := inv.call(ctx, req.CaseID, req.Model, messages, stream)
		if err == nil {
			out.RetryCount = retries
			out.DurationSeconds = round2(time.Since(start).Seconds())
			return out, nil
		}

		var apiErr *apiError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, fmt.Errorf("api call failed: %w", err)
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		if attempt < inv.maxRetries {
			retries++
			delay := inv.backoffDelay(attempt, err)
			inv.obs.Log(fmt.Sprintf("    [%s] attempt %d failed (%s), retrying in %.1fs (%d left)",
				req.CaseID, attempt+1, excerpt(err.Error(), 100), delay.Seconds(), inv.maxRetries-attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	total := time.Since(start)
	inv.failures.Record(req.CaseID, req.Model, req.Prompt, lastErr, total)
	return nil, fmt.Errorf("%w: %d attempts over %.1fs: %v",
		errRetriesExhausted, inv.maxRetries+1, total.Seconds(), lastErr)
}

// backoffDelay is exponential with jitter, capped at maxDelay. The base
// doubles for transport-reset class errors, which benefit from longer
// cooldowns.
func (inv *ChatInvoker) backoffDelay(attempt int, cause error) time.Duration {
	base := inv.baseDelay
	if isPrematureEnd(cause) {
		base *= 2
	}
	delay := base << uint(attempt)
	delay += time.Duration(rand.Int63n(int64(base)))
	if delay > inv.maxDelay {
		delay = inv.maxDelay
	}
	return delay
}

// call performs a single HTTP exchange and maps the response into an
// outcome. Every response field is treated as optional: missing content is
// substituted with the reasoning channel or the raw body so the case still
// yields something inspectable.
func (inv *ChatInvoker) call(ctx context.Context, caseID, model string, messages []ChatMessage, stream bool) (*InvocationOutcome, error) {
	body, err := inv.builder.body(model, messages, stream)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := inv.transport.Post(callCtx, inv.builder.endpoint, inv.builder.header(stream), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &apiError{status: resp.StatusCode, body: strings.Join(strings.Fields(string(b)), " ")}
	}

	var content, reasoning, finish string
	var usage TokenUsage
	sawUsage := false

	if stream {
		sr, err := readStream(callCtx, resp.Body)
		if err != nil {
			return nil, err
		}
		content, reasoning, finish = sr.Content, sr.Reasoning, sr.FinishReason
		usage, sawUsage = sr.Usage, sr.sawUsage
	} else {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var cc chatCompletion
		if err := json.Unmarshal(raw, &cc); err != nil {
			return nil, fmt.Errorf("decoding response body: %w", err)
		}
		if len(cc.Choices) > 0 {
			content = cc.Choices[0].Message.Content
			reasoning = cc.Choices[0].Message.ReasoningContent
			finish = cc.Choices[0].FinishReason
		} else {
			content = string(raw)
			inv.obs.Log(fmt.Sprintf("    [%s] response had no choices, keeping raw body", caseID))
		}
		if cc.Usage != nil && cc.Usage.TotalTokens > 0 {
			usage = cc.Usage.toTokenUsage()
			sawUsage = true
		}
	}
	duration := time.Since(start)

	if content == "" && reasoning != "" {
		content = reasoning
		inv.obs.Log(fmt.Sprintf("    [%s] content empty, using reasoning content as the response", caseID))
	}
	if !sawUsage {
		est := estimateTokens(content + reasoning)
		usage.CompletionTokens = est
		usage.TotalTokens = est
	}

	out := &InvocationOutcome{
		Content:          content,
		ReasoningContent: reasoning,
		FinishReason:     finish,
		Usage:            usage,
		DurationSeconds:  round2(duration.Seconds()),
		IsIncomplete:     finish == finishReasonLength,
	}
	if secs := duration.Seconds(); secs > 0 && usage.CompletionTokens > 0 {
		out.TokensPerSecond = round2(float64(usage.CompletionTokens) / secs)
	}
	if out.IsIncomplete {
		inv.obs.Log(fmt.Sprintf("    [%s] output hit the max_tokens budget (finish_reason=length)", caseID))
	}
	return out, nil
}

// continueTruncated runs the bounded continuation protocol: keep asking the
// model to resume from the cut-off point, accumulating content, usage and
// time into the original outcome. Stops when the artifact verifies complete,
// a round comes back empty, a round stops for any reason other than another
// truncation, or the round cap is reached.
func (inv *ChatInvoker) continueTruncated(ctx context.Context, req InvokeRequest, out *InvocationOutcome) {
	inv.obs.Log(fmt.Sprintf("    [%s] artifact incomplete, continuing the conversation...", req.CaseID))

	messages := []ChatMessage{
		{Role: "user", Content: req.Prompt},
		{Role: "assistant", Content: out.Content},
		{Role: "user", Content: continuePrompt},
	}
	combined := out.Content

	for round := 0; round < inv.continueRounds; round++ {
		if ctx.Err() != nil {
			break
		}
		cont, err := inv.continuationRound(ctx, req.CaseID, req.Model, messages)
		if err != nil {
			inv.obs.Log(fmt.Sprintf("    [%s] continuation round %d failed: %s",
				req.CaseID, round+1, excerpt(err.Error(), 100)))
			break
		}
		if cont.Content == "" {
			inv.obs.Log(fmt.Sprintf("    [%s] continuation round %d returned no content", req.CaseID, round+1))
			break
		}

		combined += "\n" + cont.Content
		out.Usage.Add(cont.Usage)
		out.DurationSeconds = round2(out.DurationSeconds + cont.DurationSeconds)
		out.ContinuationRounds = round + 1

		if req.Verify(combined) {
			out.IsIncomplete = false
			inv.obs.Log(fmt.Sprintf("    [%s] artifact complete after %d continuation round(s)", req.CaseID, round+1))
			break
		}
		if cont.FinishReason != finishReasonLength {
			// Stopped for some other reason; accept the partial output
			// rather than looping.
			inv.obs.Log(fmt.Sprintf("    [%s] continuation round %d ended (finish_reason=%s)",
				req.CaseID, round+1, cont.FinishReason))
			break
		}

		messages = append(messages,
			ChatMessage{Role: "assistant", Content: cont.Content},
			ChatMessage{Role: "user", Content: continueAgainPrompt},
		)
	}

	out.Content = combined
}

// continuationRound issues one streaming follow-up request, retrying only
// transport errors a small number of times with a linear delay.
func (inv *ChatInvoker) continuationRound(ctx context.Context, caseID, model string, messages []ChatMessage) (*InvocationOutcome, error) {
	var lastErr error
	for attempt := 0; attempt <= inv.continueRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := inv.call(ctx, caseID, model, messages, true)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		if attempt < inv.continueRetries {
			delay := time.Duration(attempt+1) * inv.continueDelayUnit
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
