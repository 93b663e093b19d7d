package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-coders/modelbench/internal/suite"
)

type fakeInvoker struct {
	mu    sync.Mutex
	calls int
	fn    func(req InvokeRequest) (*InvocationOutcome, error)
}

func (f *fakeInvoker) Invoke(ctx context.Context, req InvokeRequest) (*InvocationOutcome, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fn(req)
}

// memSink collects everything in memory for assertions.
type memSink struct {
	mu        sync.Mutex
	results   map[Category][]*CaseResult
	artifacts map[string][]byte
	stats     map[Category]*CategoryStats
	summary   *RunSummary
}

func newMemSink() *memSink {
	return &memSink{
		results:   make(map[Category][]*CaseResult),
		artifacts: make(map[string][]byte),
		stats:     make(map[Category]*CategoryStats),
	}
}

func (m *memSink) WriteResult(category Category, res *CaseResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	m.results[category] = append(m.results[category], &cp)
	return nil
}

func (m *memSink) WriteArtifact(category Category, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := string(category) + "/" + name
	m.artifacts[path] = append([]byte(nil), data...)
	return path, nil
}

func (m *memSink) WriteStats(category Category, stats *CategoryStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[category] = stats
	return nil
}

func (m *memSink) WriteRunSummary(summary *RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = summary
	return nil
}

// progressRecorder records progress values; the runner reports progress only
// from its collector goroutine, so no locking is needed.
type progressRecorder struct {
	values []float64
}

func (p *progressRecorder) Log(string)           {}
func (p *progressRecorder) Progress(pct float64) { p.values = append(p.values, pct) }

func makeCases(category string, n int) []suite.Case {
	cases := make([]suite.Case, n)
	for i := range cases {
		cases[i] = suite.Case{
			ID:       fmt.Sprintf("T%02d", i+1),
			Name:     fmt.Sprintf("case %d", i+1),
			Category: category,
			Prompt:   fmt.Sprintf("prompt %d", i+1),
		}
	}
	return cases
}

const completePage = "<!DOCTYPE html><html><body>ok</body></html>"

func TestRunnerCodeRun(t *testing.T) {
	// Mix of outcomes: most cases produce a complete page, T03 fails
	// outright, T05 answers without any HTML.
	inv := &fakeInvoker{fn: func(req InvokeRequest) (*InvocationOutcome, error) {
		switch req.CaseID {
		case "T03":
			return nil, errors.New("boom")
		case "T05":
			return &InvocationOutcome{Content: "no markup here", FinishReason: "stop",
				Usage: TokenUsage{CompletionTokens: 5, TotalTokens: 5}, DurationSeconds: 0.5}, nil
		default:
			return &InvocationOutcome{Content: "```html\n" + completePage + "\n```", FinishReason: "stop",
				Usage: TokenUsage{CompletionTokens: 10, TotalTokens: 10}, DurationSeconds: 1}, nil
		}
	}}
	snk := newMemSink()
	rec := &progressRecorder{}
	r := NewRunner(inv, snk, rec, RunnerConfig{TextModel: "m", Workers: 5})

	cases := makeCases("code", 20)
	results, stats := r.Run(context.Background(), CategoryCode, cases, FullWindow)

	require.Len(t, results, 20)
	assert.Equal(t, 20, stats.TotalCases)
	assert.Equal(t, 19, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailedCount)
	assert.Equal(t, stats.TotalCases, stats.SuccessCount+stats.FailedCount)
	assert.Equal(t, 18, stats.ArtifactExtractedCount)
	assert.Equal(t, 1, stats.NoArtifactCount)
	assert.Equal(t, 185, stats.TotalTokens.TotalTokens)

	// Completion order is arbitrary, ids must not be.
	seen := make(map[string]bool)
	for _, res := range results {
		assert.False(t, seen[res.ID], "duplicate id %s", res.ID)
		seen[res.ID] = true
	}
	assert.Len(t, seen, 20)

	// Every successful case got persisted; the failed one did not.
	assert.Len(t, snk.results[CategoryCode], 19)
	assert.Contains(t, snk.artifacts, "code/T01_case 1.html")

	// Progress ends at the top of the window.
	require.NotEmpty(t, rec.values)
	assert.Equal(t, 100.0, rec.values[len(rec.values)-1])
}

func TestRunnerProgressWindow(t *testing.T) {
	inv := &fakeInvoker{fn: func(req InvokeRequest) (*InvocationOutcome, error) {
		return &InvocationOutcome{Content: completePage, FinishReason: "stop"}, nil
	}}
	rec := &progressRecorder{}
	r := NewRunner(inv, newMemSink(), rec, RunnerConfig{TextModel: "m", Workers: 2})

	r.Run(context.Background(), CategoryCode, makeCases("code", 4), ProgressWindow{Lo: 0, Hi: 50})

	require.Len(t, rec.values, 4)
	for _, v := range rec.values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 50.0)
	}
	assert.Equal(t, 50.0, rec.values[len(rec.values)-1])
}

func TestRunnerWritingCase(t *testing.T) {
	inv := &fakeInvoker{fn: func(req InvokeRequest) (*InvocationOutcome, error) {
		return &InvocationOutcome{Content: "one two three", FinishReason: "stop"}, nil
	}}
	snk := newMemSink()
	r := NewRunner(inv, snk, nil, RunnerConfig{TextModel: "m", Workers: 1})

	results, stats := r.Run(context.Background(), CategoryWriting, makeCases("writing", 1), FullWindow)

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, 13, res.CharCount)
	assert.Equal(t, 3, res.WordCount)
	assert.Equal(t, "writing/T01_case 1.txt", res.TxtFile)

	transcript := string(snk.artifacts[res.TxtFile])
	assert.Contains(t, transcript, "prompt 1")
	assert.Contains(t, transcript, "one two three")

	// Writing has no artifact notion in the stats.
	assert.Zero(t, stats.ArtifactExtractedCount)
	assert.Zero(t, stats.NoArtifactCount)
}

func TestRunnerImageCase(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(make([]byte, 150))
	content := "here: data:image/png;base64," + payload
	longReasoning := strings.Repeat("r", 600)

	inv := &fakeInvoker{fn: func(req InvokeRequest) (*InvocationOutcome, error) {
		return &InvocationOutcome{Content: content, ReasoningContent: longReasoning, FinishReason: "stop"}, nil
	}}
	snk := newMemSink()
	r := NewRunner(inv, snk, nil, RunnerConfig{TextModel: "t", ImageModel: "img-model", Workers: 1})

	results, stats := r.Run(context.Background(), CategoryImage, makeCases("image", 1), FullWindow)

	require.Len(t, results, 1)
	res := results[0]
	assert.True(t, res.HasImage)
	assert.Equal(t, "image/T01_case 1.png", res.ImageFile)
	assert.Equal(t, "img-model", res.Model)
	assert.Len(t, snk.artifacts[res.ImageFile], 150)

	// The persisted response is redacted and the reasoning truncated.
	assert.NotContains(t, res.Response, payload)
	assert.Contains(t, res.Response, "[image data removed]")
	assert.Equal(t, 503, len(res.ReasoningContent))
	assert.True(t, strings.HasSuffix(res.ReasoningContent, "..."))

	assert.Equal(t, 1, stats.ArtifactExtractedCount)
}

func TestRunnerRetryFailed(t *testing.T) {
	var healed bool
	inv := &fakeInvoker{fn: func(req InvokeRequest) (*InvocationOutcome, error) {
		if req.CaseID == "T02" && !healed {
			return nil, errors.New("temporarily down")
		}
		return &InvocationOutcome{Content: completePage, FinishReason: "stop"}, nil
	}}
	r := NewRunner(inv, newMemSink(), nil, RunnerConfig{TextModel: "m", Workers: 2})

	_, stats := r.Run(context.Background(), CategoryCode, makeCases("code", 3), FullWindow)
	require.Equal(t, 1, stats.FailedCount)

	healed = true
	flipped := r.RetryFailed(context.Background(), CategoryCode, true)
	assert.Equal(t, 1, flipped)

	for _, res := range r.Results(CategoryCode) {
		assert.True(t, res.Success, "case %s still failed", res.ID)
	}

	// A second pass finds nothing to do.
	assert.Zero(t, r.RetryFailed(context.Background(), CategoryCode, true))
}

func TestRunnerRetryFailedRequireArtifact(t *testing.T) {
	var healed bool
	inv := &fakeInvoker{fn: func(req InvokeRequest) (*InvocationOutcome, error) {
		if req.CaseID == "T01" && !healed {
			return &InvocationOutcome{Content: "prose, no page", FinishReason: "stop"}, nil
		}
		return &InvocationOutcome{Content: completePage, FinishReason: "stop"}, nil
	}}
	r := NewRunner(inv, newMemSink(), nil, RunnerConfig{TextModel: "m", Workers: 1})

	r.Run(context.Background(), CategoryCode, makeCases("code", 2), FullWindow)

	healed = true
	flipped := r.RetryFailed(context.Background(), CategoryCode, true)
	assert.Equal(t, 1, flipped)
	for _, res := range r.Results(CategoryCode) {
		assert.True(t, res.ArtifactExtracted(), "case %s has no artifact", res.ID)
	}
}

func TestRunnerSummary(t *testing.T) {
	inv := &fakeInvoker{fn: func(req InvokeRequest) (*InvocationOutcome, error) {
		return &InvocationOutcome{Content: completePage, FinishReason: "stop",
			Usage: TokenUsage{TotalTokens: 7}}, nil
	}}
	snk := newMemSink()
	r := NewRunner(inv, snk, nil, RunnerConfig{TextModel: "m", ImageModel: "i", Workers: 2})

	r.Run(context.Background(), CategoryCode, makeCases("code", 2), ProgressWindow{Lo: 0, Hi: 50})
	r.Run(context.Background(), CategoryWriting, makeCases("writing", 3), ProgressWindow{Lo: 50, Hi: 100})

	summary, err := r.Summary(map[string]interface{}{"text_model": "m"})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, summary.Stats, 2)
	assert.Equal(t, 35, summary.TotalTokens.TotalTokens)
	assert.Equal(t, "m", summary.Config["text_model"])
	assert.Same(t, summary, snk.summary)
}

func TestRunnerCancelledBeforeDispatch(t *testing.T) {
	inv := &fakeInvoker{fn: func(req InvokeRequest) (*InvocationOutcome, error) {
		return &InvocationOutcome{Content: completePage, FinishReason: "stop"}, nil
	}}
	r := NewRunner(inv, newMemSink(), nil, RunnerConfig{TextModel: "m", Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, stats := r.Run(ctx, CategoryCode, makeCases("code", 10), FullWindow)
	assert.Empty(t, results)
	assert.Equal(t, 10, stats.TotalCases)
	assert.Zero(t, stats.SuccessCount)
}
