package engine

import (
	"context"
	"net/http"
)

// HTTPClient abstracts the HTTP client for better testing.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Observer receives run output and progress. It is injected once at runner
// construction and passed down explicitly instead of threading bare callbacks
// through every layer.
type Observer interface {
	// Log receives a human-readable progress message.
	Log(msg string)
	// Progress receives the overall run completion percentage in [0,100].
	Progress(pct float64)
}

// InvokeRequest describes one resilient call.
type InvokeRequest struct {
	CaseID string
	Prompt string
	Model  string
	// Verify probes whether the accumulated content already contains a
	// complete artifact. When the upstream reports a length truncation and
	// Verify returns false, the invoker runs the continuation protocol.
	// A nil Verify disables continuation.
	Verify func(content string) bool
}

// Invoker turns one prompt/model pair into an InvocationOutcome, masking
// upstream flakiness as much as possible.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (*InvocationOutcome, error)
}

// ResultSink persists per-case records, extracted artifacts and aggregate
// statistics. The output tree is partitioned by category and case id, so
// concurrent case writers never target the same file.
type ResultSink interface {
	WriteResult(category Category, res *CaseResult) error
	// WriteArtifact stores an extracted payload under the category directory
	// and returns the path it was written to.
	WriteArtifact(category Category, name string, data []byte) (string, error)
	WriteStats(category Category, stats *CategoryStats) error
	WriteRunSummary(summary *RunSummary) error
}

// nopObserver is used when no observer is injected.
type nopObserver struct{}

func (nopObserver) Log(string)       {}
func (nopObserver) Progress(float64) {}
