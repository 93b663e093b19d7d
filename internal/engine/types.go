package engine

import (
	"math"
	"time"
)

// Category identifies a test suite category.
type Category string

const (
	CategoryCode    Category = "code"
	CategoryWriting Category = "writing"
	CategoryImage   Category = "image"
)

// TokenUsage accumulates token counts across a request and any continuation
// rounds it triggered.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add merges another usage record into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// InvocationOutcome is the result of one resilient API call, continuation
// rounds included. It is folded into a CaseResult by the runner and never
// persisted as-is.
type InvocationOutcome struct {
	Content            string
	ReasoningContent   string
	FinishReason       string
	Usage              TokenUsage
	DurationSeconds    float64
	RetryCount         int
	TokensPerSecond    float64
	IsIncomplete       bool
	ContinuationRounds int
}

// CaseResult is the persisted per-case record.
type CaseResult struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
	Icon       string   `json:"icon"`
	Prompt     string   `json:"prompt"`

	Response         string `json:"response,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
	Timestamp        string `json:"timestamp"`

	TokenUsage         TokenUsage `json:"token_usage"`
	DurationSeconds    float64    `json:"duration_seconds"`
	RetryCount         int        `json:"retry_count"`
	TokensPerSecond    float64    `json:"tokens_per_second"`
	IsIncomplete       bool       `json:"is_incomplete"`
	FinishReason       string     `json:"finish_reason,omitempty"`
	Model              string     `json:"model,omitempty"`
	ContinuationRounds int        `json:"continuation_rounds,omitempty"`

	// Category-specific artifact fields.
	HTMLFile     string `json:"html_file,omitempty"`
	HTMLComplete bool   `json:"html_complete,omitempty"`
	ImageFile    string `json:"image_file,omitempty"`
	HasImage     bool   `json:"has_image,omitempty"`
	TxtFile      string `json:"txt_file,omitempty"`
	CharCount    int    `json:"char_count,omitempty"`
	WordCount    int    `json:"word_count,omitempty"`
}

// ArtifactExtracted reports whether the case produced the artifact its
// category is scored on.
func (r *CaseResult) ArtifactExtracted() bool {
	return r.HTMLFile != "" || r.HasImage
}

// CategoryStats is the running aggregate over one category run. It is owned
// by the orchestrator and only ever mutated from the goroutine collecting
// completed cases, so no locking is needed.
type CategoryStats struct {
	TotalCases             int        `json:"total_cases"`
	SuccessCount           int        `json:"success_count"`
	FailedCount            int        `json:"failed_count"`
	ArtifactExtractedCount int        `json:"artifact_extracted_count"`
	NoArtifactCount        int        `json:"no_artifact_count"`
	TotalTokens            TokenUsage `json:"total_tokens"`
	TotalTimeSeconds       float64    `json:"total_time_seconds"`
	SumCaseTimeSeconds     float64    `json:"sum_case_time_seconds"`
	AvgTimePerCase         float64    `json:"avg_time_per_case"`
	AvgOutputTokensPerCase float64    `json:"avg_output_tokens_per_case"`
	AvgTokensPerSecond     float64    `json:"avg_tokens_per_second"`
	TimeoutCount           int        `json:"timeout_count"`
	RetryCount             int        `json:"retry_count"`
	IncompleteCount        int        `json:"incomplete_count"`
}

// Finalize computes the derived averages once all dispatched cases have
// resolved. Averages are based on the sum of individual case durations, not
// wall-clock time: wall clock reflects concurrency-compressed time while the
// sum reflects true per-case cost.
func (s *CategoryStats) Finalize(wallClock time.Duration) {
	s.TotalTimeSeconds = round2(wallClock.Seconds())
	if s.SuccessCount == 0 {
		return
	}
	s.AvgTimePerCase = round2(s.SumCaseTimeSeconds / float64(s.SuccessCount))
	s.AvgOutputTokensPerCase = round2(float64(s.TotalTokens.CompletionTokens) / float64(s.SuccessCount))
	if s.SumCaseTimeSeconds > 0 {
		s.AvgTokensPerSecond = round2(float64(s.TotalTokens.CompletionTokens) / s.SumCaseTimeSeconds)
	}
}

// RunSummary merges per-category stats for the whole run.
type RunSummary struct {
	RunID            string                     `json:"run_id"`
	Timestamp        string                     `json:"timestamp"`
	Stats            map[string]*CategoryStats  `json:"stats"`
	TotalTimeSeconds float64                    `json:"total_time_seconds"`
	TotalTokens      TokenUsage                 `json:"total_tokens"`
	Config           map[string]interface{}     `json:"config"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
