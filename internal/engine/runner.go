package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-coders/modelbench/internal/extract"
	"github.com/go-coders/modelbench/internal/suite"
	"github.com/go-coders/modelbench/pkg/util"
)

// ProgressWindow maps one category's completion fraction into its slice of
// the overall run, e.g. [0,50] for the first of two categories.
type ProgressWindow struct {
	Lo, Hi float64
}

// FullWindow is the window for a category running alone.
var FullWindow = ProgressWindow{Lo: 0, Hi: 100}

// RunnerConfig holds per-run settings.
type RunnerConfig struct {
	TextModel  string
	ImageModel string
	Workers    int
}

const defaultWorkers = 10

// Runner executes one category's case list under bounded concurrency and
// aggregates statistics. It exclusively owns the stats and the in-memory
// results list for its run; workers never touch either — all aggregation
// happens on the goroutine collecting completed cases.
type Runner struct {
	invoker Invoker
	sink    ResultSink
	obs     Observer
	cfg     RunnerConfig

	mu      sync.Mutex
	results map[Category][]CaseResult
	stats   map[Category]*CategoryStats
	started time.Time
}

// NewRunner wires the orchestrator. A nil observer is replaced with a no-op.
func NewRunner(invoker Invoker, sink ResultSink, obs Observer, cfg RunnerConfig) *Runner {
	if obs == nil {
		obs = nopObserver{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Runner{
		invoker: invoker,
		sink:    sink,
		obs:     obs,
		cfg:     cfg,
		results: make(map[Category][]CaseResult),
		stats:   make(map[Category]*CategoryStats),
	}
}

type caseOutcome struct {
	cas suite.Case
	res *CaseResult
	err error
}

// Run executes every case of a category across the worker pool and returns
// the results in completion order — callers needing case-id order must sort.
// Cancelling ctx stops dispatching new cases and further retries; cases
// already in flight finish or fail naturally and are included in the result.
// Individual case failures never propagate: they become failed results.
func (r *Runner) Run(ctx context.Context, category Category, cases []suite.Case, window ProgressWindow) ([]CaseResult, *CategoryStats) {
	r.mu.Lock()
	if r.started.IsZero() {
		r.started = time.Now()
	}
	r.mu.Unlock()

	model := r.modelFor(category)
	r.obs.Log(fmt.Sprintf("starting %s run: %d cases, model %s", category, len(cases), model))

	stats := &CategoryStats{TotalCases: len(cases)}
	start := time.Now()

	sem := make(chan struct{}, r.cfg.Workers)
	resCh := make(chan caseOutcome, r.cfg.Workers)
	var wg sync.WaitGroup

	dispatched := 0
	for _, cas := range cases {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		wg.Add(1)
		go func(cas suite.Case) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := r.runCase(ctx, category, cas)
			resCh <- caseOutcome{cas: cas, res: res, err: err}
		}(cas)
	}
	go func() {
		wg.Wait()
		close(resCh)
	}()

	results := make([]CaseResult, 0, dispatched)
	completed := 0
	for oc := range resCh {
		completed++
		res := oc.res
		if oc.err != nil {
			res = failedResult(oc.cas, oc.err)
			stats.FailedCount++
			if isTimeout(oc.err) {
				stats.TimeoutCount++
			}
			r.obs.Log(fmt.Sprintf("❌ [%s] %s %s - failed: %s", category, oc.cas.ID, oc.cas.Name, excerpt(oc.err.Error(), 200)))
		} else {
			stats.SuccessCount++
			stats.TotalTokens.Add(res.TokenUsage)
			stats.SumCaseTimeSeconds = round2(stats.SumCaseTimeSeconds + res.DurationSeconds)
			stats.RetryCount += res.RetryCount
			if res.IsIncomplete {
				stats.IncompleteCount++
			}
			r.countArtifact(category, res, stats)
			r.obs.Log(fmt.Sprintf("✅ [%s] %s %s - ok (%.1fs, %.1f tok/s)", category, res.ID, res.Name, res.DurationSeconds, res.TokensPerSecond))
		}
		results = append(results, *res)

		frac := float64(completed) / float64(len(cases))
		r.obs.Progress(window.Lo + frac*(window.Hi-window.Lo))
	}

	stats.Finalize(time.Since(start))
	if err := r.sink.WriteStats(category, stats); err != nil {
		r.obs.Log(fmt.Sprintf("⚠️ writing %s stats: %v", category, err))
	}
	r.logStats(category, stats)

	r.mu.Lock()
	r.results[category] = results
	r.stats[category] = stats
	r.mu.Unlock()

	return results, stats
}

func (r *Runner) countArtifact(category Category, res *CaseResult, stats *CategoryStats) {
	switch category {
	case CategoryCode:
		if res.HTMLFile != "" {
			stats.ArtifactExtractedCount++
		} else {
			stats.NoArtifactCount++
		}
	case CategoryImage:
		if res.HasImage {
			stats.ArtifactExtractedCount++
		} else {
			stats.NoArtifactCount++
		}
	}
}

func (r *Runner) logStats(category Category, s *CategoryStats) {
	r.obs.Log(fmt.Sprintf("📊 %s run done: %d/%d ok, %d tokens, wall %.1fs, avg %.1fs/case, %.1f tok/s",
		category, s.SuccessCount, s.TotalCases, s.TotalTokens.TotalTokens,
		s.TotalTimeSeconds, s.AvgTimePerCase, s.AvgTokensPerSecond))
	if s.TimeoutCount > 0 {
		r.obs.Log(fmt.Sprintf("    ⏰ timeouts: %d", s.TimeoutCount))
	}
	if s.RetryCount > 0 {
		r.obs.Log(fmt.Sprintf("    🔄 retries: %d", s.RetryCount))
	}
	if s.IncompleteCount > 0 {
		r.obs.Log(fmt.Sprintf("    ⚠️ incomplete responses: %d", s.IncompleteCount))
	}
}

func (r *Runner) modelFor(category Category) string {
	if category == CategoryImage {
		return r.cfg.ImageModel
	}
	return r.cfg.TextModel
}

func (r *Runner) runCase(ctx context.Context, category Category, cas suite.Case) (*CaseResult, error) {
	switch category {
	case CategoryCode:
		return r.runCodeCase(ctx, cas)
	case CategoryImage:
		return r.runImageCase(ctx, cas)
	case CategoryWriting:
		return r.runWritingCase(ctx, cas)
	}
	return nil, fmt.Errorf("unknown category %q", category)
}

func (r *Runner) runCodeCase(ctx context.Context, cas suite.Case) (*CaseResult, error) {
	verify := func(content string) bool {
		_, complete := extract.HTML(content)
		return complete
	}
	out, err := r.invoker.Invoke(ctx, InvokeRequest{
		CaseID: cas.ID,
		Prompt: cas.Prompt,
		Model:  r.cfg.TextModel,
		Verify: verify,
	})
	if err != nil {
		return nil, err
	}

	res := baseResult(cas, out, r.cfg.TextModel)
	name := caseFileName(cas)

	if html, complete := extract.HTML(out.Content); html != "" {
		path, werr := r.sink.WriteArtifact(CategoryCode, name+".html", []byte(html))
		if werr != nil {
			return nil, werr
		}
		res.HTMLFile = path
		res.HTMLComplete = complete
		if complete {
			// The API may report a length truncation even though the
			// document closed properly; a verified artifact wins.
			res.IsIncomplete = false
		}
	} else {
		path, werr := r.sink.WriteArtifact(CategoryCode, name+"_raw.txt", []byte(out.Content))
		if werr != nil {
			return nil, werr
		}
		res.TxtFile = path
	}

	if err := r.sink.WriteResult(CategoryCode, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) runImageCase(ctx context.Context, cas suite.Case) (*CaseResult, error) {
	out, err := r.invoker.Invoke(ctx, InvokeRequest{
		CaseID: cas.ID,
		Prompt: cas.Prompt,
		Model:  r.cfg.ImageModel,
	})
	if err != nil {
		return nil, err
	}

	res := baseResult(cas, out, r.cfg.ImageModel)
	// Base64 payloads are megabytes of noise in a JSON record; persist a
	// redacted copy and keep the decoded image as the artifact.
	res.Response = extract.RedactBase64(out.Content)
	if n := []rune(res.ReasoningContent); len(n) > 500 {
		res.ReasoningContent = string(n[:500]) + "..."
	}

	name := caseFileName(cas)
	if ext, data, ok := extract.Image(out.Content); ok {
		path, werr := r.sink.WriteArtifact(CategoryImage, name+"."+ext, data)
		if werr != nil {
			return nil, werr
		}
		res.ImageFile = path
		res.HasImage = true
	} else {
		path, werr := r.sink.WriteArtifact(CategoryImage, name+"_raw.txt", []byte(res.Response))
		if werr != nil {
			return nil, werr
		}
		res.TxtFile = path
	}

	if err := r.sink.WriteResult(CategoryImage, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) runWritingCase(ctx context.Context, cas suite.Case) (*CaseResult, error) {
	out, err := r.invoker.Invoke(ctx, InvokeRequest{
		CaseID: cas.ID,
		Prompt: cas.Prompt,
		Model:  r.cfg.TextModel,
	})
	if err != nil {
		return nil, err
	}

	res := baseResult(cas, out, r.cfg.TextModel)
	res.CharCount = len([]rune(out.Content))
	res.WordCount = len(strings.Fields(out.Content))

	transcript := fmt.Sprintf("=== %s ===\n\n[Prompt]\n%s\n\n[Response]\n%s\n", cas.Name, cas.Prompt, out.Content)
	path, werr := r.sink.WriteArtifact(CategoryWriting, caseFileName(cas)+".txt", []byte(transcript))
	if werr != nil {
		return nil, werr
	}
	res.TxtFile = path

	if err := r.sink.WriteResult(CategoryWriting, res); err != nil {
		return nil, err
	}
	return res, nil
}

// RetryFailed re-invokes the cases of a finished run that failed — or, when
// requireArtifact is set, also those that succeeded without producing an
// artifact — sequentially, splicing updated results back by case id.
// Returns the number of cases that flipped to a better outcome.
func (r *Runner) RetryFailed(ctx context.Context, category Category, requireArtifact bool) int {
	r.mu.Lock()
	snapshot := append([]CaseResult(nil), r.results[category]...)
	r.mu.Unlock()

	flipped := 0
	for _, old := range snapshot {
		needsRetry := !old.Success || (requireArtifact && !old.ArtifactExtracted())
		if !needsRetry {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		cas := suite.Case{
			ID:         old.ID,
			Name:       old.Name,
			Category:   old.Category,
			Difficulty: old.Difficulty,
			Tags:       old.Tags,
			Icon:       old.Icon,
			Prompt:     old.Prompt,
		}
		r.obs.Log(fmt.Sprintf("🔄 retrying [%s] %s %s", category, cas.ID, cas.Name))

		res, err := r.runCase(ctx, category, cas)
		if err != nil {
			r.obs.Log(fmt.Sprintf("❌ retry failed [%s] %s: %s", category, cas.ID, excerpt(err.Error(), 200)))
			continue
		}
		if (!old.Success && res.Success) || (requireArtifact && !old.ArtifactExtracted() && res.ArtifactExtracted()) {
			flipped++
		}
		r.splice(category, res)
		r.obs.Log(fmt.Sprintf("✅ retry ok [%s] %s %s", category, cas.ID, cas.Name))
	}
	return flipped
}

func (r *Runner) splice(category Category, res *CaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.results[category] {
		if r.results[category][i].ID == res.ID {
			r.results[category][i] = *res
			return
		}
	}
	r.results[category] = append(r.results[category], *res)
}

// Results returns a copy of the in-memory results for a category.
func (r *Runner) Results(category Category) []CaseResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CaseResult(nil), r.results[category]...)
}

// Summary merges all finished categories into a run-level record and
// persists it.
func (r *Runner) Summary(config map[string]interface{}) (*RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &RunSummary{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().Format(time.RFC3339),
		Stats:     make(map[string]*CategoryStats, len(r.stats)),
		Config:    config,
	}
	for cat, st := range r.stats {
		s.Stats[string(cat)] = st
		s.TotalTokens.Add(st.TotalTokens)
	}
	if !r.started.IsZero() {
		s.TotalTimeSeconds = round2(time.Since(r.started).Seconds())
	}
	if err := r.sink.WriteRunSummary(s); err != nil {
		return nil, err
	}
	return s, nil
}

func baseResult(cas suite.Case, out *InvocationOutcome, model string) *CaseResult {
	return &CaseResult{
		ID:                 cas.ID,
		Name:               cas.Name,
		Category:           cas.Category,
		Difficulty:         cas.Difficulty,
		Tags:               cas.Tags,
		Icon:               cas.Icon,
		Prompt:             cas.Prompt,
		Response:           out.Content,
		ReasoningContent:   out.ReasoningContent,
		Success:            true,
		Timestamp:          time.Now().Format(time.RFC3339),
		TokenUsage:         out.Usage,
		DurationSeconds:    out.DurationSeconds,
		RetryCount:         out.RetryCount,
		TokensPerSecond:    out.TokensPerSecond,
		IsIncomplete:       out.IsIncomplete,
		FinishReason:       out.FinishReason,
		Model:              model,
		ContinuationRounds: out.ContinuationRounds,
	}
}

func failedResult(cas suite.Case, cause error) *CaseResult {
	return &CaseResult{
		ID:         cas.ID,
		Name:       cas.Name,
		Category:   cas.Category,
		Difficulty: cas.Difficulty,
		Tags:       cas.Tags,
		Icon:       cas.Icon,
		Prompt:     cas.Prompt,
		Success:    false,
		Error:      cause.Error(),
		Timestamp:  time.Now().Format(time.RFC3339),
	}
}

func caseFileName(cas suite.Case) string {
	return cas.ID + "_" + util.SanitizeFilename(cas.Name)
}
