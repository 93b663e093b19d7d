package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-coders/modelbench/internal/engine"
	"github.com/go-coders/modelbench/pkg/util"
)

func TestRunPlan(t *testing.T) {
	plan, err := runPlan("all")
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, engine.CategoryCode, plan[0].category)
	assert.Equal(t, engine.ProgressWindow{Lo: 0, Hi: 50}, plan[0].window)
	assert.Equal(t, engine.CategoryImage, plan[1].category)
	assert.Equal(t, engine.ProgressWindow{Lo: 50, Hi: 100}, plan[1].window)

	for _, cat := range []string{"code", "writing", "image"} {
		plan, err := runPlan(cat)
		require.NoError(t, err)
		require.Len(t, plan, 1)
		assert.Equal(t, engine.FullWindow, plan[0].window)
	}

	_, err = runPlan("video")
	assert.Error(t, err)
}

func TestConsoleObserverProgressSteps(t *testing.T) {
	var buf bytes.Buffer
	obs := newConsoleObserver(util.NewPrinter(&buf))

	obs.Progress(10.2)
	obs.Progress(10.9) // same whole percent, suppressed
	obs.Progress(11.0)

	out := buf.String()
	assert.Contains(t, out, "[ 10%]")
	assert.Contains(t, out, "[ 11%]")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("%]")))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := util.NewPrinter(&buf)

	printSummary(p, &engine.RunSummary{
		RunID:            "run-1",
		TotalTimeSeconds: 12.3,
		TotalTokens:      engine.TokenUsage{TotalTokens: 999},
		Stats: map[string]*engine.CategoryStats{
			"code": {
				TotalCases:             10,
				SuccessCount:           9,
				ArtifactExtractedCount: 8,
				TotalTokens:            engine.TokenUsage{TotalTokens: 900},
				AvgTimePerCase:         3.5,
				AvgTokensPerSecond:     42.0,
			},
			"writing": {
				TotalCases:   5,
				SuccessCount: 5,
				TotalTokens:  engine.TokenUsage{TotalTokens: 99},
			},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "9/10")
	assert.Contains(t, out, "8/10")
	assert.Contains(t, out, "run-1")
	// Writing has no artifact column value.
	assert.Contains(t, out, "writing")
	assert.Contains(t, out, "-")
}
