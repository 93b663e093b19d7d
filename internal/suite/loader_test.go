package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "code_cases.json", `{
		"cases": [
			{"id": "C01", "name": "landing page", "difficulty": "hard", "tags": ["html"], "prompt": "build it"},
			{"id": "C02", "name": "clock", "prompt": "draw a clock"}
		]
	}`)

	cases, err := Load(dir, "code")
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "C01", cases[0].ID)
	assert.Equal(t, "hard", cases[0].Difficulty)
	assert.Equal(t, []string{"html"}, cases[0].Tags)

	// Defaults fill the gaps.
	assert.Equal(t, "code", cases[1].Category)
	assert.Equal(t, "medium", cases[1].Difficulty)
	assert.Equal(t, "📄", cases[1].Icon)
}

func TestLoadYAMLFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "writing_cases.yaml", `
cases:
  - id: W01
    name: short story
    prompt: write a story
`)

	cases, err := Load(dir, "writing")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "W01", cases[0].ID)
	assert.Equal(t, "📝", cases[0].Icon)
}

func TestLoadPrefersJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "image_cases.json", `{"cases":[{"id":"FROM_JSON","name":"a","prompt":"p"}]}`)
	writeFile(t, dir, "image_cases.yaml", `{cases: [{id: FROM_YAML, name: b, prompt: p}]}`)

	cases, err := Load(dir, "image")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "FROM_JSON", cases[0].ID)
}

func TestLoadMissingSuite(t *testing.T) {
	_, err := Load(t.TempDir(), "code")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "code_cases.json", `{"cases": [`)

	_, err := Load(dir, "code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing suite")
}
