package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureLogRecord(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFailureLog(dir)
	require.NoError(t, err)

	longPrompt := strings.Repeat("p", 150)
	fl.Record("T01", "test-model", longPrompt, errors.New("connection reset by peer"), 3*time.Second)
	fl.Record("T02", "test-model", "short", errors.New("HTTP 500"), time.Second)

	path := filepath.Join(dir, "failures_"+time.Now().Format("20060102")+".log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "case: T01")
	assert.Contains(t, content, "case: T02")
	assert.Contains(t, content, "model: test-model")
	assert.Contains(t, content, "connection reset by peer")
	// Prompts are excerpted, not dumped whole.
	assert.Contains(t, content, strings.Repeat("p", 100)+"...")
	assert.NotContains(t, content, longPrompt)
	assert.Equal(t, 4, strings.Count(content, strings.Repeat("=", 80)))
}

func TestFailureLogNilReceiver(t *testing.T) {
	var fl *FailureLog
	// Must be a no-op, the invoker is built with a nil log in tests.
	fl.Record("T01", "m", "p", errors.New("x"), time.Second)
}
