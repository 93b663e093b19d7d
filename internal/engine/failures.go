package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-coders/modelbench/pkg/logger"
)

// FailureLog appends calls that exhausted all retries to a dated on-disk log
// for offline triage. Each append is a discrete open/write/close, which is
// safe under the light concurrency of human-scale batch sizes.
type FailureLog struct {
	dir string
}

// NewFailureLog creates the log directory if needed.
func NewFailureLog(dir string) (*FailureLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating failure log dir: %w", err)
	}
	return &FailureLog{dir: dir}, nil
}

// Record appends one failed call. Best effort: a write failure is only
// debug-logged, never surfaced, since this is a side channel of an already
// failing path.
func (f *FailureLog) Record(caseID, model, prompt string, cause error, duration time.Duration) {
	if f == nil {
		return
	}
	path := filepath.Join(f.dir, "failures_"+time.Now().Format("20060102")+".log")

	var b strings.Builder
	sep := strings.Repeat("=", 80)
	fmt.Fprintf(&b, "\n%s\n", sep)
	fmt.Fprintf(&b, "time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "case: %s\n", caseID)
	fmt.Fprintf(&b, "model: %s\n", model)
	fmt.Fprintf(&b, "duration: %.1fs\n", duration.Seconds())
	fmt.Fprintf(&b, "error: %v\n", cause)
	fmt.Fprintf(&b, "prompt: %s\n", excerpt(prompt, 100))
	fmt.Fprintf(&b, "%s\n", sep)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Debug("failure log open: %v", err)
		return
	}
	defer file.Close()
	if _, err := file.WriteString(b.String()); err != nil {
		logger.Debug("failure log write: %v", err)
	}
}
