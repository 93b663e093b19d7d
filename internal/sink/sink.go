// Package sink persists run output under a results directory, one
// subdirectory per category. JSON records are written indented so they stay
// reviewable by hand.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-coders/modelbench/internal/engine"
	"github.com/go-coders/modelbench/pkg/util"
)

const (
	statsFile   = "_stats.json"
	summaryFile = "_summary_stats.json"
)

// DirSink writes results, artifacts and stats to a directory tree.
// Concurrent writers are serialized; files are replaced atomically enough
// for a local results dir (write-then-rename is overkill here).
type DirSink struct {
	mu   sync.Mutex
	root string
}

// NewDirSink creates the root directory if needed.
func NewDirSink(root string) (*DirSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}
	return &DirSink{root: root}, nil
}

// Root returns the results directory.
func (s *DirSink) Root() string {
	return s.root
}

// WriteResult persists one case record as <root>/<category>/<id>_<name>.json.
func (s *DirSink) WriteResult(category engine.Category, res *engine.CaseResult) error {
	name := fmt.Sprintf("%s_%s.json", res.ID, util.SanitizeFilename(res.Name))
	return s.writeJSON(filepath.Join(string(category), name), res)
}

// WriteArtifact stores raw artifact bytes and returns the path written,
// relative to the results root.
func (s *DirSink) WriteArtifact(category engine.Category, filename string, data []byte) (string, error) {
	rel := filepath.Join(string(category), util.SanitizeFilename(filename))
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact %s: %w", rel, err)
	}
	return rel, nil
}

// WriteStats persists a category's aggregate stats.
func (s *DirSink) WriteStats(category engine.Category, stats *engine.CategoryStats) error {
	return s.writeJSON(filepath.Join(string(category), statsFile), stats)
}

// WriteRunSummary persists the cross-category run record at the root.
func (s *DirSink) WriteRunSummary(summary *engine.RunSummary) error {
	return s.writeJSON(summaryFile, summary)
}

func (s *DirSink) writeJSON(rel string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rel, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}
