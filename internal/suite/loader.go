package suite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Case is one prompt to evaluate plus its display metadata. Cases are
// immutable once loaded; the engine copies identity fields into results but
// never mutates a Case.
type Case struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Category   string   `json:"category" yaml:"category"`
	Difficulty string   `json:"difficulty" yaml:"difficulty"`
	Tags       []string `json:"tags" yaml:"tags"`
	Icon       string   `json:"icon" yaml:"icon"`
	Prompt     string   `json:"prompt" yaml:"prompt"`
}

type suiteFile struct {
	Cases []Case `json:"cases" yaml:"cases"`
}

var defaultIcons = map[string]string{
	"code":    "📄",
	"writing": "📝",
	"image":   "🖼️",
}

// Load reads the case file for a category from dir. It looks for
// <category>_cases.json first and falls back to .yaml/.yml so suites can be
// written by hand. Returns an error satisfying os.IsNotExist semantics when
// no suite file exists for the category.
func Load(dir, category string) ([]Case, error) {
	base := filepath.Join(dir, category+"_cases")
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := base + ext
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading suite %s: %w", path, err)
		}
		cases, err := parse(data, ext)
		if err != nil {
			return nil, fmt.Errorf("parsing suite %s: %w", path, err)
		}
		normalize(cases, category)
		return cases, nil
	}
	return nil, fmt.Errorf("suite for category %q: %w", category, os.ErrNotExist)
}

func parse(data []byte, ext string) ([]Case, error) {
	var f suiteFile
	if ext == ".json" {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	} else {
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	}
	return f.Cases, nil
}

func normalize(cases []Case, category string) {
	for i := range cases {
		if cases[i].Category == "" {
			cases[i].Category = category
		}
		if cases[i].Difficulty == "" {
			cases[i].Difficulty = "medium"
		}
		if cases[i].Icon == "" {
			cases[i].Icon = defaultIcons[category]
		}
	}
}
