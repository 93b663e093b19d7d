package cli

import (
	"fmt"
	"sort"

	"github.com/go-coders/modelbench/internal/engine"
	"github.com/go-coders/modelbench/pkg/util"
)

// printSummary renders the per-category stats as an aligned table. Column
// widths are display widths, so CJK case output or emoji in future columns
// would not break alignment.
func printSummary(p *util.Printer, s *engine.RunSummary) {
	p.PrintTitle("run summary", util.EmojiChart)

	categories := make([]string, 0, len(s.Stats))
	for cat := range s.Stats {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	p.Println(
		util.PadRight("category", 10),
		util.PadRight("ok", 8),
		util.PadRight("artifacts", 10),
		util.PadRight("tokens", 10),
		util.PadRight("avg s/case", 11),
		util.PadRight("tok/s", 8),
	)
	for _, cat := range categories {
		st := s.Stats[cat]
		artifacts := "-"
		if cat != string(engine.CategoryWriting) {
			artifacts = fmt.Sprintf("%d/%d", st.ArtifactExtractedCount, st.TotalCases)
		}
		p.Println(
			util.PadRight(cat, 10),
			util.PadRight(fmt.Sprintf("%d/%d", st.SuccessCount, st.TotalCases), 8),
			util.PadRight(artifacts, 10),
			util.PadRight(fmt.Sprintf("%d", st.TotalTokens.TotalTokens), 10),
			util.PadRight(fmt.Sprintf("%.1f", st.AvgTimePerCase), 11),
			util.PadRight(fmt.Sprintf("%.1f", st.AvgTokensPerSecond), 8),
		)
	}

	p.PrintSeparator()
	p.Printf("run %s: %d tokens total, %.1fs wall clock\n",
		s.RunID, s.TotalTokens.TotalTokens, s.TotalTimeSeconds)
}
