package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// Summary renders the Markdown rationale for a scored performance map.
func (a *Analyzer) Summary(perf *Performance, scores *domain.OrderedMap[float64]) string {
	if perf.Len() == 0 || scores.Len() == 0 {
		return "Insufficient data for recommendations."
	}

	type ranked struct {
		engine string
		score  float64
	}
	ranking := make([]ranked, 0, scores.Len())
	scores.Each(func(name string, score float64) bool {
		ranking = append(ranking, ranked{name, score})
		return true
	})
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].score > ranking[j].score
	})

	winner := ranking[0].engine
	best, _ := perf.Get(winner)

	lines := []string{
		"## OCR Engine Recommendation",
		"",
		fmt.Sprintf("**Winner: %s**", strings.ToUpper(winner)),
		"",
		fmt.Sprintf("Based on a comparison of %d engines, **%s** offers the best overall performance for this document:",
			perf.Len(), winner),
		fmt.Sprintf("- Confidence: %.1f%%", best.AvgConfidence*100),
		fmt.Sprintf("- Speed: %.0f chars/second", best.AvgCharsPerSecond),
		fmt.Sprintf("- Success Rate: %.1f%%", best.SuccessRate*100),
		fmt.Sprintf("- Est. Cost/Page: $%.4f", best.EstimatedCostPerPage),
		"",
		"### Trade-offs:",
	}

	for i, r := range ranking {
		if i == 0 {
			lines = append(lines, fmt.Sprintf("1. **%s** (Recommended): Best overall balance.", r.engine))
			continue
		}
		stats, _ := perf.Get(r.engine)
		lines = append(lines, fmt.Sprintf("%d. **%s**: A good alternative, offering %s.",
			i+1, r.engine, a.Strengths(stats)))
	}

	return strings.Join(lines, "\n")
}

// Strengths names what an engine is good at, or "adequate performance".
func (a *Analyzer) Strengths(s EnginePerformanceStats) string {
	var strengths []string
	if s.AvgConfidence > a.opts.HighConfidence {
		strengths = append(strengths, "high accuracy")
	}
	if s.AvgCharsPerSecond > a.opts.FastCharsPerSecond {
		strengths = append(strengths, "fast processing")
	}
	if s.EstimatedCostPerPage == 0 {
		strengths = append(strengths, "zero cost")
	}
	if s.SuccessRate > a.opts.HighReliability {
		strengths = append(strengths, "high reliability")
	}
	if len(strengths) == 0 {
		return "adequate performance"
	}
	return strings.Join(strengths, ", ")
}
