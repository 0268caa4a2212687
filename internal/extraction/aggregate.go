package extraction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// Aggregate folds per-page results into one document-level result per
// engine, in engineOrder. Page texts are joined in ascending page order with
// a blank line, empty pages are skipped, times are summed and confidences are
// averaged over every attempted page. Engines with no page results are
// omitted.
//
// An engine whose every page failed carries metadata.error; one with some
// failed pages carries metadata.page_errors.
func Aggregate(pageResults []domain.OCRResult, engineOrder []string, totalPages int) *domain.Results {
	byEngine := make(map[string][]domain.OCRResult, len(engineOrder))
	for _, r := range pageResults {
		byEngine[r.EngineName] = append(byEngine[r.EngineName], r)
	}

	out := domain.NewResults()
	for _, name := range engineOrder {
		pages := byEngine[name]
		if len(pages) == 0 {
			continue
		}
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].PageNum < pages[j].PageNum })

		var (
			texts    []string
			pageErrs []string
			totalMS  float64
			confSum  float64
		)
		for _, p := range pages {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
			totalMS += p.ProcessingTimeMS
			confSum += p.Confidence
			if p.Failed() {
				pageErrs = append(pageErrs, fmt.Sprintf("page %d: %s", p.PageNum, p.Error()))
			}
		}

		meta := map[string]interface{}{domain.MetaPagesProcessed: len(pages)}
		switch {
		case len(pageErrs) == len(pages):
			meta[domain.MetaError] = strings.Join(pageErrs, "; ")
		case len(pageErrs) > 0:
			meta[domain.MetaPageErrors] = pageErrs
		}

		out.Set(name, domain.OCRResult{
			EngineName:       name,
			Text:             strings.Join(texts, "\n\n"),
			Confidence:       confSum / float64(len(pages)),
			ProcessingTimeMS: totalMS,
			PageNum:          totalPages,
			Metadata:         meta,
		})
	}
	return out
}
