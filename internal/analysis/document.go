package analysis

import (
	"fmt"
	"strings"

	"github.com/troyyang/ocr-compare/internal/domain"
)

const (
	// NoEnginesMessage is the recommendation for a document no engine processed.
	NoEnginesMessage = "No OCR engines were able to process this document."
	// AllFailedMessage is the recommendation when every engine failed.
	AllFailedMessage = "All OCR engines failed to process this document."
)

// Headline names the best engine of a single document. Engines are scored
// on confidence (0.5), 1/(1+seconds) (0.3) and 1/(1+100*cost) (0.2); only
// engines that returned text without error compete.
func (a *Analyzer) Headline(results *domain.Results) string {
	if results.Len() == 0 {
		return NoEnginesMessage
	}

	var (
		best      domain.OCRResult
		bestCost  float64
		bestScore = -1.0
	)
	results.Each(func(name string, r domain.OCRResult) bool {
		if !r.Succeeded() {
			return true
		}
		cost := a.EstimatedCost(name, r)
		speed := 1.0 / (1.0 + r.ProcessingTimeMS/1000)
		costEfficiency := 1.0 / (1.0 + cost*100)
		score := r.Confidence*0.5 + speed*0.3 + costEfficiency*0.2
		if score > bestScore {
			best, bestCost, bestScore = r, cost, score
		}
		return true
	})
	if bestScore < 0 {
		return AllFailedMessage
	}

	return fmt.Sprintf("Recommendation: %s performed best with %.1f%% confidence, %.2fs processing time, and $%.4f estimated cost.",
		strings.ToUpper(best.EngineName), best.Confidence*100, best.ProcessingTimeMS/1000, bestCost)
}

// DocumentRecommendation is the stored recommendation for one parsed
// document: the headline, followed by the ranked summary when at least one
// engine succeeded.
func (a *Analyzer) DocumentRecommendation(results *domain.Results) string {
	headline := a.Headline(results)
	if headline == NoEnginesMessage || headline == AllFailedMessage {
		return headline
	}
	rec := a.GenerateRecommendations(StatsFromResults(results))
	if rec == nil {
		return headline
	}
	return headline + "\n\n" + rec.Summary
}

// EstimatedCost is the cost an engine reported for r, or the price the
// analyzer would charge for it.
func (a *Analyzer) EstimatedCost(engine string, r domain.OCRResult) float64 {
	if v, ok := r.MetaFloat(domain.MetaEstimatedCost); ok {
		return v
	}
	return a.CostPerPage(engine, r.ProcessingTimeMS)
}
