// Package selection picks the best result among competing engine outputs.
package selection

import (
	"math"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// Options holds the scoring knobs for SelectBest.
type Options struct {
	ConfidenceWeight float64
	LengthWeight     float64
	// LengthNormalizer is the character count at which the length term saturates.
	LengthNormalizer int
}

// DefaultOptions returns the 0.8 / 0.2 / 2000 scoring.
func DefaultOptions() Options {
	return Options{ConfidenceWeight: 0.8, LengthWeight: 0.2, LengthNormalizer: 2000}
}

// Selector scores results by confidence and text length.
type Selector struct {
	opts Options
}

// New creates a selector; a non-positive normalizer falls back to the default.
func New(opts Options) *Selector {
	if opts.LengthNormalizer <= 0 {
		opts.LengthNormalizer = DefaultOptions().LengthNormalizer
	}
	return &Selector{opts: opts}
}

// Score returns confidence*wc + min(len/norm, 1)*wl.
func (s *Selector) Score(r domain.OCRResult) float64 {
	lengthTerm := math.Min(float64(r.TextLength())/float64(s.opts.LengthNormalizer), 1.0)
	return r.Confidence*s.opts.ConfidenceWeight + lengthTerm*s.opts.LengthWeight
}

// SelectBest returns the highest scoring result with non-empty text. The
// first maximal entry in insertion order wins. If no result has text the
// first entry is returned as is; an empty map yields nil.
func (s *Selector) SelectBest(results *domain.Results) *domain.OCRResult {
	if results.Len() == 0 {
		return nil
	}

	var best *domain.OCRResult
	bestScore := math.Inf(-1)
	results.Each(func(_ string, r domain.OCRResult) bool {
		if r.Text == "" {
			return true
		}
		if score := s.Score(r); score > bestScore {
			r := r
			best = &r
			bestScore = score
		}
		return true
	})

	if best == nil {
		first := results.Values()[0]
		return &first
	}
	return best
}

// Compare summarises the results. Averages include failed entries.
func Compare(results *domain.Results) *domain.ComparisonData {
	data := &domain.ComparisonData{
		TextLengths:     domain.NewOrderedMap[int](),
		Confidences:     domain.NewOrderedMap[float64](),
		ProcessingTimes: domain.NewOrderedMap[float64](),
	}
	n := results.Len()
	data.EngineCount = n
	if n == 0 {
		return data
	}

	var confSum, timeSum float64
	results.Each(func(name string, r domain.OCRResult) bool {
		confSum += r.Confidence
		timeSum += r.ProcessingTimeMS
		data.TextLengths.Set(name, r.TextLength())
		data.Confidences.Set(name, r.Confidence)
		data.ProcessingTimes.Set(name, r.ProcessingTimeMS)
		return true
	})
	data.AvgConfidence = confSum / float64(n)
	data.AvgProcessingTime = timeSum / float64(n)
	return data
}
