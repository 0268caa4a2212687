package analysis

import (
	"github.com/troyyang/ocr-compare/internal/domain"
)

// StatsFromResults builds single-document statistics from aggregated engine
// results. Failed engines are left out; an engine that returned no text
// counts as unsuccessful.
func StatsFromResults(results *domain.Results) *Performance {
	perf := NewPerformance()
	results.Each(func(name string, r domain.OCRResult) bool {
		if r.Failed() {
			return true
		}
		success := 0.0
		if r.Text != "" {
			success = 1.0
		}
		perf.Set(name, EnginePerformanceStats{
			FilesProcessed:      1,
			SuccessRate:         success,
			AvgConfidence:       r.Confidence,
			AvgProcessingTimeMS: r.ProcessingTimeMS,
			AvgCharsPerSecond:   r.CharsPerSecond(),
			TotalCharsExtracted: r.TextLength(),
		})
		return true
	})
	return perf
}

// EngineSample is one engine's outcome on one file.
type EngineSample struct {
	TextLength       int
	Confidence       float64
	ProcessingTimeMS float64
	CharsPerSecond   float64
	Failed           bool
}

type engineTotals struct {
	files       int
	successes   int
	chars       int
	timeMS      float64
	confidences float64
	speeds      float64
}

// Accumulator collects per-file samples into corpus statistics. It is not
// safe for concurrent use.
type Accumulator struct {
	order  []string
	totals map[string]*engineTotals
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{totals: make(map[string]*engineTotals)}
}

// Add records one sample for engine.
func (a *Accumulator) Add(engine string, s EngineSample) {
	t, ok := a.totals[engine]
	if !ok {
		t = &engineTotals{}
		a.totals[engine] = t
		a.order = append(a.order, engine)
	}
	t.files++
	t.chars += s.TextLength
	t.timeMS += s.ProcessingTimeMS
	t.confidences += s.Confidence
	t.speeds += s.CharsPerSecond
	if s.TextLength > 0 && !s.Failed {
		t.successes++
	}
}

// Engines lists engine names in first-seen order.
func (a *Accumulator) Engines() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Performance averages the samples per engine.
func (a *Accumulator) Performance() *Performance {
	perf := NewPerformance()
	for _, name := range a.order {
		t := a.totals[name]
		if t.files == 0 {
			continue
		}
		n := float64(t.files)
		perf.Set(name, EnginePerformanceStats{
			FilesProcessed:      t.files,
			SuccessRate:         float64(t.successes) / n,
			AvgConfidence:       t.confidences / n,
			AvgProcessingTimeMS: t.timeMS / n,
			AvgCharsPerSecond:   t.speeds / n,
			TotalCharsExtracted: t.chars,
		})
	}
	return perf
}
