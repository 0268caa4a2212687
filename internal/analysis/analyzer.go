// Package analysis turns per-engine performance statistics into a ranked
// recommendation with a Markdown rationale.
package analysis

import (
	"math"
	"strings"

	"github.com/troyyang/ocr-compare/internal/config"
	"github.com/troyyang/ocr-compare/internal/domain"
)

// EnginePerformanceStats are the aggregate metrics for one engine.
type EnginePerformanceStats struct {
	FilesProcessed       int     `json:"files_processed,omitempty"`
	SuccessRate          float64 `json:"success_rate"`
	AvgConfidence        float64 `json:"avg_confidence"`
	AvgProcessingTimeMS  float64 `json:"avg_processing_time_ms"`
	AvgCharsPerSecond    float64 `json:"avg_chars_per_second"`
	TotalCharsExtracted  int     `json:"total_chars_extracted"`
	EstimatedCostPerPage float64 `json:"estimated_cost_per_page"`
}

// Performance maps engine name to stats in insertion order.
type Performance = domain.OrderedMap[EnginePerformanceStats]

// NewPerformance creates an empty performance map.
func NewPerformance() *Performance {
	return domain.NewOrderedMap[EnginePerformanceStats]()
}

// Options holds every policy knob of the recommendation model.
type Options struct {
	ConfidenceWeight float64
	SpeedWeight      float64
	SuccessWeight    float64
	CostWeight       float64

	// SpeedNormalizer is the chars/second rate at which the speed term saturates.
	SpeedNormalizer float64
	// CostNormalizer scales cost per page into the cost penalty.
	CostNormalizer float64
	// ComputeCostPerSecond prices self-hosted engines by processing time.
	ComputeCostPerSecond float64
	// Pricing is the flat per-page price keyed by lowercased engine name.
	Pricing map[string]float64

	HighConfidence     float64
	FastCharsPerSecond float64
	HighReliability    float64
}

// DefaultOptions returns the 0.4 / 0.3 / 0.2 / 0.1 model with illustrative pricing.
func DefaultOptions() Options {
	return FromConfig(config.DefaultConfig().Analysis)
}

// FromConfig converts the analysis config section.
func FromConfig(cfg config.AnalysisConfig) Options {
	pricing := make(map[string]float64, len(cfg.Pricing))
	for k, v := range cfg.Pricing {
		pricing[strings.ToLower(k)] = v
	}
	return Options{
		ConfidenceWeight:     cfg.ConfidenceWeight,
		SpeedWeight:          cfg.SpeedWeight,
		SuccessWeight:        cfg.SuccessWeight,
		CostWeight:           cfg.CostWeight,
		SpeedNormalizer:      cfg.SpeedNormalizer,
		CostNormalizer:       cfg.CostNormalizer,
		ComputeCostPerSecond: cfg.ComputeCostPerSecond,
		Pricing:              pricing,
		HighConfidence:       cfg.HighConfidence,
		FastCharsPerSecond:   cfg.FastCharsPerSecond,
		HighReliability:      cfg.HighReliability,
	}
}

// AccuracyPick is the engine with the highest average confidence.
type AccuracyPick struct {
	Engine     string  `json:"engine"`
	Confidence float64 `json:"confidence"`
}

// SpeedPick is the engine with the highest average throughput.
type SpeedPick struct {
	Engine         string  `json:"engine"`
	CharsPerSecond float64 `json:"chars_per_second"`
}

// CostPick is the engine with the lowest estimated cost per page.
type CostPick struct {
	Engine      string  `json:"engine"`
	CostPerPage float64 `json:"cost_per_page"`
}

// ReliabilityPick is the engine with the highest success rate.
type ReliabilityPick struct {
	Engine      string  `json:"engine"`
	SuccessRate float64 `json:"success_rate"`
}

// OverallPick is the engine with the highest weighted score.
type OverallPick struct {
	Engine string  `json:"engine"`
	Score  float64 `json:"score"`
}

// Recommendations is the analyzer verdict.
type Recommendations struct {
	BestAccuracy    AccuracyPick                `json:"best_accuracy"`
	BestSpeed       SpeedPick                   `json:"best_speed"`
	BestCost        CostPick                    `json:"best_cost"`
	BestReliability ReliabilityPick             `json:"best_reliability"`
	BestOverall     OverallPick                 `json:"best_overall"`
	Scores          *domain.OrderedMap[float64] `json:"scores"`
	Performance     *Performance                `json:"performance"`
	Summary         string                      `json:"summary"`
}

// Analyzer scores engines and explains the ranking.
type Analyzer struct {
	opts Options
}

// New creates an analyzer. Zero normalizers fall back to the defaults.
func New(opts Options) *Analyzer {
	if opts.SpeedNormalizer <= 0 {
		opts.SpeedNormalizer = 1000
	}
	if opts.CostNormalizer <= 0 {
		opts.CostNormalizer = 1000
	}
	if opts.Pricing == nil {
		opts.Pricing = map[string]float64{}
	}
	return &Analyzer{opts: opts}
}

// CostPerPage prices an engine. Engines without a flat price are charged for
// compute time instead.
func (a *Analyzer) CostPerPage(engine string, avgProcessingTimeMS float64) float64 {
	base := a.opts.Pricing[strings.ToLower(engine)]
	if base == 0 && avgProcessingTimeMS > 0 {
		return avgProcessingTimeMS / 1000 * a.opts.ComputeCostPerSecond
	}
	return base
}

// Score is the weighted overall score; every term is clamped into [0,1].
func (a *Analyzer) Score(s EnginePerformanceStats) float64 {
	conf := clamp01(s.AvgConfidence)
	speed := clamp01(s.AvgCharsPerSecond / a.opts.SpeedNormalizer)
	success := clamp01(s.SuccessRate)
	cost := 1 - clamp01(s.EstimatedCostPerPage*a.opts.CostNormalizer)

	return conf*a.opts.ConfidenceWeight +
		speed*a.opts.SpeedWeight +
		success*a.opts.SuccessWeight +
		cost*a.opts.CostWeight
}

// GenerateRecommendations ranks the engines in perf. The input map is not
// modified; the returned Performance carries the estimated costs. Empty
// input yields nil.
func (a *Analyzer) GenerateRecommendations(perf *Performance) *Recommendations {
	if perf.Len() == 0 {
		return nil
	}

	enriched := NewPerformance()
	perf.Each(func(name string, s EnginePerformanceStats) bool {
		s.EstimatedCostPerPage = a.CostPerPage(name, s.AvgProcessingTimeMS)
		enriched.Set(name, s)
		return true
	})

	rec := &Recommendations{
		Scores:      domain.NewOrderedMap[float64](),
		Performance: enriched,
	}

	first := true
	enriched.Each(func(name string, s EnginePerformanceStats) bool {
		score := a.Score(s)
		rec.Scores.Set(name, score)

		if first {
			rec.BestAccuracy = AccuracyPick{name, s.AvgConfidence}
			rec.BestSpeed = SpeedPick{name, s.AvgCharsPerSecond}
			rec.BestCost = CostPick{name, s.EstimatedCostPerPage}
			rec.BestReliability = ReliabilityPick{name, s.SuccessRate}
			rec.BestOverall = OverallPick{name, score}
			first = false
			return true
		}

		if s.AvgConfidence > rec.BestAccuracy.Confidence {
			rec.BestAccuracy = AccuracyPick{name, s.AvgConfidence}
		}
		if s.AvgCharsPerSecond > rec.BestSpeed.CharsPerSecond {
			rec.BestSpeed = SpeedPick{name, s.AvgCharsPerSecond}
		}
		if s.EstimatedCostPerPage < rec.BestCost.CostPerPage {
			rec.BestCost = CostPick{name, s.EstimatedCostPerPage}
		}
		if s.SuccessRate > rec.BestReliability.SuccessRate {
			rec.BestReliability = ReliabilityPick{name, s.SuccessRate}
		}
		if score > rec.BestOverall.Score {
			rec.BestOverall = OverallPick{name, score}
		}
		return true
	})

	rec.Summary = a.Summary(enriched, rec.Scores)
	return rec
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
