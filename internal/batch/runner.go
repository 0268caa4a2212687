// Package batch benchmarks every configured engine over a corpus of files
// and writes the comparison artifacts.
package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/troyyang/ocr-compare/internal/analysis"
	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/metrics"
	"github.com/troyyang/ocr-compare/internal/observability"
	"github.com/troyyang/ocr-compare/internal/progress"
)

// snippetLength is the number of characters kept in text_snippet.
const snippetLength = 300

// Parser parses one document with every engine.
type Parser interface {
	Parse(ctx context.Context, path string, notifier progress.Notifier) (*domain.ParseOutput, error)
	Engines() []string
}

// EngineMetrics is one engine's outcome on one file.
type EngineMetrics struct {
	TextLength       int     `json:"text_length"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
	TextSnippet      string  `json:"text_snippet"`
	CharsPerSecond   float64 `json:"chars_per_second"`
	Error            string  `json:"error,omitempty"`
}

// FileResult is the per-file record of a run. Error is set when the file
// could not be parsed at all.
type FileResult struct {
	FileName            string                            `json:"file_name"`
	FilePath            string                            `json:"file_path"`
	FileSize            int64                             `json:"file_size"`
	FileType            string                            `json:"file_type"`
	TotalProcessingTime float64                           `json:"total_processing_time"`
	Error               string                            `json:"error,omitempty"`
	Engines             *domain.OrderedMap[EngineMetrics] `json:"engines"`
}

// Overview summarises the run.
type Overview struct {
	TotalFiles      int      `json:"total_files"`
	FilesProcessed  int      `json:"files_processed"`
	SuccessfulFiles int      `json:"successful_files"`
	SuccessRate     float64  `json:"success_rate"`
	EnginesTested   []string `json:"engines_tested"`
	Timestamp       string   `json:"timestamp"`
}

// FileTypeStats groups processed files by extension.
type FileTypeStats struct {
	FileCount     int     `json:"file_count"`
	AvgFileSizeMB float64 `json:"avg_file_size_mb"`
	TotalSizeMB   float64 `json:"total_size_mb"`
}

// Analysis is the corpus-level evaluation of a run.
type Analysis struct {
	Overview          Overview                          `json:"overview"`
	FileTypeBreakdown *domain.OrderedMap[FileTypeStats] `json:"file_type_breakdown"`
	EnginePerformance *analysis.Performance             `json:"engine_performance"`
	Recommendations   *analysis.Recommendations         `json:"recommendations,omitempty"`
}

// Artifacts are the files written by a run. Empty fields were not written.
type Artifacts struct {
	JSON     string
	CSV      string
	Markdown string
	XLSX     string
	Metrics  string
}

// Report is everything a run produced.
type Report struct {
	Results   []FileResult `json:"results"`
	Analysis  *Analysis    `json:"analysis"`
	Artifacts Artifacts    `json:"-"`
}

// FileEvent is passed to the per-file callback once a file is done.
type FileEvent struct {
	Index int
	Total int
	Path  string
	Err   error
}

// Options configures a Runner.
type Options struct {
	OutputDir string
	WriteXLSX bool
	// Now stamps artifacts; defaults to time.Now.
	Now func() time.Time
}

// Runner processes files one at a time and analyses the corpus at the end.
type Runner struct {
	parser   Parser
	analyzer *analysis.Analyzer
	metrics  *metrics.Collector
	logger   *observability.Logger
	opts     Options
	onFile   func(FileEvent)
}

// NewRunner creates a runner. A nil analyzer uses the default weights.
func NewRunner(parser Parser, analyzer *analysis.Analyzer, collector *metrics.Collector, logger *observability.Logger, opts Options) *Runner {
	if analyzer == nil {
		analyzer = analysis.New(analysis.DefaultOptions())
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "benchmark_results"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		parser:   parser,
		analyzer: analyzer,
		metrics:  collector,
		logger:   observability.OrDefault(logger).WithOperation("batch"),
		opts:     opts,
	}
}

// OnFile registers a callback invoked after each file.
func (r *Runner) OnFile(fn func(FileEvent)) {
	r.onFile = fn
}

// Run discovers files under inputPath, parses each one and writes the
// artifacts. A file that fails is recorded and the run continues.
func (r *Runner) Run(ctx context.Context, inputPath string, extensions []string) (*Report, error) {
	files, err := Discover(inputPath, extensions)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, domain.IOError("create output directory", err)
	}

	ctx = observability.ContextWithRunID(ctx, uuid.NewString())
	logger := r.logger.ForRun(ctx)
	logger.Info().Int("files", len(files)).Msgf("Found %d test files", len(files))
	logger.Info().Strs("engines", r.parser.Engines()).Msg("Benchmarking engines")

	started := time.Now()
	results := make([]FileResult, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Info().Msgf("Processing %d/%d: %s", i+1, len(files), filepath.Base(path))

		res, err := r.processFile(ctx, path)
		if err != nil {
			logger.Error().Err(err).Str("file", path).Msgf("Error processing %s", filepath.Base(path))
		}
		results = append(results, res)
		if r.onFile != nil {
			r.onFile(FileEvent{Index: i + 1, Total: len(files), Path: path, Err: err})
		}
	}

	report := &Report{
		Results:  results,
		Analysis: r.analyze(results),
	}
	artifacts, err := r.save(report)
	if err != nil {
		return nil, err
	}
	report.Artifacts = artifacts
	logger.Info().Str("dir", r.opts.OutputDir).Dur("elapsed", time.Since(started)).Msg("Results saved")
	return report, nil
}

func (r *Runner) processFile(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{
		FileName: filepath.Base(path),
		FilePath: path,
		FileType: strings.ToLower(filepath.Ext(path)),
		Engines:  domain.NewOrderedMap[EngineMetrics](),
	}
	if info, err := os.Stat(path); err == nil {
		res.FileSize = info.Size()
	}

	start := time.Now()
	out, err := r.parser.Parse(ctx, path, nil)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.TotalProcessingTime = time.Since(start).Seconds()

	out.Results.Each(func(name string, ocr domain.OCRResult) bool {
		res.Engines.Set(name, engineMetrics(ocr))
		return true
	})
	return res, nil
}

func engineMetrics(r domain.OCRResult) EngineMetrics {
	return EngineMetrics{
		TextLength:       r.TextLength(),
		Confidence:       r.Confidence,
		ProcessingTimeMS: r.ProcessingTimeMS,
		TextSnippet:      snippet(r.Text, snippetLength),
		CharsPerSecond:   r.CharsPerSecond(),
		Error:            r.Error(),
	}
}

func snippet(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}

// analyze folds the per-file records into corpus statistics. Files with an
// error are left out; a file counts as successful when any engine reported.
func (r *Runner) analyze(results []FileResult) *Analysis {
	acc := analysis.NewAccumulator()
	byType := domain.NewOrderedMap[FileTypeStats]()
	sizes := make(map[string]int64)

	processed, successful := 0, 0
	for _, res := range results {
		if res.Error != "" {
			continue
		}
		processed++
		if res.Engines.Len() > 0 {
			successful++
		}

		ft, _ := byType.Get(res.FileType)
		ft.FileCount++
		byType.Set(res.FileType, ft)
		sizes[res.FileType] += res.FileSize

		res.Engines.Each(func(name string, m EngineMetrics) bool {
			acc.Add(name, analysis.EngineSample{
				TextLength:       m.TextLength,
				Confidence:       m.Confidence,
				ProcessingTimeMS: m.ProcessingTimeMS,
				CharsPerSecond:   m.CharsPerSecond,
				Failed:           m.Error != "",
			})
			return true
		})
	}

	for _, key := range byType.Keys() {
		ft, _ := byType.Get(key)
		total := float64(sizes[key]) / bytesPerMB
		ft.TotalSizeMB = total
		ft.AvgFileSizeMB = total / float64(ft.FileCount)
		byType.Set(key, ft)
	}

	successRate := 0.0
	if processed > 0 {
		successRate = float64(successful) / float64(processed)
	}

	perf := acc.Performance()
	a := &Analysis{
		Overview: Overview{
			TotalFiles:      len(results),
			FilesProcessed:  processed,
			SuccessfulFiles: successful,
			SuccessRate:     successRate,
			EnginesTested:   acc.Engines(),
			Timestamp:       r.opts.Now().Format("2006-01-02T15:04:05.000000"),
		},
		FileTypeBreakdown: byType,
		EnginePerformance: perf,
	}
	if rec := r.analyzer.GenerateRecommendations(perf); rec != nil {
		a.Recommendations = rec
		a.EnginePerformance = rec.Performance
	}
	return a
}

const bytesPerMB = 1024 * 1024
