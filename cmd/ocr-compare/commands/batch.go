package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/troyyang/ocr-compare/cmd/ocr-compare/ui"
	"github.com/troyyang/ocr-compare/internal/batch"
	"github.com/troyyang/ocr-compare/internal/config"
	"github.com/troyyang/ocr-compare/internal/metrics"
)

var (
	batchInputPath  string
	batchOutputDir  string
	batchEngines    []string
	batchExtensions []string
	batchNoGPU      bool
	batchXLSX       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Benchmark OCR engines over a file or directory",
	Long: `Run every requested engine over each PDF and image under --input-path and write
JSON, CSV and Markdown reports with per-engine statistics and recommendations.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchInputPath, "input-path", "i", "", "file or directory to benchmark (required)")
	batchCmd.Flags().StringVarP(&batchOutputDir, "output-dir", "o", "benchmark_results", "directory for reports")
	batchCmd.Flags().StringSliceVarP(&batchEngines, "engines", "e", []string{"easyocr", "paddleocr", "tesseract"}, "engines to benchmark")
	batchCmd.Flags().StringSliceVar(&batchExtensions, "extensions", batch.DefaultExtensions, "file extensions to include")
	batchCmd.Flags().BoolVar(&batchNoGPU, "no-gpu", false, "disable GPU acceleration")
	batchCmd.Flags().BoolVar(&batchXLSX, "xlsx", false, "also write an Excel summary")
	_ = batchCmd.MarkFlagRequired("input-path")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Engines.Requested = config.SplitList(batchEngines)
	if batchNoGPU {
		cfg.Engines.UseGPU = false
	}
	cfg.Orchestrator.OutputDir = batchOutputDir
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	ui.Section("OCR Benchmark")
	ui.KeyValue("Input", batchInputPath)
	ui.KeyValue("Output", batchOutputDir)
	ui.KeyValue("Engines", cfg.Engines.Requested)

	collector := metrics.NewCollector()
	orch, err := newOrchestrator(cfg, collector, logger)
	if err != nil {
		return err
	}
	defer orch.Close()
	ui.KeyValue("Initialized", orch.Engines())
	ui.Newline()

	runner := batch.NewRunner(orch, newAnalyzer(cfg), collector, logger, batch.Options{
		OutputDir: batchOutputDir,
		WriteXLSX: batchXLSX || cfg.Batch.WriteXLSX,
	})

	var bar *ui.ProgressBar
	runner.OnFile(func(ev batch.FileEvent) {
		if bar == nil {
			bar = ui.NewProgressBar(int64(ev.Total), "Benchmarking")
		}
		bar.Describe(filepath.Base(ev.Path))
		bar.Set(int64(ev.Index))
	})

	start := time.Now()
	report, err := runner.Run(ctx, batchInputPath, config.SplitList(batchExtensions))
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	printBatchSummary(report, time.Since(start))
	return nil
}

func printBatchSummary(report *batch.Report, elapsed time.Duration) {
	rec := report.Analysis.Recommendations
	if rec == nil {
		ui.Banner("BENCHMARK COMPLETE",
			"No recommendations generated - check if any engines processed files successfully")
	} else {
		ui.Banner("BENCHMARK COMPLETE",
			fmt.Sprintf("Best overall engine: %s", rec.BestOverall.Engine),
			fmt.Sprintf("Score: %.3f", rec.BestOverall.Score))
	}

	ov := report.Analysis.Overview
	ui.Section("Run")
	ui.KeyValue("Files", fmt.Sprintf("%d of %d succeeded (%.1f%%)", ov.SuccessfulFiles, ov.TotalFiles, ov.SuccessRate*100))
	ui.KeyValue("Duration", ui.FormatDuration(elapsed))

	if perf := report.Analysis.EnginePerformance; perf.Len() > 0 {
		rows := make([][]string, 0, perf.Len())
		for _, name := range perf.Keys() {
			s, _ := perf.Get(name)
			rows = append(rows, []string{
				name,
				fmt.Sprintf("%.1f%%", s.SuccessRate*100),
				fmt.Sprintf("%.3f", s.AvgConfidence),
				fmt.Sprintf("%.0f", s.AvgProcessingTimeMS),
				fmt.Sprintf("%.1f", s.AvgCharsPerSecond),
			})
		}
		ui.Section("Engines")
		ui.Table([]string{"Engine", "Success", "Confidence", "Avg ms", "Chars/s"}, rows)
	}

	a := report.Artifacts
	ui.Section("Reports")
	for _, path := range []string{a.JSON, a.CSV, a.Markdown, a.XLSX, a.Metrics} {
		if path != "" {
			ui.Success("%s", path)
		}
	}
}
