package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/troyyang/ocr-compare/cmd/ocr-compare/ui"
	"github.com/troyyang/ocr-compare/internal/analysis"
	"github.com/troyyang/ocr-compare/internal/config"
	"github.com/troyyang/ocr-compare/internal/domain"
	"github.com/troyyang/ocr-compare/internal/metrics"
)

var (
	parseEngines []string
	parseNoGPU   bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Run every engine over one file and compare the results",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().StringSliceVarP(&parseEngines, "engines", "e", nil, "engines to run (default from config)")
	parseCmd.Flags().BoolVar(&parseNoGPU, "no-gpu", false, "disable GPU acceleration")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(parseEngines) > 0 {
		cfg.Engines.Requested = config.SplitList(parseEngines)
	}
	if parseNoGPU {
		cfg.Engines.UseGPU = false
	}
	logger := newLogger(cfg)

	orch, err := newOrchestrator(cfg, metrics.NewCollector(), logger)
	if err != nil {
		return err
	}
	defer orch.Close()

	spinner := ui.NewSpinner("Parsing " + args[0])
	spinner.Start()
	start := time.Now()
	out, err := orch.Parse(ctx, args[0], spinner.Notifier())
	spinner.Stop()
	if err != nil {
		return err
	}

	ui.Section("Document")
	ui.KeyValue("File", out.FilePath)
	ui.KeyValue("Type", out.FileType)
	ui.KeyValue("Method", out.ProcessingMethod)
	ui.KeyValue("Pages", out.TotalPages)
	ui.KeyValue("Duration", ui.FormatDuration(time.Since(start)))
	if out.MarkdownPath != "" {
		ui.KeyValue("Markdown", out.MarkdownPath)
	}
	if out.PreviewPath != "" {
		ui.KeyValue("Preview", out.PreviewPath)
	}

	ui.Section("Engines")
	ui.Table([]string{"Engine", "Confidence", "Time (ms)", "Chars", "Chars/s", "Error"}, resultRows(out.Results))

	if out.BestResult != nil {
		ui.Section("Best Result")
		ui.KeyValue("Engine", out.BestResult.EngineName)
		ui.KeyValue("Confidence", fmt.Sprintf("%.3f", out.BestResult.Confidence))
		ui.KeyValue("Text", ui.Truncate(out.BestResult.Text, 200))
	}

	analyzer := newAnalyzer(cfg)
	ui.Section("Recommendation")
	fmt.Println(analyzer.Headline(out.Results))
	if rec := analyzer.GenerateRecommendations(analysis.StatsFromResults(out.Results)); rec != nil {
		ui.Newline()
		fmt.Println(rec.Summary)
	}
	return nil
}

func resultRows(results *domain.Results) [][]string {
	rows := make([][]string, 0, results.Len())
	results.Each(func(name string, r domain.OCRResult) bool {
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%.3f", r.Confidence),
			fmt.Sprintf("%.0f", r.ProcessingTimeMS),
			fmt.Sprintf("%d", r.TextLength()),
			fmt.Sprintf("%.1f", r.CharsPerSecond()),
			ui.Truncate(r.Error(), 60),
		})
		return true
	})
	return rows
}
