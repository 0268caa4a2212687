package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/troyyang/ocr-compare/cmd/ocr-compare/ui"
	"github.com/troyyang/ocr-compare/internal/progress"
	"github.com/troyyang/ocr-compare/internal/storage"
)

var (
	docUser   string
	docLimit  int
	docOffset int
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage stored documents and their OCR results",
}

var docAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Store a PDF or image for later parsing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(false, func(ctx context.Context, a *app) error {
			doc, err := a.svc.AddFile(ctx, args[0], currentUser(docUser))
			if err != nil {
				return err
			}
			ui.Success("Stored %s", doc.Filename)
			printDocument(doc)
			return nil
		})
	},
}

var docParseCmd = &cobra.Command{
	Use:   "parse <id>",
	Short: "Run every engine over a stored document and save the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDocumentID(args[0])
		if err != nil {
			return err
		}
		return withApp(true, func(ctx context.Context, a *app) error {
			sink, release := a.notifier(id)
			defer release()

			bar := ui.NewStageBar(id.String()[:8])
			result, err := a.svc.ParseDocument(ctx, id, currentUser(docUser), progress.Multi{sink, bar})
			bar.Wait()
			if err != nil {
				return err
			}

			printDocument(result.Document)
			if result.Cached {
				ui.Info("Results served from the parse cache")
			}
			ui.Section("Engines")
			ui.Table([]string{"Engine", "Confidence", "Time (ms)", "Chars", "Chars/s", "Error"}, resultRows(result.Output.Results))
			if result.Document.Recommendation.Valid {
				ui.Section("Recommendation")
				fmt.Println(result.Document.Recommendation.String)
			}
			return nil
		})
	},
}

var docShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored document and its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDocumentID(args[0])
		if err != nil {
			return err
		}
		return withApp(false, func(ctx context.Context, a *app) error {
			details, err := a.svc.GetDocument(ctx, id)
			if err != nil {
				return err
			}
			printDocument(details.Document)
			if len(details.Results) == 0 {
				ui.Info("No OCR results yet")
				return nil
			}
			rows := make([][]string, 0, len(details.Results))
			for _, r := range details.Results {
				conf := "-"
				if r.ConfidenceScore.Valid {
					conf = fmt.Sprintf("%.3f", r.ConfidenceScore.Float64)
				}
				rows = append(rows, []string{
					r.Engine, conf, fmt.Sprintf("%d", r.ProcessingTimeMS),
					fmt.Sprintf("%d", len([]rune(r.ExtractedText))), ui.Truncate(r.ErrorMessage.String, 60),
				})
			}
			ui.Section("Results")
			ui.Table([]string{"Engine", "Confidence", "Time (ms)", "Chars", "Error"}, rows)
			return nil
		})
	},
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored document, its results and its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDocumentID(args[0])
		if err != nil {
			return err
		}
		return withApp(false, func(ctx context.Context, a *app) error {
			if err := a.svc.DeleteDocument(ctx, id); err != nil {
				return err
			}
			ui.Success("Deleted %s", id)
			return nil
		})
	},
}

var docExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a document's OCR results to CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDocumentID(args[0])
		if err != nil {
			return err
		}
		return withApp(false, func(ctx context.Context, a *app) error {
			path, err := a.svc.ExportParseResult(ctx, id)
			if err != nil {
				return err
			}
			ui.Success("Exported to %s", path)
			return nil
		})
	},
}

var docStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show processing statistics for your documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(false, func(ctx context.Context, a *app) error {
			stats, err := a.svc.Statistics(ctx, currentUser(docUser))
			if err != nil {
				return err
			}
			ui.Section("Documents")
			ui.KeyValue("Total", stats.TotalDocuments)
			ui.KeyValue("Completed", stats.CompletedDocuments)
			ui.KeyValue("Failed", stats.FailedDocuments)
			ui.KeyValue("Success rate", fmt.Sprintf("%.2f%%", stats.SuccessRate))
			ui.KeyValue("Recent times (ms)", stats.RecentProcessingTimes)

			if len(stats.EnginePerformance) > 0 {
				rows := make([][]string, 0, len(stats.EnginePerformance))
				for _, e := range stats.EnginePerformance {
					rows = append(rows, []string{
						e.Engine,
						fmt.Sprintf("%.3f", e.AvgConfidence),
						fmt.Sprintf("%.0f", e.AvgProcessingTimeMS),
						fmt.Sprintf("%d", e.TotalProcessed),
					})
				}
				ui.Section("Engines")
				ui.Table([]string{"Engine", "Avg confidence", "Avg ms", "Processed"}, rows)
			}
			return nil
		})
	},
}

var docSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search your documents by name, text or recommendation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		return withApp(false, func(ctx context.Context, a *app) error {
			res, err := a.svc.SearchDocuments(ctx, currentUser(docUser), query, docLimit, docOffset)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(res.Documents))
			for _, d := range res.Documents {
				rows = append(rows, []string{
					d.ID.String(), d.Filename, d.FileType, string(d.Status),
					d.UploadTimestamp.Local().Format("2006-01-02 15:04"),
				})
			}
			ui.Table([]string{"ID", "Filename", "Type", "Status", "Uploaded"}, rows)
			ui.Info("%d of %d documents", len(res.Documents), res.Total)
			return nil
		})
	},
}

func init() {
	docCmd.PersistentFlags().StringVarP(&docUser, "user", "u", "", "document owner (default $OCR_USER or \"local\")")
	docSearchCmd.Flags().IntVar(&docLimit, "limit", 50, "maximum documents to list")
	docSearchCmd.Flags().IntVar(&docOffset, "offset", 0, "documents to skip")

	docCmd.AddCommand(docAddCmd, docParseCmd, docShowCmd, docDeleteCmd, docExportCmd, docStatsCmd, docSearchCmd)
	rootCmd.AddCommand(docCmd)
}

// withApp opens the shared services, runs fn and closes them.
func withApp(withParser bool, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, withParser)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printDocument(doc *storage.Document) {
	ui.Section("Document")
	ui.KeyValue("ID", doc.ID)
	ui.KeyValue("Filename", doc.Filename)
	ui.KeyValue("Type", doc.FileType)
	ui.KeyValue("Status", doc.Status)
	ui.KeyValue("Size", ui.FormatBytes(doc.FileSize))
	ui.KeyValue("Uploaded", doc.UploadTimestamp.Local().Format("2006-01-02 15:04:05"))
}
