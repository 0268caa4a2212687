package commands

import (
	"github.com/spf13/cobra"

	"github.com/troyyang/ocr-compare/cmd/ocr-compare/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "ocr-compare",
	Short: "Run several OCR engines over documents and recommend the best one",
	Long: `ocr-compare runs every configured OCR engine over PDFs and images, picks the
best result per document and scores the engines on accuracy, speed, reliability
and cost. Documents can be benchmarked in bulk or stored and parsed one by one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitUI(noColor, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
