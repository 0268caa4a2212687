package main

import (
	"os"

	"github.com/troyyang/ocr-compare/cmd/ocr-compare/commands"
	"github.com/troyyang/ocr-compare/cmd/ocr-compare/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.Error("Error: %v", err)
		os.Exit(1)
	}
}
