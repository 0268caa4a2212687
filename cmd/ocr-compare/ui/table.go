package ui

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table prints a boxed table. Rows shorter than headers are padded.
func Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && utf8.RuneCountInString(cell) > widths[i] {
				widths[i] = utf8.RuneCountInString(cell)
			}
		}
	}

	border := color.New(color.FgCyan, color.Bold)
	rule := func(left, mid, right string) {
		border.Fprint(os.Stdout, left)
		for i, width := range widths {
			border.Fprint(os.Stdout, strings.Repeat("─", width+2))
			if i < len(widths)-1 {
				border.Fprint(os.Stdout, mid)
			}
		}
		border.Fprint(os.Stdout, right+"\n")
	}
	line := func(cells []string) {
		border.Fprint(os.Stdout, "│")
		for i, width := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			fmt.Fprintf(os.Stdout, " %s%s ", cell, strings.Repeat(" ", width-utf8.RuneCountInString(cell)))
			border.Fprint(os.Stdout, "│")
		}
		fmt.Fprintln(os.Stdout)
	}

	rule("┌", "┬", "┐")
	line(headers)
	rule("├", "┼", "┤")
	for _, row := range rows {
		line(row)
	}
	rule("└", "┴", "┘")
}
